package hub

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"tailcast/internal/logging"
)

var (
	// ErrClosed is returned by Register after Close.
	ErrClosed = errors.New("hub closed")
	// ErrUnregistered marks a broadcast result for a subscriber removed
	// between the snapshot and its delivery.
	ErrUnregistered = errors.New("subscriber unregistered")
)

// Subscriber is one connected consumer.
type Subscriber interface {
	Send(Message) error
}

// CatchUpFunc reads the batch a new subscriber receives first.
type CatchUpFunc func() ([]string, error)

// Result records the outcome of delivering one batch to one subscriber.
// Queued is set when the batch was held until the subscriber's catch-up was
// sent.
type Result struct {
	Subscriber Subscriber
	Queued     bool
	Err        error
}

// Stats is a snapshot of hub counters.
type Stats struct {
	Subscribers      int    `json:"subscribers"`
	Broadcasts       uint64 `json:"broadcasts"`
	LinesBroadcast   uint64 `json:"lines_broadcast"`
	Deliveries       uint64 `json:"deliveries"`
	FailedDeliveries uint64 `json:"failed_deliveries"`
}

type member struct {
	sub Subscriber

	mu      sync.Mutex // serializes sends to sub
	ready   bool       // catch-up sent
	removed bool
	pending [][]string
}

// Hub owns the open subscriber set.
type Hub struct {
	catchUp CatchUpFunc
	logger  *slog.Logger

	mu      sync.Mutex
	members map[Subscriber]*member
	closed  bool

	broadcasts     atomic.Uint64
	linesBroadcast atomic.Uint64
	deliveries     atomic.Uint64
	failures       atomic.Uint64
}

// New creates a hub. catchUp may be nil, in which case new subscribers
// receive an empty batch.
func New(catchUp CatchUpFunc, logger *slog.Logger) *Hub {
	if catchUp == nil {
		catchUp = func() ([]string, error) { return []string{}, nil }
	}
	return &Hub{
		catchUp: catchUp,
		logger:  logging.NewComponentLogger(logger, "hub"),
		members: make(map[Subscriber]*member),
	}
}

// Register adds sub to the open set and sends its catch-up batch, or an error
// message when the read fails. Broadcasts that arrive while the catch-up read
// is in flight are queued and sent after it. Registering a subscriber that is
// already open is a no-op.
func (h *Hub) Register(sub Subscriber) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	if _, ok := h.members[sub]; ok {
		h.mu.Unlock()
		return nil
	}
	m := &member{sub: sub}
	h.members[sub] = m
	h.mu.Unlock()

	var msg Message
	lines, err := h.catchUp()
	if err != nil {
		h.logger.Warn("catch-up read failed", subscriberAttr(sub), logging.Error(err))
		msg = ErrorMessage(err)
	} else {
		msg = LinesMessage(lines)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removed {
		return nil
	}
	h.send(m, msg)
	for _, batch := range m.pending {
		h.send(m, LinesMessage(batch))
	}
	m.pending = nil
	m.ready = true
	return nil
}

// Unregister removes sub. It receives nothing further, including queued
// batches.
func (h *Hub) Unregister(sub Subscriber) {
	h.mu.Lock()
	m, ok := h.members[sub]
	delete(h.members, sub)
	h.mu.Unlock()
	if !ok {
		return
	}
	m.mu.Lock()
	m.removed = true
	m.pending = nil
	m.mu.Unlock()
}

// Broadcast delivers lines to every subscriber open at the time of the call.
// An empty batch is ignored. Failures are recorded per subscriber and never
// stop delivery to the rest.
func (h *Hub) Broadcast(lines []string) []Result {
	if len(lines) == 0 {
		return nil
	}
	h.mu.Lock()
	targets := make([]*member, 0, len(h.members))
	for _, m := range h.members {
		targets = append(targets, m)
	}
	h.mu.Unlock()

	h.broadcasts.Add(1)
	h.linesBroadcast.Add(uint64(len(lines)))

	results := make([]Result, 0, len(targets))
	for _, m := range targets {
		results = append(results, h.deliver(m, lines))
	}
	return results
}

func (h *Hub) deliver(m *member, lines []string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removed {
		return Result{Subscriber: m.sub, Err: ErrUnregistered}
	}
	if !m.ready {
		m.pending = append(m.pending, lines)
		return Result{Subscriber: m.sub, Queued: true}
	}
	return Result{Subscriber: m.sub, Err: h.send(m, LinesMessage(lines))}
}

// send must be called with m.mu held.
func (h *Hub) send(m *member, msg Message) error {
	if err := m.sub.Send(msg); err != nil {
		h.failures.Add(1)
		h.logger.Debug("delivery failed", subscriberAttr(m.sub), logging.Error(err))
		return err
	}
	h.deliveries.Add(1)
	return nil
}

// Len reports the number of open subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.members)
}

// Stats returns a snapshot of the hub counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Subscribers:      h.Len(),
		Broadcasts:       h.broadcasts.Load(),
		LinesBroadcast:   h.linesBroadcast.Load(),
		Deliveries:       h.deliveries.Load(),
		FailedDeliveries: h.failures.Load(),
	}
}

// Close empties the open set and closes every subscriber that implements
// io.Closer. Later registrations fail with ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	members := h.members
	h.members = make(map[Subscriber]*member)
	h.mu.Unlock()

	for sub, m := range members {
		m.mu.Lock()
		m.removed = true
		m.pending = nil
		m.mu.Unlock()
		if closer, ok := sub.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				h.logger.Debug("close subscriber failed", subscriberAttr(sub), logging.Error(err))
			}
		}
	}
}

func subscriberAttr(sub Subscriber) logging.Attr {
	if identified, ok := sub.(interface{ ID() string }); ok {
		return logging.String(logging.FieldConnection, identified.ID())
	}
	return logging.String(logging.FieldConnection, "")
}
