package hub_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"tailcast/internal/hub"
)

type recorder struct {
	mu     sync.Mutex
	got    []hub.Message
	fail   error
	closed bool
}

func (r *recorder) Send(msg hub.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.got = append(r.got, msg)
	return nil
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recorder) messages() []hub.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]hub.Message(nil), r.got...)
}

func staticCatchUp(lines ...string) hub.CatchUpFunc {
	return func() ([]string, error) { return lines, nil }
}

func TestRegisterSendsCatchUpFirst(t *testing.T) {
	h := hub.New(staticCatchUp("a", "b"), nil)
	sub := &recorder{}
	if err := h.Register(sub); err != nil {
		t.Fatalf("Register: %v", err)
	}
	h.Broadcast([]string{"c"})

	want := []hub.Message{hub.LinesMessage([]string{"a", "b"}), hub.LinesMessage([]string{"c"})}
	if got := sub.messages(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected messages: %#v", got)
	}
}

func TestRegisterTwiceSendsCatchUpOnce(t *testing.T) {
	h := hub.New(staticCatchUp("a"), nil)
	sub := &recorder{}
	_ = h.Register(sub)
	_ = h.Register(sub)
	if got := len(sub.messages()); got != 1 {
		t.Fatalf("expected a single catch-up, got %d messages", got)
	}
}

func TestCatchUpFailureReachesOnlyThatSubscriber(t *testing.T) {
	fail := true
	h := hub.New(func() ([]string, error) {
		if fail {
			return nil, errors.New("open app.log: no such file or directory")
		}
		return []string{"x"}, nil
	}, nil)

	broken := &recorder{}
	_ = h.Register(broken)
	fail = false
	healthy := &recorder{}
	_ = h.Register(healthy)

	got := broken.messages()
	if len(got) != 1 || !got[0].IsError() {
		t.Fatalf("expected error message, got %#v", got)
	}
	if healthy.messages()[0].IsError() {
		t.Fatal("healthy subscriber should receive lines")
	}
	if h.Len() != 2 {
		t.Fatalf("catch-up failure must not drop the subscriber, have %d", h.Len())
	}
}

func TestBroadcastFansOutExactlyOnce(t *testing.T) {
	h := hub.New(nil, nil)
	subs := []*recorder{{}, {}, {}}
	for _, s := range subs {
		_ = h.Register(s)
	}

	results := h.Broadcast([]string{"one", "two"})
	if len(results) != len(subs) {
		t.Fatalf("expected %d results, got %d", len(subs), len(results))
	}
	for i, s := range subs {
		got := s.messages()
		if len(got) != 2 {
			t.Fatalf("subscriber %d: expected catch-up plus one batch, got %#v", i, got)
		}
		if !reflect.DeepEqual(got[1].Lines, []string{"one", "two"}) {
			t.Fatalf("subscriber %d: unexpected batch %#v", i, got[1])
		}
	}
}

func TestBroadcastIgnoresEmptyBatch(t *testing.T) {
	h := hub.New(nil, nil)
	sub := &recorder{}
	_ = h.Register(sub)

	if results := h.Broadcast(nil); results != nil {
		t.Fatalf("expected no results, got %#v", results)
	}
	if got := len(sub.messages()); got != 1 {
		t.Fatalf("expected only catch-up, got %d messages", got)
	}
	if h.Stats().Broadcasts != 0 {
		t.Fatal("empty batch must not count as a broadcast")
	}
}

func TestUnregisteredSubscriberReceivesNothing(t *testing.T) {
	h := hub.New(nil, nil)
	stay, leave := &recorder{}, &recorder{}
	_ = h.Register(stay)
	_ = h.Register(leave)
	h.Unregister(leave)

	h.Broadcast([]string{"after"})
	if got := len(leave.messages()); got != 1 {
		t.Fatalf("unregistered subscriber got %d messages", got)
	}
	if got := len(stay.messages()); got != 2 {
		t.Fatalf("remaining subscriber got %d messages", got)
	}
	h.Unregister(leave)
}

func TestFailingSubscriberDoesNotAffectOthers(t *testing.T) {
	h := hub.New(nil, nil)
	good, bad := &recorder{}, &recorder{}
	_ = h.Register(good)
	_ = h.Register(bad)
	bad.mu.Lock()
	bad.fail = errors.New("connection reset")
	bad.mu.Unlock()

	results := h.Broadcast([]string{"x"})
	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			if r.Subscriber != hub.Subscriber(bad) {
				t.Fatalf("unexpected failing subscriber %#v", r.Subscriber)
			}
		}
	}
	if failed != 1 {
		t.Fatalf("expected one failed delivery, got %d", failed)
	}
	if got := len(good.messages()); got != 2 {
		t.Fatalf("healthy subscriber got %d messages", got)
	}

	stats := h.Stats()
	if stats.FailedDeliveries != 1 || stats.Broadcasts != 1 || stats.LinesBroadcast != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestBroadcastDuringCatchUpIsQueuedBehindIt(t *testing.T) {
	release := make(chan struct{})
	reading := make(chan struct{})
	h := hub.New(func() ([]string, error) {
		close(reading)
		<-release
		return []string{"snapshot"}, nil
	}, nil)

	sub := &recorder{}
	done := make(chan struct{})
	go func() {
		_ = h.Register(sub)
		close(done)
	}()

	<-reading
	results := h.Broadcast([]string{"first"})
	h.Broadcast([]string{"second"})
	if len(results) != 1 || !results[0].Queued {
		t.Fatalf("expected the batch to be queued, got %#v", results)
	}
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Register did not return")
	}

	want := []hub.Message{
		hub.LinesMessage([]string{"snapshot"}),
		hub.LinesMessage([]string{"first"}),
		hub.LinesMessage([]string{"second"}),
	}
	if got := sub.messages(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected order: %#v", got)
	}
}

func TestCloseClosesSubscribersAndRejectsNewOnes(t *testing.T) {
	h := hub.New(nil, nil)
	sub := &recorder{}
	_ = h.Register(sub)

	h.Close()
	if !sub.closed {
		t.Fatal("expected subscriber to be closed")
	}
	if h.Len() != 0 {
		t.Fatalf("expected empty set after close, have %d", h.Len())
	}
	if err := h.Register(&recorder{}); !errors.Is(err, hub.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	h.Close()
}

func TestMessageJSONShapes(t *testing.T) {
	cases := []struct {
		name string
		msg  hub.Message
		want string
	}{
		{"empty batch", hub.LinesMessage(nil), `{"lines":[]}`},
		{"batch", hub.LinesMessage([]string{"line1", "line2"}), `{"lines":["line1","line2"]}`},
		{"error", hub.ErrorMessage(errors.New("boom")), `{"error":"boom"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.msg)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != tc.want {
				t.Fatalf("got %s want %s", data, tc.want)
			}
			var decoded hub.Message
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if decoded.IsError() != tc.msg.IsError() {
				t.Fatalf("round trip changed kind: %#v", decoded)
			}
		})
	}
}
