// Package hub fans line batches out to the set of connected subscribers.
//
// Each subscriber receives its catch-up batch first, out of band from the
// broadcast stream, followed by every batch broadcast while it is
// registered, in production order. Delivery is best effort: one failing
// subscriber never blocks or fails the others.
package hub
