// Package server exposes a tail engine over HTTP.
//
// Subscribers connect to /ws and receive JSON messages of the form
// {"lines":[...]} or {"error":"..."}: first their catch-up batch, then each
// broadcast batch. Every connection owns a bounded outbound queue drained by
// a dedicated writer goroutine, so a slow client only loses its own
// deliveries. /api/lines, /api/status, and /healthz serve one-shot reads.
package server
