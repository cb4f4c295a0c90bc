// Package events carries structured lifecycle events from the core to
// subscribers (the WebSocket stream) and sinks (the audit store).
package events
