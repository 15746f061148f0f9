// Package broadcast fans newly created readings out to live subscribers.
//
// The Hub has no knowledge of transport. The WebSocket handler in
// internal/api subscribes once per connection and forwards everything it
// receives; tests subscribe directly.
//
// Delivery is best effort: each subscriber has a bounded queue, and a
// reading that does not fit is dropped for that subscriber and counted.
// There is no replay for late joiners.
package broadcast
