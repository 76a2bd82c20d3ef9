// Package connection implements the resilient connection manager.
//
// A Manager owns one transport socket at a time and keeps a logical
// connection alive across failures:
//   - Connect timeout: no open event within ConnectTimeout counts as a failure
//   - Heartbeat: after PingTimeout of silence a ping sentinel is sent; if
//     nothing arrives within PongTimeout the connection is considered dead
//   - Close classification: 1000 and 1005 end the manager, anything else
//     is treated as a failure
//   - Bounded reconnect: at most RepeatLimit consecutive attempts, each
//     ReconnectDelay apart, before the manager gives up
//
// All state is owned by a single event loop. Transport events, timer fires
// and Close requests are queued in an unbounded mailbox and handled one at
// a time, and caller hooks run on the loop goroutine.
package connection
