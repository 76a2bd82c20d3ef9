// Package transport defines the socket capability consumed by the
// connection manager and implements it on top of gorilla/websocket.
//
// A Dialer opens sockets without blocking. Each Socket reports its
// lifecycle through a Handler:
//   - OnOpen once the handshake completes
//   - OnMessage for every inbound data frame
//   - OnError for dial and read failures (always followed by OnClose)
//   - OnClose exactly once, with the close code and reason
//
// Detach removes the handler so that a superseded socket can finish
// closing without reaching its former owner.
package transport
