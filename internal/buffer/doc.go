// Package buffer provides an unbounded FIFO used to hand values between
// goroutines without ever blocking the producer.
//
// The connection manager posts transport events, timer fires and close
// requests into a GrowableBuffer and drains it from its event loop. The
// journal uses a second one between the manager's hooks and the database
// writer.
package buffer
