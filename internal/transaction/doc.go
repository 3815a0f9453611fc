// Package transaction holds the forwarder's in-memory delivery queue.
//
// A Transaction is one accepted intake payload awaiting delivery to the
// remote collector. The Queue owns every live Transaction in insertion order
// together with the flush cursor: the list of due transactions a delivery
// chain is currently draining. At most one cursor exists at a time, so a
// second BeginFlush while a chain is running is a no-op.
//
// Flushes drain newest first. A failed delivery leaves the transaction in the
// queue and pushes its next eligible time out by Delay(failures), which grows
// by 20s per failure and is capped at 60s. There is no retry limit.
//
// The Queue is not safe for concurrent use. The scheduler loop is its only
// caller. Nothing here is persisted.
package transaction
