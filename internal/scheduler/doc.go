// Package scheduler runs the forwarder's control loop.
//
// Scheduler.Run owns the transaction queue and the check supervisor and
// multiplexes, on a single goroutine:
//
//   - the check timer (spawn a check process; the first spawn happens at
//     start and carries the first-run flag)
//   - the poll timer (non-blocking check on the running process)
//   - the flush timer (start a flush chain if none is draining)
//   - intake submissions (enqueue, then nudge a flush)
//   - delivery outcomes (retire or back off, then send the next target)
//
// Each Send runs on its own goroutine and reports back over a channel, so a
// slow collector never stalls the timers. The sending flag keeps exactly
// one delivery outstanding.
package scheduler
