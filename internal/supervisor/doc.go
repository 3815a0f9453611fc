// Package supervisor spawns and tracks the out-of-process check run.
//
// Only one check process may be alive at a time: Spawn refuses with
// ErrRunning while a tracked child has not been reaped. Poll is a
// non-blocking liveness check returning Idle, Running, Succeeded, or Failed;
// the last two release the handle. A non-zero exit is logged as an error and
// never propagates further.
//
// Command is the production Launcher. It re-executes the forwarder binary in
// its runchecks mode, passing --first-run on the first cycle.
package supervisor
