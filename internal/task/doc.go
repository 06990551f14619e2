// Package task runs resumable background loops on behalf of a single-threaded
// host.
//
// A Handle executes a loop body on its own goroutine. The body is expected to
// be cursor driven: it checks Canceled before each unit of work and returns
// when asked to stop, so Pause can stop it and Resume can start it again from
// wherever the cursor was left. Completion is never reported from the worker
// goroutine. Instead the handle subscribes a poll function to a Scheduler and
// the host's tick observes the worker exiting and runs the completion callback
// exactly once, on the host's goroutine.
//
// Loop is the Scheduler a host drives, either by calling Tick from its own
// main loop or by handing the loop to Run.
package task
