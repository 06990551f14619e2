// Package sequence coordinates an ordered set of image frames through import,
// export, in-memory loading and playback navigation.
//
// A Controller owns one framestore.Store and at most one background worker per
// operation kind. Workers run on their own goroutines and only touch the store
// and the progress cursors; everything that finishes an operation (flags,
// dimensions, status, completion events) happens on the scheduler goroutine
// when the worker's poll observes it has stopped. Hosts drive that scheduler
// by ticking a task.Loop from their main loop.
//
// Every operation ends in exactly one completion event, including operations
// that produced no usable frames or were canceled. Callers either register a
// callback with OnImportComplete and friends or wait on Await.
package sequence
