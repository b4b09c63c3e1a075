// Package dispatcher implements the kernel's Dispatcher: the single-thread
// worker that assigns transport orders to vehicles, drives each drive
// order's route to completion step by step, and reacts to vehicle reports,
// withdrawal requests, and failures, via a ticking run()/dispatch() loop.
package dispatcher
