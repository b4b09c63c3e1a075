// Package vehicle defines the boundary between the kernel and physical (or
// simulated) AGVs: an Adapter the kernel drives with SendCommand/Abort, and
// a Registry that fans every adapter's asynchronous reports into one
// channel the Dispatcher drains in per-vehicle FIFO order. The simulated
// adapter runs one goroutine per in-flight command.
package vehicle
