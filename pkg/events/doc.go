/*
Package events implements the kernel's Event Hub: a synchronous, in-memory
publish/subscribe bus for object and kernel-state notifications.

Every subscription carries an optional Filter predicate; the broker only
delivers the events the filter accepts, so a consumer interested in, say,
vehicle changes never sees order traffic.

Local subscribers (in-process consumers such as a CLI watch command) get a
buffered Go channel via Subscribe; a full buffer causes broadcast to skip
that subscriber rather than block the hub. Remote or poll-based consumers
instead use SubscribeRemote, which hands back a bounded RemoteQueue — a ring
buffer that tracks how many events were lost to overflow between polls, so
a slow consumer can tell its view has a gap instead of silently missing
events.
*/
package events
