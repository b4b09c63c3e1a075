// Package pool implements the kernel's Object Pool: the single in-memory
// authoritative store of every business object, keyed by stable integer id
// and unique name within its class. All mutation goes through the Pool so
// that the Event Hub never misses a change; all lookups return defensive
// copies so a caller can never mutate live state by holding onto a pointer.
package pool
