// Package kernel wires the Object Pool, Router, Resource Manager,
// Dispatcher, Event Hub, and Recharge/Parking strategies into a single
// running instance, and implements the MODELLING/OPERATING/SHUTDOWN state
// machine that gates which operations are legal. There is exactly one
// active kernel instance: single-writer, single-process.
package kernel
