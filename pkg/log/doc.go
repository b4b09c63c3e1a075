/*
Package log configures the kernel's single process-wide zerolog logger.

Every subsystem obtains a child logger via WithComponent (and, where useful,
WithVehicle/WithOrder/WithPoint) rather than writing to Logger directly, so
that every line carries the field needed to trace it back to the vehicle,
order or component that produced it. Init must be called once during kernel
startup before any subsystem logs; until then Logger is the zerolog zero
value, which has no writer and discards every event.
*/
package log
