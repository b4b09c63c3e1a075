// Package kerneltypes defines the kernel's domain model: the topology
// entities (Point, Path, Location, LocationType, Block), the fleet entities
// (Vehicle, TransportOrder, DriveOrder, Route), the cross-entity reference
// type, and the kernel's error kinds. It has no behaviour beyond small
// value helpers (Ref equality, defensive Clone methods) — every algorithm
// that operates on these types lives in the package that owns that
// algorithm (pkg/router, pkg/resources, pkg/dispatcher, pkg/strategy).
package kerneltypes
