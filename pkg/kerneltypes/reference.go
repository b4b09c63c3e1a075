package kerneltypes

import "fmt"

// Class identifies which entity class a Ref points at.
type Class string

const (
	ClassPoint          Class = "Point"
	ClassPath           Class = "Path"
	ClassLocation       Class = "Location"
	ClassLocationType   Class = "LocationType"
	ClassBlock          Class = "Block"
	ClassVehicle        Class = "Vehicle"
	ClassTransportOrder Class = "TransportOrder"
)

// Ref is a value-type reference to a business object: (class, id, name).
// Refs compare by class and id only; Name is a mutable hint carried along
// for logging and human-facing display, never for equality.
//
// A Ref is either Resolved (it names a real, currently-known object) or a
// Placeholder (it names an object that is expected to exist once model
// loading completes, but does not exist yet). Placeholder is the "dummy
// reference" needed to describe forward declarations during model
// loading; Resolve must be called to turn one into a Resolved Ref once
// loading is sealed, and any other use of a Placeholder is a programming
// error.
type Ref struct {
	Class       Class
	ID          int64
	Name        string
	placeholder bool
}

// NewRef returns a Resolved reference to an existing object.
func NewRef(class Class, id int64, name string) Ref {
	return Ref{Class: class, ID: id, Name: name}
}

// NewPlaceholderRef returns a Placeholder reference, naming an object that
// does not exist yet.
func NewPlaceholderRef(class Class, name string) Ref {
	return Ref{Class: class, ID: -1, Name: name, placeholder: true}
}

// IsPlaceholder reports whether r is a forward declaration awaiting Resolve.
func (r Ref) IsPlaceholder() bool {
	return r.placeholder
}

// IsZero reports whether r is the unset Ref value.
func (r Ref) IsZero() bool {
	return r.Class == "" && r.ID == 0 && r.Name == "" && !r.placeholder
}

// Equal compares two refs by class and id only, per the reference
// discipline. Two placeholders are never equal to each other or to any
// resolved ref, even if their names match — only Resolve can turn a
// placeholder into something comparable.
func (r Ref) Equal(other Ref) bool {
	if r.placeholder || other.placeholder {
		return false
	}
	return r.Class == other.Class && r.ID == other.ID
}

// Resolve looks up the placeholder's name in resolveByName (supplied by the
// caller, typically the pool's GetByName) and returns a new Resolved Ref.
// Calling Resolve on an already-Resolved ref simply returns it unchanged.
func (r Ref) Resolve(resolveByName func(class Class, name string) (int64, bool)) (Ref, error) {
	if !r.placeholder {
		return r, nil
	}
	id, ok := resolveByName(r.Class, r.Name)
	if !ok {
		return Ref{}, fmt.Errorf("unresolved placeholder reference %s %q", r.Class, r.Name)
	}
	return NewRef(r.Class, id, r.Name), nil
}

func (r Ref) String() string {
	if r.placeholder {
		return fmt.Sprintf("%s(placeholder:%s)", r.Class, r.Name)
	}
	return fmt.Sprintf("%s(%d:%s)", r.Class, r.ID, r.Name)
}

// ResourceSet is an unordered set of resource refs (Point or Path) held or
// claimed as a single indivisible unit.
type ResourceSet []Ref

// Contains reports whether the set contains a ref equal to target.
func (s ResourceSet) Contains(target Ref) bool {
	for _, r := range s {
		if r.Equal(target) {
			return true
		}
	}
	return false
}

// Intersects reports whether s and other share any member.
func (s ResourceSet) Intersects(other ResourceSet) bool {
	for _, r := range s {
		if other.Contains(r) {
			return true
		}
	}
	return false
}

// Union returns a new set containing every distinct member of s and other.
func (s ResourceSet) Union(other ResourceSet) ResourceSet {
	out := make(ResourceSet, 0, len(s)+len(other))
	out = append(out, s...)
	for _, r := range other {
		if !out.Contains(r) {
			out = append(out, r)
		}
	}
	return out
}

// Clone returns a defensive shallow copy of s.
func (s ResourceSet) Clone() ResourceSet {
	out := make(ResourceSet, len(s))
	copy(out, s)
	return out
}
