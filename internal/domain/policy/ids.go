// Package policy contains the domain types for graph policy compilation
// and enforcement: subject/property identifiers, compiled policies, the
// immutable PolicyWrapper they are indexed into, and the ports (storage,
// compiler, enforcers) that the service layer implements.
package policy

import "fmt"

// SID is an opaque, total-orderable subject identifier: the database's
// compact encoding of an IRI. Two SIDs compare equal iff they encode the
// same IRI; Less gives a stable total order usable for deterministic
// iteration (e.g. in tests asserting compile determinism, §8.6).
type SID struct {
	// Namespace is the database's namespace code for the IRI's prefix.
	Namespace int
	// Name is the local name within that namespace.
	Name string
}

// PID is a property (predicate) identifier; always a SID.
type PID = SID

// ClassSID is a class identifier; always a SID.
type ClassSID = SID

// String renders the SID for logging and error messages.
func (s SID) String() string {
	return fmt.Sprintf("%d:%s", s.Namespace, s.Name)
}

// Less reports whether s sorts before other under the total order used
// for deterministic default-list iteration.
func (s SID) Less(other SID) bool {
	if s.Namespace != other.Namespace {
		return s.Namespace < other.Namespace
	}
	return s.Name < other.Name
}

// Well-known namespace code reserved for the implicit properties every
// subject carries regardless of class. Real namespace codes are assigned
// by the database's IRI codec and are always >= 0.
const wellKnownNamespace = -1

// IDProperty is the well-known SID for the implicit "@id" property.
var IDProperty = SID{Namespace: wellKnownNamespace, Name: "@id"}

// TypeProperty is the well-known SID for the implicit "@type" property.
var TypeProperty = SID{Namespace: wellKnownNamespace, Name: "@type"}

// IsImplicit reports whether pid is one of the two properties every
// subject carries (§4.2: "Unconditionally adds @id and @type").
func IsImplicit(pid PID) bool {
	return pid == IDProperty || pid == TypeProperty
}
