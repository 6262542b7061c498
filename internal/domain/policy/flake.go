package policy

// Flake is an asserted or retracted RDF quad-with-metadata, the unit every
// enforcement decision is made about (GLOSSARY "Flake").
type Flake struct {
	// Subject is the flake's subject SID.
	Subject SID
	// Predicate is the flake's property (predicate) SID.
	Predicate PID
	// Object is the flake's object value. May be a SID (ref) or a literal.
	Object any
	// Datatype is the object's datatype SID, or the zero SID for refs.
	Datatype SID
	// Transaction is the transaction ID this flake was asserted/retracted in.
	Transaction int64
	// Op is true for an assertion, false for a retraction.
	Op bool
	// Meta carries opaque per-flake metadata (e.g. provenance).
	Meta map[string]any
}

// IDFlake synthesises the flake `[sid, @id, _]` used to test visibility of
// an IRI per §4.4 "IRI visibility".
func IDFlake(sid SID) Flake {
	return Flake{Subject: sid, Predicate: IDProperty, Op: true}
}
