package identity

// Identifiable is the capability of owning a stable object identifier.
// Embed Ref into your structs to implement this interface; only pointers
// to such structs satisfy it, so identifiable objects always have a
// well-defined identity.
type Identifiable interface {
	// ObjectID returns the stable identifier and whether one has been
	// assigned yet.
	ObjectID() (OID, bool)
	// BoundStore returns the store the object is attached to, or nil.
	BoundStore() Store
	slot() *Ref
}

// Store assigns stable identifiers to objects and resolves them back.
type Store interface {
	// Attach registers obj and returns its stable identifier. Attaching
	// an object that already belongs to this store returns the existing
	// identifier; attaching an object bound to another store fails with
	// ErrStoreMismatch.
	Attach(obj Identifiable) (OID, error)
	// Resolve returns the live object assigned the given identifier.
	// Resolve fails with ErrUnknownID when the identifier was never
	// assigned, and with ErrNotResident when it was assigned but the
	// object is not present in this process.
	Resolve(oid OID) (Identifiable, error)
}
