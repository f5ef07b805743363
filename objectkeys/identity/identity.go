// Package identity defines the stable-identifier capability shared by
// objects that can serve as container keys, and the Store collaborator
// that assigns and resolves those identifiers.
package identity

// OID is a stable object identifier assigned by a Store.
// The zero value means no identifier has been assigned.
type OID uint64

// Ref is the embeddable identity slot. The zero value is an unattached
// reference.
type Ref struct {
	store Store
	oid   OID
}

func (r *Ref) ObjectID() (OID, bool) {
	return r.oid, r.oid != 0
}

func (r *Ref) BoundStore() Store {
	return r.store
}

func (r *Ref) slot() *Ref {
	return r
}

// As reports whether key carries the identity capability.
func As(key any) (Identifiable, bool) {
	if key == nil {
		return nil, false
	}
	obj, ok := key.(Identifiable)
	return obj, ok
}

// Bind records the identifier a store assigned to obj. Intended for Store
// implementations.
func Bind(obj Identifiable, store Store, oid OID) {
	s := obj.slot()
	s.store = store
	s.oid = oid
}

// Unbind detaches obj from its store, returning it to the unattached state.
func Unbind(obj Identifiable) {
	s := obj.slot()
	s.store = nil
	s.oid = 0
}
