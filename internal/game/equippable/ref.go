package equippable

// Ref is a weak reference to an Equippable. Get re-validates liveness on every call, so
// a destroyed item reads as nil.
type Ref struct {
	e *Equippable
}

// MakeRef returns a reference to e. A nil e yields an empty Ref.
func MakeRef(e *Equippable) Ref {
	return Ref{e: e}
}

// Get returns the referenced item, or nil if it is unset or destroyed.
func (r Ref) Get() *Equippable {
	if !r.e.IsValid() {
		return nil
	}
	return r.e
}

// IsValid reports whether Get would return a live item.
func (r Ref) IsValid() bool {
	return r.e.IsValid()
}

// Is reports whether r refers to the live item e.
func (r Ref) Is(e *Equippable) bool {
	return e != nil && r.Get() == e
}

// Reset clears the reference.
func (r *Ref) Reset() {
	r.e = nil
}
