package animation

import (
	"fmt"

	"github.com/cory-johannsen/spawnmaster/internal/game/actor"
)

// MeshType classifies the skeletal meshes an actor may own.
type MeshType uint8

const (
	MeshFirstPersonHands MeshType = iota
	MeshThirdPersonBody
	MeshFirstPersonEquippable
	MeshThirdPersonEquippable
)

var meshTypeNames = map[MeshType]string{
	MeshFirstPersonHands:      "first_person_hands",
	MeshThirdPersonBody:       "third_person_body",
	MeshFirstPersonEquippable: "first_person_equippable",
	MeshThirdPersonEquippable: "third_person_equippable",
}

// String returns the content-file spelling of t.
func (t MeshType) String() string {
	if n, ok := meshTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("mesh_type(%d)", uint8(t))
}

// ParseMeshType parses the content-file spelling of a mesh type.
func ParseMeshType(s string) (MeshType, error) {
	for t, n := range meshTypeNames {
		if n == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("animation: unknown mesh type %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler so mesh types read from YAML.
func (t *MeshType) UnmarshalText(b []byte) error {
	parsed, err := ParseMeshType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (t MeshType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Mesh is a skeletal mesh owned by an actor. Anim is nil until the mesh is ready to
// animate; a nil Anim is a legal state that montage code must tolerate.
type Mesh struct {
	Type  MeshType
	Owner actor.ID
	Anim  *Instance
	// Visible is toggled by attach and detach.
	Visible bool
}

// NewMesh returns a visible mesh of type t owned by owner with a fresh animation instance.
func NewMesh(t MeshType, owner actor.ID) *Mesh {
	return &Mesh{Type: t, Owner: owner, Anim: NewInstance(), Visible: true}
}

// AnimInstance returns the mesh's animation instance. Safe on a nil Mesh.
func (m *Mesh) AnimInstance() *Instance {
	if m == nil {
		return nil
	}
	return m.Anim
}
