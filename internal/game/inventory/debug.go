package inventory

import (
	"io"

	"github.com/cory-johannsen/spawnmaster/internal/debugtext"
)

// PrintDebug writes the inventory overlay: one line per held item, then the current
// item, owner and connection type.
func (c *Component) PrintDebug(w io.Writer) {
	n := 0
	for _, s := range c.slots {
		for _, item := range s.Items {
			if item == nil {
				continue
			}
			debugtext.Line(w, debugtext.Emerald, "%d: %s", n, debugName(item))
			n++
		}
	}
	debugtext.Line(w, debugtext.Emerald, "Inventory:")
	debugtext.Line(w, debugtext.White, "CurrentEquippable: %s", debugName(c.current))
	debugtext.Line(w, debugtext.Orange, "Owner Name: %s", c.owner.Name())
	debugtext.Line(w, debugtext.Cyan, "Connection type: %s", c.owner.Net().Mode.DisplayName())
	debugtext.Line(w, debugtext.Red, "%s", debugtext.Separator)
}
