package inventory

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/spawnmaster/internal/game/animation"
	"github.com/cory-johannsen/spawnmaster/internal/game/equippable"
	"github.com/cory-johannsen/spawnmaster/internal/game/gametag"
	"github.com/cory-johannsen/spawnmaster/internal/game/geom"
	"github.com/cory-johannsen/spawnmaster/internal/game/timer"
	"github.com/cory-johannsen/spawnmaster/internal/metrics"
)

const (
	// MinUnequipTime is the shortest unequip transition, used when the arms have no
	// unequip montage to play.
	MinUnequipTime = 250 * time.Millisecond
	// unequipLead finishes the unequip slightly before the montage ends so the next
	// equip starts before the arms blend back to idle.
	unequipLead = 10 * time.Millisecond
)

// Status is the replicated equip transition state.
type Status uint8

const (
	StatusIdle Status = iota
	StatusEquipping
	StatusUnequipping
)

var statusNames = [...]string{"idle", "equipping", "unequipping"}

// String returns the status name.
func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if strings.EqualFold(name, string(b)) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("inventory: unknown status %q", b)
}

// Owner is the pawn an inventory belongs to.
type Owner interface {
	equippable.FirstPerson
	Name() string
	// EyesViewPoint returns the eye location and aim rotation.
	EyesViewPoint() (geom.Vector, geom.Rotator)
	Rotation() geom.Rotator
}

// Config tunes an inventory.
type Config struct {
	StartingSlots               []SlotConfig  `mapstructure:"starting_slots"`
	RePickUpTime                time.Duration `mapstructure:"re_pick_up_time"`
	RelativeDropLocation        geom.Vector   `mapstructure:"relative_drop_location"`
	DropVelocity                float64       `mapstructure:"drop_velocity"`
	UpVelocity                  float64       `mapstructure:"up_velocity"`
	DisallowSlotlessEquippables bool          `mapstructure:"disallow_slotless_equippables"`
	// AutoEquipOnPickUp equips a newly received item when the owner is empty handed.
	AutoEquipOnPickUp bool `mapstructure:"auto_equip_on_pick_up"`
}

// DefaultConfig returns a primary, secondary and melee slot with stock drop tuning.
func DefaultConfig() Config {
	return Config{
		StartingSlots: []SlotConfig{
			{Tag: "EquippableSlot.Primary", MaxItems: 1},
			{Tag: "EquippableSlot.Secondary", MaxItems: 1},
			{Tag: "EquippableSlot.Melee", MaxItems: 1},
		},
		RePickUpTime:         time.Second,
		RelativeDropLocation: geom.Vector{Z: -30},
		DropVelocity:         350,
		UpVelocity:           150,
		AutoEquipOnPickUp:    true,
	}
}

// Deps are the collaborators a Component needs. Montages and Remote are optional.
type Deps struct {
	Timers   *timer.Manager
	Montages *animation.Library
	Remote   Remote
	Logger   *zap.Logger
}

// Component is the equippable inventory of one pawn. It is not safe for concurrent use;
// the owning world drives it from its tick goroutine.
type Component struct {
	owner  Owner
	cfg    Config
	deps   Deps
	logger *zap.Logger

	slots         []*Slot
	current       *equippable.Equippable
	desired       equippable.Ref
	desiredToDrop equippable.Ref
	status        Status

	unequipTimer timer.Handle
	equipTimer   timer.Handle

	currentObservers []func(old *equippable.Equippable)
	addedObservers   []func(item *equippable.Equippable, tag gametag.Tag, slot *Slot)
	droppedObservers []func(item *equippable.Equippable)
	idleObservers    []func(item *equippable.Equippable)
}

// NewComponent returns an inventory with cfg.StartingSlots and nothing equipped.
//
// Precondition: owner, deps.Timers and deps.Logger must be non-nil and the owner's role
// must be resolved.
// Postcondition: Status() == StatusIdle and Current() == nil.
func NewComponent(owner Owner, cfg Config, deps Deps) *Component {
	if owner == nil {
		panic("inventory.NewComponent: owner must not be nil")
	}
	if deps.Timers == nil {
		panic("inventory.NewComponent: timers must not be nil")
	}
	if deps.Logger == nil {
		panic("inventory.NewComponent: logger must not be nil")
	}
	owner.Net().MustValidate("inventory.NewComponent")
	c := &Component{
		owner:  owner,
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With(zap.String("component", "inventory"), zap.String("owner", owner.Name())),
	}
	for _, sc := range cfg.StartingSlots {
		if err := sc.Validate(); err != nil {
			c.logger.Error("skipping invalid starting slot", zap.Error(err))
			continue
		}
		c.slots = append(c.slots, NewSlot(sc))
	}
	return c
}

// SetRemote replaces the RPC sender.
func (c *Component) SetRemote(r Remote) {
	c.deps.Remote = r
}

func (c *Component) remote() Remote {
	if c.deps.Remote == nil {
		return nopRemote{}
	}
	return c.deps.Remote
}

// Owner returns the owning pawn.
func (c *Component) Owner() Owner { return c.owner }

// Current returns the equipped item, or nil.
func (c *Component) Current() *equippable.Equippable { return c.current }

// Desired returns the item queued to equip when the running unequip finishes, or nil.
func (c *Component) Desired() *equippable.Equippable { return c.desired.Get() }

// DesiredToDrop returns the item waiting to be dropped, or nil.
func (c *Component) DesiredToDrop() *equippable.Equippable { return c.desiredToDrop.Get() }

// Selection returns the desired item when one is queued, otherwise the current item.
func (c *Component) Selection() *equippable.Equippable {
	if d := c.desired.Get(); d != nil {
		return d
	}
	return c.current
}

// Status returns the replicated equip transition state.
func (c *Component) Status() Status { return c.status }

// IsUnequippingCurrentEquippable reports whether the current item is being put away.
func (c *Component) IsUnequippingCurrentEquippable() bool {
	return c.status == StatusUnequipping
}

// IsUnequipTimerActive reports whether a local unequip transition is in flight.
func (c *Component) IsUnequipTimerActive() bool {
	return c.deps.Timers.IsActive(c.unequipTimer)
}

// OnCurrentEquippableChanged registers fn to run after the current item changes.
func (c *Component) OnCurrentEquippableChanged(fn func(old *equippable.Equippable)) {
	c.currentObservers = append(c.currentObservers, fn)
}

// OnEquippableAdded registers fn to run after an item enters a slot.
func (c *Component) OnEquippableAdded(fn func(item *equippable.Equippable, tag gametag.Tag, slot *Slot)) {
	c.addedObservers = append(c.addedObservers, fn)
}

// OnEquippableDropped registers fn to run after an item is dropped.
func (c *Component) OnEquippableDropped(fn func(item *equippable.Equippable)) {
	c.droppedObservers = append(c.droppedObservers, fn)
}

// OnEquippableIdle registers fn to run when an equip transition completes.
func (c *Component) OnEquippableIdle(fn func(item *equippable.Equippable)) {
	c.idleObservers = append(c.idleObservers, fn)
}

func (c *Component) broadcastCurrentChanged(old *equippable.Equippable) {
	for _, fn := range c.currentObservers {
		fn(old)
	}
}

// setStatus changes the replicated status. Only the authority writes it; listen servers
// and standalone run the observer handler themselves.
func (c *Component) setStatus(s Status) {
	net := c.owner.Net()
	if !net.HasAuthority() {
		return
	}
	old := c.status
	c.status = s
	if old != s {
		metrics.EquipTransitions.WithLabelValues(s.String()).Inc()
	}
	if net.IsListenServerOrStandalone() {
		c.onRepEquippableChangeStatus(old)
	}
}

// FindInventorySlotByTag returns the slot for tag, or nil.
func (c *Component) FindInventorySlotByTag(tag gametag.Tag) *Slot {
	if !tag.IsValid() {
		return nil
	}
	for _, s := range c.slots {
		if s.Tag == tag {
			return s
		}
	}
	return nil
}

// Slots returns the slots in configured order.
func (c *Component) Slots() []*Slot {
	out := make([]*Slot, len(c.slots))
	copy(out, c.slots)
	return out
}

// SlotInventory returns a snapshot of the items in the tag slot.
//
// Postcondition: ok is false when there is no such slot.
func (c *Component) SlotInventory(tag gametag.Tag) (items []*equippable.Equippable, ok bool) {
	s := c.FindInventorySlotByTag(tag)
	if s == nil {
		return nil, false
	}
	return s.Snapshot(), true
}

// AllEquippables returns every held item in slot order.
func (c *Component) AllEquippables() []*equippable.Equippable {
	var out []*equippable.Equippable
	for _, s := range c.slots {
		out = append(out, s.Items...)
	}
	return out
}

// IsSlotFull reports whether the tag slot is full. A missing slot is not full.
func (c *Component) IsSlotFull(tag gametag.Tag) bool {
	if s := c.FindInventorySlotByTag(tag); s != nil {
		return s.IsFull()
	}
	return false
}

// FindEquippableByClass returns the held item of class, or nil.
func (c *Component) FindEquippableByClass(class string) *equippable.Equippable {
	for _, s := range c.slots {
		for _, item := range s.Items {
			if item.Class() == class {
				return item
			}
		}
	}
	return nil
}

// AlreadyHasEquippable reports whether an item of class is held.
func (c *Component) AlreadyHasEquippable(class string) bool {
	return c.FindEquippableByClass(class) != nil
}

// FindEquippableInInventory reports whether item is held in its slot.
func (c *Component) FindEquippableInInventory(item *equippable.Equippable) bool {
	if item == nil {
		return false
	}
	s := c.FindInventorySlotByTag(item.SlotTag())
	return s != nil && s.IndexOf(item) >= 0
}

// CheckEquippableSlot reports whether an item of slot tag may be given. An invalid tag
// is logged and allowed; slotless items follow DisallowSlotlessEquippables.
func (c *Component) CheckEquippableSlot(tag gametag.Tag) bool {
	if !tag.IsValid() {
		c.logger.Error("CheckEquippableSlot: invalid slot tag")
		return true
	}
	if tag == gametag.SlotNone {
		return !c.cfg.DisallowSlotlessEquippables
	}
	return !c.IsSlotFull(tag)
}

// CanAddEquippable reports whether item may enter the inventory: it must be unowned,
// its slot must have room and no item of the same class may be held.
func (c *Component) CanAddEquippable(item *equippable.Equippable) bool {
	if item == nil {
		return false
	}
	hasOwner := item.Owner() != nil
	slotFull := c.IsSlotFull(item.SlotTag())
	hasClass := c.AlreadyHasEquippable(item.Class())
	if hasOwner || slotFull || hasClass {
		c.logger.Info("CanAddEquippable rejected",
			zap.String("item", item.Class()),
			zap.Bool("has_owner", hasOwner),
			zap.Bool("slot_full", slotFull),
			zap.Bool("already_has_class", hasClass),
		)
		return false
	}
	return true
}

// GiveExistingEquippable hands a spawned or picked up item to this inventory.
//
// Postcondition: returns true, with the item owned by the pawn, only on the authority
// when the item passes CheckEquippableSlot and AddToSlotInventory.
func (c *Component) GiveExistingEquippable(item *equippable.Equippable) bool {
	if !c.owner.Net().HasAuthority() || item == nil {
		return false
	}
	if !c.CheckEquippableSlot(item.SlotTag()) {
		return false
	}
	if !c.AddToSlotInventory(item) {
		return false
	}
	if c.cfg.AutoEquipOnPickUp {
		c.equipIfEmptyHanded()
	}
	return true
}

// AddToSlotInventory inserts item into its slot and takes ownership of it. Authority only.
func (c *Component) AddToSlotInventory(item *equippable.Equippable) bool {
	if item == nil || !c.owner.Net().HasAuthority() {
		return false
	}
	if !c.CanAddEquippable(item) {
		return false
	}
	slot := c.FindInventorySlotByTag(item.SlotTag())
	if slot == nil {
		c.logger.Warn("AddToSlotInventory: no slot for item", zap.String("item", item.Class()), zap.Stringer("slot", item.SlotTag()))
		return false
	}
	if !slot.Add(item) {
		c.logger.Warn("AddToSlotInventory: slot rejected item", zap.String("item", item.Class()))
		return false
	}
	item.SetOwner(c.owner)
	for _, fn := range c.addedObservers {
		fn(item, item.SlotTag(), slot)
	}
	return true
}

// RemoveFromSlotInventory removes item from its slot without dropping it.
func (c *Component) RemoveFromSlotInventory(item *equippable.Equippable) bool {
	if item == nil {
		return false
	}
	slot := c.FindInventorySlotByTag(item.SlotTag())
	return slot != nil && slot.Remove(item)
}

// equipIfEmptyHanded selects the first equippable item when nothing is equipped or queued.
func (c *Component) equipIfEmptyHanded() {
	if !c.owner.Net().CanInitiate() || c.current != nil || c.desired.IsValid() || c.IsUnequipTimerActive() {
		return
	}
	for _, item := range c.AllEquippables() {
		if !c.desiredToDrop.Is(item) && item.CanEquip() {
			c.SetDesiredEquippable(item)
			return
		}
	}
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
