package command

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cory-johannsen/spawnmaster/internal/debugtext"
	"github.com/cory-johannsen/spawnmaster/internal/game/character"
	"github.com/cory-johannsen/spawnmaster/internal/game/equippable"
	"github.com/cory-johannsen/spawnmaster/internal/game/gametag"
	"github.com/cory-johannsen/spawnmaster/internal/game/world"
)

var (
	// ErrQuit is returned by the quit command.
	ErrQuit = errors.New("quit")
	// ErrNoPawn is returned when the world has no locally controlled pawn yet.
	ErrNoPawn = errors.New("no locally controlled pawn")
)

// Executor runs console lines against w's locally controlled pawn.
//
// Invariant: Run is only called from the goroutine that ticks w, usually through
// world.Post.
type Executor struct {
	reg *Registry
	w   *world.World
	out io.Writer
}

// NewExecutor returns an executor writing command output to out.
//
// Precondition: reg, w and out must be non-nil.
func NewExecutor(reg *Registry, w *world.World, out io.Writer) *Executor {
	return &Executor{reg: reg, w: w, out: out}
}

// Run parses and executes one console line. Blank lines do nothing.
//
// Postcondition: Returns ErrQuit for the quit command, a descriptive error for unknown
// commands or bad arguments, nil otherwise.
func (e *Executor) Run(line string) error {
	res := Parse(line)
	if res.Command == "" {
		return nil
	}
	cmd, ok := e.reg.Resolve(res.Command)
	if !ok {
		return fmt.Errorf("unknown command %q, try help", res.Command)
	}
	if len(res.Args) < cmd.MinArgs {
		return fmt.Errorf("usage: %s %s", cmd.Name, cmd.Usage)
	}

	switch cmd.Handler {
	case HandlerHelp:
		e.help()
		return nil
	case HandlerQuit:
		return ErrQuit
	case HandlerFloor:
		e.floor()
		return nil
	}

	p := e.w.LocalPawn()
	if p == nil {
		return ErrNoPawn
	}
	inv := p.Inventory()
	switch cmd.Handler {
	case HandlerNext:
		inv.NextEquippable()
	case HandlerPrevious:
		inv.PreviousEquippable()
	case HandlerDrop:
		return e.drop(p, res.Args)
	case HandlerDropAll:
		if !p.Net().HasAuthority() {
			return fmt.Errorf("dropall needs authority; drop items one at a time")
		}
		inv.DropAllEquippables()
	case HandlerPickUp:
		return e.pickUp(p, res.Args[0])
	case HandlerUse:
		tag := gametag.Tag(res.Args[0])
		if !p.AbilitySystem().TryActivateByTag(tag) {
			return fmt.Errorf("no ability matching %s could activate", tag)
		}
	case HandlerInventory:
		inv.PrintDebug(e.out)
	default:
		return fmt.Errorf("command %q has no implementation", cmd.Name)
	}
	return nil
}

func (e *Executor) drop(p *character.Pawn, args []string) error {
	inv := p.Inventory()
	if len(args) == 0 {
		if inv.Current() == nil {
			return fmt.Errorf("nothing equipped")
		}
		inv.DropCurrentEquippable(false)
		return nil
	}
	held := inv.AllEquippables()
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 || n >= len(held) {
		return fmt.Errorf("drop index must be 0-%d, got %q", len(held)-1, args[0])
	}
	inv.DropEquippable(held[n], false, false, false)
	return nil
}

func (e *Executor) pickUp(p *character.Pawn, prefix string) error {
	var match *equippable.Equippable
	for _, item := range e.w.Floor().Items() {
		if !strings.HasPrefix(string(item.ID()), prefix) {
			continue
		}
		if match != nil {
			return fmt.Errorf("id %q matches more than one floor item", prefix)
		}
		match = item
	}
	if match == nil {
		return fmt.Errorf("no floor item with id %q", prefix)
	}
	if !e.w.RequestPickUp(p, match.ID()) && p.Net().HasAuthority() {
		return fmt.Errorf("cannot pick up %s yet", match.Class())
	}
	return nil
}

func (e *Executor) floor() {
	items := e.w.Floor().Items()
	if len(items) == 0 {
		debugtext.Line(e.out, debugtext.Yellow, "The floor is empty.")
		return
	}
	for _, item := range items {
		loc := item.Location()
		debugtext.Line(e.out, debugtext.Green, "%s  %-12s (%.0f, %.0f, %.0f)", item.ID().Short(), item.Class(), loc.X, loc.Y, loc.Z)
	}
}

func (e *Executor) help() {
	category := ""
	for _, cmd := range e.reg.Commands() {
		if cmd.Category != category {
			category = cmd.Category
			debugtext.Line(e.out, debugtext.Cyan, "%s:", category)
		}
		name := cmd.Name
		if cmd.Usage != "" {
			name += " " + cmd.Usage
		}
		debugtext.Line(e.out, debugtext.White, "  %-20s %s", name, cmd.Help)
	}
}
