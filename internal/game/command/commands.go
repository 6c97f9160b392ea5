// Package command parses console lines and runs them against the pawn a world controls
// locally.
package command

// Categories for organizing commands.
const (
	CategoryInventory = "inventory"
	CategoryAbility   = "ability"
	CategoryWorld     = "world"
	CategorySystem    = "system"
)

// Handler identifiers mapping commands to their implementation.
const (
	HandlerNext      = "next"
	HandlerPrevious  = "previous"
	HandlerDrop      = "drop"
	HandlerDropAll   = "dropall"
	HandlerPickUp    = "pickup"
	HandlerUse       = "use"
	HandlerInventory = "inventory"
	HandlerFloor     = "floor"
	HandlerHelp      = "help"
	HandlerQuit      = "quit"
)

// Command defines a console command.
type Command struct {
	// Name is the canonical command name.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// Usage shows the argument form, empty for commands without arguments.
	Usage string
	// Help is the short help text.
	Help string
	// Category groups the command for help output.
	Category string
	// Handler selects the implementation.
	Handler string
	// MinArgs is the number of required arguments.
	MinArgs int
}

// BuiltinCommands returns every console command.
func BuiltinCommands() []Command {
	return []Command{
		{Name: "next", Aliases: []string{"n"}, Help: "Equip the next held item", Category: CategoryInventory, Handler: HandlerNext},
		{Name: "prev", Aliases: []string{"p", "previous"}, Help: "Equip the previous held item", Category: CategoryInventory, Handler: HandlerPrevious},
		{Name: "drop", Aliases: []string{"d"}, Usage: "[index]", Help: "Drop the current item, or the held item at index", Category: CategoryInventory, Handler: HandlerDrop},
		{Name: "dropall", Help: "Drop every held item", Category: CategoryInventory, Handler: HandlerDropAll},
		{Name: "pickup", Aliases: []string{"get"}, Usage: "<id>", Help: "Pick up the floor item whose id starts with id", Category: CategoryInventory, Handler: HandlerPickUp, MinArgs: 1},
		{Name: "inv", Aliases: []string{"i", "inventory"}, Help: "Print the inventory overlay", Category: CategoryInventory, Handler: HandlerInventory},

		{Name: "use", Aliases: []string{"fire"}, Usage: "<ability tag>", Help: "Activate the first granted ability matching tag", Category: CategoryAbility, Handler: HandlerUse, MinArgs: 1},

		{Name: "floor", Aliases: []string{"f"}, Help: "List items lying in the world", Category: CategoryWorld, Handler: HandlerFloor},

		{Name: "help", Aliases: []string{"?"}, Help: "List commands", Category: CategorySystem, Handler: HandlerHelp},
		{Name: "quit", Aliases: []string{"q", "exit"}, Help: "Disconnect and exit", Category: CategorySystem, Handler: HandlerQuit},
	}
}
