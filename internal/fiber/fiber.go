package fiber

import (
	"fmt"

	"github.com/cmorales95/defishell/internal/command"
	clierr "github.com/cmorales95/defishell/internal/errors"
)

// ProtocolFiber is an isolated command namespace owned by one protocol.
// Creation seeds the identity command, so a fiber is never empty and always
// carries its own unit for composition.
type ProtocolFiber struct {
	ID          string
	Name        string
	Description string

	commands map[string]command.Command
	order    []string
}

func NewFiber(id, name, description string) *ProtocolFiber {
	f := &ProtocolFiber{
		ID:          id,
		Name:        name,
		Description: description,
		commands:    map[string]command.Command{},
	}
	ident := command.Identity(id)
	f.commands[ident.ID] = ident
	f.order = append(f.order, ident.ID)
	return f
}

// Add inserts or overwrites by id. A command that is not protocol scoped, or
// that is tagged with a different protocol, is rejected so a misregistered
// plugin surfaces at load instead of silently losing commands.
func (f *ProtocolFiber) Add(cmd command.Command) error {
	if cmd.Scope != command.ScopeProtocol {
		return clierr.New(clierr.CodeRegistration,
			fmt.Sprintf("command %q has scope %s, fiber %q accepts only protocol-scoped commands", cmd.ID, cmd.Scope, f.ID))
	}
	if cmd.Protocol != f.ID {
		return clierr.New(clierr.CodeRegistration,
			fmt.Sprintf("command %q is tagged for protocol %q, not fiber %q", cmd.ID, cmd.Protocol, f.ID))
	}
	if _, exists := f.commands[cmd.ID]; !exists {
		f.order = append(f.order, cmd.ID)
	}
	f.commands[cmd.ID] = cmd
	return nil
}

func (f *ProtocolFiber) Command(id string) (command.Command, bool) {
	cmd, ok := f.commands[id]
	return cmd, ok
}

// Commands returns the fiber's commands in insertion order, identity first.
func (f *ProtocolFiber) Commands() []command.Command {
	out := make([]command.Command, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.commands[id])
	}
	return out
}

func (f *ProtocolFiber) Len() int {
	return len(f.commands)
}
