package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cmorales95/defishell/internal/command"
	"github.com/cmorales95/defishell/internal/fiber"
)

// Registry is the machine-readable dump of the dispatcher's command surface:
// the global pools, every protocol fiber, and the alias table.
type Registry struct {
	Core       []Command         `json:"core"`
	AliasPool  []Command         `json:"alias_pool"`
	Fibers     []Fiber           `json:"fibers"`
	AliasTable map[string]string `json:"alias_table"`
}

type Fiber struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Commands    []Command `json:"commands"`
}

type Command struct {
	ID          string   `json:"id"`
	Scope       string   `json:"scope"`
	Protocol    string   `json:"protocol,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
	Description string   `json:"description"`
}

// Build serializes the registry. A non-empty protocolID restricts the dump to
// that fiber and the alias table entries under its namespace.
func Build(reg *fiber.Registry, protocolID string) (Registry, error) {
	protocolID = strings.ToLower(strings.TrimSpace(protocolID))

	if protocolID != "" {
		f, ok := reg.Fiber(protocolID)
		if !ok {
			return Registry{}, fmt.Errorf("unknown protocol: %s", protocolID)
		}
		return Registry{
			Fibers:     []Fiber{serializeFiber(f)},
			AliasTable: aliasEntries(reg, protocolID+":"),
		}, nil
	}

	out := Registry{
		Core:       serializeCommands(reg.CoreCommands()),
		AliasPool:  serializeCommands(reg.AliasCommands()),
		AliasTable: aliasEntries(reg, ""),
	}
	for _, pid := range reg.Protocols() {
		f, ok := reg.Fiber(pid)
		if !ok {
			continue
		}
		out.Fibers = append(out.Fibers, serializeFiber(f))
	}
	return out, nil
}

func serializeFiber(f *fiber.ProtocolFiber) Fiber {
	return Fiber{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Commands:    serializeCommands(f.Commands()),
	}
}

func serializeCommands(cmds []command.Command) []Command {
	out := make([]Command, 0, len(cmds))
	for _, cmd := range cmds {
		aliases := make([]string, len(cmd.Aliases))
		copy(aliases, cmd.Aliases)
		sort.Strings(aliases)
		out = append(out, Command{
			ID:          cmd.ID,
			Scope:       cmd.Scope.String(),
			Protocol:    cmd.Protocol,
			Aliases:     aliases,
			Description: cmd.Description,
		})
	}
	return out
}

func aliasEntries(reg *fiber.Registry, prefix string) map[string]string {
	out := map[string]string{}
	for alias, id := range reg.Aliases() {
		if prefix != "" && !strings.HasPrefix(alias, prefix) {
			continue
		}
		out[alias] = id
	}
	return out
}
