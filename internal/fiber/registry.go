package fiber

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cmorales95/defishell/internal/command"
	clierr "github.com/cmorales95/defishell/internal/errors"
)

// Registry is the shared command pool: global core commands, protocol-
// agnostic alias commands, and one fiber per protocol, plus the alias table
// that maps alias spellings to canonical command ids. Global aliases use the
// bare spelling; fiber-local aliases are keyed "<protocol>:<alias>" and are
// never visible outside their fiber.
//
// Registration normally finishes before the first resolution. The lock
// exists for hosts that load plugins late; resolution takes read locks only.
type Registry struct {
	mu sync.RWMutex

	coreCommands  map[string]command.Command
	coreOrder     []string
	aliasCommands map[string]command.Command
	aliasOrder    []string
	fibers        map[string]*ProtocolFiber
	fiberOrder    []string
	aliasTable    map[string]string

	log *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		coreCommands:  map[string]command.Command{},
		aliasCommands: map[string]command.Command{},
		fibers:        map[string]*ProtocolFiber{},
		aliasTable:    map[string]string{},
		log:           log,
	}
}

// RegisterCore adds a global command and publishes its aliases globally.
func (r *Registry) RegisterCore(cmd command.Command) error {
	if cmd.Scope != command.ScopeCore {
		return clierr.New(clierr.CodeRegistration,
			fmt.Sprintf("command %q has scope %s, expected core", cmd.ID, cmd.Scope))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.coreCommands[cmd.ID]; !exists {
		r.coreOrder = append(r.coreOrder, cmd.ID)
	}
	r.coreCommands[cmd.ID] = cmd
	r.putAliases("", cmd)
	return nil
}

// RegisterAlias adds a protocol-agnostic command that binds to a concrete
// fiber only at resolution time. Its aliases are global.
func (r *Registry) RegisterAlias(cmd command.Command) error {
	if cmd.Scope != command.ScopeAlias {
		return clierr.New(clierr.CodeRegistration,
			fmt.Sprintf("command %q has scope %s, expected alias", cmd.ID, cmd.Scope))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.aliasCommands[cmd.ID]; !exists {
		r.aliasOrder = append(r.aliasOrder, cmd.ID)
	}
	r.aliasCommands[cmd.ID] = cmd
	r.putAliases("", cmd)
	return nil
}

// RegisterFiber publishes a fiber. Member aliases are registered under the
// namespaced key, never globally. Two plugins claiming the same protocol id
// is a load-time misconfiguration and fails loudly.
func (r *Registry) RegisterFiber(f *ProtocolFiber) error {
	if f == nil {
		return clierr.New(clierr.CodeRegistration, "cannot register a nil fiber")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.fibers[f.ID]; exists {
		return clierr.New(clierr.CodeRegistration,
			fmt.Sprintf("fiber %q is already registered", f.ID))
	}
	r.fibers[f.ID] = f
	r.fiberOrder = append(r.fiberOrder, f.ID)
	for _, cmd := range f.Commands() {
		r.putAliases(f.ID, cmd)
	}
	return nil
}

// AddToFiber inserts a command into an already registered fiber and
// publishes its aliases under the fiber's namespace.
func (r *Registry) AddToFiber(fiberID string, cmd command.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.fibers[fiberID]
	if !ok {
		return clierr.New(clierr.CodeRegistration,
			fmt.Sprintf("no fiber %q registered for command %q", fiberID, cmd.ID))
	}
	if err := f.Add(cmd); err != nil {
		return err
	}
	r.putAliases(fiberID, cmd)
	return nil
}

// putAliases records cmd's aliases, namespaced when fiberID is set. A
// colliding spelling overwrites the previous mapping: last write wins.
func (r *Registry) putAliases(fiberID string, cmd command.Command) {
	for _, alias := range cmd.Aliases {
		key := alias
		if fiberID != "" {
			key = fiberID + ":" + alias
		}
		if prev, ok := r.aliasTable[key]; ok && prev != cmd.ID {
			r.log.Debug("alias overwritten",
				zap.String("alias", key),
				zap.String("previous", prev),
				zap.String("command", cmd.ID))
		}
		r.aliasTable[key] = cmd.ID
	}
}

// LookupAlias resolves an alias table key ("h" or "uniswap-v4:s") to its
// canonical command id.
func (r *Registry) LookupAlias(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.aliasTable[key]
	return id, ok
}

func (r *Registry) CoreCommand(id string) (command.Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.coreCommands[id]
	return cmd, ok
}

func (r *Registry) AliasCommand(id string) (command.Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.aliasCommands[id]
	return cmd, ok
}

func (r *Registry) Fiber(id string) (*ProtocolFiber, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fibers[id]
	return f, ok
}

func (r *Registry) HasFiber(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.fibers[id]
	return ok
}

// Protocols returns fiber ids in registration order.
func (r *Registry) Protocols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.fiberOrder))
	copy(out, r.fiberOrder)
	return out
}

// CoreCommands returns the core pool in registration order.
func (r *Registry) CoreCommands() []command.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]command.Command, 0, len(r.coreOrder))
	for _, id := range r.coreOrder {
		out = append(out, r.coreCommands[id])
	}
	return out
}

// AliasCommands returns the alias pool in registration order.
func (r *Registry) AliasCommands() []command.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]command.Command, 0, len(r.aliasOrder))
	for _, id := range r.aliasOrder {
		out = append(out, r.aliasCommands[id])
	}
	return out
}

// AllCommands returns every registered command: core pool, alias pool, then
// each fiber's commands, all in registration order. Fiber identities are
// included; listings that do not want them filter at render time.
func (r *Registry) AllCommands() []command.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]command.Command, 0, len(r.coreOrder)+len(r.aliasOrder))
	for _, id := range r.coreOrder {
		out = append(out, r.coreCommands[id])
	}
	for _, id := range r.aliasOrder {
		out = append(out, r.aliasCommands[id])
	}
	for _, fid := range r.fiberOrder {
		out = append(out, r.fibers[fid].Commands()...)
	}
	return out
}

// Aliases returns a copy of the alias table for introspection.
func (r *Registry) Aliases() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.aliasTable))
	for k, v := range r.aliasTable {
		out[k] = v
	}
	return out
}
