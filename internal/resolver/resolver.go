package resolver

import (
	"strings"

	"go.uber.org/zap"

	"github.com/cmorales95/defishell/internal/command"
	"github.com/cmorales95/defishell/internal/fiber"
	"github.com/cmorales95/defishell/internal/session"
)

// Method records which resolution path produced a match.
type Method int

const (
	MethodExact Method = iota
	MethodAlias
	MethodProtocol
	MethodFuzzy
)

func (m Method) String() string {
	switch m {
	case MethodExact:
		return "exact"
	case MethodAlias:
		return "alias"
	case MethodProtocol:
		return "protocol"
	case MethodFuzzy:
		return "fuzzy"
	default:
		return "unknown"
	}
}

// Options carries the per-call knobs the host derives from flags and config.
type Options struct {
	// ExplicitProtocol is the --protocol override. It binds alias commands
	// and, when no fiber is active, selects the fiber for bare ids.
	ExplicitProtocol string
	// CommandDefaults maps an alias command id to its preferred fiber.
	CommandDefaults map[string]string
	// ProtocolPreference orders fibers for alias binding when nothing else
	// decides.
	ProtocolPreference []string
}

// ResolvedCommand is the resolver output handed to the invocation host.
// Protocol is the fiber the command was resolved from or bound to, empty for
// core commands and unbound alias commands. Confidence is set only for fuzzy
// matches.
type ResolvedCommand struct {
	Command    command.Command
	Protocol   string
	Method     Method
	Confidence float64
	Args       []string
}

// UseCommandID is the core command a bare fiber-id input is rewritten to.
const UseCommandID = "use"

type Resolver struct {
	reg *fiber.Registry
	log *zap.Logger
}

func New(reg *fiber.Registry, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{reg: reg, log: log}
}

// Resolve maps one input line to a command. The priority order is fixed:
//
//  1. bare input equal to a fiber id becomes `use <fiber>`
//  2. alias rewrite for bare spellings: the global table wins; a hit in the
//     active fiber's namespaced table resolves inside that fiber
//  3. core command by id
//  4. alias command by id, bound to a fiber
//  5. namespaced "<protocol>:<id>", blocked across fibers while one is active
//  6. explicit --protocol fiber lookup, only when no fiber is active
//  7. active fiber lookup
//
// A miss returns (zero, false) and is not an error; the caller decides
// whether to fall back to FuzzyResolve.
func (r *Resolver) Resolve(input string, sess *session.Context, opts Options) (ResolvedCommand, bool) {
	token, args := tokenize(input)
	if token == "" {
		return ResolvedCommand{}, false
	}
	active := ""
	if sess != nil {
		active = sess.ActiveProtocol
	}

	// 1. Typing a protocol name, alone, enters it.
	if len(args) == 0 && r.reg.HasFiber(token) {
		if useCmd, ok := r.reg.CoreCommand(UseCommandID); ok {
			r.log.Debug("resolved fiber-name shortcut", zap.String("fiber", token))
			return ResolvedCommand{
				Command: useCmd,
				Method:  MethodExact,
				Args:    []string{token},
			}, true
		}
	}

	// 2. Alias rewrite, bare spellings only. Namespaced tokens carry a ":"
	// and belong to the namespaced step; letting them match the combined
	// alias table here would leak fiber-local keys into the global path.
	// A global alias wins over the active fiber's; a fiber-local hit stays
	// inside its fiber rather than falling through to the shared pools.
	id := token
	if !strings.Contains(token, ":") {
		if canonical, ok := r.reg.LookupAlias(token); ok {
			id = canonical
		} else if active != "" {
			if canonical, ok := r.reg.LookupAlias(active + ":" + token); ok {
				if rc, ok := r.lookupInFiber(active, canonical, args); ok {
					return rc, true
				}
			}
		}
	}

	// 3. Core pool.
	if cmd, ok := r.reg.CoreCommand(id); ok {
		return ResolvedCommand{Command: cmd, Method: MethodExact, Args: args}, true
	}

	// 4. Alias pool, late-bound to a fiber.
	if cmd, ok := r.reg.AliasCommand(id); ok {
		protocol := r.bindAliasProtocol(id, active, opts)
		return ResolvedCommand{Command: cmd, Protocol: protocol, Method: MethodAlias, Args: args}, true
	}

	// 5. Namespaced syntax on the original token.
	if protocol, rest, ok := splitNamespaced(token); ok && r.reg.HasFiber(protocol) {
		if active != "" && active != protocol {
			// Fiber isolation: inside one fiber, another fiber is out of
			// reach even with explicit namespacing.
			r.log.Debug("blocked cross-fiber access",
				zap.String("active", active), zap.String("requested", protocol))
			return ResolvedCommand{}, false
		}
		if rc, ok := r.lookupInFiber(protocol, rest, args); ok {
			return rc, true
		}
		return ResolvedCommand{}, false
	}

	// 6. Explicit fiber flag, honored only outside any fiber.
	if opts.ExplicitProtocol != "" && active == "" {
		if rc, ok := r.lookupInFiber(opts.ExplicitProtocol, id, args); ok {
			return rc, true
		}
	}

	// 7. Active fiber.
	if active != "" {
		if rc, ok := r.lookupInFiber(active, id, args); ok {
			return rc, true
		}
	}

	return ResolvedCommand{}, false
}

func (r *Resolver) lookupInFiber(fiberID, commandID string, args []string) (ResolvedCommand, bool) {
	f, ok := r.reg.Fiber(fiberID)
	if !ok {
		return ResolvedCommand{}, false
	}
	id := commandID
	if _, ok := f.Command(id); !ok {
		if canonical, ok := r.reg.LookupAlias(fiberID + ":" + commandID); ok {
			id = canonical
		}
	}
	cmd, ok := f.Command(id)
	if !ok {
		return ResolvedCommand{}, false
	}
	return ResolvedCommand{Command: cmd, Protocol: fiberID, Method: MethodProtocol, Args: args}, true
}

// bindAliasProtocol picks the fiber an alias command delegates to: explicit
// override, the command's configured default, the active fiber, then the
// first preference entry naming a registered fiber. Empty means unbound.
func (r *Resolver) bindAliasProtocol(commandID, active string, opts Options) string {
	if opts.ExplicitProtocol != "" {
		return opts.ExplicitProtocol
	}
	if def, ok := opts.CommandDefaults[commandID]; ok && def != "" {
		return def
	}
	if active != "" {
		return active
	}
	for _, p := range opts.ProtocolPreference {
		if r.reg.HasFiber(p) {
			return p
		}
	}
	return ""
}

func tokenize(input string) (string, []string) {
	fields := strings.Fields(strings.TrimSpace(input))
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

func splitNamespaced(token string) (protocol, commandID string, ok bool) {
	i := strings.Index(token, ":")
	if i <= 0 || i == len(token)-1 {
		return "", "", false
	}
	return token[:i], token[i+1:], true
}
