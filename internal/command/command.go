package command

import (
	"context"
	"fmt"
	"time"

	"github.com/cmorales95/defishell/internal/session"
)

// Scope partitions commands into the global core pool, the protocol-agnostic
// alias pool, and the per-protocol fibers. The protocol id lives on the
// command and is meaningful only for ScopeProtocol.
type Scope int

const (
	ScopeCore Scope = iota
	ScopeAlias
	ScopeProtocol
)

func (s Scope) String() string {
	switch s {
	case ScopeCore:
		return "core"
	case ScopeAlias:
		return "alias"
	case ScopeProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Request carries one invocation's input. Input is the upstream value when
// the command runs inside a composition and the raw argument payload
// otherwise. Protocol is the fiber binding the resolver decided on, empty
// for unbound commands.
type Request struct {
	Input    any
	Args     []string
	Protocol string
	Session  *session.Context
}

// Result is a successful invocation outcome. A non-nil Session is the state
// transition the command requests; the host adopts it as the next snapshot.
type Result struct {
	Value   any
	Session *session.Context
}

// Invoke is the single suspension point of a command. Implementations may
// block on network calls; cancellation and deadlines arrive through ctx.
type Invoke func(ctx context.Context, req Request) (Result, error)

// Command is the atomic invokable unit.
type Command struct {
	ID          string
	Scope       Scope
	Protocol    string
	Aliases     []string
	Description string
	Run         Invoke
}

// IdentityID names the pass-through command every fiber is seeded with.
const IdentityID = "identity"

// Identity returns the fiber-local no-op. It echoes its input and requests
// no session transition, which is what makes it a unit for Compose.
func Identity(protocolID string) Command {
	return Command{
		ID:          IdentityID,
		Scope:       ScopeProtocol,
		Protocol:    protocolID,
		Description: "pass-through no-op",
		Run: func(ctx context.Context, req Request) (Result, error) {
			return Result{Value: req.Input}, nil
		},
	}
}

// Compose builds the sequential composition of f and g: f runs first and its
// value becomes g's input; f's failure short-circuits without running g.
// Session transitions chain, the last non-nil one wins. The composite stays
// inside a fiber only when both parts share it and stays alias-scoped only
// for an alias pair; every other mix ejects to core scope, since a
// cross-namespace composite belongs to neither namespace.
func Compose(f, g Command) Command {
	scope, protocol := composedScope(f, g)
	return Command{
		ID:          f.ID + "|" + g.ID,
		Scope:       scope,
		Protocol:    protocol,
		Description: fmt.Sprintf("%s then %s", f.ID, g.ID),
		Run: func(ctx context.Context, req Request) (Result, error) {
			first, err := f.Run(ctx, req)
			if err != nil {
				return Result{}, err
			}
			next := Request{
				Input:    first.Value,
				Args:     req.Args,
				Protocol: req.Protocol,
				Session:  req.Session,
			}
			if first.Session != nil {
				next.Session = first.Session
			}
			second, err := g.Run(ctx, next)
			if err != nil {
				return Result{}, err
			}
			if second.Session == nil {
				second.Session = first.Session
			}
			return second, nil
		},
	}
}

func composedScope(f, g Command) (Scope, string) {
	if f.Scope == ScopeProtocol && g.Scope == ScopeProtocol && f.Protocol == g.Protocol {
		return ScopeProtocol, f.Protocol
	}
	if f.Scope == ScopeAlias && g.Scope == ScopeAlias {
		return ScopeAlias, ""
	}
	return ScopeCore, ""
}

// NextContext produces the snapshot that follows one invocation: the
// command's requested transition when it succeeded with one, the previous
// snapshot otherwise, plus exactly one history record. Argument payloads are
// never recorded.
func NextContext(prev *session.Context, cmd Command, protocol string, at time.Time, res Result, invokeErr error) *session.Context {
	base := prev
	if invokeErr == nil && res.Session != nil {
		base = res.Session
	}
	rec := session.Record{
		CommandID: cmd.ID,
		Protocol:  protocol,
		Timestamp: at.UTC(),
		Success:   invokeErr == nil,
	}
	if invokeErr != nil {
		rec.Err = invokeErr.Error()
	}
	return base.WithRecord(rec)
}
