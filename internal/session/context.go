package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/cmorales95/defishell/internal/wallet"
)

// Record is one history entry. Every invocation appends exactly one record,
// success or failure. Argument payloads are never stored here.
type Record struct {
	CommandID string    `json:"command_id"`
	Protocol  string    `json:"protocol,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Err       string    `json:"error,omitempty"`
}

// Context is the per-session state threaded through resolution and
// invocation. Methods that change state return a fresh snapshot with owned
// collections copied; callers detect transitions by pointer inequality. A
// Context belongs to exactly one session and is never shared.
type Context struct {
	ID             string
	ActiveProtocol string
	Wallet         wallet.Info
	ProtocolState  map[string]any
	History        []Record
}

func New() *Context {
	return &Context{
		ID:            uuid.New().String(),
		ProtocolState: map[string]any{},
	}
}

func (c *Context) clone() *Context {
	next := &Context{
		ID:             c.ID,
		ActiveProtocol: c.ActiveProtocol,
		Wallet:         c.Wallet,
		ProtocolState:  make(map[string]any, len(c.ProtocolState)),
		History:        make([]Record, len(c.History)),
	}
	for k, v := range c.ProtocolState {
		next.ProtocolState[k] = v
	}
	copy(next.History, c.History)
	return next
}

func (c *Context) WithActiveProtocol(protocol string) *Context {
	next := c.clone()
	next.ActiveProtocol = protocol
	return next
}

func (c *Context) WithWallet(info wallet.Info) *Context {
	next := c.clone()
	next.Wallet = info
	return next
}

func (c *Context) WithProtocolState(protocol string, state any) *Context {
	next := c.clone()
	next.ProtocolState[protocol] = state
	return next
}

func (c *Context) WithRecord(rec Record) *Context {
	next := c.clone()
	next.History = append(next.History, rec)
	return next
}

// State returns the scratch value a protocol previously stored, if any.
func (c *Context) State(protocol string) (any, bool) {
	v, ok := c.ProtocolState[protocol]
	return v, ok
}
