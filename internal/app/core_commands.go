package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cmorales95/defishell/internal/command"
	clierr "github.com/cmorales95/defishell/internal/errors"
	"github.com/cmorales95/defishell/internal/fiber"
	"github.com/cmorales95/defishell/internal/model"
	"github.com/cmorales95/defishell/internal/session"
	"github.com/cmorales95/defishell/internal/wallet"
)

// protocolSwitch is the payload of use/exit: the fiber the session is now in,
// empty when the session dropped back to the global scope.
type protocolSwitch struct {
	ActiveProtocol string `json:"active_protocol"`
}

type statusMessage struct {
	Message string `json:"message"`
}

// registerCoreCommands installs the host commands that exist in every
// session regardless of protocol: help, navigation, wallet, history.
func (s *runtimeState) registerCoreCommands(reg *fiber.Registry) error {
	cmds := []command.Command{
		helpCommand(reg),
		useCommand(reg),
		s.exitCommand(),
		s.quitCommand(),
		s.clearCommand(),
		s.connectCommand(),
		disconnectCommand(),
		walletCommand(),
		s.sessionHistoryCommand(),
		protocolsCommand(reg),
	}
	for _, cmd := range cmds {
		if err := reg.RegisterCore(cmd); err != nil {
			return err
		}
	}
	return nil
}

func helpCommand(reg *fiber.Registry) command.Command {
	return command.Command{
		ID:          "help",
		Scope:       command.ScopeCore,
		Aliases:     []string{"h"},
		Description: "list commands, or describe one: help [command]",
		Run: func(ctx context.Context, req command.Request) (command.Result, error) {
			summaries := make([]model.CommandSummary, 0)
			for _, cmd := range reg.AllCommands() {
				if cmd.ID == command.IdentityID {
					continue
				}
				summaries = append(summaries, model.CommandSummary{
					ID:          cmd.ID,
					Scope:       cmd.Scope.String(),
					Protocol:    cmd.Protocol,
					Aliases:     cmd.Aliases,
					Description: cmd.Description,
				})
			}
			if len(req.Args) == 0 {
				return command.Result{Value: summaries}, nil
			}

			want := strings.ToLower(strings.TrimSpace(req.Args[0]))
			if canonical, ok := reg.LookupAlias(want); ok {
				want = canonical
			}
			matches := make([]model.CommandSummary, 0, 2)
			for _, s := range summaries {
				if s.ID == want {
					matches = append(matches, s)
				}
			}
			if len(matches) == 0 {
				return command.Result{}, clierr.New(clierr.CodeNoCommand, fmt.Sprintf("no such command: %s", req.Args[0]))
			}
			return command.Result{Value: matches}, nil
		},
	}
}

func useCommand(reg *fiber.Registry) command.Command {
	return command.Command{
		ID:          "use",
		Scope:       command.ScopeCore,
		Description: "enter a protocol scope: use <protocol>",
		Run: func(ctx context.Context, req command.Request) (command.Result, error) {
			if len(req.Args) != 1 {
				return command.Result{}, clierr.New(clierr.CodeUsage, "usage: use <protocol>")
			}
			target := strings.ToLower(strings.TrimSpace(req.Args[0]))
			if !reg.HasFiber(target) {
				return command.Result{}, clierr.New(clierr.CodeNoCommand, fmt.Sprintf("unknown protocol: %s", target))
			}
			return command.Result{
				Value:   protocolSwitch{ActiveProtocol: target},
				Session: req.Session.WithActiveProtocol(target),
			}, nil
		},
	}
}

// exitCommand leaves the active fiber, or ends the session when the shell is
// already at global scope.
func (s *runtimeState) exitCommand() command.Command {
	return command.Command{
		ID:          "exit",
		Scope:       command.ScopeCore,
		Description: "leave the active protocol scope, or the shell",
		Run: func(ctx context.Context, req command.Request) (command.Result, error) {
			if req.Session != nil && req.Session.ActiveProtocol != "" {
				return command.Result{
					Value:   protocolSwitch{ActiveProtocol: ""},
					Session: req.Session.WithActiveProtocol(""),
				}, nil
			}
			s.quitRequested = true
			return command.Result{Value: statusMessage{Message: "bye"}}, nil
		},
	}
}

func (s *runtimeState) quitCommand() command.Command {
	return command.Command{
		ID:          "quit",
		Scope:       command.ScopeCore,
		Aliases:     []string{"q"},
		Description: "end the shell session",
		Run: func(ctx context.Context, req command.Request) (command.Result, error) {
			s.quitRequested = true
			return command.Result{Value: statusMessage{Message: "bye"}}, nil
		},
	}
}

func (s *runtimeState) clearCommand() command.Command {
	return command.Command{
		ID:          "clear",
		Scope:       command.ScopeCore,
		Aliases:     []string{"cls"},
		Description: "clear the screen",
		Run: func(ctx context.Context, req command.Request) (command.Result, error) {
			s.clearRequested = true
			return command.Result{Value: statusMessage{Message: "cleared"}}, nil
		},
	}
}

func (s *runtimeState) connectCommand() command.Command {
	return command.Command{
		ID:          "connect",
		Scope:       command.ScopeCore,
		Description: "connect a wallet address: connect <address>",
		Run: func(ctx context.Context, req command.Request) (command.Result, error) {
			if len(req.Args) != 1 {
				return command.Result{}, clierr.New(clierr.CodeUsage, "usage: connect <address>")
			}
			info, err := wallet.Connect(req.Args[0], s.runner.now())
			if err != nil {
				return command.Result{}, err
			}
			return command.Result{
				Value:   info,
				Session: req.Session.WithWallet(info),
			}, nil
		},
	}
}

func disconnectCommand() command.Command {
	return command.Command{
		ID:          "disconnect",
		Scope:       command.ScopeCore,
		Description: "disconnect the wallet",
		Run: func(ctx context.Context, req command.Request) (command.Result, error) {
			return command.Result{
				Value:   wallet.Disconnect(),
				Session: req.Session.WithWallet(wallet.Disconnect()),
			}, nil
		},
	}
}

func walletCommand() command.Command {
	return command.Command{
		ID:          "wallet",
		Scope:       command.ScopeCore,
		Aliases:     []string{"w"},
		Description: "show the connected wallet",
		Run: func(ctx context.Context, req command.Request) (command.Result, error) {
			if req.Session == nil {
				return command.Result{Value: wallet.Info{}}, nil
			}
			return command.Result{Value: req.Session.Wallet}, nil
		},
	}
}

// sessionHistoryCommand reads the persisted store when it is open and falls
// back to the in-memory session history otherwise.
func (s *runtimeState) sessionHistoryCommand() command.Command {
	return command.Command{
		ID:          "history",
		Scope:       command.ScopeCore,
		Description: "show invocation history, newest first: history [limit] [failed]",
		Run: func(ctx context.Context, req command.Request) (command.Result, error) {
			limit := 20
			failedOnly := false
			for _, arg := range req.Args {
				if n, ok := parsePositiveInt(arg); ok {
					limit = n
					continue
				}
				if strings.EqualFold(arg, "failed") {
					failedOnly = true
					continue
				}
				return command.Result{}, clierr.New(clierr.CodeUsage, "usage: history [limit] [failed]")
			}

			if s.history != nil && req.Session != nil {
				records, err := s.history.List(req.Session.ID, limit, failedOnly)
				if err == nil {
					return command.Result{Value: records}, nil
				}
				s.log.Warn("history store read failed, using session history", zap.Error(err))
			}
			return command.Result{Value: tailHistory(req.Session, limit, failedOnly)}, nil
		},
	}
}

func tailHistory(sess *session.Context, limit int, failedOnly bool) []session.Record {
	out := make([]session.Record, 0, limit)
	if sess == nil {
		return out
	}
	for i := len(sess.History) - 1; i >= 0 && len(out) < limit; i-- {
		rec := sess.History[i]
		if failedOnly && rec.Success {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func protocolsCommand(reg *fiber.Registry) command.Command {
	return command.Command{
		ID:          "protocols",
		Scope:       command.ScopeCore,
		Description: "list registered protocols",
		Run: func(ctx context.Context, req command.Request) (command.Result, error) {
			summaries := make([]model.ProtocolSummary, 0)
			for _, pid := range reg.Protocols() {
				f, ok := reg.Fiber(pid)
				if !ok {
					continue
				}
				summaries = append(summaries, model.ProtocolSummary{
					ID:          f.ID,
					Name:        f.Name,
					Description: f.Description,
					Commands:    f.Len() - 1,
				})
			}
			return command.Result{Value: summaries}, nil
		},
	}
}
