package app

import (
	"context"
	"fmt"

	"github.com/cmorales95/defishell/internal/command"
	clierr "github.com/cmorales95/defishell/internal/errors"
	"github.com/cmorales95/defishell/internal/fiber"
)

// registerAliasCommands installs the global alias pool: protocol-generic verbs
// that bind to a fiber at resolve time and delegate to that fiber's command of
// the same id.
func registerAliasCommands(reg *fiber.Registry) error {
	cmds := []command.Command{
		aliasCommand(reg, "swap", "swap via the bound protocol: swap <chain> <from> <to> <amount>"),
		aliasCommand(reg, "quote", "quote a swap via the bound protocol: quote <chain> <from> <to> <amount>"),
		aliasCommand(reg, "bridge", "bridge via the bound protocol: bridge <from-chain> <to-chain> <asset> <amount>"),
		aliasCommand(reg, "lend", "lend via the bound protocol: lend <chain> <asset> <amount>"),
	}
	for _, cmd := range cmds {
		if err := reg.RegisterAlias(cmd); err != nil {
			return err
		}
	}
	return nil
}

func aliasCommand(reg *fiber.Registry, id, description string) command.Command {
	return command.Command{
		ID:          id,
		Scope:       command.ScopeAlias,
		Description: description,
		Run:         aliasDelegate(reg, id),
	}
}

// aliasDelegate late-binds the invocation: the resolver picks the fiber and
// stamps it on the request, the delegate forwards to that fiber's command.
// An unbound request means no fiber could be chosen at resolve time.
func aliasDelegate(reg *fiber.Registry, commandID string) command.Invoke {
	return func(ctx context.Context, req command.Request) (command.Result, error) {
		if req.Protocol == "" {
			return command.Result{}, clierr.New(clierr.CodeNoCommand,
				fmt.Sprintf("%s needs a protocol: run `use <protocol>` first or pass --protocol", commandID))
		}
		f, ok := reg.Fiber(req.Protocol)
		if !ok {
			return command.Result{}, clierr.New(clierr.CodeNoCommand, fmt.Sprintf("unknown protocol: %s", req.Protocol))
		}
		target, ok := f.Command(commandID)
		if !ok {
			return command.Result{}, clierr.New(clierr.CodeUnsupported,
				fmt.Sprintf("protocol %s does not support %s", req.Protocol, commandID))
		}
		return target.Run(ctx, req)
	}
}
