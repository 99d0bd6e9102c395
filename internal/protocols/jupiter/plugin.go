package jupiter

import (
	"context"
	"time"

	"github.com/cmorales95/defishell/internal/command"
	"github.com/cmorales95/defishell/internal/fiber"
	"github.com/cmorales95/defishell/internal/model"
	"github.com/cmorales95/defishell/internal/protocols"
)

const ProtocolID = "jupiter"

const quoteTTL = 30 * time.Second

type Plugin struct{}

func (Plugin) ID() string { return ProtocolID }

func (Plugin) Register(reg *fiber.Registry, deps protocols.Deps) error {
	client := NewClient(deps.HTTP, deps.Settings.JupiterAPIKey)
	if deps.Now != nil {
		client.now = deps.Now
	}

	f := fiber.NewFiber(ProtocolID, "Jupiter", "swap quotes on Solana mainnet via the Jupiter aggregator")
	for _, cmd := range []command.Command{
		quoteCommand(client, deps),
		swapCommand(client, deps),
	} {
		if err := f.Add(cmd); err != nil {
			return err
		}
	}
	return reg.RegisterFiber(f)
}

func quoteCommand(client *Client, deps protocols.Deps) command.Command {
	return command.Command{
		ID:          "quote",
		Scope:       command.ScopeProtocol,
		Protocol:    ProtocolID,
		Aliases:     []string{"price"},
		Description: "fetch a swap quote: quote <chain> <from> <to> <amount>",
		Run: func(ctx context.Context, req command.Request) (command.Result, error) {
			parsed, err := protocols.ParseSwapArgs(req.Args)
			if err != nil {
				return command.Result{}, err
			}
			quote, err := cachedQuote(ctx, client, deps, parsed)
			if err != nil {
				return command.Result{}, err
			}
			return command.Result{Value: quote}, nil
		},
	}
}

func swapCommand(client *Client, deps protocols.Deps) command.Command {
	return command.Command{
		ID:          "swap",
		Scope:       command.ScopeProtocol,
		Protocol:    ProtocolID,
		Aliases:     []string{"s"},
		Description: "quote a swap for the connected wallet: swap <chain> <from> <to> <amount>",
		Run: func(ctx context.Context, req command.Request) (command.Result, error) {
			if err := protocols.RequireWallet(req, "solana"); err != nil {
				return command.Result{}, err
			}
			parsed, err := protocols.ParseSwapArgs(req.Args)
			if err != nil {
				return command.Result{}, err
			}
			quote, err := cachedQuote(ctx, client, deps, parsed)
			if err != nil {
				return command.Result{}, err
			}
			return command.Result{
				Value:   quote,
				Session: req.Session.WithProtocolState(ProtocolID, quote),
			}, nil
		},
	}
}

func cachedQuote(ctx context.Context, client *Client, deps protocols.Deps, parsed protocols.SwapRequest) (model.SwapQuote, error) {
	key := protocols.CacheKey(ProtocolID+".quote", parsed)
	var cached model.SwapQuote
	if protocols.GetCached(deps.Cache, key, deps.Settings.MaxStale, &cached) {
		return cached, nil
	}
	quote, err := client.Quote(ctx, parsed)
	if err != nil {
		return model.SwapQuote{}, err
	}
	protocols.PutCached(deps.Cache, key, quote, quoteTTL)
	return quote, nil
}
