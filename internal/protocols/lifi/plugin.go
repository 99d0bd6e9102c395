package lifi

import (
	"context"
	"time"

	"github.com/cmorales95/defishell/internal/command"
	"github.com/cmorales95/defishell/internal/fiber"
	"github.com/cmorales95/defishell/internal/id"
	"github.com/cmorales95/defishell/internal/model"
	"github.com/cmorales95/defishell/internal/protocols"
)

const ProtocolID = "lifi"

const quoteTTL = 30 * time.Second

type Plugin struct{}

func (Plugin) ID() string { return ProtocolID }

func (Plugin) Register(reg *fiber.Registry, deps protocols.Deps) error {
	client := NewClient(deps.HTTP)
	if deps.Now != nil {
		client.now = deps.Now
	}

	f := fiber.NewFiber(ProtocolID, "LI.FI", "cross-chain bridge quotes via the LI.FI aggregator")
	for _, cmd := range []command.Command{
		quoteCommand(client, deps),
		bridgeCommand(client, deps),
		chainsCommand(),
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
		Description: "fetch a bridge quote: quote <from-chain> <to-chain> <asset> <amount> [to-asset]",
		Run: func(ctx context.Context, req command.Request) (command.Result, error) {
			parsed, err := protocols.ParseBridgeArgs(req.Args)
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

func bridgeCommand(client *Client, deps protocols.Deps) command.Command {
	return command.Command{
		ID:          "bridge",
		Scope:       command.ScopeProtocol,
		Protocol:    ProtocolID,
		Aliases:     []string{"b"},
		Description: "quote a bridge transfer for the connected wallet: bridge <from-chain> <to-chain> <asset> <amount> [to-asset]",
		Run: func(ctx context.Context, req command.Request) (command.Result, error) {
			if err := protocols.RequireWallet(req, "evm"); err != nil {
				return command.Result{}, err
			}
			parsed, err := protocols.ParseBridgeArgs(req.Args)
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

func chainsCommand() command.Command {
	return command.Command{
		ID:          "chains",
		Scope:       command.ScopeProtocol,
		Protocol:    ProtocolID,
		Description: "list supported chains",
		Run: func(ctx context.Context, req command.Request) (command.Result, error) {
			chains := id.Chains()
			out := make([]model.ChainInfo, 0, len(chains))
			for _, c := range chains {
				out = append(out, model.ChainInfo{
					Name:       c.Name,
					Slug:       c.Slug,
					CAIP2:      c.CAIP2,
					EVMChainID: c.EVMChainID,
				})
			}
			return command.Result{Value: out}, nil
		},
	}
}

func cachedQuote(ctx context.Context, client *Client, deps protocols.Deps, parsed protocols.BridgeRequest) (model.BridgeQuote, error) {
	key := protocols.CacheKey(ProtocolID+".quote", parsed)
	var cached model.BridgeQuote
	if protocols.GetCached(deps.Cache, key, deps.Settings.MaxStale, &cached) {
		return cached, nil
	}
	quote, err := client.Quote(ctx, parsed)
	if err != nil {
		return model.BridgeQuote{}, err
	}
	protocols.PutCached(deps.Cache, key, quote, quoteTTL)
	return quote, nil
}
