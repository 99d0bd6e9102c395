package uniswap

import (
	"context"
	"time"

	"github.com/cmorales95/defishell/internal/command"
	"github.com/cmorales95/defishell/internal/fiber"
	"github.com/cmorales95/defishell/internal/id"
	"github.com/cmorales95/defishell/internal/model"
	"github.com/cmorales95/defishell/internal/protocols"
)

const ProtocolID = "uniswap-v4"

const quoteTTL = 30 * time.Second

type Plugin struct{}

func (Plugin) ID() string { return ProtocolID }

func (Plugin) Register(reg *fiber.Registry, deps protocols.Deps) error {
	client := NewClient(deps.HTTP, deps.Settings.UniswapAPIKey)
	if deps.Now != nil {
		client.now = deps.Now
	}

	f := fiber.NewFiber(ProtocolID, "Uniswap v4", "swap quotes on EVM chains via the Uniswap trade API")
	for _, cmd := range []command.Command{
		quoteCommand(client, deps),
		swapCommand(client, deps),
		tokensCommand(),
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
		Aliases:     []string{"s", "exchange"},
		Description: "quote a swap for the connected wallet: swap <chain> <from> <to> <amount>",
		Run: func(ctx context.Context, req command.Request) (command.Result, error) {
			if err := protocols.RequireWallet(req, "evm"); err != nil {
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

func tokensCommand() command.Command {
	return command.Command{
		ID:          "tokens",
		Scope:       command.ScopeProtocol,
		Protocol:    ProtocolID,
		Description: "list bootstrap-registry tokens: tokens [chain]",
		Run: func(ctx context.Context, req command.Request) (command.Result, error) {
			chainInput := "ethereum"
			if len(req.Args) > 0 {
				chainInput = req.Args[0]
			}
			chain, err := id.ParseChain(chainInput)
			if err != nil {
				return command.Result{}, err
			}
			listing := model.TokenListing{ChainID: chain.CAIP2}
			for _, t := range id.Tokens(chain.CAIP2) {
				listing.Tokens = append(listing.Tokens, model.TokenInfo{
					Symbol:   t.Symbol,
					Address:  t.Address,
					Decimals: t.Decimals,
				})
			}
			return command.Result{Value: listing}, nil
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
