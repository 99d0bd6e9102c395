package aave

import (
	"context"
	"time"

	"github.com/cmorales95/defishell/internal/command"
	clierr "github.com/cmorales95/defishell/internal/errors"
	"github.com/cmorales95/defishell/internal/fiber"
	"github.com/cmorales95/defishell/internal/id"
	"github.com/cmorales95/defishell/internal/model"
	"github.com/cmorales95/defishell/internal/protocols"
)

const ProtocolID = "aave-v3"

// Lending rates drift slowly compared to swap quotes.
const marketsTTL = 5 * time.Minute

type Plugin struct{}

func (Plugin) ID() string { return ProtocolID }

func (Plugin) Register(reg *fiber.Registry, deps protocols.Deps) error {
	client := NewClient(deps.HTTP)
	if deps.Now != nil {
		client.now = deps.Now
	}

	f := fiber.NewFiber(ProtocolID, "Aave v3", "lending markets and rates via the Aave GraphQL API")
	for _, cmd := range []command.Command{
		marketsCommand(client, deps),
		ratesCommand(client, deps),
		lendCommand(client, deps),
	} {
		if err := f.Add(cmd); err != nil {
			return err
		}
	}
	return reg.RegisterFiber(f)
}

type marketArgs struct {
	Chain id.Chain
	Asset id.Asset
}

func parseMarketArgs(args []string) (marketArgs, error) {
	if len(args) != 2 {
		return marketArgs{}, clierr.New(clierr.CodeUsage, "usage: <chain> <asset>")
	}
	chain, err := id.ParseChain(args[0])
	if err != nil {
		return marketArgs{}, err
	}
	asset, err := id.ParseAsset(args[1], chain)
	if err != nil {
		return marketArgs{}, err
	}
	return marketArgs{Chain: chain, Asset: asset}, nil
}

func marketsCommand(client *Client, deps protocols.Deps) command.Command {
	return command.Command{
		ID:          "markets",
		Scope:       command.ScopeProtocol,
		Protocol:    ProtocolID,
		Description: "list lending markets for an asset: markets <chain> <asset>",
		Run: func(ctx context.Context, req command.Request) (command.Result, error) {
			parsed, err := parseMarketArgs(req.Args)
			if err != nil {
				return command.Result{}, err
			}
			markets, err := cachedMarkets(ctx, client, deps, parsed)
			if err != nil {
				return command.Result{}, err
			}
			return command.Result{Value: markets}, nil
		},
	}
}

func ratesCommand(client *Client, deps protocols.Deps) command.Command {
	return command.Command{
		ID:          "rates",
		Scope:       command.ScopeProtocol,
		Protocol:    ProtocolID,
		Description: "show supply/borrow rates for an asset: rates <chain> <asset>",
		Run: func(ctx context.Context, req command.Request) (command.Result, error) {
			parsed, err := parseMarketArgs(req.Args)
			if err != nil {
				return command.Result{}, err
			}
			key := protocols.CacheKey(ProtocolID+".rates", parsed.Asset.AssetID)
			var cached []model.LendRate
			if protocols.GetCached(deps.Cache, key, deps.Settings.MaxStale, &cached) {
				return command.Result{Value: cached}, nil
			}
			rates, err := client.Rates(ctx, parsed.Chain, parsed.Asset)
			if err != nil {
				return command.Result{}, err
			}
			protocols.PutCached(deps.Cache, key, rates, marketsTTL)
			return command.Result{Value: rates}, nil
		},
	}
}

func lendCommand(client *Client, deps protocols.Deps) command.Command {
	return command.Command{
		ID:          "lend",
		Scope:       command.ScopeProtocol,
		Protocol:    ProtocolID,
		Aliases:     []string{"l"},
		Description: "quote supplying an asset from the connected wallet: lend <chain> <asset> <amount>",
		Run: func(ctx context.Context, req command.Request) (command.Result, error) {
			if err := protocols.RequireWallet(req, "evm"); err != nil {
				return command.Result{}, err
			}
			if len(req.Args) != 3 {
				return command.Result{}, clierr.New(clierr.CodeUsage, "usage: lend <chain> <asset> <amount>")
			}
			parsed, err := parseMarketArgs(req.Args[:2])
			if err != nil {
				return command.Result{}, err
			}
			decimals := parsed.Asset.Decimals
			if decimals <= 0 {
				decimals = 18
			}
			base, decimal, err := id.NormalizeAmount("", req.Args[2], decimals)
			if err != nil {
				return command.Result{}, err
			}

			markets, err := cachedMarkets(ctx, client, deps, parsed)
			if err != nil {
				return command.Result{}, err
			}
			quote := model.LendQuote{
				Market: markets[0],
				Amount: model.AmountInfo{
					AmountBaseUnits: base,
					AmountDecimal:   decimal,
					Decimals:        decimals,
				},
			}
			return command.Result{
				Value:   quote,
				Session: req.Session.WithProtocolState(ProtocolID, quote),
			}, nil
		},
	}
}

func cachedMarkets(ctx context.Context, client *Client, deps protocols.Deps, parsed marketArgs) ([]model.LendMarket, error) {
	key := protocols.CacheKey(ProtocolID+".markets", parsed.Asset.AssetID)
	var cached []model.LendMarket
	if protocols.GetCached(deps.Cache, key, deps.Settings.MaxStale, &cached) && len(cached) > 0 {
		return cached, nil
	}
	markets, err := client.Markets(ctx, parsed.Chain, parsed.Asset)
	if err != nil {
		return nil, err
	}
	protocols.PutCached(deps.Cache, key, markets, marketsTTL)
	return markets, nil
}
