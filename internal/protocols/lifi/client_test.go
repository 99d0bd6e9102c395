package lifi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cmorales95/defishell/internal/command"
	clierr "github.com/cmorales95/defishell/internal/errors"
	"github.com/cmorales95/defishell/internal/fiber"
	"github.com/cmorales95/defishell/internal/httpx"
	"github.com/cmorales95/defishell/internal/model"
	"github.com/cmorales95/defishell/internal/protocols"
)

func bridgeRequest(t *testing.T) protocols.BridgeRequest {
	t.Helper()
	req, err := protocols.ParseBridgeArgs([]string{"ethereum", "base", "USDC", "100"})
	if err != nil {
		t.Fatalf("parse bridge args: %v", err)
	}
	return req
}

func TestQuoteRejectsSolanaLeg(t *testing.T) {
	req, err := protocols.ParseBridgeArgs([]string{"ethereum", "solana", "USDC", "100", "USDC"})
	if err != nil {
		t.Fatalf("parse bridge args: %v", err)
	}
	c := NewClient(httpx.New(1*time.Second, 0))
	_, err = c.Quote(context.Background(), req)
	if cliErr, ok := clierr.As(err); !ok || cliErr.Code != clierr.CodeUnsupported {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestQuoteAggregatesFees(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("fromChain") != "1" || q.Get("toChain") != "8453" {
			t.Errorf("unexpected chain params %v", q)
		}
		if q.Get("fromAmount") != "100000000" {
			t.Errorf("unexpected amount %q", q.Get("fromAmount"))
		}
		_, _ = w.Write([]byte(`{
			"estimate": {
				"toAmount": "99500000",
				"feeCosts": [{"amountUSD": "0.30"}],
				"gasCosts": [{"amountUSD": "1.20"}, {"amountUSD": "0.50"}],
				"executionDuration": 180
			},
			"toolDetails": {"key": "across", "name": "Across"}
		}`))
	}))
	defer srv.Close()

	c := NewClient(httpx.New(2*time.Second, 0))
	c.baseURL = srv.URL

	quote, err := c.Quote(context.Background(), bridgeRequest(t))
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if quote.EstimatedFeeUSD != 2.0 {
		t.Fatalf("unexpected fee USD %v", quote.EstimatedFeeUSD)
	}
	if quote.FeeBreakdown == nil || quote.FeeBreakdown.GasFee == nil || quote.FeeBreakdown.GasFee.AmountUSD != 1.7 {
		t.Fatalf("unexpected fee breakdown %+v", quote.FeeBreakdown)
	}
	if quote.Route != "Across" {
		t.Fatalf("unexpected route %q", quote.Route)
	}
	if quote.EstimatedTimeS != 180 {
		t.Fatalf("unexpected duration %d", quote.EstimatedTimeS)
	}
	if quote.EstimatedOut.AmountDecimal != "99.5" {
		t.Fatalf("unexpected decimal output %q", quote.EstimatedOut.AmountDecimal)
	}
}

func TestRegisterBuildsFiber(t *testing.T) {
	reg := fiber.NewRegistry(zap.NewNop())
	if err := (Plugin{}).Register(reg, protocols.Deps{HTTP: httpx.New(1*time.Second, 0)}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	f, ok := reg.Fiber(ProtocolID)
	if !ok {
		t.Fatal("fiber not registered")
	}
	for _, want := range []string{"quote", "bridge", "chains"} {
		if _, ok := f.Command(want); !ok {
			t.Fatalf("fiber missing command %s", want)
		}
	}
	if cmdID, ok := reg.LookupAlias(ProtocolID + ":b"); !ok || cmdID != "bridge" {
		t.Fatalf("expected namespaced alias b -> bridge, got %q ok=%v", cmdID, ok)
	}
}

func TestChainsCommandListsRegistry(t *testing.T) {
	res, err := chainsCommand().Run(context.Background(), command.Request{})
	if err != nil {
		t.Fatalf("chains failed: %v", err)
	}
	chains, ok := res.Value.([]model.ChainInfo)
	if !ok || len(chains) == 0 {
		t.Fatalf("unexpected result %#v", res.Value)
	}
	seen := map[string]bool{}
	for _, c := range chains {
		if seen[c.CAIP2] {
			t.Fatalf("duplicate chain %s", c.CAIP2)
		}
		seen[c.CAIP2] = true
	}
}
