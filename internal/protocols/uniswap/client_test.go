package uniswap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cmorales95/defishell/internal/command"
	clierr "github.com/cmorales95/defishell/internal/errors"
	"github.com/cmorales95/defishell/internal/fiber"
	"github.com/cmorales95/defishell/internal/httpx"
	"github.com/cmorales95/defishell/internal/id"
	"github.com/cmorales95/defishell/internal/model"
	"github.com/cmorales95/defishell/internal/protocols"
	"github.com/cmorales95/defishell/internal/session"
	"github.com/cmorales95/defishell/internal/wallet"
)

func swapRequest(t *testing.T) protocols.SwapRequest {
	t.Helper()
	req, err := protocols.ParseSwapArgs([]string{"ethereum", "USDC", "DAI", "1"})
	if err != nil {
		t.Fatalf("parse swap args: %v", err)
	}
	return req
}

func TestQuoteRequiresAPIKey(t *testing.T) {
	c := NewClient(httpx.New(1*time.Second, 0), "")
	_, err := c.Quote(context.Background(), swapRequest(t))
	if err == nil {
		t.Fatal("expected missing API key error")
	}
	if cliErr, ok := clierr.As(err); !ok || cliErr.Code != clierr.CodeAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestQuoteRejectsNonEVMChain(t *testing.T) {
	chain, _ := id.ParseChain("solana")
	asset, _ := id.ParseAsset("USDC", chain)
	c := NewClient(httpx.New(1*time.Second, 0), "key")
	_, err := c.Quote(context.Background(), protocols.SwapRequest{
		Chain: chain, FromAsset: asset, ToAsset: asset, AmountBaseUnits: "1000000", AmountDecimal: "1",
	})
	if cliErr, ok := clierr.As(err); !ok || cliErr.Code != clierr.CodeUnsupported {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestQuoteParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/quote" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("unexpected api key header %q", got)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload["amount"] != "1000000" {
			t.Errorf("unexpected amount %v", payload["amount"])
		}
		_, _ = w.Write([]byte(`{"quote":{"output":{"amount":"999000000000000000"},"gasFeeUSD":"1.25"}}`))
	}))
	defer srv.Close()

	c := NewClient(httpx.New(2*time.Second, 0), "test-key")
	c.baseURL = srv.URL
	c.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	quote, err := c.Quote(context.Background(), swapRequest(t))
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if quote.Provider != ProtocolID {
		t.Fatalf("unexpected provider %s", quote.Provider)
	}
	if quote.EstimatedOut.AmountBaseUnits != "999000000000000000" {
		t.Fatalf("unexpected output amount %s", quote.EstimatedOut.AmountBaseUnits)
	}
	if quote.EstimatedOut.AmountDecimal != "0.999" {
		t.Fatalf("unexpected decimal output %s", quote.EstimatedOut.AmountDecimal)
	}
	if quote.EstimatedGasUSD != 1.25 {
		t.Fatalf("unexpected gas USD %v", quote.EstimatedGasUSD)
	}
}

func TestRegisterBuildsFiber(t *testing.T) {
	reg := fiber.NewRegistry(zap.NewNop())
	deps := protocols.Deps{HTTP: httpx.New(1*time.Second, 0)}
	if err := (Plugin{}).Register(reg, deps); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	f, ok := reg.Fiber(ProtocolID)
	if !ok {
		t.Fatal("fiber not registered")
	}
	for _, want := range []string{command.IdentityID, "quote", "swap", "tokens"} {
		if _, ok := f.Command(want); !ok {
			t.Fatalf("fiber missing command %s", want)
		}
	}
	if cmdID, ok := reg.LookupAlias(ProtocolID + ":s"); !ok || cmdID != "swap" {
		t.Fatalf("expected namespaced alias s -> swap, got %q ok=%v", cmdID, ok)
	}
	if _, ok := reg.LookupAlias("s"); ok {
		t.Fatal("fiber alias must not leak into the global table")
	}
}

func TestSwapCommandRequiresWallet(t *testing.T) {
	reg := fiber.NewRegistry(zap.NewNop())
	deps := protocols.Deps{HTTP: httpx.New(1*time.Second, 0)}
	if err := (Plugin{}).Register(reg, deps); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	f, _ := reg.Fiber(ProtocolID)
	swap, _ := f.Command("swap")

	_, err := swap.Run(context.Background(), command.Request{
		Args:    []string{"ethereum", "USDC", "DAI", "1"},
		Session: session.New(),
	})
	if cliErr, ok := clierr.As(err); !ok || cliErr.Code != clierr.CodeUsage {
		t.Fatalf("expected usage error without wallet, got %v", err)
	}
}

func TestTokensCommandListsChainRegistry(t *testing.T) {
	cmd := tokensCommand()
	sess := session.New().WithWallet(wallet.Info{Connected: true, Kind: "evm"})
	res, err := cmd.Run(context.Background(), command.Request{Args: []string{"base"}, Session: sess})
	if err != nil {
		t.Fatalf("tokens failed: %v", err)
	}
	listing, ok := res.Value.(model.TokenListing)
	if !ok {
		t.Fatalf("unexpected result type %T", res.Value)
	}
	if listing.ChainID != "eip155:8453" || len(listing.Tokens) == 0 {
		t.Fatalf("unexpected listing %+v", listing)
	}
	if res.Session != nil {
		t.Fatal("tokens must not request a session transition")
	}
}
