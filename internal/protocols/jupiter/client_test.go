package jupiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	clierr "github.com/cmorales95/defishell/internal/errors"
	"github.com/cmorales95/defishell/internal/fiber"
	"github.com/cmorales95/defishell/internal/httpx"
	"github.com/cmorales95/defishell/internal/protocols"
)

func TestNewClientSelectsBaseURLByKey(t *testing.T) {
	lite := NewClient(httpx.New(1*time.Second, 0), "")
	if lite.baseURL != defaultLiteBase {
		t.Fatalf("expected lite base without key, got %s", lite.baseURL)
	}
	pro := NewClient(httpx.New(1*time.Second, 0), "key")
	if pro.baseURL != defaultProBase {
		t.Fatalf("expected pro base with key, got %s", pro.baseURL)
	}
}

func TestQuoteRejectsEVMChain(t *testing.T) {
	req, err := protocols.ParseSwapArgs([]string{"ethereum", "USDC", "DAI", "1"})
	if err != nil {
		t.Fatalf("parse args: %v", err)
	}
	c := NewClient(httpx.New(1*time.Second, 0), "")
	_, err = c.Quote(context.Background(), req)
	if cliErr, ok := clierr.As(err); !ok || cliErr.Code != clierr.CodeUnsupported {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestQuoteParsesRoutePlan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("amount"); got != "1000000" {
			t.Errorf("unexpected amount %q", got)
		}
		_, _ = w.Write([]byte(`{
			"outAmount": "995000000",
			"priceImpactPct": "0.02",
			"routePlan": [
				{"swapInfo": {"label": "Whirlpool"}},
				{"swapInfo": {"label": "Whirlpool"}},
				{"swapInfo": {"label": "Raydium"}}
			]
		}`))
	}))
	defer srv.Close()

	req, err := protocols.ParseSwapArgs([]string{"solana", "USDC", "USDT", "1"})
	if err != nil {
		t.Fatalf("parse args: %v", err)
	}
	c := NewClient(httpx.New(2*time.Second, 0), "")
	c.baseURL = srv.URL

	quote, err := c.Quote(context.Background(), req)
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if quote.Route != "Whirlpool > Raydium" {
		t.Fatalf("unexpected route %q", quote.Route)
	}
	if quote.PriceImpactPct != 0.02 {
		t.Fatalf("unexpected price impact %v", quote.PriceImpactPct)
	}
	if quote.EstimatedOut.AmountDecimal != "995" {
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
	for _, want := range []string{"quote", "swap"} {
		if _, ok := f.Command(want); !ok {
			t.Fatalf("fiber missing command %s", want)
		}
	}
	if cmdID, ok := reg.LookupAlias(ProtocolID + ":s"); !ok || cmdID != "swap" {
		t.Fatalf("expected namespaced alias s -> swap, got %q ok=%v", cmdID, ok)
	}
}
