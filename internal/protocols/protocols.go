package protocols

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cmorales95/defishell/internal/cache"
	"github.com/cmorales95/defishell/internal/command"
	"github.com/cmorales95/defishell/internal/config"
	clierr "github.com/cmorales95/defishell/internal/errors"
	"github.com/cmorales95/defishell/internal/fiber"
	"github.com/cmorales95/defishell/internal/httpx"
	"github.com/cmorales95/defishell/internal/id"
)

// Plugin is one protocol integration. Register builds the plugin's fiber,
// fills it with protocol-scoped commands, and publishes it; a registration
// error aborts startup.
type Plugin interface {
	ID() string
	Register(reg *fiber.Registry, deps Deps) error
}

// Deps is what the host hands every plugin at load time. Cache may be nil
// when caching is disabled.
type Deps struct {
	HTTP     *httpx.Client
	Cache    *cache.Store
	Settings config.Settings
	Logger   *zap.Logger
	Now      func() time.Time
}

func (d Deps) Log() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// SwapRequest is a parsed same-chain swap input.
type SwapRequest struct {
	Chain           id.Chain
	FromAsset       id.Asset
	ToAsset         id.Asset
	AmountBaseUnits string
	AmountDecimal   string
}

// BridgeRequest is a parsed cross-chain transfer input.
type BridgeRequest struct {
	FromChain       id.Chain
	ToChain         id.Chain
	FromAsset       id.Asset
	ToAsset         id.Asset
	AmountBaseUnits string
	AmountDecimal   string
}

// ParseSwapArgs parses "<chain> <from> <to> <amount>". The amount is a
// decimal value in the source asset's units.
func ParseSwapArgs(args []string) (SwapRequest, error) {
	if len(args) != 4 {
		return SwapRequest{}, clierr.New(clierr.CodeUsage, "usage: <chain> <from-asset> <to-asset> <amount>")
	}
	chain, err := id.ParseChain(args[0])
	if err != nil {
		return SwapRequest{}, err
	}
	fromAsset, err := id.ParseAsset(args[1], chain)
	if err != nil {
		return SwapRequest{}, err
	}
	toAsset, err := id.ParseAsset(args[2], chain)
	if err != nil {
		return SwapRequest{}, err
	}
	decimals := fromAsset.Decimals
	if decimals <= 0 {
		decimals = 18
	}
	base, decimal, err := id.NormalizeAmount("", args[3], decimals)
	if err != nil {
		return SwapRequest{}, err
	}
	return SwapRequest{
		Chain:           chain,
		FromAsset:       fromAsset,
		ToAsset:         toAsset,
		AmountBaseUnits: base,
		AmountDecimal:   decimal,
	}, nil
}

// ParseBridgeArgs parses "<from-chain> <to-chain> <asset> <amount>
// [to-asset]". A missing destination asset falls back to the source symbol.
func ParseBridgeArgs(args []string) (BridgeRequest, error) {
	if len(args) != 4 && len(args) != 5 {
		return BridgeRequest{}, clierr.New(clierr.CodeUsage, "usage: <from-chain> <to-chain> <asset> <amount> [to-asset]")
	}
	fromChain, err := id.ParseChain(args[0])
	if err != nil {
		return BridgeRequest{}, err
	}
	toChain, err := id.ParseChain(args[1])
	if err != nil {
		return BridgeRequest{}, err
	}
	fromAsset, err := id.ParseAsset(args[2], fromChain)
	if err != nil {
		return BridgeRequest{}, err
	}
	toAssetInput := ""
	if len(args) == 5 {
		toAssetInput = args[4]
	}
	if strings.TrimSpace(toAssetInput) == "" {
		if fromAsset.Symbol == "" {
			return BridgeRequest{}, clierr.New(clierr.CodeUsage, "destination asset cannot be inferred, pass it explicitly")
		}
		toAssetInput = fromAsset.Symbol
	}
	toAsset, err := id.ParseAsset(toAssetInput, toChain)
	if err != nil {
		return BridgeRequest{}, clierr.Wrap(clierr.CodeUsage, "resolve destination asset", err)
	}
	decimals := fromAsset.Decimals
	if decimals <= 0 {
		decimals = 18
	}
	base, decimal, err := id.NormalizeAmount("", args[3], decimals)
	if err != nil {
		return BridgeRequest{}, err
	}
	return BridgeRequest{
		FromChain:       fromChain,
		ToChain:         toChain,
		FromAsset:       fromAsset,
		ToAsset:         toAsset,
		AmountBaseUnits: base,
		AmountDecimal:   decimal,
	}, nil
}

// RequireWallet guards commands that act on behalf of the session wallet.
// kind is "evm" or "solana"; empty accepts any connected wallet.
func RequireWallet(req command.Request, kind string) error {
	if req.Session == nil || !req.Session.Wallet.Connected {
		return clierr.New(clierr.CodeUsage, "connect a wallet first (connect <address>)")
	}
	if kind != "" && req.Session.Wallet.Kind != kind {
		return clierr.New(clierr.CodeUsage, fmt.Sprintf("this command requires a %s wallet, connected wallet is %s", kind, req.Session.Wallet.Kind))
	}
	return nil
}

// CacheKey derives a stable cache key from the command path and its request
// parts.
func CacheKey(commandPath string, req any) string {
	buf, _ := json.Marshal(req)
	sum := sha256.Sum256(append([]byte(commandPath+"|"), buf...))
	return hex.EncodeToString(sum[:])
}

// GetCached loads a fresh cache entry into out. Stale or missing entries
// report false; cache errors are deliberately swallowed, a broken cache must
// never fail a quote.
func GetCached(store *cache.Store, key string, maxStale time.Duration, out any) bool {
	if store == nil {
		return false
	}
	res, err := store.Get(key, maxStale)
	if err != nil || !res.Hit || res.Stale {
		return false
	}
	return json.Unmarshal(res.Value, out) == nil
}

// PutCached stores a value best-effort.
func PutCached(store *cache.Store, key string, v any, ttl time.Duration) {
	if store == nil {
		return
	}
	if buf, err := json.Marshal(v); err == nil {
		_ = store.Set(key, buf, ttl)
	}
}
