package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string      `json:"request_id"`
	Timestamp time.Time   `json:"timestamp"`
	Command   string      `json:"command"`
	Protocol  string      `json:"protocol,omitempty"`
	Method    string      `json:"method,omitempty"`
	Cache     CacheStatus `json:"cache"`
}

type CacheStatus struct {
	Status string `json:"status"`
	AgeMS  int64  `json:"age_ms"`
	Stale  bool   `json:"stale"`
}

// ProtocolSummary describes one registered fiber for listings.
type ProtocolSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Commands    int    `json:"commands"`
}

// CommandSummary describes one registered command for listings and help.
type CommandSummary struct {
	ID          string   `json:"id"`
	Scope       string   `json:"scope"`
	Protocol    string   `json:"protocol,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
	Description string   `json:"description"`
}

// Suggestion is one fuzzy-resolver candidate shown after a miss.
type Suggestion struct {
	Command    string  `json:"command"`
	Protocol   string  `json:"protocol,omitempty"`
	Confidence float64 `json:"confidence"`
}

// ChainInfo describes one supported chain for listings.
type ChainInfo struct {
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	CAIP2      string `json:"caip2"`
	EVMChainID int64  `json:"evm_chain_id,omitempty"`
}

// TokenInfo is one bootstrap-registry token.
type TokenInfo struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

// TokenListing groups a chain's bootstrap tokens.
type TokenListing struct {
	ChainID string      `json:"chain_id"`
	Tokens  []TokenInfo `json:"tokens"`
}

type AmountInfo struct {
	AmountBaseUnits string `json:"amount_base_units"`
	AmountDecimal   string `json:"amount_decimal"`
	Decimals        int    `json:"decimals"`
}

type FeeAmount struct {
	AmountBaseUnits string  `json:"amount_base_units,omitempty"`
	AmountDecimal   string  `json:"amount_decimal,omitempty"`
	AmountUSD       float64 `json:"amount_usd,omitempty"`
}

type BridgeFeeBreakdown struct {
	RelayerFee  *FeeAmount `json:"relayer_fee,omitempty"`
	GasFee      *FeeAmount `json:"gas_fee,omitempty"`
	TotalFeeUSD float64    `json:"total_fee_usd,omitempty"`
}

type SwapQuote struct {
	Provider        string     `json:"provider"`
	ChainID         string     `json:"chain_id"`
	FromAssetID     string     `json:"from_asset_id"`
	ToAssetID       string     `json:"to_asset_id"`
	InputAmount     AmountInfo `json:"input_amount"`
	EstimatedOut    AmountInfo `json:"estimated_out"`
	EstimatedGasUSD float64    `json:"estimated_gas_usd"`
	PriceImpactPct  float64    `json:"price_impact_pct"`
	Route           string     `json:"route"`
	SourceURL       string     `json:"source_url,omitempty"`
	FetchedAt       string     `json:"fetched_at"`
}

type BridgeQuote struct {
	Provider        string              `json:"provider"`
	FromChainID     string              `json:"from_chain_id"`
	ToChainID       string              `json:"to_chain_id"`
	FromAssetID     string              `json:"from_asset_id"`
	ToAssetID       string              `json:"to_asset_id"`
	InputAmount     AmountInfo          `json:"input_amount"`
	EstimatedOut    AmountInfo          `json:"estimated_out"`
	EstimatedFeeUSD float64             `json:"estimated_fee_usd"`
	FeeBreakdown    *BridgeFeeBreakdown `json:"fee_breakdown,omitempty"`
	EstimatedTimeS  int64               `json:"estimated_time_s"`
	Route           string              `json:"route"`
	SourceURL       string              `json:"source_url,omitempty"`
	FetchedAt       string              `json:"fetched_at"`
}

type LendMarket struct {
	Protocol     string  `json:"protocol"`
	ChainID      string  `json:"chain_id"`
	AssetID      string  `json:"asset_id"`
	SupplyAPY    float64 `json:"supply_apy"`
	BorrowAPY    float64 `json:"borrow_apy"`
	TVLUSD       float64 `json:"tvl_usd"`
	LiquidityUSD float64 `json:"liquidity_usd"`
	SourceURL    string  `json:"source_url,omitempty"`
	FetchedAt    string  `json:"fetched_at"`
}

// LendQuote pairs the top lending market for an asset with the amount the
// caller wants to supply.
type LendQuote struct {
	Market LendMarket `json:"market"`
	Amount AmountInfo `json:"amount"`
}

type LendRate struct {
	Protocol    string  `json:"protocol"`
	ChainID     string  `json:"chain_id"`
	AssetID     string  `json:"asset_id"`
	SupplyAPY   float64 `json:"supply_apy"`
	BorrowAPY   float64 `json:"borrow_apy"`
	Utilization float64 `json:"utilization"`
	SourceURL   string  `json:"source_url,omitempty"`
	FetchedAt   string  `json:"fetched_at"`
}
