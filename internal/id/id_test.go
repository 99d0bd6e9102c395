package id

import "testing"

func TestParseChainAcceptsSlugNumberAndCAIP2(t *testing.T) {
	chain, err := ParseChain("base")
	if err != nil {
		t.Fatalf("ParseChain(base) failed: %v", err)
	}
	if chain.CAIP2 != "eip155:8453" || !chain.IsEVM() {
		t.Fatalf("unexpected chain: %+v", chain)
	}

	chain, err = ParseChain("8453")
	if err != nil {
		t.Fatalf("ParseChain(8453) failed: %v", err)
	}
	if chain.Slug != "base" {
		t.Fatalf("numeric chain id should map back to base, got %s", chain.Slug)
	}

	// unknown EVM ids still parse so bridges can route to long-tail chains
	chain, err = ParseChain("eip155:999999")
	if err != nil {
		t.Fatalf("ParseChain(eip155:999999) failed: %v", err)
	}
	if chain.EVMChainID != 999999 {
		t.Fatalf("unexpected chain ID: %d", chain.EVMChainID)
	}
}

func TestParseChainSolanaAliases(t *testing.T) {
	for _, raw := range []string{"solana", "solana-mainnet", "mainnet-beta"} {
		chain, err := ParseChain(raw)
		if err != nil {
			t.Fatalf("ParseChain(%s) failed: %v", raw, err)
		}
		if chain.Slug != "solana" || !chain.IsSolana() || chain.IsEVM() {
			t.Fatalf("ParseChain(%s) gave %+v", raw, chain)
		}
	}
}

func TestParseAssetSymbolAndAddress(t *testing.T) {
	chain, _ := ParseChain("ethereum")

	asset, err := ParseAsset("USDC", chain)
	if err != nil {
		t.Fatalf("ParseAsset(USDC) failed: %v", err)
	}
	if asset.AssetID == "" || asset.Decimals != 6 {
		t.Fatalf("unexpected asset result: %+v", asset)
	}

	// the same token by checksummed address round-trips to the symbol
	asset2, err := ParseAsset("0xA0B86991C6218B36C1D19D4A2E9EB0CE3606EB48", chain)
	if err != nil {
		t.Fatalf("ParseAsset(address) failed: %v", err)
	}
	if asset2.Symbol != "USDC" || asset2.AssetID != asset.AssetID {
		t.Fatalf("address lookup diverged from symbol lookup: %+v vs %+v", asset2, asset)
	}

	sol, _ := ParseChain("solana")
	jup, err := ParseAsset("JUP", sol)
	if err != nil {
		t.Fatalf("ParseAsset(JUP) failed: %v", err)
	}
	if jup.ChainID != sol.CAIP2 || jup.Decimals != 6 {
		t.Fatalf("unexpected solana asset: %+v", jup)
	}
}

func TestParseAssetChainMismatch(t *testing.T) {
	chain, _ := ParseChain("base")
	// an ethereum-mainnet CAIP-19 id offered against base must be rejected
	_, err := ParseAsset("eip155:1/erc20:0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", chain)
	if err == nil {
		t.Fatal("expected chain mismatch error")
	}
}
