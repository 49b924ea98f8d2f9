package config

import "testing"

func TestIsStablecoin_KnownAddresses(t *testing.T) {
	tests := []struct {
		name    string
		chainID string
		address string
		want    bool
	}{
		{
			name:    "mainnet USDT lowercase",
			chainID: "1",
			address: "0xdac17f958d2ee523a2206206994597c13d831ec7",
			want:    true,
		},
		{
			name:    "mainnet USDT checksummed",
			chainID: "1",
			address: "0xdAC17F958D2ee523a2206206994597C13D831ec7",
			want:    true,
		},
		{
			name:    "X Layer USDC",
			chainID: "196",
			address: "0x74b7f16337b8972027f6196a17a631ac6de26d22",
			want:    true,
		},
		{
			name:    "mainnet WETH is not a stablecoin",
			chainID: "1",
			address: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
			want:    false,
		},
		{
			name:    "mainnet USDT address on wrong chain",
			chainID: "56",
			address: "0xdac17f958d2ee523a2206206994597c13d831ec7",
			want:    false,
		},
		{
			name:    "unknown chain",
			chainID: "999",
			address: "0xdac17f958d2ee523a2206206994597c13d831ec7",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStablecoin(tt.chainID, tt.address); got != tt.want {
				t.Errorf("IsStablecoin(%s, %s) = %v, want %v", tt.chainID, tt.address, got, tt.want)
			}
		})
	}
}

func TestWrappedUnderlying(t *testing.T) {
	sym, ok := WrappedUnderlying("1", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	if !ok || sym != "eth" {
		t.Errorf("WETH: expected (eth, true), got (%s, %v)", sym, ok)
	}

	sym, ok = WrappedUnderlying("196", "0xea034fb02eb1808c2cc3adbc15f447b93cbe08e1")
	if !ok || sym != "btc" {
		t.Errorf("XBTC: expected (btc, true), got (%s, %v)", sym, ok)
	}

	if _, ok := WrappedUnderlying("1", "0xdac17f958d2ee523a2206206994597c13d831ec7"); ok {
		t.Error("USDT should not resolve as a wrapped asset")
	}
	if _, ok := WrappedUnderlying("999", "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"); ok {
		t.Error("unknown chain should not resolve")
	}
}

func TestIsStableSymbol(t *testing.T) {
	for _, sym := range []string{"USDT", "usdc", "Dai", "fdUSD"} {
		if !IsStableSymbol(sym) {
			t.Errorf("expected %q to be a stable symbol", sym)
		}
	}
	for _, sym := range []string{"ETH", "btc", "", "USDX"} {
		if IsStableSymbol(sym) {
			t.Errorf("expected %q not to be a stable symbol", sym)
		}
	}
}
