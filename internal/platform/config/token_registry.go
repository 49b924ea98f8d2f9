package config

import "strings"

// The tables below are hardcoded registries of well-known tokens, keyed
// by chain ID and lowercased contract address. They back the fast paths
// of the price resolution chain: fiat-pegged tokens resolve to $1 without
// any external call, and wrapped representations of major assets resolve
// through their underlying ticker.

// stablecoinRegistry maps chain ID to the set of contract addresses with
// a confirmed $1 peg on that chain.
var stablecoinRegistry = map[string]map[string]struct{}{
	// Ethereum mainnet
	"1": {
		"0xdac17f958d2ee523a2206206994597c13d831ec7": {}, // USDT
		"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": {}, // USDC
		"0x6b175474e89094c44da98b954eedeac495271d0f": {}, // DAI
	},
	// BNB Smart Chain
	"56": {
		"0x55d398326f99059ff775485246999027b3197955": {}, // USDT
		"0x8ac76a51cc950d9822d68b83fe1ad97b32cd580d": {}, // USDC
		"0xe9e7cea3dedca5984780bafc599bd69add087d56": {}, // BUSD
	},
	// Polygon PoS
	"137": {
		"0xc2132d05d31c914a87c6611c10748aeb04b58e8f": {}, // USDT
		"0x2791bca1f2de4661ed88a30c99a7a9449aa84174": {}, // USDC.e
		"0x3c499c542cef5e3811e1192ce70d8cc03d5c3359": {}, // USDC
	},
	// X Layer
	"196": {
		"0x1e4a5963abfd975d8c9021ce480b42188849d41d": {}, // USDT
		"0x74b7f16337b8972027f6196a17a631ac6de26d22": {}, // USDC
	},
}

// wrappedAssets maps chain ID and contract address to the lowercase
// ticker of the underlying asset. A wrapped token trades 1:1 with its
// underlying, so pricing the underlying prices the wrapper.
var wrappedAssets = map[string]map[string]string{
	"1": {
		"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2": "eth", // WETH
		"0x2260fac5e5542a773aa44fbcfedf7c193bc2c599": "btc", // WBTC
	},
	"56": {
		"0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c": "bnb", // WBNB
		"0x7130d2a12b9bcbfae4f2634d864a1ee1ce3ead9c": "btc", // BTCB
		"0x2170ed0880ac9a755fd29b2688956bd959f933f8": "eth", // Binance-peg ETH
	},
	"137": {
		"0x0d500b1d8e8ef31e21c99d1db9a6444d3adf1270": "pol", // WPOL (ex WMATIC)
		"0x7ceb23fd6bc0add59e62ac25578270cff1b9f619": "eth", // WETH
	},
	"196": {
		"0xe538905cf8410324e03a5a23c1c177a474d59b2b": "okb", // WOKB
		"0x5a77f1443d16ee5761d310e38b62f77f726bc71c": "eth", // WETH
		"0xea034fb02eb1808c2cc3adbc15f447b93cbe08e1": "btc", // XBTC
	},
}

// stableSymbols is the ticker heuristic of last resort: symbols that by
// convention trade at $1 when no real price discovery succeeded.
var stableSymbols = map[string]struct{}{
	"usdt":  {},
	"usdc":  {},
	"dai":   {},
	"busd":  {},
	"tusd":  {},
	"fdusd": {},
	"usdd":  {},
	"usde":  {},
	"pyusd": {},
	"usdp":  {},
	"gusd":  {},
	"lusd":  {},
	"frax":  {},
}

// IsStablecoin reports whether the token at the given chain and address
// is a registered fiat-pegged stablecoin. Address compare is
// case-insensitive since callers pass checksummed and lowercase forms
// interchangeably.
func IsStablecoin(chainID, address string) bool {
	chain, ok := stablecoinRegistry[chainID]
	if !ok {
		return false
	}
	_, ok = chain[strings.ToLower(address)]
	return ok
}

// WrappedUnderlying returns the lowercase ticker of the asset a wrapped
// token represents, if the token is a registered wrapper.
func WrappedUnderlying(chainID, address string) (string, bool) {
	chain, ok := wrappedAssets[chainID]
	if !ok {
		return "", false
	}
	sym, ok := chain[strings.ToLower(address)]
	return sym, ok
}

// IsStableSymbol reports whether a ticker matches the known stablecoin
// symbol set, ignoring case.
func IsStableSymbol(symbol string) bool {
	_, ok := stableSymbols[strings.ToLower(symbol)]
	return ok
}
