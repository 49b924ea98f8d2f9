// Package cache implements the client-side data freshness engine: an
// LRU-bounded store with stale-while-revalidate semantics and per-key
// request coalescing.
package cache

import "time"

// Tier is a named freshness policy: how long an entry is served as
// fresh, and how long it may be served at all. StaleTime must not
// exceed MaxAge; entries between the two are served stale while a
// background refresh runs.
type Tier struct {
	Name      string
	StaleTime time.Duration
	MaxAge    time.Duration
}

// The tier table mirrors the volatility of each data class: prices and
// quotes go stale in seconds, token metadata is near-static.
var (
	TierTokenList = Tier{Name: "token-list", StaleTime: 5 * time.Minute, MaxAge: 30 * time.Minute}
	TierPrice     = Tier{Name: "price", StaleTime: 10 * time.Second, MaxAge: 60 * time.Second}
	TierQuote     = Tier{Name: "quote", StaleTime: 5 * time.Second, MaxAge: 30 * time.Second}
	TierTokenInfo = Tier{Name: "token-info", StaleTime: 10 * time.Minute, MaxAge: 60 * time.Minute}
	TierBalance   = Tier{Name: "balance", StaleTime: 15 * time.Second, MaxAge: 2 * time.Minute}
	TierDefault   = Tier{Name: "default", StaleTime: 30 * time.Second, MaxAge: 5 * time.Minute}
)

// Key builders for the documented cache namespaces. The store itself
// treats keys as opaque strings; these helpers only keep call sites
// consistent so prefix invalidation works.

// TokenListKey returns the cache key for a chain's token list.
func TokenListKey(chainID string) string {
	return "token-list:" + chainID
}

// PriceKey returns the cache key for a token's USD price.
func PriceKey(chainID, address string) string {
	return "price:" + chainID + ":" + address
}

// QuoteKey returns the cache key for a swap quote.
func QuoteKey(chainID, from, to, amount string) string {
	return "quote:" + chainID + ":" + from + ":" + to + ":" + amount
}

// TokenInfoKey returns the cache key for token metadata.
func TokenInfoKey(chainID, address string) string {
	return "token-info:" + chainID + ":" + address
}

// BalanceKey returns the cache key for a wallet's token balance.
func BalanceKey(chainID, address, wallet string) string {
	return "balance:" + chainID + ":" + address + ":" + wallet
}
