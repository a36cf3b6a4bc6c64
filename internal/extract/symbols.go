package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// SymbolPattern maps a case-insensitive, word-bounded pattern to a ticker.
type SymbolPattern struct {
	Pattern *regexp.Regexp
	Symbol  string
}

// SymbolTable is an ordered list of patterns. Lookup is a linear scan and the
// first matching entry wins, so longer names must be registered before any
// alias that could appear inside them.
type SymbolTable struct {
	entries []SymbolPattern
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{}
}

// Register appends a pattern matching any of the aliases as whole words.
func (t *SymbolTable) Register(symbol string, aliases ...string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || len(aliases) == 0 {
		return fmt.Errorf("symbol and at least one alias are required")
	}
	quoted := make([]string, 0, len(aliases))
	for _, a := range aliases {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(a))
	}
	if len(quoted) == 0 {
		return fmt.Errorf("no usable alias for %s", symbol)
	}
	rx, err := regexp.Compile(`(?i)(?:^|[^a-z0-9])\$?(?:` + strings.Join(quoted, "|") + `)(?:$|[^a-z0-9])`)
	if err != nil {
		return fmt.Errorf("compile pattern for %s: %w", symbol, err)
	}
	t.entries = append(t.entries, SymbolPattern{Pattern: rx, Symbol: symbol})
	return nil
}

// MustRegister is Register for static tables.
func (t *SymbolTable) MustRegister(symbol string, aliases ...string) *SymbolTable {
	if err := t.Register(symbol, aliases...); err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the ticker of the first matching entry.
func (t *SymbolTable) Lookup(text string) (string, bool) {
	if t == nil {
		return "", false
	}
	for _, e := range t.entries {
		if e.Pattern.MatchString(text) {
			return e.Symbol, true
		}
	}
	return "", false
}

func (t *SymbolTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// DefaultSymbolTable covers the majors and their common names.
func DefaultSymbolTable() *SymbolTable {
	return NewSymbolTable().
		MustRegister("BTC", "bitcoin", "btc", "xbt").
		MustRegister("ETH", "ethereum", "ether", "eth").
		MustRegister("SOL", "solana", "sol").
		MustRegister("XRP", "ripple", "xrpl", "xrp").
		MustRegister("ADA", "cardano", "ada").
		MustRegister("DOGE", "dogecoin", "doge").
		MustRegister("DOT", "polkadot").
		MustRegister("AVAX", "avalanche", "avax").
		MustRegister("LINK", "chainlink").
		MustRegister("MATIC", "polygon", "matic", "pol").
		MustRegister("BNB", "binance coin", "bnb").
		MustRegister("LTC", "litecoin", "ltc").
		MustRegister("SHIB", "shiba inu", "shiba", "shib").
		MustRegister("PEPE", "pepe").
		MustRegister("TRX", "tron", "trx").
		MustRegister("ARB", "arbitrum").
		MustRegister("SUI", "sui").
		MustRegister("TON", "toncoin")
}
