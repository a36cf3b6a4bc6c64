package extract

import (
	"regexp"
	"strconv"
	"strings"

	"moonpulse/internal/domain"
)

var (
	contractAddressRx = regexp.MustCompile(`\b0x[0-9a-fA-F]{40}\b`)
	lookbackRx        = regexp.MustCompile(`(?i)\binterval\s+(-?\d+)|(-?)\b(\d+)\s*days?\b`)
	trendForRx        = regexp.MustCompile(`(?i)\btrend\s+for\s+\$?([a-z0-9]{2,12})\b`)
	tokenTrendRx      = regexp.MustCompile(`(?i)\$?\b([a-z0-9]{2,12})\s+trend\b`)
)

// Words that read like a ticker in "<token> trend" but never are one.
var fallbackStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "this": {}, "that": {}, "its": {}, "my": {}, "our": {},
	"any": {}, "current": {}, "latest": {}, "recent": {}, "overall": {}, "general": {},
	"social": {}, "market": {}, "price": {}, "sentiment": {}, "crypto": {}, "token": {},
	"coin": {}, "volume": {}, "mention": {}, "mentions": {}, "daily": {}, "weekly": {},
	"monthly": {}, "long": {}, "short": {}, "term": {}, "up": {}, "down": {}, "me": {},
	"for": {}, "of": {}, "and": {}, "or": {}, "show": {}, "get": {}, "give": {},
	"what": {}, "whats": {}, "how": {}, "is": {}, "days": {}, "day": {}, "interval": {},
	"over": {}, "in": {}, "on": {}, "at": {}, "with": {}, "last": {}, "past": {}, "next": {},
	"about": {}, "week": {}, "month": {}, "today": {}, "please": {}, "now": {}, "it": {},
}

// Extractor pulls symbol, contract address and lookback out of raw text.
// It never fails: anything it cannot resolve is left empty or defaulted.
type Extractor struct {
	symbols         *SymbolTable
	defaultLookback int
}

func NewExtractor(symbols *SymbolTable, defaultLookback int) *Extractor {
	if symbols == nil {
		symbols = DefaultSymbolTable()
	}
	if defaultLookback <= 0 {
		defaultLookback = domain.DefaultLookbackDays
	}
	return &Extractor{symbols: symbols, defaultLookback: defaultLookback}
}

func (e *Extractor) Symbols() *SymbolTable {
	return e.symbols
}

func (e *Extractor) Extract(text string) domain.Entities {
	return domain.Entities{
		Symbol:          e.symbol(text),
		ContractAddress: ContractAddress(text),
		LookbackDays:    e.lookback(text),
	}
}

func (e *Extractor) symbol(text string) string {
	if sym, ok := e.symbols.Lookup(text); ok {
		return sym
	}
	if sym := fallbackToken(trendForRx, text); sym != "" {
		return sym
	}
	return fallbackToken(tokenTrendRx, text)
}

func fallbackToken(rx *regexp.Regexp, text string) string {
	for _, m := range rx.FindAllStringSubmatch(text, -1) {
		token := strings.ToLower(m[1])
		if _, stop := fallbackStopwords[token]; stop || isDigits(token) {
			continue
		}
		return strings.ToUpper(token)
	}
	return ""
}

// ContractAddress returns the first 0x-prefixed 40 hex digit address in text.
func ContractAddress(text string) string {
	return contractAddressRx.FindString(text)
}

func (e *Extractor) lookback(text string) int {
	m := lookbackRx.FindStringSubmatch(text)
	if m == nil || m[2] == "-" {
		return e.defaultLookback
	}
	raw := m[1]
	if raw == "" {
		raw = m[3]
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return e.defaultLookback
	}
	return n
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
