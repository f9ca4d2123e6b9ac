package resolver

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"newsimpact/internal/domain"

	"gopkg.in/yaml.v3"
)

const (
	exactAliasConfidence = 0.95
	fuzzyAliasThreshold  = 0.75
)

// Alias maps one spelling of a company name to its listing.
type Alias struct {
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Exchange string `yaml:"exchange"`
}

type aliasFile struct {
	Aliases []Alias `yaml:"aliases"`
}

// DefaultAliases is the built-in alias table.
func DefaultAliases() []Alias {
	listing := func(exchange string, pairs ...string) []Alias {
		out := make([]Alias, 0, len(pairs)/2)
		for i := 0; i+1 < len(pairs); i += 2 {
			out = append(out, Alias{Name: pairs[i], Symbol: pairs[i+1], Exchange: exchange})
		}
		return out
	}

	var aliases []Alias
	aliases = append(aliases, listing("NASDAQ",
		"Apple", "AAPL",
		"Microsoft", "MSFT",
		"Google", "GOOGL",
		"Alphabet", "GOOGL",
		"Amazon", "AMZN",
		"Nvidia", "NVDA",
		"Meta", "META",
		"Facebook", "META",
		"Tesla", "TSLA",
		"Costco", "COST",
		"Broadcom", "AVGO",
		"PepsiCo", "PEP",
		"Pepsi", "PEP",
		"Netflix", "NFLX",
		"AMD", "AMD",
		"Advanced Micro Devices", "AMD",
	)...)
	aliases = append(aliases, listing("NYSE",
		"JPMorgan", "JPM",
		"JP Morgan", "JPM",
		"Visa", "V",
		"Bank of America", "BAC",
		"BofA", "BAC",
		"UnitedHealth", "UNH",
		"UnitedHealth Group", "UNH",
		"Johnson & Johnson", "JNJ",
		"J&J", "JNJ",
		"Procter & Gamble", "PG",
		"P&G", "PG",
		"Eli Lilly", "LLY",
		"Merck", "MRK",
		"AbbVie", "ABBV",
		"Exxon", "XOM",
		"ExxonMobil", "XOM",
		"Walmart", "WMT",
		"Home Depot", "HD",
		"Chevron", "CVX",
		"Coca-Cola", "KO",
		"Oracle", "ORCL",
		"Thermo Fisher", "TMO",
		"Accenture", "ACN",
		"Salesforce", "CRM",
	)...)
	aliases = append(aliases, listing("NSE",
		"Tata Motors", "TATAMOTORS",
		"Tata Steel", "TATASTEEL",
		"Tata Consultancy Services", "TCS",
		"TCS", "TCS",
		"Tata Power", "TATAPOWER",
		"Reliance Industries", "RELIANCE",
		"Reliance", "RELIANCE",
		"Infosys", "INFY",
		"Wipro", "WIPRO",
		"HDFC Bank", "HDFCBANK",
		"ICICI Bank", "ICICIBANK",
		"State Bank of India", "SBIN",
		"SBI", "SBIN",
		"Axis Bank", "AXISBANK",
		"Kotak Mahindra Bank", "KOTAKBANK",
		"Bharti Airtel", "BHARTIARTL",
		"Airtel", "BHARTIARTL",
		"Larsen & Toubro", "LT",
		"L&T", "LT",
		"Mahindra & Mahindra", "M&M",
		"Maruti Suzuki", "MARUTI",
		"Hindustan Unilever", "HINDUNILVR",
		"ITC", "ITC",
		"Adani Enterprises", "ADANIENT",
		"Adani Ports", "ADANIPORTS",
		"Bajaj Finance", "BAJFINANCE",
		"Sun Pharma", "SUNPHARMA",
		"Sun Pharmaceutical Industries", "SUNPHARMA",
		"HCLTech", "HCLTECH",
		"HCL Technologies", "HCLTECH",
		"Asian Paints", "ASIANPAINT",
		"UltraTech Cement", "ULTRACEMCO",
		"JSW Steel", "JSWSTEEL",
		"Zomato", "ZOMATO",
		"Nifty", "NIFTY",
		"Nifty 50", "NIFTY",
	)...)
	aliases = append(aliases, listing("BSE", "Sensex", "SENSEX")...)
	aliases = append(aliases, listing("NYSE",
		"S&P 500", "SPY",
		"S&P500", "SPY",
		"Wall Street", "SPY",
		"Dow Jones", "DJI",
		"Dow", "DJI",
	)...)
	aliases = append(aliases, listing("NASDAQ", "Nasdaq", "QQQ")...)
	return aliases
}

// LoadAliasFile reads additional aliases from a YAML file of the form
//
//	aliases:
//	  - name: Tata Motors
//	    symbol: TATAMOTORS
//	    exchange: NSE
func LoadAliasFile(path string) ([]Alias, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse alias file %s: %w", path, err)
	}
	out := make([]Alias, 0, len(f.Aliases))
	for i, a := range f.Aliases {
		if strings.TrimSpace(a.Name) == "" || strings.TrimSpace(a.Symbol) == "" {
			return nil, fmt.Errorf("alias file %s: entry %d needs name and symbol", path, i)
		}
		a.Symbol = strings.ToUpper(strings.TrimSpace(a.Symbol))
		a.Exchange = strings.ToUpper(strings.TrimSpace(a.Exchange))
		out = append(out, a)
	}
	return out, nil
}

type aliasEntry struct {
	Alias
	key string
}

// AliasTable is an immutable lookup of company aliases.
type AliasTable struct {
	entries []aliasEntry
	byKey   map[string][]int
}

// NewAliasTable indexes aliases. A later alias with the same name, symbol
// and exchange as an earlier one is ignored.
func NewAliasTable(aliases []Alias) *AliasTable {
	t := &AliasTable{byKey: make(map[string][]int)}
	seen := make(map[string]bool)
	for _, a := range aliases {
		key := domain.NormalizeCompanyName(a.Name)
		if key == "" || a.Symbol == "" {
			continue
		}
		id := key + "|" + a.Symbol + "|" + a.Exchange
		if seen[id] {
			continue
		}
		seen[id] = true
		t.byKey[key] = append(t.byKey[key], len(t.entries))
		t.entries = append(t.entries, aliasEntry{Alias: a, key: key})
	}
	return t
}

// Names returns every alias spelling, longest first.
func (t *AliasTable) Names() []string {
	names := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		names = append(names, e.Name)
	}
	sort.SliceStable(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	return names
}

func (t *AliasTable) Len() int { return len(t.entries) }

// Match returns the candidates for name: every exact alias match at
// exactAliasConfidence, or else the fuzzy matches sharing the best
// similarity score at or above fuzzyAliasThreshold.
func (t *AliasTable) Match(name string) []domain.SymbolCandidate {
	key := domain.NormalizeCompanyName(name)
	if idx, ok := t.byKey[key]; ok {
		out := make([]domain.SymbolCandidate, 0, len(idx))
		for _, i := range idx {
			out = append(out, t.entries[i].candidate(exactAliasConfidence))
		}
		return dedupeCandidates(out)
	}

	best := 0.0
	var out []domain.SymbolCandidate
	for _, e := range t.entries {
		score := domain.TokenSimilarity(name, e.Name)
		if score < fuzzyAliasThreshold || score < best {
			continue
		}
		if score > best {
			best = score
			out = out[:0]
		}
		out = append(out, e.candidate(min(score, exactAliasConfidence)))
	}
	return dedupeCandidates(out)
}

func (e aliasEntry) candidate(confidence float64) domain.SymbolCandidate {
	return domain.SymbolCandidate{Symbol: e.Symbol, Exchange: e.Exchange, Name: e.Name, Confidence: confidence}
}

// dedupeCandidates drops repeats of the same listing, keeping the first.
func dedupeCandidates(in []domain.SymbolCandidate) []domain.SymbolCandidate {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, c := range in {
		id := c.Symbol + "@" + c.Exchange
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, c)
	}
	return out
}
