package util

import (
	"fmt"
	"strings"
)

// symbolAliases maps known spellings to the canonical BASEUSD form.
var symbolAliases = map[string]string{
	"BTC": "BTCUSD", "BITCOIN": "BTCUSD", "XBT": "BTCUSD", "XBTUSD": "BTCUSD", "XBTCUSD": "BTCUSD", "XXBTZUSD": "BTCUSD",
	"ETH": "ETHUSD", "ETHEREUM": "ETHUSD", "XETH": "ETHUSD", "XETHUSD": "ETHUSD", "XETHZUSD": "ETHUSD",
	"SOL": "SOLUSD", "SOLANA": "SOLUSD",
	"XRP": "XRPUSD", "RIPPLE": "XRPUSD", "XXRPZUSD": "XRPUSD",
	"DOGE": "DOGEUSD", "DOGECOIN": "DOGEUSD", "XDG": "DOGEUSD", "XDGUSD": "DOGEUSD", "XDOGZUSD": "DOGEUSD",
	"ADA": "ADAUSD", "CARDANO": "ADAUSD",
	"DOT": "DOTUSD", "POLKADOT": "DOTUSD",
	"LINK": "LINKUSD", "CHAINLINK": "LINKUSD",
	"UNI": "UNIUSD", "UNISWAP": "UNIUSD",
	"SHIB": "SHIBUSD", "SHIBA": "SHIBUSD",
	"LTC": "LTCUSD", "LITECOIN": "LTCUSD", "XLTCZUSD": "LTCUSD",
	"XLM": "XLMUSD", "STELLAR": "XLMUSD", "XXLMZUSD": "XLMUSD",
	"ATOM": "ATOMUSD", "COSMOS": "ATOMUSD",
	"AAVE":  "AAVEUSD",
	"MATIC": "MATICUSD", "POLYGON": "MATICUSD",
	"AVAX": "AVAXUSD", "AVALANCHE": "AVAXUSD",
}

// krakenBase holds bases whose Kraken asset code differs from the common ticker.
var krakenBase = map[string]string{
	"BTC":  "XBT",
	"DOGE": "XDG",
}

// NormalizeSymbol converts BTC, btc/usd, XXBTZUSD or BTCUSDT to BTCUSD.
func NormalizeSymbol(s string) (string, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	if u == "" {
		return "", fmt.Errorf("symbol cannot be empty")
	}
	u = strings.NewReplacer("/", "", "-", "", "_", "").Replace(u)
	if c, ok := symbolAliases[u]; ok {
		return c, nil
	}
	if strings.HasSuffix(u, "USDT") {
		u = strings.TrimSuffix(u, "USDT") + "USD"
	}
	if c, ok := symbolAliases[u]; ok {
		return c, nil
	}
	if strings.HasSuffix(u, "USD") && len(u) > 3 {
		if c, ok := symbolAliases[strings.TrimSuffix(u, "USD")]; ok {
			return c, nil
		}
		return u, nil
	}
	return "", fmt.Errorf("unknown symbol %q", s)
}

// NormalizeSymbols normalizes a list and drops duplicates, keeping order.
func NormalizeSymbols(in []string) ([]string, error) {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		c, err := NormalizeSymbol(s)
		if err != nil {
			return nil, err
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}

// BaseAsset returns BTC for BTCUSD.
func BaseAsset(canonical string) string {
	return strings.TrimSuffix(canonical, "USD")
}

// KrakenPair returns the REST pair name, e.g. XBTUSD for BTCUSD.
func KrakenPair(canonical string) string {
	base := BaseAsset(canonical)
	if k, ok := krakenBase[base]; ok {
		base = k
	}
	return base + "USD"
}

// DisplaySymbol returns BTC/USD for BTCUSD. Kraken websocket v2 uses this form.
func DisplaySymbol(canonical string) string {
	return BaseAsset(canonical) + "/USD"
}
