package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSymbol(t *testing.T) {
	cases := map[string]string{
		"BTC":      "BTCUSD",
		"btc/usd":  "BTCUSD",
		"XXBTZUSD": "BTCUSD",
		"XBTUSD":   "BTCUSD",
		"ETHUSDT":  "ETHUSD",
		"sol-usd":  "SOLUSD",
		"Cardano":  "ADAUSD",
		"PEPEUSD":  "PEPEUSD",
	}
	for in, want := range cases {
		got, err := NormalizeSymbol(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := NormalizeSymbol("")
	assert.Error(t, err)
	_, err = NormalizeSymbol("NOTACOIN")
	assert.Error(t, err)
}

func TestNormalizeSymbolsDedup(t *testing.T) {
	out, err := NormalizeSymbols([]string{"BTC", "XXBTZUSD", "ETH/USD"})
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSD", "ETHUSD"}, out)
}

func TestKrakenNames(t *testing.T) {
	assert.Equal(t, "XBTUSD", KrakenPair("BTCUSD"))
	assert.Equal(t, "XDGUSD", KrakenPair("DOGEUSD"))
	assert.Equal(t, "ETHUSD", KrakenPair("ETHUSD"))
	assert.Equal(t, "BTC/USD", DisplaySymbol("BTCUSD"))
}
