package usecase

import (
	"context"
	"fmt"
	"testing"

	"TradeDesk/internal/domain/models"
	"TradeDesk/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadlineBufferKeepsNewest(t *testing.T) {
	buf := NewHeadlineBuffer(0)
	for i := 0; i < MaxHeadlinesPerSymbol+5; i++ {
		buf.Add(models.Headline{Symbol: "BTCUSD", Text: fmt.Sprintf("h%d", i)})
	}
	buf.Add(models.Headline{Symbol: "ETHUSD", Text: "eth"})
	assert.Equal(t, MaxHeadlinesPerSymbol, buf.Pending("BTCUSD"))

	got := buf.Drain("BTCUSD")
	require.Len(t, got, MaxHeadlinesPerSymbol)
	assert.Equal(t, "h5", got[0])
	assert.Equal(t, fmt.Sprintf("h%d", MaxHeadlinesPerSymbol+4), got[len(got)-1])
	assert.Empty(t, buf.Drain("BTCUSD"))
	assert.Equal(t, 1, buf.Pending("ETHUSD"))
}

func TestHeadlineHandler(t *testing.T) {
	buf := NewHeadlineBuffer(0)
	h := NewHeadlineHandler("news.headlines", buf, metrics.Nop{}, nil)
	assert.Equal(t, "news.headlines", h.Topic())
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, []byte(`{"symbol":"btc/usd","headline":"  Bitcoin rallies  ","published_at":"2024-01-02T03:04:05Z"}`)))
	assert.Equal(t, []string{"Bitcoin rallies"}, buf.Drain("BTCUSD"))

	assert.Error(t, h.Handle(ctx, []byte(`{not json`)))
	assert.Error(t, h.Handle(ctx, []byte(`{"symbol":"","headline":"x"}`)))
	assert.Error(t, h.Handle(ctx, []byte(`{"symbol":"ETHUSD","headline":"   "}`)))
	assert.Equal(t, 0, buf.Pending("ETHUSD"))
}
