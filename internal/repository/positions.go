package repository

import (
	"sort"

	"TradeDesk/internal/domain/models"
	"TradeDesk/internal/services/ledger"
)

// replayPositions rebuilds open positions from a chronological trade log
// with the same averaging and dust rules the ledger applies.
func replayPositions(trades []models.Trade) []models.Position {
	open := make(map[string]*models.Position)
	for _, t := range trades {
		p := open[t.Symbol]
		switch t.Action {
		case models.ActionBuy:
			if p == nil {
				open[t.Symbol] = &models.Position{Symbol: t.Symbol, Amount: t.Amount, AvgCost: t.Price, LastPrice: t.Price}
				continue
			}
			n := p.Amount + t.Amount
			p.AvgCost = (p.Amount*p.AvgCost + t.Amount*t.Price) / n
			p.Amount = n
			p.LastPrice = t.Price
		case models.ActionSell:
			if p == nil {
				continue
			}
			p.Amount -= t.Amount
			p.LastPrice = t.Price
			if p.Amount < ledger.DustThreshold {
				delete(open, t.Symbol)
			}
		}
	}
	out := make([]models.Position, 0, len(open))
	for _, p := range open {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// cashFlow sums net trade values: BUY spends NetValue, SELL receives it.
func cashFlow(trades []models.Trade) float64 {
	var flow float64
	for _, t := range trades {
		switch t.Action {
		case models.ActionBuy:
			flow -= t.NetValue
		case models.ActionSell:
			flow += t.NetValue
		}
	}
	return flow
}
