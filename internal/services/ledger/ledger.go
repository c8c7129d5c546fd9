package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"TradeDesk/internal/domain/models"
	"TradeDesk/pkg/config"
)

// DustThreshold is the amount below which a position is dropped.
const DustThreshold = 1e-4

// Ledger holds cash, positions and the append-only trade and valuation logs.
// Mutations are expected from a single owner; the lock only makes concurrent
// readers safe.
type Ledger struct {
	mu         sync.RWMutex
	feeRate    float64
	cash       float64
	positions  map[string]*models.Position
	trades     []models.Trade
	valuations []models.ValuationSnapshot
}

func New(initialCash, feeRate float64) (*Ledger, error) {
	if initialCash < 0 {
		return nil, config.NewConfigError("initial_capital", "must be >= 0, got %v", initialCash)
	}
	if feeRate < 0 || feeRate >= 1 {
		return nil, config.NewConfigError("fee_rate", "must be in [0,1), got %v", feeRate)
	}
	return &Ledger{
		feeRate:   feeRate,
		cash:      initialCash,
		positions: make(map[string]*models.Position),
	}, nil
}

func reject(action models.Action, symbol, format string, args ...any) models.ExecutionResult {
	return models.ExecutionResult{Success: false, Action: action, Symbol: symbol, Reason: fmt.Sprintf(format, args...)}
}

// Buy spends price*amount plus fee. It is rejected without state change when cash is short.
func (l *Ledger) Buy(symbol string, price, amount float64, ts time.Time) models.ExecutionResult {
	if price <= 0 || amount <= 0 {
		return reject(models.ActionBuy, symbol, "invalid order: price %.8f amount %.8f", price, amount)
	}
	cost := price * amount
	fee := cost * l.feeRate
	total := cost + fee

	l.mu.Lock()
	defer l.mu.Unlock()
	if total > l.cash {
		return reject(models.ActionBuy, symbol, "insufficient cash: need %.2f, have %.2f", total, l.cash)
	}
	l.cash -= total

	if p, ok := l.positions[symbol]; ok {
		newAmount := p.Amount + amount
		p.AvgCost = (p.Amount*p.AvgCost + amount*price) / newAmount
		p.Amount = newAmount
		p.LastPrice = price
	} else {
		l.positions[symbol] = &models.Position{Symbol: symbol, Amount: amount, AvgCost: price, LastPrice: price}
	}

	t := models.Trade{
		Timestamp:  ts,
		Action:     models.ActionBuy,
		Symbol:     symbol,
		Price:      price,
		Amount:     amount,
		GrossValue: cost,
		Fee:        fee,
		NetValue:   total,
	}
	l.trades = append(l.trades, t)
	return models.ExecutionResult{
		Success: true,
		Action:  models.ActionBuy,
		Symbol:  symbol,
		Reason:  fmt.Sprintf("bought %.8f @ %.2f (fee %.2f)", amount, price, fee),
		Trade:   &t,
	}
}

// Sell realises price*amount minus fee. Short selling is never allowed.
func (l *Ledger) Sell(symbol string, price, amount float64, ts time.Time) models.ExecutionResult {
	if price <= 0 || amount <= 0 {
		return reject(models.ActionSell, symbol, "invalid order: price %.8f amount %.8f", price, amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.positions[symbol]
	if !ok {
		return reject(models.ActionSell, symbol, "no position in %s", symbol)
	}
	if p.Amount < amount {
		return reject(models.ActionSell, symbol, "insufficient position: have %.8f, want %.8f", p.Amount, amount)
	}

	proceeds := price * amount
	fee := proceeds * l.feeRate
	net := proceeds - fee
	l.cash += net
	p.Amount -= amount
	p.LastPrice = price
	if p.Amount < DustThreshold {
		delete(l.positions, symbol)
	}

	t := models.Trade{
		Timestamp:  ts,
		Action:     models.ActionSell,
		Symbol:     symbol,
		Price:      price,
		Amount:     amount,
		GrossValue: proceeds,
		Fee:        fee,
		NetValue:   net,
	}
	l.trades = append(l.trades, t)
	return models.ExecutionResult{
		Success: true,
		Action:  models.ActionSell,
		Symbol:  symbol,
		Reason:  fmt.Sprintf("sold %.8f @ %.2f (fee %.2f)", amount, price, fee),
		Trade:   &t,
	}
}

// Hold never mutates the ledger.
func (l *Ledger) Hold(symbol, reason string) models.ExecutionResult {
	return models.ExecutionResult{Success: true, Action: models.ActionHold, Symbol: symbol, Reason: "no trade executed: " + reason}
}

// Restore seeds positions and cash, e.g. from persisted open positions at startup.
func (l *Ledger) Restore(cash float64, positions []models.Position) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cash = cash
	l.positions = make(map[string]*models.Position, len(positions))
	for _, p := range positions {
		if p.Amount < DustThreshold {
			continue
		}
		cp := p
		if cp.LastPrice == 0 {
			cp.LastPrice = cp.AvgCost
		}
		l.positions[p.Symbol] = &cp
	}
}

// MarkPrices updates last prices of held positions.
func (l *Ledger) MarkPrices(prices map[string]float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for sym, px := range prices {
		if p, ok := l.positions[sym]; ok && px > 0 {
			p.LastPrice = px
		}
	}
}

// Snapshot marks positions to the given prices and appends a valuation.
// Symbols without a price keep their last seen price.
func (l *Ledger) Snapshot(ts time.Time, prices map[string]float64) models.ValuationSnapshot {
	l.MarkPrices(prices)
	l.mu.Lock()
	defer l.mu.Unlock()
	holdings := l.holdingsLocked()
	s := models.ValuationSnapshot{Timestamp: ts, Cash: l.cash, HoldingsValue: holdings, TotalValue: l.cash + holdings}
	l.valuations = append(l.valuations, s)
	return s
}

func (l *Ledger) holdingsLocked() float64 {
	v := 0.0
	for _, p := range l.positions {
		v += p.MarketValue()
	}
	return v
}

// TotalValue is cash plus positions marked at their last price.
func (l *Ledger) TotalValue() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash + l.holdingsLocked()
}

func (l *Ledger) Cash() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

func (l *Ledger) FeeRate() float64 { return l.feeRate }

// Position returns a copy of the open position for symbol.
func (l *Ledger) Position(symbol string) (models.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.positions[symbol]
	if !ok {
		return models.Position{}, false
	}
	return *p, true
}

// Positions returns copies sorted by symbol.
func (l *Ledger) Positions() []models.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (l *Ledger) Trades() []models.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Trade(nil), l.trades...)
}

func (l *Ledger) TradeCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.trades)
}

func (l *Ledger) Valuations() []models.ValuationSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.ValuationSnapshot(nil), l.valuations...)
}

// View returns a read-only snapshot for display.
func (l *Ledger) View() models.PortfolioView {
	positions := l.Positions()
	l.mu.RLock()
	defer l.mu.RUnlock()
	holdings := l.holdingsLocked()
	return models.PortfolioView{
		Cash:          l.cash,
		Positions:     positions,
		HoldingsValue: holdings,
		TotalValue:    l.cash + holdings,
		TradeCount:    len(l.trades),
	}
}
