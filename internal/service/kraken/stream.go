package kraken

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"TradeDesk/internal/domain/models"
	drepo "TradeDesk/internal/domain/repository"
	applogger "TradeDesk/pkg/logger"
	"TradeDesk/pkg/util"

	"github.com/gorilla/websocket"
)

// Stream implements QuoteSource on the Kraken v2 websocket ticker channel.
type Stream struct {
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	lgr            *applogger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

var _ drepo.QuoteSource = (*Stream)(nil)

// NewStream creates a ticker stream for canonical symbols.
func NewStream(websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration, lgr *applogger.Logger) *Stream {
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if lgr == nil {
		lgr = applogger.Nop()
	}
	return &Stream{
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		lgr:            lgr,
	}
}

// Connect establishes the WebSocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("kraken connect: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	s.lgr.Info("kraken stream connected", applogger.String("url", s.websocketURL))
	return nil
}

type wsRequest struct {
	Method string          `json:"method"`
	Params *wsSubscription `json:"params,omitempty"`
}

type wsSubscription struct {
	Channel string   `json:"channel"`
	Symbol  []string `json:"symbol"`
}

// Subscribe subscribes to the ticker channel for every configured symbol.
func (s *Stream) Subscribe(ctx context.Context) error {
	pairs := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		pairs = append(pairs, util.DisplaySymbol(sym))
	}
	if err := s.write(wsRequest{Method: "subscribe", Params: &wsSubscription{Channel: "ticker", Symbol: pairs}}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.lgr.Info("kraken stream subscribed", applogger.Strings("pairs", pairs))
	return nil
}

func (s *Stream) write(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || !s.connected {
		return fmt.Errorf("kraken not connected")
	}
	return s.conn.WriteJSON(v)
}

type wsTicker struct {
	Symbol string  `json:"symbol"`
	Last   float64 `json:"last"`
	Volume float64 `json:"volume"`
}

type wsMessage struct {
	Channel string     `json:"channel"`
	Type    string     `json:"type"`
	Data    []wsTicker `json:"data"`
}

// decodeTicker turns one frame into quotes. Non-ticker frames yield nothing.
func decodeTicker(b []byte, now time.Time) []*models.Quote {
	var m wsMessage
	if err := json.Unmarshal(b, &m); err != nil || m.Channel != "ticker" {
		return nil
	}
	out := make([]*models.Quote, 0, len(m.Data))
	for _, d := range m.Data {
		sym, err := util.NormalizeSymbol(d.Symbol)
		if err != nil || d.Last <= 0 {
			continue
		}
		out = append(out, &models.Quote{Symbol: sym, Price: d.Last, Volume: d.Volume, Timestamp: now})
	}
	return out
}

// Read streams quotes and errors until ctx is done or the connection fails.
func (s *Stream) Read(ctx context.Context) (<-chan *models.Quote, <-chan error) {
	quotes := make(chan *models.Quote, 256)
	errs := make(chan error, 1)
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				_ = s.write(wsRequest{Method: "ping"})
			}
		}
	}()

	go func() {
		defer close(done)
		defer close(quotes)
		defer close(errs)
		for {
			if ctx.Err() != nil {
				return
			}
			s.mu.Lock()
			conn := s.conn
			s.mu.Unlock()
			if conn == nil {
				errs <- fmt.Errorf("kraken conn nil")
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				errs <- fmt.Errorf("kraken read: %w", err)
				return
			}
			for _, q := range decodeTicker(b, time.Now().UTC()) {
				select {
				case quotes <- q:
				default:
					// drop on backpressure; the next tick supersedes it
				}
			}
		}
	}()

	return quotes, errs
}

// Reconnect closes and reconnects after the configured delay.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	select {
	case <-time.After(s.reconnectDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close closes the WS connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}
