package pricefeed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"tradecore/pkg/utils"
)

var json = jsoniter.ConfigFastest

// WSFeedConfig конфигурация WebSocket фида
type WSFeedConfig struct {
	// URL внешнего источника котировок
	URL string
	// Отслеживаемые символы (подписка после подключения)
	Symbols []string
	// Начальная задержка перед переподключением
	InitialDelay time.Duration
	// Максимальная задержка (после exponential backoff)
	MaxDelay time.Duration
	// Максимальное количество попыток (0 = бесконечно)
	MaxRetries int
	// Таймаут подключения
	ConnectTimeout time.Duration
	// Интервал ping для проверки соединения
	PingInterval time.Duration
	// Таймаут ожидания записи ping
	WriteTimeout time.Duration
}

// DefaultWSFeedConfig возвращает конфигурацию по умолчанию
// Задержки переподключения: 2s, 4s, 8s, 16s
func DefaultWSFeedConfig(url string, symbols []string) WSFeedConfig {
	return WSFeedConfig{
		URL:            url,
		Symbols:        symbols,
		InitialDelay:   2 * time.Second,
		MaxDelay:       16 * time.Second,
		MaxRetries:     0,
		ConnectTimeout: 10 * time.Second,
		PingInterval:   30 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// Состояния соединения
type wsState int32

const (
	wsDisconnected wsState = iota
	wsConnecting
	wsConnected
	wsReconnecting
	wsClosed
)

// tickerMessage - формат сообщения внешнего источника
type tickerMessage struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"ts"`
}

// subscribeMessage - запрос подписки на символы
type subscribeMessage struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

// WSFeed - WebSocket источник котировок с автопереподключением
//
// Входящие тики отдаются обработчику (движку) и кэшируются;
// FetchPrice обслуживается из кэша последних цен. При разрыве
// соединения переподключается с exponential backoff и заново
// подписывается на символы.
type WSFeed struct {
	cfg WSFeedConfig
	log *utils.Logger

	conn   *websocket.Conn
	connMu sync.RWMutex

	state      int32 // atomic wsState
	retryCount int32 // atomic

	closeChan chan struct{}
	handler   TickHandler

	// Кэш последних цен для FetchPrice
	lastPrices sync.Map // map[string]float64
}

// NewWSFeed создаёт WebSocket фид
func NewWSFeed(cfg WSFeedConfig, handler TickHandler, log *utils.Logger) *WSFeed {
	return &WSFeed{
		cfg:       cfg,
		log:       log.WithComponent("wsfeed"),
		closeChan: make(chan struct{}),
		handler:   handler,
	}
}

// FetchPrice возвращает последнюю полученную цену символа
func (f *WSFeed) FetchPrice(_ context.Context, symbol string) (float64, error) {
	if v, ok := f.lastPrices.Load(symbol); ok {
		return v.(float64), nil
	}
	return 0, ErrFeedUnavailable
}

// FetchQuotes возвращает последние цены набора символов
//
// Символы без кэшированной цены опускаются; пустой результат
// означает недоступность фида
func (f *WSFeed) FetchQuotes(_ context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		if v, ok := f.lastPrices.Load(symbol); ok {
			out[symbol] = v.(float64)
		}
	}
	if len(out) == 0 {
		return nil, ErrFeedUnavailable
	}
	return out, nil
}

// Connect устанавливает соединение и запускает чтение
func (f *WSFeed) Connect() error {
	select {
	case <-f.closeChan:
		return fmt.Errorf("feed is closed")
	default:
	}

	atomic.StoreInt32(&f.state, int32(wsConnecting))

	if err := f.dial(); err != nil {
		atomic.StoreInt32(&f.state, int32(wsDisconnected))
		return err
	}

	atomic.StoreInt32(&f.state, int32(wsConnected))
	atomic.StoreInt32(&f.retryCount, 0)

	go f.readPump()
	go f.pingPump()

	f.log.Info("price feed connected", utils.String("url", f.cfg.URL))
	return nil
}

// dial подключается и подписывается на символы
func (f *WSFeed) dial() error {
	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.ConnectTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: f.cfg.ConnectTimeout}

	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial error: %w", err)
	}

	if len(f.cfg.Symbols) > 0 {
		sub := subscribeMessage{Op: "subscribe", Symbols: f.cfg.Symbols}
		if err := conn.WriteJSON(sub); err != nil {
			conn.Close()
			return fmt.Errorf("subscribe error: %w", err)
		}
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	return nil
}

// readPump читает и разбирает входящие тики
func (f *WSFeed) readPump() {
	for {
		select {
		case <-f.closeChan:
			return
		default:
		}

		f.connMu.RLock()
		conn := f.conn
		f.connMu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			f.handleDisconnect(err)
			return
		}

		var tick tickerMessage
		if err := json.Unmarshal(message, &tick); err != nil {
			f.log.Warn("malformed ticker message", utils.Err(err))
			continue
		}
		if tick.Symbol == "" || tick.Price <= 0 {
			continue
		}

		f.lastPrices.Store(tick.Symbol, tick.Price)

		if f.handler != nil {
			f.handler(tick.Symbol, tick.Price)
		}
	}
}

// pingPump поддерживает соединение живым
func (f *WSFeed) pingPump() {
	ticker := time.NewTicker(f.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.closeChan:
			return
		case <-ticker.C:
			f.connMu.RLock()
			conn := f.conn
			f.connMu.RUnlock()

			if conn == nil || wsState(atomic.LoadInt32(&f.state)) != wsConnected {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(f.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				f.handleDisconnect(err)
				return
			}
		}
	}
}

// handleDisconnect закрывает соединение и запускает переподключение
func (f *WSFeed) handleDisconnect(err error) {
	select {
	case <-f.closeChan:
		return
	default:
	}

	state := wsState(atomic.LoadInt32(&f.state))
	if state == wsReconnecting || state == wsClosed {
		return
	}
	atomic.StoreInt32(&f.state, int32(wsReconnecting))

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connMu.Unlock()

	if err != nil {
		f.log.Warn("price feed disconnected", utils.Err(err))
	}

	go f.reconnectLoop()
}

// reconnectLoop переподключается с exponential backoff
func (f *WSFeed) reconnectLoop() {
	delay := f.cfg.InitialDelay

	for {
		select {
		case <-f.closeChan:
			return
		default:
		}

		retryCount := atomic.AddInt32(&f.retryCount, 1)

		if f.cfg.MaxRetries > 0 && int(retryCount) > f.cfg.MaxRetries {
			f.log.Error("price feed reconnect attempts exhausted",
				utils.Int("attempts", f.cfg.MaxRetries))
			atomic.StoreInt32(&f.state, int32(wsDisconnected))
			return
		}

		f.log.Info("reconnecting price feed",
			utils.String("delay", delay.String()),
			utils.Int("attempt", int(retryCount)))

		select {
		case <-f.closeChan:
			return
		case <-time.After(delay):
		}

		if err := f.dial(); err != nil {
			f.log.Warn("price feed reconnect failed", utils.Err(err))

			delay *= 2
			if delay > f.cfg.MaxDelay {
				delay = f.cfg.MaxDelay
			}
			continue
		}

		atomic.StoreInt32(&f.state, int32(wsConnected))
		atomic.StoreInt32(&f.retryCount, 0)

		go f.readPump()
		go f.pingPump()

		f.log.Info("price feed reconnected")
		return
	}
}

// IsConnected проверяет состояние соединения
func (f *WSFeed) IsConnected() bool {
	return wsState(atomic.LoadInt32(&f.state)) == wsConnected
}

// Close закрывает фид и останавливает переподключение
func (f *WSFeed) Close() error {
	select {
	case <-f.closeChan:
		return nil
	default:
		close(f.closeChan)
	}

	atomic.StoreInt32(&f.state, int32(wsClosed))

	f.connMu.Lock()
	defer f.connMu.Unlock()

	if f.conn != nil {
		err := f.conn.Close()
		f.conn = nil
		return err
	}
	return nil
}
