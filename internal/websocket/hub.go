package websocket

import (
	"bytes"
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"tradecore/internal/models"
	"tradecore/pkg/utils"
)

var json = jsoniter.ConfigFastest

// Пул JSON буферов: убирает аллокации на каждом Broadcast
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет всеми активными WebSocket соединениями
//
// Центральный менеджер для broadcast сообщений всем подключенным клиентам.
// Реализует приёмники обновлений торгового ядра и планировщика ботов:
// каждая мутация счёта, позиции или бота уходит клиентам без polling.
//
// Использование:
// 1. Создать hub: hub := NewHub(log)
// 2. Запустить в горутине: go hub.Run()
// 3. Отправлять сообщения: hub.BroadcastAccountUpdate(acc) и т.д.
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Broadcast канал для отправки сообщений всем клиентам
	broadcast chan []byte

	// Регистрация нового клиента
	register chan *Client

	// Отмена регистрации клиента
	unregister chan *Client

	// Сигнал остановки Run
	stop chan struct{}

	// Счётчик сообщений, сброшенных при переполнении broadcast канала
	dropped int64

	mu  sync.RWMutex
	log *utils.Logger
}

// NewHub создает новый Hub
func NewHub(log *utils.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		log:        log.WithComponent("websocket"),
	}
}

// Run запускает главный цикл Hub
//
// Должен запускаться в отдельной горутине: go hub.Run()
// При рассылке список клиентов копируется под коротким RLock,
// отправка идёт без блокировки, медленные клиенты отключаются.
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client connected", utils.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client disconnected", utils.Int("total", total))

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Клиент не успевает вычитывать - отключаем
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				total := len(h.clients)
				h.mu.Unlock()
				h.log.Warn("removed slow clients",
					utils.Int("removed", len(toRemove)),
					utils.Int("total", total))
			}
		}
	}
}

// Stop останавливает цикл Run и закрывает все соединения
func (h *Hub) Stop() {
	close(h.stop)
}

// Broadcast сериализует сообщение и отправляет всем клиентам
//
// При переполнении broadcast канала сообщение сбрасывается:
// рассылка не должна тормозить торговое ядро.
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		h.log.Error("broadcast marshal failed", utils.Err(err))
		jsonBufferPool.Put(buf)
		return
	}

	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	h.BroadcastRaw(msgCopy)
}

// BroadcastRaw отправляет уже сериализованное сообщение
func (h *Hub) BroadcastRaw(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		atomic.AddInt64(&h.dropped, 1)
	}
}

// BroadcastAccountUpdate отправляет снимок счёта после мутации баланса
func (h *Hub) BroadcastAccountUpdate(acc *models.Account) {
	h.Broadcast(NewAccountUpdateMessage(acc))
}

// BroadcastPositionUpdate отправляет состояние позиции
func (h *Hub) BroadcastPositionUpdate(userID string, pos *models.Position) {
	h.Broadcast(NewPositionUpdateMessage(userID, pos))
}

// BroadcastBotUpdate отправляет runtime состояние бота
func (h *Hub) BroadcastBotUpdate(userID string, bot *models.Bot) {
	h.Broadcast(NewBotUpdateMessage(userID, bot))
}

// BroadcastNotification отправляет новое уведомление
func (h *Hub) BroadcastNotification(n *models.Notification) {
	h.Broadcast(NewNotificationMessage(n))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages возвращает число сброшенных при переполнении сообщений
func (h *Hub) DroppedMessages() int64 {
	return atomic.LoadInt64(&h.dropped)
}
