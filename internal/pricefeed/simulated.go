package pricefeed

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"
)

// SimulatedFeed - детерминированный симулированный источник котировок
//
// Каждый символ получает собственный random walk, посеянный FNV-хэшем
// имени символа: два SimulatedFeed с одинаковым набором символов выдают
// одинаковые последовательности цен. Используется как основной источник
// в режиме simulated и как fallback при недоступности внешнего фида.
type SimulatedFeed struct {
	mu      sync.Mutex
	symbols map[string]*walkState
}

// walkState - состояние random walk одного символа
type walkState struct {
	rng   *rand.Rand
	price float64
}

// Шаг walk ограничен ±0.5% за тик
const maxStepPct = 0.005

// NewSimulatedFeed создаёт фид для набора символов
func NewSimulatedFeed(symbols []string) *SimulatedFeed {
	f := &SimulatedFeed{
		symbols: make(map[string]*walkState, len(symbols)),
	}
	for _, symbol := range symbols {
		f.symbols[symbol] = newWalkState(symbol)
	}
	return f
}

// newWalkState инициализирует walk с детерминированным seed
func newWalkState(symbol string) *walkState {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	seed := int64(h.Sum64())

	rng := rand.New(rand.NewSource(seed))

	// Стартовая цена производна от seed: 100..10100
	price := 100 + rng.Float64()*10000

	return &walkState{rng: rng, price: price}
}

// FetchPrice продвигает walk символа на один шаг и возвращает цену
func (f *SimulatedFeed) FetchPrice(_ context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ws, ok := f.symbols[symbol]
	if !ok {
		// Неизвестный символ добавляется лениво - bot может торговать
		// пару, которой нет в стартовом списке
		ws = newWalkState(symbol)
		f.symbols[symbol] = ws
	}

	return ws.step(), nil
}

// FetchQuotes продвигает walk каждого символа и возвращает все цены
func (f *SimulatedFeed) FetchQuotes(_ context.Context, symbols []string) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		ws, ok := f.symbols[symbol]
		if !ok {
			ws = newWalkState(symbol)
			f.symbols[symbol] = ws
		}
		out[symbol] = ws.step()
	}
	return out, nil
}

// step - один шаг walk: цена меняется на ±maxStepPct
// ВАЖНО: вызывается под f.mu
func (ws *walkState) step() float64 {
	stepPct := (ws.rng.Float64()*2 - 1) * maxStepPct
	ws.price *= 1 + stepPct
	if ws.price < 0.00000001 {
		ws.price = 0.00000001
	}
	return ws.price
}

// Run генерирует тики для всех символов с заданной частотой
// и отдаёт их обработчику; блокируется до отмены контекста
func (f *SimulatedFeed) Run(ctx context.Context, interval time.Duration, handler TickHandler) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.mu.Lock()
			ticks := make(map[string]float64, len(f.symbols))
			for symbol, ws := range f.symbols {
				ticks[symbol] = ws.step()
			}
			f.mu.Unlock()

			for symbol, price := range ticks {
				handler(symbol, price)
			}
		}
	}
}
