package telegram

import (
	"context"
	"sync"

	"github.com/go-telegram/bot/models"
)

type ctxUpdate struct {
	ctx context.Context
	upd *models.Update
}

// Dispatcher routes updates to worker goroutines keeping chat order.
type Dispatcher struct {
	api     API
	handler HandlerFunc
	workers int
	chans   []chan ctxUpdate

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates dispatcher with given worker count.
func NewDispatcher(api API, workers int, h HandlerFunc) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	d := &Dispatcher{api: api, handler: h, workers: workers, chans: make([]chan ctxUpdate, workers)}
	for i := 0; i < workers; i++ {
		d.chans[i] = make(chan ctxUpdate, 100)
		d.wg.Add(1)
		go d.worker(d.chans[i])
	}
	return d
}

// Dispatch sends update to appropriate worker based on chat ID. It gives up
// when ctx is done or the dispatcher is closed.
func (d *Dispatcher) Dispatch(ctx context.Context, upd *models.Update) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	idx := 0
	if chatID := ChatID(upd); chatID != 0 {
		idx = int(abs(chatID) % int64(d.workers))
	}
	select {
	case d.chans[idx] <- ctxUpdate{ctx: ctx, upd: upd}:
	case <-ctx.Done():
	}
}

// Close stops accepting updates and waits for queued ones to be handled.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.chans {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker(in <-chan ctxUpdate) {
	defer d.wg.Done()
	for item := range in {
		d.handler(item.ctx, d.api, item.upd)
	}
}

func abs(i int64) int64 {
	if i < 0 {
		return -i
	}
	return i
}
