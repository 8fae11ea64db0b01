package service

import (
	"sync"

	"github.com/pdcisneros1/edesa-b2b-sub000/internal/domain"
)

// CartNotifier fans out cart changes to in-process subscribers, so other
// sessions of the same customer (SSE streams, websocket handlers) can refresh
// without polling. Publish never blocks: a subscriber that is not draining
// its channel misses updates instead of stalling the writer.
type CartNotifier struct {
	mu   sync.RWMutex
	subs map[string]map[chan *domain.Cart]struct{}
}

func NewCartNotifier() *CartNotifier {
	return &CartNotifier{
		subs: make(map[string]map[chan *domain.Cart]struct{}),
	}
}

func (n *CartNotifier) Subscribe(customerID string) chan *domain.Cart {
	ch := make(chan *domain.Cart, 1)

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subs[customerID] == nil {
		n.subs[customerID] = make(map[chan *domain.Cart]struct{})
	}
	n.subs[customerID][ch] = struct{}{}

	return ch
}

func (n *CartNotifier) Unsubscribe(customerID string, ch chan *domain.Cart) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if set, ok := n.subs[customerID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(n.subs, customerID)
		}
	}

	close(ch)
}

func (n *CartNotifier) Publish(customerID string, cart *domain.Cart) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.subs[customerID] {
		select {
		case ch <- cart:
		default:
		}
	}
}
