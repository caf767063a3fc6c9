package handler

import (
	"sync"

	"airshow-pos/service"
)

// sessionCart guards one session's cart; service.Cart is not safe for concurrent use.
type sessionCart struct {
	mu   sync.Mutex
	cart *service.Cart
}

// CartRegistry holds the open carts, one per booth session.
type CartRegistry struct {
	mu    sync.Mutex
	carts map[string]*sessionCart
}

func NewCartRegistry() *CartRegistry {
	return &CartRegistry{carts: make(map[string]*sessionCart)}
}

// With runs fn with the session's cart locked, creating the cart on first use.
func (r *CartRegistry) With(session string, fn func(*service.Cart) error) error {
	r.mu.Lock()
	sc, ok := r.carts[session]
	if !ok {
		sc = &sessionCart{cart: service.NewCart()}
		r.carts[session] = sc
	}
	r.mu.Unlock()

	sc.mu.Lock()
	defer sc.mu.Unlock()
	return fn(sc.cart)
}

// Drop forgets the session's cart.
func (r *CartRegistry) Drop(session string) {
	r.mu.Lock()
	delete(r.carts, session)
	r.mu.Unlock()
}
