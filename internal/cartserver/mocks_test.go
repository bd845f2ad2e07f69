package cartserver

import (
	"context"
	"sync"
)

type mockCartRepo struct {
	mu    sync.Mutex
	carts map[string]Cart
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: map[string]Cart{}}
}

func (m *mockCartRepo) Create(_ context.Context, cart *Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[cart.ID] = clone(*cart)
	return nil
}

func (m *mockCartRepo) FindByID(_ context.Context, id string) (*Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[id]
	if !ok {
		return nil, ErrCartNotFound
	}
	c := clone(cart)
	return &c, nil
}

func (m *mockCartRepo) Update(_ context.Context, cart *Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.carts[cart.ID]; !ok {
		return ErrCartNotFound
	}
	m.carts[cart.ID] = clone(*cart)
	return nil
}

func clone(c Cart) Cart {
	c.Items = append(c.Items[:0:0], c.Items...)
	return c
}

type mockProductRepo struct {
	mu       sync.Mutex
	products map[string]Product
}

func newMockProductRepo(products ...Product) *mockProductRepo {
	m := &mockProductRepo{products: map[string]Product{}}
	for _, p := range products {
		m.products[p.SKU] = p
	}
	return m
}

func (m *mockProductRepo) FindBySKU(_ context.Context, sku string) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[sku]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) Upsert(_ context.Context, product *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.SKU] = *product
	return nil
}
