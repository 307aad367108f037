package storage

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/rl1809/checkout/internal/core/domain"
	"github.com/rl1809/checkout/internal/port"
)

// MemoryAdapter keeps every collection in process memory. It backs local
// runs without MySQL, Mongo or Redis and the transport tests.
type MemoryAdapter struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	data  memoryData
	locks map[string]memoryLock
	now   func() time.Time
}

type memoryLock struct {
	token   string
	expires time.Time
}

type memoryData struct {
	orders   map[string]domain.Order
	carts    map[string]domain.Cart
	products map[string]domain.Product
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		data: memoryData{
			orders:   make(map[string]domain.Order),
			carts:    make(map[string]domain.Cart),
			products: make(map[string]domain.Product),
		},
		locks: make(map[string]memoryLock),
		now:   time.Now,
	}
}

func (m *MemoryAdapter) FindOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.findOrder(id), nil
}

func (m *MemoryAdapter) FindOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.findOrdersByUser(userID), nil
}

func (m *MemoryAdapter) SaveOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.saveOrder(order)
	return nil
}

func (m *MemoryAdapter) FindCart(ctx context.Context, id string) (*domain.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.findCart(id), nil
}

func (m *MemoryAdapter) SaveCart(ctx context.Context, cart domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.saveCart(cart)
	return nil
}

func (m *MemoryAdapter) DeleteCart(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data.carts, id)
	return nil
}

func (m *MemoryAdapter) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.findProduct(id), nil
}

func (m *MemoryAdapter) SaveProduct(ctx context.Context, product domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.saveProduct(product)
}

// WithTx runs fn against a journal layered over the live data. Only the
// journal's writes are applied at commit, after checking that no product
// it touched was changed in the meantime. Transactions are serialized.
func (m *MemoryAdapter) WithTx(ctx context.Context, fn func(ctx context.Context, tx port.Repositories) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := newMemoryTx(m)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return tx.commit()
}

func (m *MemoryAdapter) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if l, ok := m.locks[key]; ok && now.Before(l.expires) {
		return false, nil
	}
	m.locks[key] = memoryLock{token: token, expires: now.Add(ttl)}
	return true, nil
}

func (m *MemoryAdapter) ReleaseLock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.locks[key]; ok && l.token == token {
		delete(m.locks, key)
	}
	return nil
}

// memoryTx reads through to the adapter and keeps its own writes until
// commit.
type memoryTx struct {
	m *MemoryAdapter

	orders      map[string]domain.Order
	carts       map[string]domain.Cart
	cartDeletes map[string]struct{}
	products    map[string]domain.Product
	// live version each written product must still have at commit; 0 means absent
	productBase map[string]int
}

func newMemoryTx(m *MemoryAdapter) *memoryTx {
	return &memoryTx{
		m:           m,
		orders:      make(map[string]domain.Order),
		carts:       make(map[string]domain.Cart),
		cartDeletes: make(map[string]struct{}),
		products:    make(map[string]domain.Product),
		productBase: make(map[string]int),
	}
}

func (t *memoryTx) FindOrder(ctx context.Context, id string) (*domain.Order, error) {
	if o, ok := t.orders[id]; ok {
		o.CartItems = slices.Clone(o.CartItems)
		return &o, nil
	}
	return t.m.FindOrder(ctx, id)
}

func (t *memoryTx) FindOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	t.m.mu.RLock()
	merged := maps.Clone(t.m.data.orders)
	t.m.mu.RUnlock()
	maps.Copy(merged, t.orders)

	return memoryData{orders: merged}.findOrdersByUser(userID), nil
}

func (t *memoryTx) SaveOrder(ctx context.Context, order domain.Order) error {
	order.CartItems = slices.Clone(order.CartItems)
	t.orders[order.ID] = order
	return nil
}

func (t *memoryTx) FindCart(ctx context.Context, id string) (*domain.Cart, error) {
	if _, deleted := t.cartDeletes[id]; deleted {
		return nil, nil
	}
	if c, ok := t.carts[id]; ok {
		c.Items = slices.Clone(c.Items)
		return &c, nil
	}
	return t.m.FindCart(ctx, id)
}

func (t *memoryTx) SaveCart(ctx context.Context, cart domain.Cart) error {
	cart.Items = slices.Clone(cart.Items)
	delete(t.cartDeletes, cart.ID)
	t.carts[cart.ID] = cart
	return nil
}

func (t *memoryTx) DeleteCart(ctx context.Context, id string) error {
	delete(t.carts, id)
	t.cartDeletes[id] = struct{}{}
	return nil
}

func (t *memoryTx) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	if p, ok := t.products[id]; ok {
		return &p, nil
	}
	return t.m.FindProduct(ctx, id)
}

func (t *memoryTx) SaveProduct(ctx context.Context, product domain.Product) error {
	cur, err := t.FindProduct(ctx, product.ID)
	if err != nil {
		return err
	}
	if cur != nil && cur.Version != product.Version {
		return ErrOptimisticLock
	}

	if _, seen := t.productBase[product.ID]; !seen {
		live, _ := t.m.FindProduct(ctx, product.ID)
		base := 0
		if live != nil {
			base = live.Version
		}
		t.productBase[product.ID] = base
	}

	product.Version++
	t.products[product.ID] = product
	return nil
}

// commit applies the journal to the live data. Caller holds m.mu.
func (t *memoryTx) commit() error {
	data := t.m.data
	for id, base := range t.productBase {
		cur, ok := data.products[id]
		if (ok && cur.Version != base) || (!ok && base != 0) {
			return ErrOptimisticLock
		}
	}

	maps.Copy(data.orders, t.orders)
	for id := range t.cartDeletes {
		delete(data.carts, id)
	}
	maps.Copy(data.carts, t.carts)
	maps.Copy(data.products, t.products)
	return nil
}

func (d memoryData) findOrder(id string) *domain.Order {
	o, ok := d.orders[id]
	if !ok {
		return nil
	}
	o.CartItems = slices.Clone(o.CartItems)
	return &o
}

func (d memoryData) findOrdersByUser(userID string) []domain.Order {
	var out []domain.Order
	for _, o := range d.orders {
		if o.UserID == userID {
			o.CartItems = slices.Clone(o.CartItems)
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b domain.Order) int {
		if c := b.OrderDate.Compare(a.OrderDate); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

func (d memoryData) saveOrder(order domain.Order) {
	order.CartItems = slices.Clone(order.CartItems)
	d.orders[order.ID] = order
}

func (d memoryData) findCart(id string) *domain.Cart {
	c, ok := d.carts[id]
	if !ok {
		return nil
	}
	c.Items = slices.Clone(c.Items)
	return &c
}

func (d memoryData) saveCart(cart domain.Cart) {
	cart.Items = slices.Clone(cart.Items)
	d.carts[cart.ID] = cart
}

func (d memoryData) findProduct(id string) *domain.Product {
	p, ok := d.products[id]
	if !ok {
		return nil
	}
	return &p
}

func (d memoryData) saveProduct(product domain.Product) error {
	if cur, ok := d.products[product.ID]; ok && cur.Version != product.Version {
		return ErrOptimisticLock
	}
	product.Version++
	d.products[product.ID] = product
	return nil
}
