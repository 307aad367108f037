package port

import (
	"context"

	"github.com/rl1809/checkout/internal/core/domain"
)

// Find* methods return (nil, nil) when the record does not exist.

type OrderRepository interface {
	FindOrder(ctx context.Context, id string) (*domain.Order, error)

	// FindOrdersByUser returns the user's orders sorted by order date, newest first
	FindOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)

	// SaveOrder inserts or replaces the order
	SaveOrder(ctx context.Context, order domain.Order) error
}

type CartRepository interface {
	FindCart(ctx context.Context, id string) (*domain.Cart, error)
	SaveCart(ctx context.Context, cart domain.Cart) error

	// DeleteCart removes the cart; deleting a missing cart is not an error
	DeleteCart(ctx context.Context, id string) error
}

type ProductRepository interface {
	FindProduct(ctx context.Context, id string) (*domain.Product, error)

	// SaveProduct inserts or updates the product with version check for optimistic locking
	SaveProduct(ctx context.Context, product domain.Product) error
}

type Repositories interface {
	OrderRepository
	CartRepository
	ProductRepository
}

type DatabaseRepository interface {
	Repositories

	// WithTx runs fn against repositories bound to a single transaction.
	// The transaction commits if fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
}
