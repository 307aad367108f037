package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rl1809/checkout/internal/core/domain"
	"github.com/rl1809/checkout/internal/port"
)

const (
	ordersCollection   = "orders"
	cartsCollection    = "carts"
	productsCollection = "products"
)

// MongoAdapter stores the three collections in one MongoDB database.
// WithTx needs a replica set or sharded cluster.
type MongoAdapter struct {
	client *mongo.Client
	mongoRepositories
}

func NewMongoAdapter(client *mongo.Client, database string) *MongoAdapter {
	db := client.Database(database)
	return &MongoAdapter{
		client: client,
		mongoRepositories: mongoRepositories{
			orders:   db.Collection(ordersCollection),
			carts:    db.Collection(cartsCollection),
			products: db.Collection(productsCollection),
		},
	}
}

// EnsureIndexes creates the index that backs FindOrdersByUser.
func (m *MongoAdapter) EnsureIndexes(ctx context.Context) error {
	_, err := m.orders.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "orderDate", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create orders index: %w", err)
	}
	return nil
}

func (m *MongoAdapter) WithTx(ctx context.Context, fn func(ctx context.Context, tx port.Repositories) error) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, m.mongoRepositories)
	})
	return err
}

type mongoRepositories struct {
	orders   *mongo.Collection
	carts    *mongo.Collection
	products *mongo.Collection
}

func (r mongoRepositories) FindOrder(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	err := r.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return &o, nil
}

func (r mongoRepositories) FindOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "orderDate", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.orders.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}

	var orders []domain.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}

func (r mongoRepositories) SaveOrder(ctx context.Context, o domain.Order) error {
	_, err := r.orders.ReplaceOne(ctx, bson.M{"_id": o.ID}, o, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace order: %w", err)
	}
	return nil
}

func (r mongoRepositories) FindCart(ctx context.Context, id string) (*domain.Cart, error) {
	var c domain.Cart
	err := r.carts.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find cart: %w", err)
	}
	return &c, nil
}

func (r mongoRepositories) SaveCart(ctx context.Context, c domain.Cart) error {
	_, err := r.carts.ReplaceOne(ctx, bson.M{"_id": c.ID}, c, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace cart: %w", err)
	}
	return nil
}

func (r mongoRepositories) DeleteCart(ctx context.Context, id string) error {
	if _, err := r.carts.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

func (r mongoRepositories) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := r.products.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}
	return &p, nil
}

func (r mongoRepositories) SaveProduct(ctx context.Context, p domain.Product) error {
	if p.Version == 0 {
		p.Version = 1
		if _, err := r.products.InsertOne(ctx, p); err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		return nil
	}

	expected := p.Version
	p.Version++
	result, err := r.products.ReplaceOne(ctx, bson.M{"_id": p.ID, "version": expected}, p)
	if err != nil {
		return fmt.Errorf("replace product: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrOptimisticLock
	}
	return nil
}
