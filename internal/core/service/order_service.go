package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/checkout/internal/core/domain"
	"github.com/rl1809/checkout/internal/port"
)

const (
	captureLockKeyPrefix  = "capture:"
	defaultCaptureLockTTL = 30 * time.Second
	paymentDescription    = "Your order payment"
)

type CreateOrderRequest struct {
	UserID          string             `json:"userId"`
	CartID          string             `json:"cartId"`
	CartItems       []domain.LineItem  `json:"cartItems"`
	AddressInfo     domain.AddressInfo `json:"addressInfo"`
	OrderStatus     string             `json:"orderStatus"`
	PaymentMethod   string             `json:"paymentMethod"`
	PaymentStatus   string             `json:"paymentStatus"`
	TotalAmount     float64            `json:"totalAmount"`
	OrderDate       time.Time          `json:"orderDate"`
	OrderUpdateDate time.Time          `json:"orderUpdateDate"`
	PaymentID       string             `json:"paymentId"`
	PayerID         string             `json:"payerId"`
}

type CreateOrderResult struct {
	ApprovalURL string
	OrderID     string
}

type Options struct {
	// FrontendURL is the base of the provider's return and cancel redirects
	FrontendURL    string
	PayeeEmail     string
	Currency       string
	CaptureLockTTL time.Duration
}

type OrderService struct {
	db       port.DatabaseRepository
	cache    port.CacheRepository
	provider port.PaymentProvider
	opts     Options
	logger   *zap.Logger

	now   func() time.Time
	newID func() string
}

func NewOrderService(
	db port.DatabaseRepository,
	cache port.CacheRepository,
	provider port.PaymentProvider,
	opts Options,
	logger *zap.Logger,
) *OrderService {
	if opts.Currency == "" {
		opts.Currency = domain.DefaultCurrency
	}
	if opts.CaptureLockTTL <= 0 {
		opts.CaptureLockTTL = defaultCaptureLockTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		db:       db,
		cache:    cache,
		provider: provider,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// CreateOrder registers the payment with the provider and persists the
// order only once the provider has returned an approval link.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if len(req.CartItems) == 0 {
		return nil, ErrEmptyCart
	}

	payment, err := s.provider.CreatePayment(ctx, s.paymentRequest(req))
	if err != nil {
		return nil, &ProviderError{Err: err}
	}

	approvalURL := payment.ApprovalURL()
	if approvalURL == "" {
		return nil, ErrNoApprovalURL
	}

	now := s.now()
	order := domain.Order{
		ID:              s.newID(),
		UserID:          req.UserID,
		CartID:          req.CartID,
		CartItems:       req.CartItems,
		AddressInfo:     req.AddressInfo,
		OrderStatus:     req.OrderStatus,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   req.PaymentStatus,
		TotalAmount:     req.TotalAmount,
		OrderDate:       req.OrderDate,
		OrderUpdateDate: req.OrderUpdateDate,
		PaymentID:       req.PaymentID,
		PayerID:         req.PayerID,
	}
	if order.OrderDate.IsZero() {
		order.OrderDate = now
	}
	if order.OrderUpdateDate.IsZero() {
		order.OrderUpdateDate = now
	}

	if err := s.db.SaveOrder(ctx, order); err != nil {
		s.logger.Error("payment created but order not saved",
			zap.String("provider_payment_id", payment.ID), zap.Error(err))
		return nil, fmt.Errorf("save order: %w", err)
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("provider_payment_id", payment.ID))

	return &CreateOrderResult{ApprovalURL: approvalURL, OrderID: order.ID}, nil
}

func (s *OrderService) paymentRequest(req CreateOrderRequest) domain.PaymentRequest {
	items := make([]domain.PaymentItem, 0, len(req.CartItems))
	for _, item := range req.CartItems {
		items = append(items, domain.PaymentItem{
			Name:     item.Title,
			SKU:      item.ProductID,
			Price:    toFixed2(item.Price),
			Currency: s.opts.Currency,
			Quantity: item.Quantity,
		})
	}

	base := strings.TrimRight(s.opts.FrontendURL, "/")
	return domain.PaymentRequest{
		ReturnURL:   base + "/shop/paypal-return",
		CancelURL:   base + "/shop/paypal-cancel",
		PayeeEmail:  s.opts.PayeeEmail,
		Description: paymentDescription,
		Currency:    s.opts.Currency,
		Total:       toFixed2(req.TotalAmount),
		Items:       items,
	}
}

// toFixed2 rounds half away from zero on the shortest decimal form of v,
// so 1.005 becomes "1.01".
func toFixed2(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// CapturePayment confirms the order, takes the purchased quantities out of
// stock and deletes the cart, all in one transaction. Concurrent captures
// of the same order are serialized by a lock, and an order that is already
// paid is rejected.
func (s *OrderService) CapturePayment(ctx context.Context, orderID, paymentID, payerID string) (*domain.Order, error) {
	lockKey := captureLockKeyPrefix + orderID
	token := s.newID()

	ok, err := s.cache.AcquireLock(ctx, lockKey, token, s.opts.CaptureLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire capture lock: %w", err)
	}
	if !ok {
		return nil, ErrCaptureInProgress
	}
	defer func() {
		if err := s.cache.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.logger.Warn("failed to release capture lock", zap.String("order_id", orderID), zap.Error(err))
		}
	}()

	var captured domain.Order
	err = s.db.WithTx(ctx, func(ctx context.Context, tx port.Repositories) error {
		order, err := tx.FindOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("find order: %w", err)
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.IsPaid() {
			return ErrAlreadyCaptured
		}

		now := s.now()
		order.MarkPaid(paymentID, payerID, now)

		for _, item := range order.CartItems {
			product, err := tx.FindProduct(ctx, item.ProductID)
			if err != nil {
				return fmt.Errorf("find product %s: %w", item.ProductID, err)
			}
			if product == nil {
				return &LineItemError{ProductID: item.ProductID, Title: item.Title, Err: ErrProductNotFound}
			}
			if product.TotalStock < item.Quantity {
				return &LineItemError{ProductID: item.ProductID, Title: item.Title, Err: ErrInsufficientStock}
			}

			product.TotalStock -= item.Quantity
			product.UpdatedAt = now
			if err := tx.SaveProduct(ctx, *product); err != nil {
				return fmt.Errorf("save product %s: %w", item.ProductID, err)
			}
		}

		if err := tx.DeleteCart(ctx, order.CartID); err != nil {
			return fmt.Errorf("delete cart: %w", err)
		}
		if err := tx.SaveOrder(ctx, *order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}

		captured = *order
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrOrderNotFound) && !errors.Is(err, ErrAlreadyCaptured) {
			s.logger.Warn("capture rolled back", zap.String("order_id", orderID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("payment captured",
		zap.String("order_id", captured.ID),
		zap.String("payment_id", paymentID),
		zap.Int("items", len(captured.CartItems)))

	return &captured, nil
}

func (s *OrderService) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.db.FindOrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, ErrNoOrders
	}
	return orders, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.db.FindOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}
