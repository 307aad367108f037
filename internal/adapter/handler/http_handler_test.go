package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/checkout/internal/adapter/storage"
	"github.com/rl1809/checkout/internal/core/domain"
	"github.com/rl1809/checkout/internal/core/service"
)

type stubProvider struct {
	calls   int
	payment *domain.Payment
	err     error
}

func (p *stubProvider) CreatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.Payment, error) {
	p.calls++
	return p.payment, p.err
}

type testServer struct {
	store    *storage.MemoryAdapter
	provider *stubProvider
	svc      *service.OrderService
	handler  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := storage.NewMemoryAdapter()
	provider := &stubProvider{payment: &domain.Payment{
		ID:    "PAY-1",
		Links: []domain.PaymentLink{{Href: "https://paypal.example/approve", Rel: "approval_url"}},
	}}
	svc := service.NewOrderService(store, store, provider, service.Options{FrontendURL: "https://shop.example"}, zap.NewNop())
	return &testServer{
		store:    store,
		provider: provider,
		svc:      svc,
		handler:  NewHTTPHandler(svc, zap.NewNop()).Routes(5 * time.Second),
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func (s *testServer) seedCapturable(t *testing.T) {
	s.seedOrderWithProducts(t, "A", "B")
}

// seedOrderWithProducts stores order-1 for two shirts (A) and one pair of
// socks (B), but only the listed products.
func (s *testServer) seedOrderWithProducts(t *testing.T, productIDs ...string) {
	t.Helper()
	ctx := context.Background()
	products := map[string]domain.Product{
		"A": {ID: "A", Title: "Shirt", TotalStock: 10},
		"B": {ID: "B", Title: "Socks", TotalStock: 5},
	}
	for _, id := range productIDs {
		require.NoError(t, s.store.SaveProduct(ctx, products[id]))
	}
	items := []domain.LineItem{
		{ProductID: "A", Title: "Shirt", Price: 10, Quantity: 2},
		{ProductID: "B", Title: "Socks", Price: 3, Quantity: 1},
	}
	require.NoError(t, s.store.SaveCart(ctx, domain.Cart{ID: "cart-1", UserID: "user-1", Items: items}))
	require.NoError(t, s.store.SaveOrder(ctx, domain.Order{
		ID:            "order-1",
		UserID:        "user-1",
		CartID:        "cart-1",
		CartItems:     items,
		OrderStatus:   domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		OrderDate:     time.Now(),
	}))
}

func createBody() map[string]any {
	return map[string]any{
		"userId": "user-1",
		"cartId": "cart-1",
		"cartItems": []map[string]any{
			{"productId": "A", "title": "Shirt", "price": 10, "quantity": 2},
		},
		"addressInfo":   map[string]any{"address": "1 Main St", "city": "Springfield", "pincode": "12345", "phone": "555"},
		"orderStatus":   "pending",
		"paymentMethod": "paypal",
		"paymentStatus": "pending",
		"totalAmount":   20,
	}
}

func TestHTTPCreateOrder_Created(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodPost, "/api/shop/order/create", createBody())

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "https://paypal.example/approve", body["approvalURL"])
	orderID, _ := body["orderId"].(string)
	require.NotEmpty(t, orderID)

	order, err := s.store.FindOrder(context.Background(), orderID)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, "Springfield", order.AddressInfo.City)
}

func TestHTTPCreateOrder_EmptyCart(t *testing.T) {
	s := newTestServer(t)
	req := createBody()
	req["cartItems"] = []any{}

	rec, body := s.do(t, http.MethodPost, "/api/shop/order/create", req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Cart is empty. Add items before proceeding.", body["message"])
	assert.Zero(t, s.provider.calls)
}

func TestHTTPCreateOrder_ProviderError(t *testing.T) {
	s := newTestServer(t)
	s.provider.err = &domain.ProviderFault{StatusCode: 422, Name: "UNPROCESSABLE_ENTITY", Message: "amount mismatch"}

	rec, body := s.do(t, http.MethodPost, "/api/shop/order/create", createBody())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Error while creating PayPal payment", body["message"])
	detail, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected provider detail, got %v", body["error"])
	assert.Equal(t, "UNPROCESSABLE_ENTITY", detail["name"])

	orders, _ := s.store.FindOrdersByUser(context.Background(), "user-1")
	assert.Empty(t, orders)
}

func TestHTTPCreateOrder_PlainProviderError(t *testing.T) {
	s := newTestServer(t)
	s.provider.err = errors.New("connection refused")

	rec, body := s.do(t, http.MethodPost, "/api/shop/order/create", createBody())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "connection refused", body["error"])
}

func TestHTTPCreateOrder_NoApprovalURL(t *testing.T) {
	s := newTestServer(t)
	s.provider.payment = &domain.Payment{ID: "PAY-1"}

	rec, body := s.do(t, http.MethodPost, "/api/shop/order/create", createBody())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "No approval URL found in PayPal response", body["message"])
	orders, _ := s.store.FindOrdersByUser(context.Background(), "user-1")
	assert.Empty(t, orders)
}

func TestHTTPCreateOrder_InvalidBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/shop/order/create", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()

	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPCapturePayment_Confirmed(t *testing.T) {
	s := newTestServer(t)
	s.seedCapturable(t)

	rec, body := s.do(t, http.MethodPost, "/api/shop/order/capture", map[string]string{
		"paymentId": "PAY-1", "payerId": "PAYER-1", "orderId": "order-1",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Order confirmed", body["message"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "confirmed", data["orderStatus"])
	assert.Equal(t, "paid", data["paymentStatus"])
	assert.Equal(t, "PAY-1", data["paymentId"])
	assert.Equal(t, "PAYER-1", data["payerId"])

	a, _ := s.store.FindProduct(context.Background(), "A")
	b, _ := s.store.FindProduct(context.Background(), "B")
	assert.Equal(t, 8, a.TotalStock)
	assert.Equal(t, 4, b.TotalStock)
	cart, _ := s.store.FindCart(context.Background(), "cart-1")
	assert.Nil(t, cart)
}

func TestHTTPCapturePayment_Errors(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, s *testServer)
		orderID string
		status  int
		message string
	}{
		{
			name:    "order not found",
			orderID: "missing",
			status:  http.StatusNotFound,
			message: "Order not found!",
		},
		{
			name: "product missing",
			prepare: func(t *testing.T, s *testServer) {
				s.seedOrderWithProducts(t, "A")
			},
			orderID: "order-1",
			status:  http.StatusNotFound,
			message: "Product no longer available: Socks",
		},
		{
			name: "already captured",
			prepare: func(t *testing.T, s *testServer) {
				s.seedCapturable(t)
				_, err := s.svc.CapturePayment(context.Background(), "order-1", "PAY-0", "PAYER-0")
				require.NoError(t, err)
			},
			orderID: "order-1",
			status:  http.StatusConflict,
			message: "Order already captured",
		},
		{
			name: "not enough stock",
			prepare: func(t *testing.T, s *testServer) {
				s.seedCapturable(t)
				p, _ := s.store.FindProduct(context.Background(), "A")
				p.TotalStock = 1
				require.NoError(t, s.store.SaveProduct(context.Background(), *p))
			},
			orderID: "order-1",
			status:  http.StatusConflict,
			message: "Not enough stock for product Shirt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			if tt.prepare != nil {
				tt.prepare(t, s)
			}

			rec, body := s.do(t, http.MethodPost, "/api/shop/order/capture", map[string]string{
				"paymentId": "PAY-1", "payerId": "PAYER-1", "orderId": tt.orderID,
			})

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestHTTPListOrdersByUser(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	rec, body := s.do(t, http.MethodGet, "/api/shop/order/list/user-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No orders found!", body["message"])

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.store.SaveOrder(ctx, domain.Order{ID: "first", UserID: "user-1", OrderDate: base}))
	require.NoError(t, s.store.SaveOrder(ctx, domain.Order{ID: "second", UserID: "user-1", OrderDate: base.Add(time.Hour)}))

	rec, body = s.do(t, http.MethodGet, "/api/shop/order/list/user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, "second", data[0].(map[string]any)["id"])
	assert.Equal(t, "first", data[1].(map[string]any)["id"])
}

func TestHTTPGetOrderDetails(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodGet, "/api/shop/order/details/order-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Order not found!", body["message"])

	s.seedCapturable(t)
	rec, body = s.do(t, http.MethodGet, "/api/shop/order/details/order-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "cart-1", body["data"].(map[string]any)["cartId"])
}

func TestHTTPHealthCheck(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}
