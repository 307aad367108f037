package handler

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rl1809/checkout/internal/core/domain"
	"github.com/rl1809/checkout/internal/core/service"
)

func newGRPCClient(t *testing.T, s *testServer) *OrderServiceClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterOrderServiceServer(srv, NewGRPCHandler(s.svc, zap.NewNop()))
	go srv.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		srv.Stop()
	})
	return NewOrderServiceClient(conn)
}

func TestGRPCCreateOrder(t *testing.T) {
	s := newTestServer(t)
	client := newGRPCClient(t, s)
	ctx := context.Background()

	reply, err := client.CreateOrder(ctx, &service.CreateOrderRequest{
		UserID:    "user-1",
		CartID:    "cart-1",
		CartItems: []domain.LineItem{{ProductID: "A", Title: "Shirt", Price: 10, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://paypal.example/approve", reply.ApprovalURL)
	assert.NotEmpty(t, reply.OrderID)

	_, err = client.CreateOrder(ctx, &service.CreateOrderRequest{UserID: "user-1"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCCapturePayment(t *testing.T) {
	s := newTestServer(t)
	s.seedCapturable(t)
	client := newGRPCClient(t, s)
	ctx := context.Background()

	reply, err := client.CapturePayment(ctx, &CaptureRequest{OrderID: "order-1", PaymentID: "PAY-1", PayerID: "PAYER-1"})
	require.NoError(t, err)
	require.NotNil(t, reply.Order)
	assert.Equal(t, domain.OrderStatusConfirmed, reply.Order.OrderStatus)
	assert.Equal(t, domain.PaymentStatusPaid, reply.Order.PaymentStatus)

	_, err = client.CapturePayment(ctx, &CaptureRequest{OrderID: "order-1", PaymentID: "PAY-2", PayerID: "PAYER-2"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = client.CapturePayment(ctx, &CaptureRequest{OrderID: "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPCQueries(t *testing.T) {
	s := newTestServer(t)
	client := newGRPCClient(t, s)
	ctx := context.Background()

	_, err := client.ListOrdersByUser(ctx, &ListOrdersRequest{UserID: "user-1"})
	assert.Equal(t, codes.NotFound, status.Code(err))
	_, err = client.GetOrderDetails(ctx, &GetOrderRequest{ID: "order-1"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	s.seedCapturable(t)

	orders, err := client.ListOrdersByUser(ctx, &ListOrdersRequest{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, orders.Orders, 1)
	assert.Equal(t, "order-1", orders.Orders[0].ID)

	order, err := client.GetOrderDetails(ctx, &GetOrderRequest{ID: "order-1"})
	require.NoError(t, err)
	assert.Len(t, order.Order.CartItems, 2)
}
