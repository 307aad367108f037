package handler

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/rl1809/checkout/internal/core/domain"
	"github.com/rl1809/checkout/internal/core/service"
)

// The gRPC surface carries the same structs as the HTTP API, encoded as
// JSON (content-subtype "json") instead of protobuf.

const (
	CodecName          = "json"
	orderServiceName   = "checkout.OrderService"
	methodCreateOrder  = "/" + orderServiceName + "/CreateOrder"
	methodCapture      = "/" + orderServiceName + "/CapturePayment"
	methodListByUser   = "/" + orderServiceName + "/ListOrdersByUser"
	methodOrderDetails = "/" + orderServiceName + "/GetOrderDetails"
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)     { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type CaptureRequest = CaptureHTTPRequest

type CreateOrderReply struct {
	ApprovalURL string `json:"approvalURL"`
	OrderID     string `json:"orderId"`
}

type ListOrdersRequest struct {
	UserID string `json:"userId"`
}

type GetOrderRequest struct {
	ID string `json:"id"`
}

type OrderReply struct {
	Order *domain.Order `json:"order"`
}

type OrdersReply struct {
	Orders []domain.Order `json:"orders"`
}

type OrderServiceServer interface {
	CreateOrder(ctx context.Context, req *service.CreateOrderRequest) (*CreateOrderReply, error)
	CapturePayment(ctx context.Context, req *CaptureRequest) (*OrderReply, error)
	ListOrdersByUser(ctx context.Context, req *ListOrdersRequest) (*OrdersReply, error)
	GetOrderDetails(ctx context.Context, req *GetOrderRequest) (*OrderReply, error)
}

var OrderServiceDesc = grpc.ServiceDesc{
	ServiceName: orderServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateOrder", Handler: unaryHandler(methodCreateOrder, OrderServiceServer.CreateOrder)},
		{MethodName: "CapturePayment", Handler: unaryHandler(methodCapture, OrderServiceServer.CapturePayment)},
		{MethodName: "ListOrdersByUser", Handler: unaryHandler(methodListByUser, OrderServiceServer.ListOrdersByUser)},
		{MethodName: "GetOrderDetails", Handler: unaryHandler(methodOrderDetails, OrderServiceServer.GetOrderDetails)},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&OrderServiceDesc, srv)
}

func unaryHandler[Req, Resp any](fullMethod string, call func(OrderServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OrderServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type GRPCHandler struct {
	orderService *service.OrderService
	logger       *zap.Logger
}

func NewGRPCHandler(orderService *service.OrderService, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{orderService: orderService, logger: logger}
}

func (h *GRPCHandler) CreateOrder(ctx context.Context, req *service.CreateOrderRequest) (*CreateOrderReply, error) {
	res, err := h.orderService.CreateOrder(ctx, *req)
	if err != nil {
		var providerErr *service.ProviderError
		switch {
		case errors.Is(err, service.ErrEmptyCart):
			return nil, status.Error(codes.InvalidArgument, "Cart is empty. Add items before proceeding.")
		case errors.As(err, &providerErr):
			h.logger.Error("payment provider rejected order", zap.Error(err))
			return nil, status.Error(codes.Internal, "Error while creating PayPal payment: "+providerErr.Err.Error())
		case errors.Is(err, service.ErrNoApprovalURL):
			return nil, status.Error(codes.Internal, "No approval URL found in PayPal response")
		}
		h.logger.Error("create order failed", zap.Error(err))
		return nil, status.Error(codes.Internal, msgUnexpected)
	}

	return &CreateOrderReply{ApprovalURL: res.ApprovalURL, OrderID: res.OrderID}, nil
}

func (h *GRPCHandler) CapturePayment(ctx context.Context, req *CaptureRequest) (*OrderReply, error) {
	order, err := h.orderService.CapturePayment(ctx, req.OrderID, req.PaymentID, req.PayerID)
	if err != nil {
		_, message := captureErrorStatus(err)
		switch {
		case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrProductNotFound):
			return nil, status.Error(codes.NotFound, message)
		case errors.Is(err, service.ErrAlreadyCaptured), errors.Is(err, service.ErrInsufficientStock):
			return nil, status.Error(codes.FailedPrecondition, message)
		case errors.Is(err, service.ErrCaptureInProgress):
			return nil, status.Error(codes.Aborted, message)
		}
		h.logger.Error("capture payment failed", zap.String("order_id", req.OrderID), zap.Error(err))
		return nil, status.Error(codes.Internal, message)
	}

	return &OrderReply{Order: order}, nil
}

func (h *GRPCHandler) ListOrdersByUser(ctx context.Context, req *ListOrdersRequest) (*OrdersReply, error) {
	orders, err := h.orderService.ListOrdersByUser(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, service.ErrNoOrders) {
			return nil, status.Error(codes.NotFound, "No orders found!")
		}
		h.logger.Error("list orders failed", zap.String("user_id", req.UserID), zap.Error(err))
		return nil, status.Error(codes.Internal, msgUnexpected)
	}

	return &OrdersReply{Orders: orders}, nil
}

func (h *GRPCHandler) GetOrderDetails(ctx context.Context, req *GetOrderRequest) (*OrderReply, error) {
	order, err := h.orderService.GetOrder(ctx, req.ID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return nil, status.Error(codes.NotFound, "Order not found!")
		}
		h.logger.Error("get order failed", zap.String("order_id", req.ID), zap.Error(err))
		return nil, status.Error(codes.Internal, msgUnexpected)
	}

	return &OrderReply{Order: order}, nil
}

// OrderServiceClient calls a remote OrderService over a client connection.
type OrderServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderServiceClient(cc grpc.ClientConnInterface) *OrderServiceClient {
	return &OrderServiceClient{cc: cc}
}

func (c *OrderServiceClient) CreateOrder(ctx context.Context, in *service.CreateOrderRequest) (*CreateOrderReply, error) {
	out := new(CreateOrderReply)
	if err := c.cc.Invoke(ctx, methodCreateOrder, in, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderServiceClient) CapturePayment(ctx context.Context, in *CaptureRequest) (*OrderReply, error) {
	out := new(OrderReply)
	if err := c.cc.Invoke(ctx, methodCapture, in, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderServiceClient) ListOrdersByUser(ctx context.Context, in *ListOrdersRequest) (*OrdersReply, error) {
	out := new(OrdersReply)
	if err := c.cc.Invoke(ctx, methodListByUser, in, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderServiceClient) GetOrderDetails(ctx context.Context, in *GetOrderRequest) (*OrderReply, error) {
	out := new(OrderReply)
	if err := c.cc.Invoke(ctx, methodOrderDetails, in, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}
