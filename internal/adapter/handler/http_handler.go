package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rl1809/checkout/internal/core/domain"
	"github.com/rl1809/checkout/internal/core/service"
)

const msgUnexpected = "An unexpected error occurred!"

type HTTPHandler struct {
	orderService *service.OrderService
	logger       *zap.Logger
}

type CaptureHTTPRequest struct {
	PaymentID string `json:"paymentId"`
	PayerID   string `json:"payerId"`
	OrderID   string `json:"orderId"`
}

type CreateOrderHTTPResponse struct {
	Success     bool   `json:"success"`
	ApprovalURL string `json:"approvalURL"`
	OrderID     string `json:"orderId"`
}

type DataHTTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

type ErrorHTTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   any    `json:"error,omitempty"`
}

func NewHTTPHandler(orderService *service.OrderService, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{orderService: orderService, logger: logger}
}

// Routes mounts the checkout endpoints. timeout bounds every request
// context; zero disables it.
func (h *HTTPHandler) Routes(timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	if timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}

	r.Get("/health", h.HealthCheck)
	r.Route("/api/shop/order", func(r chi.Router) {
		r.Post("/create", h.CreateOrder)
		r.Post("/capture", h.CapturePayment)
		r.Get("/list/{userId}", h.ListOrdersByUser)
		r.Get("/details/{id}", h.GetOrderDetails)
	})
	return r
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req service.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid create order body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Message: "invalid request body"})
		return
	}

	res, err := h.orderService.CreateOrder(r.Context(), req)
	if err != nil {
		var (
			providerErr *service.ProviderError
			fault       *domain.ProviderFault
		)
		switch {
		case errors.Is(err, service.ErrEmptyCart):
			writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{
				Message: "Cart is empty. Add items before proceeding.",
			})
		case errors.As(err, &providerErr):
			h.logger.Error("payment provider rejected order", zap.String("user_id", req.UserID), zap.Error(err))
			resp := ErrorHTTPResponse{Message: "Error while creating PayPal payment"}
			if errors.As(err, &fault) {
				resp.Error = fault
			} else {
				resp.Error = providerErr.Err.Error()
			}
			writeJSON(w, http.StatusInternalServerError, resp)
		case errors.Is(err, service.ErrNoApprovalURL):
			h.logger.Error("no approval url in provider response", zap.String("user_id", req.UserID))
			writeJSON(w, http.StatusInternalServerError, ErrorHTTPResponse{
				Message: "No approval URL found in PayPal response",
			})
		default:
			h.logger.Error("create order failed", zap.String("user_id", req.UserID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, ErrorHTTPResponse{Message: msgUnexpected})
		}
		return
	}

	writeJSON(w, http.StatusCreated, CreateOrderHTTPResponse{
		Success:     true,
		ApprovalURL: res.ApprovalURL,
		OrderID:     res.OrderID,
	})
}

func (h *HTTPHandler) CapturePayment(w http.ResponseWriter, r *http.Request) {
	var req CaptureHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid capture body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Message: "invalid request body"})
		return
	}

	order, err := h.orderService.CapturePayment(r.Context(), req.OrderID, req.PaymentID, req.PayerID)
	if err != nil {
		status, message := captureErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("capture payment failed", zap.String("order_id", req.OrderID), zap.Error(err))
		}
		writeJSON(w, status, ErrorHTTPResponse{Message: message})
		return
	}

	writeJSON(w, http.StatusOK, DataHTTPResponse{
		Success: true,
		Message: "Order confirmed",
		Data:    order,
	})
}

func captureErrorStatus(err error) (int, string) {
	var itemErr *service.LineItemError
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		return http.StatusNotFound, "Order not found!"
	case errors.As(err, &itemErr) && errors.Is(err, service.ErrProductNotFound):
		return http.StatusNotFound, fmt.Sprintf("Product no longer available: %s", itemErr.Title)
	case errors.As(err, &itemErr) && errors.Is(err, service.ErrInsufficientStock):
		return http.StatusConflict, fmt.Sprintf("Not enough stock for product %s", itemErr.Title)
	case errors.Is(err, service.ErrAlreadyCaptured):
		return http.StatusConflict, "Order already captured"
	case errors.Is(err, service.ErrCaptureInProgress):
		return http.StatusConflict, "Payment capture already in progress"
	default:
		return http.StatusInternalServerError, msgUnexpected
	}
}

func (h *HTTPHandler) ListOrdersByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	orders, err := h.orderService.ListOrdersByUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrNoOrders) {
			writeJSON(w, http.StatusNotFound, ErrorHTTPResponse{Message: "No orders found!"})
			return
		}
		h.logger.Error("list orders failed", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorHTTPResponse{Message: msgUnexpected})
		return
	}

	writeJSON(w, http.StatusOK, DataHTTPResponse{Success: true, Data: orders})
}

func (h *HTTPHandler) GetOrderDetails(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	order, err := h.orderService.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorHTTPResponse{Message: "Order not found!"})
			return
		}
		h.logger.Error("get order failed", zap.String("order_id", orderID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorHTTPResponse{Message: msgUnexpected})
		return
	}

	writeJSON(w, http.StatusOK, DataHTTPResponse{Success: true, Data: order})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
