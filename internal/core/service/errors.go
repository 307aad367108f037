package service

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNoApprovalURL     = errors.New("no approval url in provider response")
	ErrOrderNotFound     = errors.New("order not found")
	ErrNoOrders          = errors.New("no orders found")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyCaptured   = errors.New("order already captured")
	ErrCaptureInProgress = errors.New("capture already in progress")
)

// ProviderError wraps a failed payment-provider call.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("create payment: %v", e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// LineItemError reports which line item stopped a capture.
type LineItemError struct {
	ProductID string
	Title     string
	Err       error
}

func (e *LineItemError) Error() string {
	return fmt.Sprintf("%v: product %s (%s)", e.Err, e.ProductID, e.Title)
}

func (e *LineItemError) Unwrap() error {
	return e.Err
}
