package domain

import "time"

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"

	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
)

type LineItem struct {
	ProductID string  `json:"productId" bson:"productId"`
	Title     string  `json:"title" bson:"title"`
	Price     float64 `json:"price" bson:"price"`
	Quantity  int     `json:"quantity" bson:"quantity"`
}

type AddressInfo struct {
	AddressID string `json:"addressId,omitempty" bson:"addressId,omitempty"`
	Address   string `json:"address" bson:"address"`
	City      string `json:"city" bson:"city"`
	Pincode   string `json:"pincode" bson:"pincode"`
	Phone     string `json:"phone" bson:"phone"`
	Notes     string `json:"notes,omitempty" bson:"notes,omitempty"`
}

// Order status fields are free text; OrderStatus* and PaymentStatus* are
// the values the capture flow writes.
type Order struct {
	ID              string      `json:"id" bson:"_id"`
	UserID          string      `json:"userId" bson:"userId"`
	CartID          string      `json:"cartId" bson:"cartId"`
	CartItems       []LineItem  `json:"cartItems" bson:"cartItems"`
	AddressInfo     AddressInfo `json:"addressInfo" bson:"addressInfo"`
	OrderStatus     string      `json:"orderStatus" bson:"orderStatus"`
	PaymentMethod   string      `json:"paymentMethod" bson:"paymentMethod"`
	PaymentStatus   string      `json:"paymentStatus" bson:"paymentStatus"`
	TotalAmount     float64     `json:"totalAmount" bson:"totalAmount"`
	OrderDate       time.Time   `json:"orderDate" bson:"orderDate"`
	OrderUpdateDate time.Time   `json:"orderUpdateDate" bson:"orderUpdateDate"`
	PaymentID       string      `json:"paymentId" bson:"paymentId"`
	PayerID         string      `json:"payerId" bson:"payerId"`
}

func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}

// MarkPaid applies the capture transition in memory.
func (o *Order) MarkPaid(paymentID, payerID string, at time.Time) {
	o.PaymentStatus = PaymentStatusPaid
	o.OrderStatus = OrderStatusConfirmed
	o.PaymentID = paymentID
	o.PayerID = payerID
	o.OrderUpdateDate = at
}
