package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"

	"github.com/rl1809/checkout/internal/core/domain"
)

const (
	ModeSandbox = "sandbox"
	ModeLive    = "live"
)

type PayPalProvider struct {
	client *paypal.Client
}

// NewPayPalProvider builds a provider against the PayPal REST API. mode is
// ModeSandbox or ModeLive; any other value is taken as an API base URL.
func NewPayPalProvider(clientID, secret, mode string) (*PayPalProvider, error) {
	base := mode
	switch mode {
	case ModeSandbox, "":
		base = paypal.APIBaseSandBox
	case ModeLive:
		base = paypal.APIBaseLive
	}

	client, err := paypal.NewClient(clientID, secret, base)
	if err != nil {
		return nil, fmt.Errorf("create paypal client: %w", err)
	}
	return &PayPalProvider{client: client}, nil
}

func (p *PayPalProvider) CreatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.Payment, error) {
	items := make([]paypal.Item, 0, len(req.Items))
	itemTotal := decimal.Zero
	for _, it := range req.Items {
		price, err := decimal.NewFromString(it.Price)
		if err != nil {
			return nil, fmt.Errorf("item %s price %q: %w", it.SKU, it.Price, err)
		}
		itemTotal = itemTotal.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))

		items = append(items, paypal.Item{
			Name:       it.Name,
			SKU:        it.SKU,
			UnitAmount: &paypal.Money{Currency: it.Currency, Value: it.Price},
			Quantity:   strconv.Itoa(it.Quantity),
		})
	}

	unit := paypal.PurchaseUnitRequest{
		Description: req.Description,
		Amount: &paypal.PurchaseUnitAmount{
			Currency: req.Currency,
			Value:    req.Total,
			Breakdown: &paypal.PurchaseUnitAmountBreakdown{
				ItemTotal: &paypal.Money{Currency: req.Currency, Value: itemTotal.StringFixed(2)},
			},
		},
		Items: items,
	}
	if req.PayeeEmail != "" {
		unit.Payee = &paypal.PayeeForOrders{EmailAddress: req.PayeeEmail}
	}

	appCtx := &paypal.ApplicationContext{
		ReturnURL: req.ReturnURL,
		CancelURL: req.CancelURL,
	}

	order, err := p.client.CreateOrder(ctx, paypal.OrderIntentCapture, []paypal.PurchaseUnitRequest{unit}, nil, appCtx)
	if err != nil {
		return nil, toProviderFault(err)
	}

	payment := &domain.Payment{ID: order.ID, Status: order.Status}
	for _, l := range order.Links {
		payment.Links = append(payment.Links, domain.PaymentLink{Href: l.Href, Rel: l.Rel, Method: l.Method})
	}
	return payment, nil
}

func toProviderFault(err error) error {
	var errResp *paypal.ErrorResponse
	if !errors.As(err, &errResp) {
		return err
	}

	fault := &domain.ProviderFault{
		Name:    errResp.Name,
		Message: errResp.Message,
		DebugID: errResp.DebugID,
	}
	if errResp.Response != nil {
		fault.StatusCode = errResp.Response.StatusCode
	}
	for _, d := range errResp.Details {
		fault.Details = append(fault.Details, domain.ProviderFaultDetail{
			Field:       d.Field,
			Issue:       d.Issue,
			Description: d.Description,
		})
	}
	return fault
}
