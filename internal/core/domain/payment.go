package domain

const (
	PaymentMethodPayPal = "paypal"
	DefaultCurrency     = "USD"
)

type PaymentItem struct {
	Name     string
	SKU      string
	Price    string // two decimal places
	Currency string
	Quantity int
}

// PaymentRequest is what the checkout flow asks the provider to create.
type PaymentRequest struct {
	ReturnURL   string
	CancelURL   string
	PayeeEmail  string
	Description string
	Currency    string
	Total       string // two decimal places
	Items       []PaymentItem
}

type PaymentLink struct {
	Href   string
	Rel    string
	Method string
}

type Payment struct {
	ID     string
	Status string
	Links  []PaymentLink
}

// ApprovalURL returns the link the payer must visit, or "" if the
// provider did not return one.
func (p *Payment) ApprovalURL() string {
	for _, l := range p.Links {
		if l.Rel == "approval_url" || l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

type ProviderFaultDetail struct {
	Field       string `json:"field,omitempty"`
	Issue       string `json:"issue,omitempty"`
	Description string `json:"description,omitempty"`
}

// ProviderFault is the provider's own account of a failed call, safe to
// hand back to API clients.
type ProviderFault struct {
	StatusCode int                   `json:"httpStatusCode,omitempty"`
	Name       string                `json:"name,omitempty"`
	Message    string                `json:"message,omitempty"`
	DebugID    string                `json:"debugId,omitempty"`
	Details    []ProviderFaultDetail `json:"details,omitempty"`
}

func (f *ProviderFault) Error() string {
	if f.Name == "" {
		return "payment provider: " + f.Message
	}
	return "payment provider: " + f.Name + ": " + f.Message
}
