package models

type PaymentMethodType string

const (
	MethodCreditCard    PaymentMethodType = "CREDIT_CARD"
	MethodDebitCard     PaymentMethodType = "DEBIT_CARD"
	MethodPayPal        PaymentMethodType = "PAYPAL"
	MethodBankTransfer  PaymentMethodType = "BANK_TRANSFER"
	MethodDigitalWallet PaymentMethodType = "DIGITAL_WALLET"
	MethodCash          PaymentMethodType = "CASH"
)

var methodLabels = map[PaymentMethodType]string{
	MethodCreditCard:    "Credit Card",
	MethodDebitCard:     "Debit Card",
	MethodPayPal:        "PayPal",
	MethodBankTransfer:  "Bank Transfer",
	MethodDigitalWallet: "Digital Wallet",
	MethodCash:          "Cash",
}

// Label returns the human label of a method type and false for unknown types.
func (t PaymentMethodType) Label() (string, bool) {
	l, ok := methodLabels[t]
	return l, ok
}

// PaymentMethod is a saved instrument owned by the account service. Only the
// fields settlement needs are read.
type PaymentMethod struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	Type          PaymentMethodType `json:"type"`
	CardBrand     string            `json:"card_brand,omitempty"`
	CardLastFour  string            `json:"card_last_four,omitempty"`
	ProviderToken string            `json:"-"`
}

// BillingInfo is captured from the charge request and snapshotted on the invoice.
type BillingInfo struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
}
