package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"settlement/internal/domain"
	"settlement/internal/domain/models"
	"settlement/internal/services"
)

type paymentRequest struct {
	Amount            *decimal.Decimal         `json:"amount"`
	Currency          string                   `json:"currency"`
	UserID            string                   `json:"user_id"`
	PaymentMethodID   string                   `json:"payment_method_id"`
	PaymentMethodType models.PaymentMethodType `json:"payment_method_type"`
	CardNumber        string                   `json:"card_number"`
	Billing           models.BillingInfo       `json:"billing"`
}

// CreatePayment charges the booking in the path. A declined charge answers
// 402 with the FAILED transaction in the body.
func (a API) CreatePayment(c *gin.Context) {
	bookingID, ok := pathParam(c, "id")
	if !ok {
		return
	}
	var body paymentRequest
	if !BindJSONOrError(c, &body) {
		return
	}
	if body.Amount == nil {
		RespondDomainError(c, domain.ValidationError{Field: "amount", Msg: "amount is required"})
		return
	}

	res, err := a.settlement(c).ProcessPayment(c.Request.Context(), services.PaymentRequest{
		BookingID:         bookingID,
		Amount:            *body.Amount,
		Currency:          body.Currency,
		UserID:            body.UserID,
		PaymentMethodID:   body.PaymentMethodID,
		PaymentMethodType: body.PaymentMethodType,
		CardNumber:        body.CardNumber,
		Billing:           body.Billing,
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Transaction.Status != models.TransactionCompleted {
		status = http.StatusPaymentRequired
	}
	c.JSON(status, res)
}
