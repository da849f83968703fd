package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"settlement/internal/domain/models"
	"settlement/internal/services"
)

type refundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Reason string           `json:"reason"`
}

func (a API) CreateRefund(c *gin.Context) {
	txnID, ok := pathParam(c, "id")
	if !ok {
		return
	}
	var body refundRequest
	if c.Request.ContentLength != 0 {
		if !BindJSONOrError(c, &body) {
			return
		}
	}

	res, err := a.settlement(c).ProcessRefund(c.Request.Context(), services.RefundRequest{
		TransactionID: txnID,
		Amount:        body.Amount,
		Reason:        body.Reason,
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	status := http.StatusCreated
	if res.RefundTransaction.Status != models.TransactionCompleted {
		status = http.StatusPaymentRequired
	}
	c.JSON(status, res)
}
