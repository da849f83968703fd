package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"settlement/internal/domain"
	"settlement/internal/domain/models"
	"settlement/internal/utils"
)

func (a API) GetTransaction(c *gin.Context) {
	ref, ok := pathParam(c, "id")
	if !ok {
		return
	}
	txn, err := a.settlement(c).GetTransaction(c.Request.Context(), ref)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

// ListTransactions supports booking_id, user_id, status, type, from, to,
// page and limit.
func (a API) ListTransactions(c *gin.Context) {
	f := models.TransactionFilter{
		BookingID: strings.TrimSpace(c.Query("booking_id")),
		UserID:    strings.TrimSpace(c.Query("user_id")),
		Status:    models.TransactionStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		Type:      models.TransactionType(strings.ToUpper(strings.TrimSpace(c.Query("type")))),
	}
	var err error
	if f.From, err = queryTime(c.Query("from"), false); err != nil {
		RespondDomainError(c, domain.ValidationError{Field: "from", Msg: "from must be YYYY-MM-DD or RFC3339", Err: err})
		return
	}
	if f.To, err = queryTime(c.Query("to"), true); err != nil {
		RespondDomainError(c, domain.ValidationError{Field: "to", Msg: "to must be YYYY-MM-DD or RFC3339", Err: err})
		return
	}
	page, ok := queryInt(c, "page")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	res, err := a.settlement(c).SearchTransactions(c.Request.Context(), f, page, limit)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if res.Items == nil {
		res.Items = []models.PaymentTransaction{}
	}
	c.JSON(http.StatusOK, res)
}

// queryTime parses a date or datetime. A bare date used as an upper bound
// covers the whole day.
func queryTime(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := utils.ParseDateOrDateTime(raw)
	if err != nil {
		return nil, err
	}
	if endOfDay && len(raw) == len("2006-01-02") {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
