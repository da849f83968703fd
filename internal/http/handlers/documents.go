package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"settlement/internal/domain/models"
)

func (a API) GetInvoice(c *gin.Context) {
	ref, ok := pathParam(c, "id")
	if !ok {
		return
	}
	inv, err := a.settlement(c).GetInvoice(c.Request.Context(), ref)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (a API) GetReceipt(c *gin.Context) {
	ref, ok := pathParam(c, "id")
	if !ok {
		return
	}
	rc, err := a.settlement(c).GetReceipt(c.Request.Context(), ref)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, rc)
}

func (a API) ListBookingInvoices(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	items, err := a.settlement(c).ListInvoicesForBooking(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if items == nil {
		items = []models.Invoice{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (a API) ListBookingReceipts(c *gin.Context) {
	id, ok := pathParam(c, "id")
	if !ok {
		return
	}
	items, err := a.settlement(c).ListReceiptsForBooking(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if items == nil {
		items = []models.Receipt{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
