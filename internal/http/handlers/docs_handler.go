package handlers

import (
	"github.com/gin-gonic/gin"
)

// GetInvoicePDF returns the invoice as an inline PDF.
func (a API) GetInvoicePDF(c *gin.Context) {
	ref, ok := pathParam(c, "id")
	if !ok {
		return
	}
	body, filename, err := a.docs(c).GenerateInvoice(c.Request.Context(), ref)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	sendPDF(c, body, filename)
}

// GetReceiptPDF returns the receipt as an inline PDF.
func (a API) GetReceiptPDF(c *gin.Context) {
	ref, ok := pathParam(c, "id")
	if !ok {
		return
	}
	body, filename, err := a.docs(c).GenerateReceipt(c.Request.Context(), ref)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	sendPDF(c, body, filename)
}
