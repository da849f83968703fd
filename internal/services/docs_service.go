package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"settlement/internal/domain/models"
	"settlement/internal/utils"
)

type invoiceSource interface {
	Get(ctx context.Context, ref string) (models.Invoice, error)
}

type receiptSource interface {
	Get(ctx context.Context, ref string) (models.Receipt, error)
}

// DocsService renders invoices and receipts as printable PDFs.
type DocsService struct {
	Invoices  invoiceSource
	Receipts  receiptSource
	RequestID string
}

func (s DocsService) GenerateInvoice(ctx context.Context, ref string) ([]byte, string, error) {
	inv, err := s.Invoices.Get(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	utils.LogEvent(s.RequestID, "docs", "generate_invoice", "rendering invoice pdf", zap.String("invoice_number", inv.InvoiceNumber))
	return buildInvoicePDF(inv)
}

func (s DocsService) GenerateReceipt(ctx context.Context, ref string) ([]byte, string, error) {
	rc, err := s.Receipts.Get(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	utils.LogEvent(s.RequestID, "docs", "generate_receipt", "rendering receipt pdf", zap.String("receipt_number", rc.ReceiptNumber))
	return buildReceiptPDF(rc)
}

func buildInvoicePDF(inv models.Invoice) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+inv.InvoiceNumber, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "INVOICE")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, "Invoice No : "+inv.InvoiceNumber)
	pdf.Ln(7)
	pdf.Cell(0, 7, "Date       : "+utils.FormatDateTime(inv.InvoiceDate))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Status     : "+string(inv.Status))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Booking    : "+inv.BookingID)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Billed to:")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 11)
	for _, line := range billingLines(inv.Billing) {
		pdf.Cell(0, 6, line)
		pdf.Ln(6)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Breakdown:")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	amountRow(pdf, "Subtotal", inv.Subtotal, inv.Currency)
	for _, tl := range inv.TaxBreakdown {
		label := fmt.Sprintf("%s (%s%%)", tl.Name, tl.Rate.Shift(2).StringFixed(0))
		amountRow(pdf, label, tl.Amount, inv.Currency)
	}
	if !inv.Discount.IsZero() {
		amountRow(pdf, "Discount", inv.Discount.Neg(), inv.Currency)
	}

	pdf.SetFont("Helvetica", "B", 12)
	amountRow(pdf, "Total", inv.TotalAmount, inv.Currency)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), fmt.Sprintf("INVOICE_%s.pdf", safeFilenamePart(inv.InvoiceNumber)), nil
}

func buildReceiptPDF(rc models.Receipt) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Receipt "+rc.ReceiptNumber, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "PAYMENT RECEIPT")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		"Receipt No : " + rc.ReceiptNumber,
		"Date       : " + utils.FormatDateTime(rc.ReceiptDate),
		"Booking    : " + rc.BookingID,
		"Paid with  : " + safe(rc.PaymentMethod, "-"),
		"Reference  : " + safe(rc.PaymentReference, "-"),
		"Amount     : " + utils.FormatWithCurrency(rc.Amount, rc.Currency),
	}
	for _, l := range lines {
		pdf.Cell(0, 7, l)
		pdf.Ln(7)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	amountRow(pdf, "Subtotal", rc.Subtotal, rc.Currency)
	amountRow(pdf, "Taxes", rc.Taxes, rc.Currency)
	amountRow(pdf, "Fees", rc.Fees, rc.Currency)
	if !rc.Discount.IsZero() {
		amountRow(pdf, "Discount", rc.Discount.Neg(), rc.Currency)
	}
	pdf.SetFont("Helvetica", "B", 12)
	amountRow(pdf, "Total", rc.TotalAmount, rc.Currency)

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "This receipt confirms payment of the invoice referenced above.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), fmt.Sprintf("RECEIPT_%s.pdf", safeFilenamePart(rc.ReceiptNumber)), nil
}

func amountRow(pdf *gofpdf.Fpdf, label string, amount decimal.Decimal, currency string) {
	pdf.CellFormat(120, 7, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(60, 7, utils.NormalizeCurrency(currency)+" "+utils.FormatMoney(amount), "", 1, "R", false, 0, "")
}

func billingLines(b models.BillingInfo) []string {
	var out []string
	for _, v := range []string{
		b.Name, b.Email, b.Phone, b.AddressLine1, b.AddressLine2,
		utils.NormalizeSpace(strings.Join([]string{b.City, b.State, b.PostalCode}, " ")), b.Country,
	} {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		out = append(out, "-")
	}
	return out
}

func safe(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

func safeFilenamePart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "NA"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	s = replacer.Replace(s)
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}
