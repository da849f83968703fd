package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type index struct {
	name    string
	columns string
}

type table struct {
	name    string
	body    string
	indexes []index
}

// seqColumn is a per-dialect insertion counter. Ledger rows share
// created_at at second precision, so it breaks ties in newest-first listings.
const seqColumn = "{{seq}}"

func seqFor(dialect Dialect) string {
	if dialect == DialectMySQL {
		return "seq BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY"
	}
	return "seq INTEGER PRIMARY KEY AUTOINCREMENT"
}

// Every unique constraint is named after its column so duplicate-key errors
// from either driver can be attributed with IsUniqueViolation.
var tables = []table{
	{
		name: "users",
		body: `
	id VARCHAR(36) NOT NULL PRIMARY KEY,
	name VARCHAR(255) NOT NULL DEFAULT '',
	email VARCHAR(255) NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL`,
	},
	{
		name: "payment_methods",
		body: `
	id VARCHAR(36) NOT NULL PRIMARY KEY,
	user_id VARCHAR(36) NOT NULL,
	type VARCHAR(32) NOT NULL,
	card_brand VARCHAR(32) NOT NULL DEFAULT '',
	card_last_four VARCHAR(4) NOT NULL DEFAULT '',
	provider_token VARCHAR(255) NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL`,
		indexes: []index{{"idx_payment_methods_user_id", "user_id"}},
	},
	{
		name: "bookings",
		body: `
	id VARCHAR(36) NOT NULL PRIMARY KEY,
	reference VARCHAR(32) NOT NULL DEFAULT '',
	user_id VARCHAR(36) NOT NULL DEFAULT '',
	total_amount_cents BIGINT NOT NULL,
	currency CHAR(3) NOT NULL DEFAULT 'USD',
	status VARCHAR(20) NOT NULL,
	version BIGINT NOT NULL DEFAULT 0,
	confirmed_at DATETIME NULL,
	cancelled_at DATETIME NULL,
	cancellation_reason VARCHAR(255) NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL`,
		indexes: []index{{"idx_bookings_user_id", "user_id"}},
	},
	{
		name: "payment_transactions",
		body: `
	` + seqColumn + `,
	id VARCHAR(36) NOT NULL,
	transaction_number VARCHAR(40) NOT NULL,
	booking_id VARCHAR(36) NOT NULL,
	user_id VARCHAR(36) NOT NULL DEFAULT '',
	payment_method_id VARCHAR(36) NOT NULL DEFAULT '',
	original_transaction_id VARCHAR(36) NOT NULL DEFAULT '',
	type VARCHAR(20) NOT NULL,
	status VARCHAR(20) NOT NULL,
	amount_cents BIGINT NOT NULL,
	currency CHAR(3) NOT NULL,
	gateway VARCHAR(32) NOT NULL DEFAULT '',
	gateway_reference VARCHAR(255) NOT NULL DEFAULT '',
	gateway_response TEXT NULL,
	failure_reason VARCHAR(500) NOT NULL DEFAULT '',
	processed_at DATETIME NULL,
	refunded_amount_cents BIGINT NOT NULL DEFAULT 0,
	refund_reason VARCHAR(500) NOT NULL DEFAULT '',
	refunded_at DATETIME NULL,
	card_last_four VARCHAR(4) NOT NULL DEFAULT '',
	card_brand VARCHAR(32) NOT NULL DEFAULT '',
	payment_method_type VARCHAR(32) NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	CONSTRAINT uniq_payment_transactions_id UNIQUE (id),
	CONSTRAINT uniq_payment_transactions_transaction_number UNIQUE (transaction_number)`,
		indexes: []index{
			{"idx_payment_transactions_booking_id", "booking_id"},
			{"idx_payment_transactions_user_id", "user_id"},
			{"idx_payment_transactions_original", "original_transaction_id"},
			{"idx_payment_transactions_created_at", "created_at"},
		},
	},
	{
		name: "invoices",
		body: `
	id VARCHAR(36) NOT NULL PRIMARY KEY,
	invoice_number VARCHAR(32) NOT NULL,
	booking_id VARCHAR(36) NOT NULL,
	user_id VARCHAR(36) NOT NULL DEFAULT '',
	transaction_id VARCHAR(36) NOT NULL,
	status VARCHAR(20) NOT NULL,
	invoice_date DATETIME NOT NULL,
	paid_at DATETIME NULL,
	subtotal_cents BIGINT NOT NULL,
	taxes_cents BIGINT NOT NULL,
	fees_cents BIGINT NOT NULL,
	discount_cents BIGINT NOT NULL DEFAULT 0,
	total_amount_cents BIGINT NOT NULL,
	currency CHAR(3) NOT NULL,
	billing_name VARCHAR(255) NOT NULL DEFAULT '',
	billing_email VARCHAR(255) NOT NULL DEFAULT '',
	billing_phone VARCHAR(64) NOT NULL DEFAULT '',
	billing_address_line1 VARCHAR(255) NOT NULL DEFAULT '',
	billing_address_line2 VARCHAR(255) NOT NULL DEFAULT '',
	billing_city VARCHAR(128) NOT NULL DEFAULT '',
	billing_state VARCHAR(128) NOT NULL DEFAULT '',
	billing_postal_code VARCHAR(32) NOT NULL DEFAULT '',
	billing_country VARCHAR(64) NOT NULL DEFAULT '',
	tax_breakdown TEXT NULL,
	created_at DATETIME NOT NULL,
	CONSTRAINT uniq_invoices_invoice_number UNIQUE (invoice_number),
	CONSTRAINT uniq_invoices_booking_id UNIQUE (booking_id)`,
	},
	{
		name: "receipts",
		body: `
	id VARCHAR(36) NOT NULL PRIMARY KEY,
	receipt_number VARCHAR(32) NOT NULL,
	booking_id VARCHAR(36) NOT NULL,
	user_id VARCHAR(36) NOT NULL DEFAULT '',
	transaction_id VARCHAR(36) NOT NULL,
	invoice_id VARCHAR(36) NOT NULL,
	receipt_date DATETIME NOT NULL,
	amount_cents BIGINT NOT NULL,
	currency CHAR(3) NOT NULL,
	payment_method VARCHAR(128) NOT NULL DEFAULT '',
	payment_reference VARCHAR(255) NOT NULL DEFAULT '',
	subtotal_cents BIGINT NOT NULL,
	taxes_cents BIGINT NOT NULL,
	fees_cents BIGINT NOT NULL,
	discount_cents BIGINT NOT NULL DEFAULT 0,
	total_amount_cents BIGINT NOT NULL,
	emailed BOOLEAN NOT NULL DEFAULT FALSE,
	emailed_at DATETIME NULL,
	created_at DATETIME NOT NULL,
	CONSTRAINT uniq_receipts_receipt_number UNIQUE (receipt_number),
	CONSTRAINT uniq_receipts_transaction_id UNIQUE (transaction_id)`,
		indexes: []index{{"idx_receipts_booking_id", "booking_id"}},
	},
}

// SchemaStatements returns the DDL for dialect, in dependency order.
func SchemaStatements(dialect Dialect) []string {
	stmts := make([]string, 0, len(tables)*2)
	for _, t := range tables {
		body := strings.ReplaceAll(t.body, seqColumn, seqFor(dialect))
		switch dialect {
		case DialectMySQL:
			for _, ix := range t.indexes {
				body += fmt.Sprintf(",\n\tKEY %s (%s)", ix.name, ix.columns)
			}
			stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci", t.name, body))
		default:
			stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s\n)", t.name, body))
			for _, ix := range t.indexes {
				stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)", ix.name, t.name, ix.columns))
			}
		}
	}
	return stmts
}

// Migrate creates every table the settlement service owns.
func Migrate(ctx context.Context, conn *sql.DB, dialect Dialect) error {
	for _, stmt := range SchemaStatements(dialect) {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			head := strings.TrimSpace(stmt)
			if len(head) > 60 {
				head = head[:60]
			}
			return fmt.Errorf("exec %q: %w", head, err)
		}
	}
	return nil
}
