package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type InvoiceService interface {
	// CreateInvoice stores an invoice header with its ordered lines.
	CreateInvoice(ctx context.Context, input InvoiceInput) (*Invoice, error)

	// GetInvoice returns an invoice by id, including all lines.
	GetInvoice(ctx context.Context, invoiceID int) (*Invoice, error)

	// GetInvoices lists invoices, optionally filtered by status.
	GetInvoices(ctx context.Context, status string) ([]Invoice, error)

	// SetStatus updates the derived status label of an invoice.
	SetStatus(ctx context.Context, invoiceID int, status InvoiceStatus) error
}

// InvoiceLineInput holds the fields required to create an invoice line.
type InvoiceLineInput struct {
	SKU         string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// InvoiceInput holds the fields required to create an invoice.
type InvoiceInput struct {
	InvoiceNumber string
	VendorID      *int
	PONumber      *string
	InvoiceDate   *time.Time
	TotalAmount   decimal.Decimal
	Currency      string
	Lines         []InvoiceLineInput
}

type invoiceService struct {
	pool *pgxpool.Pool
}

// NewInvoiceService constructs an InvoiceService backed by PostgreSQL.
func NewInvoiceService(pool *pgxpool.Pool) InvoiceService {
	return &invoiceService{pool: pool}
}

func (s *invoiceService) CreateInvoice(ctx context.Context, input InvoiceInput) (*Invoice, error) {
	if input.InvoiceNumber == "" {
		return nil, fmt.Errorf("%w: invoice number is required", ErrInvalidRequest)
	}
	if len(input.Lines) == 0 {
		return nil, fmt.Errorf("%w: invoice must have at least one line", ErrInvalidRequest)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	currency := currencyOrDefault(input.Currency)

	var invoiceID int
	if err := tx.QueryRow(ctx, `
		INSERT INTO invoices (invoice_number, vendor_id, po_number, invoice_date,
		                      total_amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'new')
		RETURNING id`,
		input.InvoiceNumber, input.VendorID, input.PONumber, input.InvoiceDate,
		input.TotalAmount, currency,
	).Scan(&invoiceID); err != nil {
		return nil, fmt.Errorf("insert invoice: %w", err)
	}

	for i, l := range input.Lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO invoice_lines (invoice_id, line_no, sku, description, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			invoiceID, i+1, nullableString(l.SKU), l.Description, l.Quantity, l.UnitPrice,
		); err != nil {
			return nil, fmt.Errorf("insert invoice line %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit invoice: %w", err)
	}

	return s.GetInvoice(ctx, invoiceID)
}

func (s *invoiceService) GetInvoice(ctx context.Context, invoiceID int) (*Invoice, error) {
	inv := &Invoice{}
	if err := s.pool.QueryRow(ctx, `
		SELECT id, invoice_number, vendor_id, po_number, invoice_date,
		       total_amount, currency, status, created_at
		FROM invoices
		WHERE id = $1`,
		invoiceID,
	).Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.VendorID, &inv.PONumber, &inv.InvoiceDate,
		&inv.TotalAmount, &inv.Currency, &inv.Status, &inv.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: invoice %d", ErrNotFound, invoiceID)
		}
		return nil, fmt.Errorf("get invoice %d: %w", invoiceID, err)
	}

	lines, err := s.fetchLines(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines
	return inv, nil
}

func (s *invoiceService) GetInvoices(ctx context.Context, status string) ([]Invoice, error) {
	query := `
		SELECT id, invoice_number, vendor_id, po_number, invoice_date,
		       total_amount, currency, status, created_at
		FROM invoices`
	var args []any
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(
			&inv.ID, &inv.InvoiceNumber, &inv.VendorID, &inv.PONumber, &inv.InvoiceDate,
			&inv.TotalAmount, &inv.Currency, &inv.Status, &inv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (s *invoiceService) SetStatus(ctx context.Context, invoiceID int, status InvoiceStatus) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE invoices SET status = $1, updated_at = NOW() WHERE id = $2",
		status, invoiceID,
	)
	if err != nil {
		return fmt.Errorf("update invoice %d status: %w", invoiceID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: invoice %d", ErrNotFound, invoiceID)
	}
	return nil
}

func (s *invoiceService) fetchLines(ctx context.Context, invoiceID int) ([]InvoiceLine, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, invoice_id, line_no, COALESCE(sku, ''), description, quantity, unit_price
		FROM invoice_lines
		WHERE invoice_id = $1
		ORDER BY line_no`,
		invoiceID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch invoice lines for %d: %w", invoiceID, err)
	}
	defer rows.Close()

	var lines []InvoiceLine
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.LineNo, &l.SKU, &l.Description,
			&l.Quantity, &l.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan invoice line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
