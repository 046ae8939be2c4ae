package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type PurchaseOrderService interface {
	// CreatePO stores a purchase order header with its ordered lines.
	CreatePO(ctx context.Context, input POInput) (*PurchaseOrder, error)

	// GetPO returns a purchase order by id, including all lines.
	GetPO(ctx context.Context, poID int) (*PurchaseOrder, error)

	// FindByNumber resolves a PO-number reference. A nil result with a nil
	// error means the reference does not resolve (that is a matching issue,
	// not a failure).
	FindByNumber(ctx context.Context, poNumber string) (*PurchaseOrder, error)
}

// POLineInput holds the fields required to create a PO line.
type POLineInput struct {
	SKU         string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// POInput holds the fields required to create a purchase order.
type POInput struct {
	PONumber    string
	VendorID    int
	OrderDate   *time.Time
	TotalAmount decimal.Decimal
	Currency    string
	Lines       []POLineInput
}

type purchaseOrderService struct {
	pool *pgxpool.Pool
}

// NewPurchaseOrderService constructs a PurchaseOrderService backed by PostgreSQL.
func NewPurchaseOrderService(pool *pgxpool.Pool) PurchaseOrderService {
	return &purchaseOrderService{pool: pool}
}

func (s *purchaseOrderService) CreatePO(ctx context.Context, input POInput) (*PurchaseOrder, error) {
	if strings.TrimSpace(input.PONumber) == "" {
		return nil, fmt.Errorf("%w: PO number is required", ErrInvalidRequest)
	}
	if len(input.Lines) == 0 {
		return nil, fmt.Errorf("%w: purchase order must have at least one line", ErrInvalidRequest)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var vendorExists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM vendors WHERE id = $1)", input.VendorID,
	).Scan(&vendorExists); err != nil {
		return nil, fmt.Errorf("validate vendor: %w", err)
	}
	if !vendorExists {
		return nil, fmt.Errorf("%w: vendor %d", ErrNotFound, input.VendorID)
	}

	var poID int
	if err := tx.QueryRow(ctx, `
		INSERT INTO purchase_orders (po_number, vendor_id, order_date, total_amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, 'open')
		RETURNING id`,
		strings.TrimSpace(input.PONumber), input.VendorID, input.OrderDate,
		input.TotalAmount, currencyOrDefault(input.Currency),
	).Scan(&poID); err != nil {
		return nil, fmt.Errorf("insert purchase order: %w", err)
	}

	for i, l := range input.Lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO po_lines (po_id, line_no, sku, description, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			poID, i+1, nullableString(l.SKU), l.Description, l.Quantity, l.UnitPrice,
		); err != nil {
			return nil, fmt.Errorf("insert PO line %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit purchase order: %w", err)
	}

	return s.GetPO(ctx, poID)
}

func (s *purchaseOrderService) GetPO(ctx context.Context, poID int) (*PurchaseOrder, error) {
	po := &PurchaseOrder{}
	if err := s.pool.QueryRow(ctx, `
		SELECT id, po_number, vendor_id, order_date, total_amount, currency, status, created_at
		FROM purchase_orders
		WHERE id = $1`,
		poID,
	).Scan(
		&po.ID, &po.PONumber, &po.VendorID, &po.OrderDate,
		&po.TotalAmount, &po.Currency, &po.Status, &po.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: purchase order %d", ErrNotFound, poID)
		}
		return nil, fmt.Errorf("get purchase order %d: %w", poID, err)
	}

	lines, err := s.fetchLines(ctx, poID)
	if err != nil {
		return nil, err
	}
	po.Lines = lines
	return po, nil
}

func (s *purchaseOrderService) FindByNumber(ctx context.Context, poNumber string) (*PurchaseOrder, error) {
	poNumber = strings.TrimSpace(poNumber)
	if poNumber == "" {
		return nil, nil
	}

	var poID int
	err := s.pool.QueryRow(ctx,
		"SELECT id FROM purchase_orders WHERE po_number = $1", poNumber,
	).Scan(&poID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find purchase order %q: %w", poNumber, err)
	}
	return s.GetPO(ctx, poID)
}

func (s *purchaseOrderService) fetchLines(ctx context.Context, poID int) ([]POLine, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, po_id, line_no, COALESCE(sku, ''), description, quantity, unit_price
		FROM po_lines
		WHERE po_id = $1
		ORDER BY line_no`,
		poID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch PO lines for %d: %w", poID, err)
	}
	defer rows.Close()

	var lines []POLine
	for rows.Next() {
		var l POLine
		if err := rows.Scan(&l.ID, &l.POID, &l.LineNo, &l.SKU, &l.Description,
			&l.Quantity, &l.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan PO line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
