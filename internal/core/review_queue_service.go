package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReviewOutcome is the terminal decision on a queued review item.
type ReviewOutcome string

const (
	ReviewApproved ReviewOutcome = "approved"
	ReviewRejected ReviewOutcome = "rejected"
)

// ReviewQueueFilter narrows ListQueue. Status is "pending", "resolved", or
// empty for both. Zero Limit defaults to 50.
type ReviewQueueFilter struct {
	Priority Priority
	Category IssueCategory
	Status   string
	Limit    int
}

type ReviewQueueService interface {
	// AddToQueue enqueues a needs-review result. Idempotent: if an open item
	// already references the result, that item is returned unchanged. A
	// matched result is an ErrInvalidRequest.
	AddToQueue(ctx context.Context, result *MatchingResult) (*ReviewQueueItem, error)

	// ListQueue returns items filtered by priority, category, and
	// open/resolved status, critical first and oldest first within a
	// priority.
	ListQueue(ctx context.Context, filter ReviewQueueFilter) ([]ReviewQueueItem, error)

	// ResolveItem closes an open item with the reviewer's outcome and
	// mirrors it onto the invoice's derived status. Resolving twice is an
	// ErrInvalidRequest.
	ResolveItem(ctx context.Context, queueID uuid.UUID, outcome ReviewOutcome, notes string) (*ReviewQueueItem, error)
}

type reviewQueueService struct {
	pool *pgxpool.Pool
}

// NewReviewQueueService constructs a ReviewQueueService backed by PostgreSQL.
func NewReviewQueueService(pool *pgxpool.Pool) ReviewQueueService {
	return &reviewQueueService{pool: pool}
}

func (s *reviewQueueService) AddToQueue(ctx context.Context, result *MatchingResult) (*ReviewQueueItem, error) {
	if result.Status != StatusNeedsReview {
		return nil, fmt.Errorf("%w: cannot queue a %s result for review", ErrInvalidRequest, result.Status)
	}

	if item, err := s.openItemFor(ctx, result.ID); err != nil {
		return nil, err
	} else if item != nil {
		return item, nil
	}

	priority := DerivePriority(result.Issues)
	category := IssueCategory("unknown")
	if primary := PrimaryIssue(result.Issues); primary != nil {
		category = primary.Category
	}
	now := time.Now()

	// The partial unique index on (matching_result_id) WHERE resolved_at IS
	// NULL makes concurrent enqueues converge: the loser's insert is a no-op
	// and the re-read below returns the winner's row.
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO review_queue (id, matching_result_id, priority, issue_category, sla_deadline)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING`,
		uuid.New(), result.ID, priority, category, SLADeadline(priority, now),
	); err != nil {
		return nil, fmt.Errorf("insert review queue item: %w", err)
	}

	item, err := s.openItemFor(ctx, result.ID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("review queue item for result %s vanished after insert", result.ID)
	}
	return item, nil
}

func (s *reviewQueueService) ListQueue(ctx context.Context, filter ReviewQueueFilter) ([]ReviewQueueItem, error) {
	query := `
		SELECT id, matching_result_id, priority, issue_category, assigned_to,
		       sla_deadline, created_at, resolved_at, resolution_notes
		FROM review_queue
		WHERE 1=1`
	var args []any

	if filter.Priority != "" {
		args = append(args, filter.Priority)
		query += fmt.Sprintf(" AND priority = $%d", len(args))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND issue_category = $%d", len(args))
	}
	switch filter.Status {
	case "pending":
		query += " AND resolved_at IS NULL"
	case "resolved":
		query += " AND resolved_at IS NOT NULL"
	}

	query += `
		ORDER BY array_position(ARRAY['critical','high','medium','low'], priority),
		         created_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list review queue: %w", err)
	}
	defer rows.Close()

	var items []ReviewQueueItem
	for rows.Next() {
		var it ReviewQueueItem
		if err := rows.Scan(
			&it.ID, &it.MatchingResultID, &it.Priority, &it.IssueCategory, &it.AssignedTo,
			&it.SLADeadline, &it.CreatedAt, &it.ResolvedAt, &it.ResolutionNotes,
		); err != nil {
			return nil, fmt.Errorf("scan review queue item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *reviewQueueService) ResolveItem(ctx context.Context, queueID uuid.UUID, outcome ReviewOutcome, notes string) (*ReviewQueueItem, error) {
	if outcome != ReviewApproved && outcome != ReviewRejected {
		return nil, fmt.Errorf("%w: outcome must be approved or rejected", ErrInvalidRequest)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var resultID uuid.UUID
	var resolvedAt *time.Time
	if err := tx.QueryRow(ctx,
		"SELECT matching_result_id, resolved_at FROM review_queue WHERE id = $1 FOR UPDATE",
		queueID,
	).Scan(&resultID, &resolvedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: review queue item %s", ErrNotFound, queueID)
		}
		return nil, fmt.Errorf("fetch review queue item %s: %w", queueID, err)
	}
	if resolvedAt != nil {
		return nil, fmt.Errorf("%w: review queue item %s already resolved", ErrInvalidRequest, queueID)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE review_queue SET resolved_at = NOW(), resolution_notes = $1 WHERE id = $2",
		nullableString(notes), queueID,
	); err != nil {
		return nil, fmt.Errorf("resolve review queue item %s: %w", queueID, err)
	}

	var invoiceID int
	if err := tx.QueryRow(ctx, `
		UPDATE matching_results
		SET reviewed_by = 'user', reviewed_at = NOW()
		WHERE id = $1
		RETURNING invoice_id`,
		resultID,
	).Scan(&invoiceID); err != nil {
		return nil, fmt.Errorf("stamp matching result %s: %w", resultID, err)
	}

	invoiceStatus := InvoiceApproved
	if outcome == ReviewRejected {
		invoiceStatus = InvoiceRejected
	}
	if _, err := tx.Exec(ctx,
		"UPDATE invoices SET status = $1, updated_at = NOW() WHERE id = $2",
		invoiceStatus, invoiceID,
	); err != nil {
		return nil, fmt.Errorf("update invoice %d status: %w", invoiceID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit review resolution: %w", err)
	}

	return s.getItem(ctx, queueID)
}

func (s *reviewQueueService) openItemFor(ctx context.Context, resultID uuid.UUID) (*ReviewQueueItem, error) {
	var it ReviewQueueItem
	err := s.pool.QueryRow(ctx, `
		SELECT id, matching_result_id, priority, issue_category, assigned_to,
		       sla_deadline, created_at, resolved_at, resolution_notes
		FROM review_queue
		WHERE matching_result_id = $1 AND resolved_at IS NULL`,
		resultID,
	).Scan(
		&it.ID, &it.MatchingResultID, &it.Priority, &it.IssueCategory, &it.AssignedTo,
		&it.SLADeadline, &it.CreatedAt, &it.ResolvedAt, &it.ResolutionNotes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open review item for result %s: %w", resultID, err)
	}
	return &it, nil
}

func (s *reviewQueueService) getItem(ctx context.Context, queueID uuid.UUID) (*ReviewQueueItem, error) {
	var it ReviewQueueItem
	err := s.pool.QueryRow(ctx, `
		SELECT id, matching_result_id, priority, issue_category, assigned_to,
		       sla_deadline, created_at, resolved_at, resolution_notes
		FROM review_queue
		WHERE id = $1`,
		queueID,
	).Scan(
		&it.ID, &it.MatchingResultID, &it.Priority, &it.IssueCategory, &it.AssignedTo,
		&it.SLADeadline, &it.CreatedAt, &it.ResolvedAt, &it.ResolutionNotes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: review queue item %s", ErrNotFound, queueID)
	}
	if err != nil {
		return nil, fmt.Errorf("get review queue item %s: %w", queueID, err)
	}
	return &it, nil
}
