package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PairFilter narrows ListPairs. HasIssues filters on requires_review when set.
type PairFilter struct {
	Status    PairStatus
	Stage     Stage
	HasIssues *bool
	Limit     int
	Offset    int
}

type PairService interface {
	// CreatePair opens workflow tracking for an (invoice, PO) pairing.
	// Idempotent per (invoice_id, po_id): re-running matching returns the
	// existing pair instead of creating a second one. The source result's
	// issues are copied into owned, unresolved ValidationIssue rows.
	CreatePair(ctx context.Context, invoiceID int, poID *int, matchingResultID uuid.UUID) (*DocumentPair, error)

	GetPair(ctx context.Context, pairID uuid.UUID) (*DocumentPair, error)
	ListPairs(ctx context.Context, filter PairFilter) ([]DocumentPair, error)

	// AdvanceStage moves the pair one stage forward. Already at approved is a
	// no-op, not an error.
	AdvanceStage(ctx context.Context, pairID uuid.UUID) (*DocumentPair, error)

	// ResolveIssue closes one validation issue. When the last open issue on
	// the pair is resolved, requires_review drops to false and a
	// needs_review status falls back to in_progress.
	ResolveIssue(ctx context.Context, pairID, issueID uuid.UUID, action ResolutionAction, notes, resolvedBy string) (*ValidationIssue, error)

	// ApprovePair is the human override: it approves both axes even with
	// unresolved issues outstanding.
	ApprovePair(ctx context.Context, pairID uuid.UUID, notes string) (*DocumentPair, error)

	// RejectPair terminates the status axis; the stage stays where it was.
	RejectPair(ctx context.Context, pairID uuid.UUID, reason string) (*DocumentPair, error)
}

type pairService struct {
	pool *pgxpool.Pool
}

// NewPairService constructs a PairService backed by PostgreSQL.
func NewPairService(pool *pgxpool.Pool) PairService {
	return &pairService{pool: pool}
}

const pairColumns = `
	id, invoice_id, po_id, matching_result_id, current_stage, overall_status,
	requires_review, has_critical_issues, resolution_notes,
	matched_at, validated_at, approved_at, created_at, updated_at`

func (s *pairService) CreatePair(ctx context.Context, invoiceID int, poID *int, matchingResultID uuid.UUID) (*DocumentPair, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status MatchStatus
	var issuesJSON []byte
	if err := tx.QueryRow(ctx,
		"SELECT match_status, issues FROM matching_results WHERE id = $1",
		matchingResultID,
	).Scan(&status, &issuesJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: matching result %s", ErrNotFound, matchingResultID)
		}
		return nil, fmt.Errorf("fetch matching result %s: %w", matchingResultID, err)
	}
	issues, err := DecodeIssues(issuesJSON)
	if err != nil {
		return nil, fmt.Errorf("decode issues for result %s: %w", matchingResultID, err)
	}

	pairID := uuid.New()
	overall := InitialPairStatus(status)
	requiresReview := status == StatusNeedsReview
	hasCritical := HasCritical(issues)

	// The unique index on (invoice_id, COALESCE(po_id, -1)) makes this a
	// no-op when the pairing has been tracked before; the re-read below
	// returns whichever row won.
	tag, err := tx.Exec(ctx, `
		INSERT INTO document_pairs
			(id, invoice_id, po_id, matching_result_id, current_stage, overall_status,
			 requires_review, has_critical_issues, matched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT DO NOTHING`,
		pairID, invoiceID, poID, matchingResultID, StageMatched, overall,
		requiresReview, hasCritical,
	)
	if err != nil {
		return nil, fmt.Errorf("insert document pair: %w", err)
	}

	if tag.RowsAffected() > 0 {
		for _, issue := range issues {
			detailsJSON, err := json.Marshal(issue.Details)
			if err != nil {
				return nil, fmt.Errorf("encode issue details: %w", err)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO validation_issues
					(id, document_pair_id, category, severity, message, details, line_number)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				uuid.New(), pairID, issue.Category, issue.Severity, issue.Message,
				detailsJSON, issue.LineNumber,
			); err != nil {
				return nil, fmt.Errorf("insert validation issue: %w", err)
			}
		}
	}

	pair, err := scanPairWhere(ctx, tx,
		"invoice_id = $1 AND COALESCE(po_id, -1) = COALESCE($2, -1)", invoiceID, poID)
	if err != nil {
		return nil, err
	}
	if err := loadIssues(ctx, tx, pair); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit pair creation: %w", err)
	}
	return pair, nil
}

func (s *pairService) GetPair(ctx context.Context, pairID uuid.UUID) (*DocumentPair, error) {
	pair, err := scanPairWhere(ctx, s.pool, "id = $1", pairID)
	if err != nil {
		return nil, err
	}
	if err := loadIssues(ctx, s.pool, pair); err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *pairService) ListPairs(ctx context.Context, filter PairFilter) ([]DocumentPair, error) {
	query := "SELECT " + pairColumns + " FROM document_pairs WHERE 1=1"
	var args []any

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND overall_status = $%d", len(args))
	}
	if filter.Stage != "" {
		args = append(args, filter.Stage)
		query += fmt.Sprintf(" AND current_stage = $%d", len(args))
	}
	if filter.HasIssues != nil {
		args = append(args, *filter.HasIssues)
		query += fmt.Sprintf(" AND requires_review = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list document pairs: %w", err)
	}
	defer rows.Close()

	var pairs []DocumentPair
	for rows.Next() {
		var p DocumentPair
		if err := scanPair(rows, &p); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

func (s *pairService) AdvanceStage(ctx context.Context, pairID uuid.UUID) (*DocumentPair, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	pair, err := lockPair(ctx, tx, pairID)
	if err != nil {
		return nil, err
	}

	next, ok := NextStage(pair.CurrentStage)
	if ok {
		stamp := ""
		switch next {
		case StageValidated:
			stamp = ", validated_at = NOW()"
		case StageApproved:
			stamp = ", approved_at = NOW()"
		}
		if _, err := tx.Exec(ctx,
			"UPDATE document_pairs SET current_stage = $1"+stamp+", updated_at = NOW() WHERE id = $2",
			next, pairID,
		); err != nil {
			return nil, fmt.Errorf("advance pair %s: %w", pairID, err)
		}
	}

	pair, err = scanPairWhere(ctx, tx, "id = $1", pairID)
	if err != nil {
		return nil, err
	}
	if err := loadIssues(ctx, tx, pair); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit stage advance: %w", err)
	}
	return pair, nil
}

func (s *pairService) ResolveIssue(ctx context.Context, pairID, issueID uuid.UUID, action ResolutionAction, notes, resolvedBy string) (*ValidationIssue, error) {
	switch action {
	case ResolutionAccepted, ResolutionOverridden, ResolutionCorrected:
	default:
		return nil, fmt.Errorf("%w: unknown resolution action %q", ErrInvalidRequest, action)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := lockPair(ctx, tx, pairID); err != nil {
		return nil, err
	}

	var resolved bool
	if err := tx.QueryRow(ctx,
		"SELECT resolved FROM validation_issues WHERE id = $1 AND document_pair_id = $2",
		issueID, pairID,
	).Scan(&resolved); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: validation issue %s on pair %s", ErrNotFound, issueID, pairID)
		}
		return nil, fmt.Errorf("fetch validation issue %s: %w", issueID, err)
	}
	if resolved {
		return nil, fmt.Errorf("%w: validation issue %s already resolved", ErrInvalidRequest, issueID)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE validation_issues
		SET resolved = TRUE, resolved_by = $1, resolved_at = NOW(),
		    resolution_action = $2, resolution_notes = $3
		WHERE id = $4`,
		resolvedBy, action, nullableString(notes), issueID,
	); err != nil {
		return nil, fmt.Errorf("resolve validation issue %s: %w", issueID, err)
	}

	var remaining int
	if err := tx.QueryRow(ctx,
		"SELECT COUNT(*) FROM validation_issues WHERE document_pair_id = $1 AND NOT resolved",
		pairID,
	).Scan(&remaining); err != nil {
		return nil, fmt.Errorf("count open issues for pair %s: %w", pairID, err)
	}
	if remaining == 0 {
		// Clearing the last issue releases the review hold but never
		// auto-approves.
		if _, err := tx.Exec(ctx, `
			UPDATE document_pairs
			SET requires_review = FALSE,
			    overall_status = CASE WHEN overall_status = 'needs_review'
			                          THEN 'in_progress' ELSE overall_status END,
			    updated_at = NOW()
			WHERE id = $1`,
			pairID,
		); err != nil {
			return nil, fmt.Errorf("release review hold on pair %s: %w", pairID, err)
		}
	}

	issue, err := scanIssue(ctx, tx, issueID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit issue resolution: %w", err)
	}
	return issue, nil
}

func (s *pairService) ApprovePair(ctx context.Context, pairID uuid.UUID, notes string) (*DocumentPair, error) {
	return s.finalize(ctx, pairID, `
		UPDATE document_pairs
		SET overall_status = 'approved', current_stage = 'approved',
		    approved_at = NOW(), resolution_notes = $2, updated_at = NOW()
		WHERE id = $1`, notes, InvoiceApproved)
}

func (s *pairService) RejectPair(ctx context.Context, pairID uuid.UUID, reason string) (*DocumentPair, error) {
	return s.finalize(ctx, pairID, `
		UPDATE document_pairs
		SET overall_status = 'rejected', resolution_notes = $2, updated_at = NOW()
		WHERE id = $1`, reason, InvoiceRejected)
}

func (s *pairService) finalize(ctx context.Context, pairID uuid.UUID, update, notes string, invoiceStatus InvoiceStatus) (*DocumentPair, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	pair, err := lockPair(ctx, tx, pairID)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, update, pairID, nullableString(notes)); err != nil {
		return nil, fmt.Errorf("finalize pair %s: %w", pairID, err)
	}
	if _, err := tx.Exec(ctx,
		"UPDATE invoices SET status = $1, updated_at = NOW() WHERE id = $2",
		invoiceStatus, pair.InvoiceID,
	); err != nil {
		return nil, fmt.Errorf("update invoice %d status: %w", pair.InvoiceID, err)
	}

	pair, err = scanPairWhere(ctx, tx, "id = $1", pairID)
	if err != nil {
		return nil, err
	}
	if err := loadIssues(ctx, tx, pair); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit pair finalization: %w", err)
	}
	return pair, nil
}

// querier is the subset of pgx shared by a pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func lockPair(ctx context.Context, tx pgx.Tx, pairID uuid.UUID) (*DocumentPair, error) {
	return scanPairRow(tx.QueryRow(ctx,
		"SELECT "+pairColumns+" FROM document_pairs WHERE id = $1 FOR UPDATE", pairID),
		pairID.String())
}

func scanPairWhere(ctx context.Context, q querier, where string, args ...any) (*DocumentPair, error) {
	return scanPairRow(q.QueryRow(ctx,
		"SELECT "+pairColumns+" FROM document_pairs WHERE "+where, args...),
		where)
}

func scanPairRow(row pgx.Row, ref string) (*DocumentPair, error) {
	var p DocumentPair
	if err := scanPair(row, &p); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: document pair (%s)", ErrNotFound, ref)
		}
		return nil, err
	}
	return &p, nil
}

func scanPair(row pgx.Row, p *DocumentPair) error {
	err := row.Scan(
		&p.ID, &p.InvoiceID, &p.POID, &p.MatchingResultID, &p.CurrentStage, &p.OverallStatus,
		&p.RequiresReview, &p.HasCriticalIssues, &p.ResolutionNotes,
		&p.MatchedAt, &p.ValidatedAt, &p.ApprovedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("scan document pair: %w", err)
	}
	return nil
}

func loadIssues(ctx context.Context, q querier, pair *DocumentPair) error {
	rows, err := q.Query(ctx, `
		SELECT id, document_pair_id, category, severity, message, details, line_number,
		       resolved, resolved_by, resolved_at, resolution_action, resolution_notes, created_at
		FROM validation_issues
		WHERE document_pair_id = $1
		ORDER BY created_at, id`,
		pair.ID,
	)
	if err != nil {
		return fmt.Errorf("load issues for pair %s: %w", pair.ID, err)
	}
	defer rows.Close()

	pair.Issues = nil
	for rows.Next() {
		var issue ValidationIssue
		var detailsJSON []byte
		var severity string
		if err := rows.Scan(
			&issue.ID, &issue.PairID, &issue.Category, &severity, &issue.Message,
			&detailsJSON, &issue.LineNumber,
			&issue.Resolved, &issue.ResolvedBy, &issue.ResolvedAt,
			&issue.ResolutionAction, &issue.ResolutionNotes, &issue.CreatedAt,
		); err != nil {
			return fmt.Errorf("scan validation issue: %w", err)
		}
		issue.Severity = ParseSeverity(severity)
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &issue.Details); err != nil {
				return fmt.Errorf("decode issue details: %w", err)
			}
		}
		pair.Issues = append(pair.Issues, issue)
	}
	return rows.Err()
}

func scanIssue(ctx context.Context, q querier, issueID uuid.UUID) (*ValidationIssue, error) {
	var issue ValidationIssue
	var detailsJSON []byte
	var severity string
	err := q.QueryRow(ctx, `
		SELECT id, document_pair_id, category, severity, message, details, line_number,
		       resolved, resolved_by, resolved_at, resolution_action, resolution_notes, created_at
		FROM validation_issues
		WHERE id = $1`,
		issueID,
	).Scan(
		&issue.ID, &issue.PairID, &issue.Category, &severity, &issue.Message,
		&detailsJSON, &issue.LineNumber,
		&issue.Resolved, &issue.ResolvedBy, &issue.ResolvedAt,
		&issue.ResolutionAction, &issue.ResolutionNotes, &issue.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: validation issue %s", ErrNotFound, issueID)
	}
	if err != nil {
		return nil, fmt.Errorf("get validation issue %s: %w", issueID, err)
	}
	issue.Severity = ParseSeverity(severity)
	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &issue.Details); err != nil {
			return nil, fmt.Errorf("decode issue details: %w", err)
		}
	}
	return &issue, nil
}
