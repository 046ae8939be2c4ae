package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VendorService interface {
	CreateVendor(ctx context.Context, name, email string) (*Vendor, error)
	GetVendor(ctx context.Context, vendorID int) (*Vendor, error)
	ListVendors(ctx context.Context) ([]Vendor, error)
}

type vendorService struct {
	pool *pgxpool.Pool
}

// NewVendorService constructs a VendorService backed by PostgreSQL.
func NewVendorService(pool *pgxpool.Pool) VendorService {
	return &vendorService{pool: pool}
}

func (s *vendorService) CreateVendor(ctx context.Context, name, email string) (*Vendor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: vendor name is required", ErrInvalidRequest)
	}

	v := Vendor{Name: name, Email: strings.TrimSpace(email)}
	if err := s.pool.QueryRow(ctx,
		"INSERT INTO vendors (name, email) VALUES ($1, $2) RETURNING id",
		v.Name, nullableString(v.Email),
	).Scan(&v.ID); err != nil {
		return nil, fmt.Errorf("insert vendor: %w", err)
	}
	return &v, nil
}

func (s *vendorService) GetVendor(ctx context.Context, vendorID int) (*Vendor, error) {
	var v Vendor
	var email *string
	err := s.pool.QueryRow(ctx,
		"SELECT id, name, email FROM vendors WHERE id = $1", vendorID,
	).Scan(&v.ID, &v.Name, &email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: vendor %d", ErrNotFound, vendorID)
	}
	if err != nil {
		return nil, fmt.Errorf("get vendor %d: %w", vendorID, err)
	}
	if email != nil {
		v.Email = *email
	}
	return &v, nil
}

func (s *vendorService) ListVendors(ctx context.Context) ([]Vendor, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name, email FROM vendors ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	defer rows.Close()

	var vendors []Vendor
	for rows.Next() {
		var v Vendor
		var email *string
		if err := rows.Scan(&v.ID, &v.Name, &email); err != nil {
			return nil, fmt.Errorf("scan vendor: %w", err)
		}
		if email != nil {
			v.Email = *email
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}
