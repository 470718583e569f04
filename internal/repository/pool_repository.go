package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/stokvel-bot/internal/database"
	"gitlab.com/yelinaung/stokvel-bot/internal/models"
)

// PoolRepository handles interest pool database operations.
type PoolRepository struct {
	db database.PGXDB
}

// NewPoolRepository creates a new PoolRepository.
func NewPoolRepository(db database.PGXDB) *PoolRepository {
	return &PoolRepository{db: db}
}

// CreditFine adds amount to the year's fines, creating the pool row if needed.
func (r *PoolRepository) CreditFine(ctx context.Context, year int, amount decimal.Decimal) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO interest_pools (year, total_fines)
		VALUES ($1, $2)
		ON CONFLICT (year) DO UPDATE
		SET total_fines = interest_pools.total_fines + EXCLUDED.total_fines, updated_at = NOW()
	`, year, amount)
	if err != nil {
		return fmt.Errorf("failed to credit interest pool: %w", err)
	}
	return nil
}

// SetBankInterest replaces the year's bank interest.
func (r *PoolRepository) SetBankInterest(ctx context.Context, year int, amount decimal.Decimal) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO interest_pools (year, bank_interest)
		VALUES ($1, $2)
		ON CONFLICT (year) DO UPDATE
		SET bank_interest = EXCLUDED.bank_interest, updated_at = NOW()
	`, year, amount)
	if err != nil {
		return fmt.Errorf("failed to set bank interest: %w", err)
	}
	return nil
}

// Get returns the year's pool, or a zero pool when no row exists.
func (r *PoolRepository) Get(ctx context.Context, year int) (*models.InterestPool, error) {
	p := models.InterestPool{Year: year, TotalFines: decimal.Zero, BankInterest: decimal.Zero}
	err := r.db.QueryRow(ctx, `
		SELECT total_fines, bank_interest, updated_at FROM interest_pools WHERE year = $1
	`, year).Scan(&p.TotalFines, &p.BankInterest, &p.UpdatedAt)
	if err != nil {
		if errors.Is(mapErr(err), models.ErrNotFound) {
			return &p, nil
		}
		return nil, fmt.Errorf("failed to get interest pool: %w", err)
	}
	return &p, nil
}

// List returns all pools by year.
func (r *PoolRepository) List(ctx context.Context) ([]models.InterestPool, error) {
	rows, err := r.db.Query(ctx, `
		SELECT year, total_fines, bank_interest, updated_at FROM interest_pools ORDER BY year
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query interest pools: %w", err)
	}
	defer rows.Close()

	var pools []models.InterestPool
	for rows.Next() {
		var p models.InterestPool
		if err := rows.Scan(&p.Year, &p.TotalFines, &p.BankInterest, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interest pool: %w", err)
		}
		pools = append(pools, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate interest pools: %w", err)
	}
	return pools, nil
}
