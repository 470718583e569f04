package database

import (
	"context"
	"fmt"
)

// RunMigrations creates the database schema.
func RunMigrations(ctx context.Context, db PGXDB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS members (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL UNIQUE,
			total_savings NUMERIC(14, 2) NOT NULL DEFAULT 0 CHECK (total_savings >= 0),
			total_fines NUMERIC(14, 2) NOT NULL DEFAULT 0 CHECK (total_fines >= 0),
			verified_count INTEGER NOT NULL DEFAULT 0,
			skipped_months INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'suspended')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS submissions (
			id UUID PRIMARY KEY,
			reference_code TEXT NOT NULL UNIQUE,
			member_name TEXT NOT NULL,
			member_phone TEXT NOT NULL,
			amount NUMERIC(14, 2) NOT NULL CHECK (amount > 0),
			payment_date DATE NOT NULL,
			payment_month TEXT NOT NULL,
			payment_method TEXT NOT NULL DEFAULT '',
			proof_ref TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			is_late BOOLEAN NOT NULL DEFAULT FALSE,
			fine_amount NUMERIC(14, 2) NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'verified', 'rejected')),
			member_id UUID REFERENCES members(id),
			rejection_reason TEXT NOT NULL DEFAULT '',
			reviewed_by TEXT NOT NULL DEFAULT '',
			submitter_chat_id BIGINT NOT NULL DEFAULT 0,
			submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			reviewed_at TIMESTAMPTZ
		)`,

		`CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_member_phone ON submissions(member_phone)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_payment_month ON submissions(payment_month)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_member_id ON submissions(member_id)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_submitted_at ON submissions(submitted_at)`,

		`CREATE TABLE IF NOT EXISTS interest_pools (
			year INTEGER PRIMARY KEY,
			total_fines NUMERIC(14, 2) NOT NULL DEFAULT 0 CHECK (total_fines >= 0),
			bank_interest NUMERIC(14, 2) NOT NULL DEFAULT 0 CHECK (bank_interest >= 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id BIGSERIAL PRIMARY KEY,
			action TEXT NOT NULL,
			actor TEXT NOT NULL DEFAULT '',
			details JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
