// Package repository persists the stokvel ledger in PostgreSQL.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"gitlab.com/yelinaung/stokvel-bot/internal/database"
	"gitlab.com/yelinaung/stokvel-bot/internal/ledger"
)

// Store implements ledger.Store on PostgreSQL.
type Store struct {
	db database.DB
}

var _ ledger.Store = (*Store)(nil)

// NewStore creates a Store. db may be a pool or, in tests, a transaction.
func NewStore(db database.DB) *Store {
	return &Store{db: db}
}

// Members returns a member repository outside any transaction.
func (s *Store) Members() ledger.MemberStore { return NewMemberRepository(s.db) }

// Submissions returns a submission repository outside any transaction.
func (s *Store) Submissions() ledger.SubmissionStore { return NewSubmissionRepository(s.db) }

// Pools returns an interest pool repository outside any transaction.
func (s *Store) Pools() ledger.PoolStore { return NewPoolRepository(s.db) }

// InTx runs fn inside one database transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		return fn(txRepositories{db: tx})
	})
}

type txRepositories struct {
	db database.PGXDB
}

func (t txRepositories) Members() ledger.MemberStore         { return NewMemberRepository(t.db) }
func (t txRepositories) Submissions() ledger.SubmissionStore { return NewSubmissionRepository(t.db) }
func (t txRepositories) Pools() ledger.PoolStore             { return NewPoolRepository(t.db) }
