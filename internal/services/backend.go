// Package services holds the unified data façade that sits between chat
// handlers and the two persistence backends, plus the one-shot legacy
// identifier migration.
package services

import (
	"context"

	"github.com/xchangebot/ledger/internal/domain"
)

// Backend is the capability set both persistence backends implement:
// transaction store, settings store, and statistics. Exactly one backend is
// selected at process start and held for the lifetime of the façade.
type Backend interface {
	AddTransaction(ctx context.Context, tx domain.NewTransaction) (int64, error)
	UpdateTransaction(ctx context.Context, id int64, upd domain.TransactionUpdate) (bool, error)
	Transaction(ctx context.Context, id int64) (*domain.TransactionRecord, error)
	Transactions(ctx context.Context, q domain.TransactionQuery) ([]domain.TransactionRecord, error)
	MarkTransactionPaid(ctx context.Context, id int64, hash string) (bool, error)

	SaveDaySettings(ctx context.Context, chatID int64, rate, commission float64) (bool, error)
	DaySettings(ctx context.Context, chatID int64) (*domain.DaySettings, error)
	IsDayOpen(ctx context.Context, chatID int64) (bool, error)
	SetDayStatus(ctx context.Context, chatID int64, open bool) (bool, error)
	CurrentRate(ctx context.Context, chatID int64) (float64, bool, error)

	DailyStatistics(ctx context.Context, chatID int64, forceRefresh bool) (domain.DayStats, error)
}

// BackendKind identifies which backend the façade was built over.
type BackendKind string

const (
	BackendSheets   BackendKind = "sheets"
	BackendDatabase BackendKind = "database"
)
