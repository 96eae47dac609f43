package services

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/xchangebot/ledger/internal/domain"
)

// Manager is the unified entry point for all ledger data access. It wraps the
// backend chosen at startup and adds the spreadsheet-only quirks on top: the
// legacy group-label shims on reads and writes, and a small per-chat
// statistics cache that short-circuits repeated stats lookups between writes.
type Manager struct {
	backend Backend
	kind    BackendKind
	legacy  map[string]int64
	log     zerolog.Logger
	now     func() time.Time

	mu    sync.Mutex
	stats map[int64]statsEntry
}

type statsEntry struct {
	date  string
	stats domain.DayStats
}

// NewManager builds the façade over the selected backend. legacy maps
// historical group labels to structured chat ids and only matters on the
// spreadsheet path.
func NewManager(backend Backend, kind BackendKind, legacy map[string]int64, log zerolog.Logger) *Manager {
	return &Manager{
		backend: backend,
		kind:    kind,
		legacy:  legacy,
		log:     log.With().Str("component", "manager").Logger(),
		now:     time.Now,
		stats:   make(map[int64]statsEntry),
	}
}

// WithClock overrides the time source (tests).
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Kind returns which backend the façade was built over.
func (m *Manager) Kind() BackendKind { return m.kind }

// groupShim is true on the spreadsheet path, where rows may carry a legacy
// group label instead of a structured chat id.
func (m *Manager) groupShim() bool { return m.kind == BackendSheets }

func (m *Manager) clearStats(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if chatID == 0 {
		m.stats = make(map[int64]statsEntry)
		return
	}
	delete(m.stats, chatID)
}

// AddTransaction records a new transaction. On the spreadsheet path the chat
// id is mirrored into the group column when no label was supplied, so rows
// written today stay findable by either scheme.
func (m *Manager) AddTransaction(ctx context.Context, tx domain.NewTransaction) (int64, error) {
	if m.groupShim() && tx.Group == "" {
		tx.Group = tx.ChatID
	}
	id, err := m.backend.AddTransaction(ctx, tx)
	if err != nil {
		return 0, err
	}
	m.clearStats(0)
	return id, nil
}

// UpdateTransaction applies a partial update to an existing transaction.
func (m *Manager) UpdateTransaction(ctx context.Context, id int64, upd domain.TransactionUpdate) (bool, error) {
	ok, err := m.backend.UpdateTransaction(ctx, id, upd)
	if ok {
		m.clearStats(0)
	}
	return ok, err
}

// Transaction fetches one transaction by id; nil when missing.
func (m *Manager) Transaction(ctx context.Context, id int64) (*domain.TransactionRecord, error) {
	return m.backend.Transaction(ctx, id)
}

// Transactions lists transactions for a chat. On the spreadsheet path the
// backend is asked for every chat and the legacy reconciliation filters the
// result, so rows stored under old group labels still show up for their chat.
func (m *Manager) Transactions(ctx context.Context, q domain.TransactionQuery) ([]domain.TransactionRecord, error) {
	if !m.groupShim() || q.ChatID == 0 {
		return m.backend.Transactions(ctx, q)
	}

	chatID := q.ChatID
	q.ChatID = 0
	recs, err := m.backend.Transactions(ctx, q)
	if err != nil {
		return nil, err
	}

	out := make([]domain.TransactionRecord, 0, len(recs))
	for _, rec := range recs {
		if matched, ok := domain.MatchChat(rec, chatID, m.legacy); ok {
			out = append(out, matched)
		}
	}
	return out, nil
}

// MarkTransactionPaid records the payout hash and flips the status to paid.
func (m *Manager) MarkTransactionPaid(ctx context.Context, id int64, hash string) (bool, error) {
	ok, err := m.backend.MarkTransactionPaid(ctx, id, hash)
	if ok {
		m.clearStats(0)
	}
	return ok, err
}

// SaveDaySettings stores the day's rate and commission for a chat.
func (m *Manager) SaveDaySettings(ctx context.Context, chatID int64, rate, commission float64) (bool, error) {
	ok, err := m.backend.SaveDaySettings(ctx, chatID, rate, commission)
	if ok {
		m.clearStats(chatID)
	}
	return ok, err
}

// DaySettings returns today's settings for a chat; nil when never configured.
func (m *Manager) DaySettings(ctx context.Context, chatID int64) (*domain.DaySettings, error) {
	return m.backend.DaySettings(ctx, chatID)
}

// IsDayOpen reports whether the trading day is currently open for the chat.
func (m *Manager) IsDayOpen(ctx context.Context, chatID int64) (bool, error) {
	return m.backend.IsDayOpen(ctx, chatID)
}

// SetDayStatus opens or closes the trading day for a chat.
func (m *Manager) SetDayStatus(ctx context.Context, chatID int64, open bool) (bool, error) {
	ok, err := m.backend.SetDayStatus(ctx, chatID, open)
	if ok {
		m.clearStats(chatID)
	}
	return ok, err
}

// CurrentRate returns the exchange rate in effect for the chat, falling back
// to the most recent transaction rate; the boolean reports whether any rate
// was found.
func (m *Manager) CurrentRate(ctx context.Context, chatID int64) (float64, bool, error) {
	return m.backend.CurrentRate(ctx, chatID)
}

// DailyStatistics returns today's rollup for the chat. A façade-level cache
// holds the last computed rollup per chat with no TTL; it is dropped whenever
// any write lands, and forceRefresh bypasses it entirely.
func (m *Manager) DailyStatistics(ctx context.Context, chatID int64, forceRefresh bool) (domain.DayStats, error) {
	today := domain.Today(m.now())

	if !forceRefresh {
		m.mu.Lock()
		e, ok := m.stats[chatID]
		m.mu.Unlock()
		if ok && e.date == today {
			return e.stats, nil
		}
	}

	stats, err := m.backend.DailyStatistics(ctx, chatID, forceRefresh)
	if err != nil {
		return stats, err
	}

	m.mu.Lock()
	m.stats[chatID] = statsEntry{date: today, stats: stats}
	m.mu.Unlock()
	return stats, nil
}

// chatIDString renders a chat id the way the wire records carry it.
func chatIDString(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
