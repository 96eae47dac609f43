package sheets

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/xchangebot/ledger/internal/cache"
	"github.com/xchangebot/ledger/internal/domain"
)

// Worksheet titles and headers. The transactions table has a fixed 10-column
// schema; DaySettings and DayStatus are append-oriented auxiliary tables.
const (
	daySettingsSheet = "DaySettings"
	dayStatusSheet   = "DayStatus"
)

var (
	transactionHeaders = []string{
		"ID", "Datetime", "Amount", "Method", "Commission",
		"Rate", "Status", "Group", "Hash", "ChatID",
	}
	daySettingsHeaders = []string{"Date", "Rate", "Commission", "ChatID"}
	dayStatusHeaders   = []string{"Date", "Status", "Time", "ChatID"}
)

// Config holds what the store needs to reach the remote spreadsheet.
type Config struct {
	CredentialsFile string
	SpreadsheetID   string
	SheetName       string
	LegacyGroups    map[string]int64
}

// Store is the spreadsheet-backed implementation of the ledger contract.
//
// Read operations absorb backend faults: they log and return the closest
// safe default (nil, false, or an empty collection). AddTransaction is the
// exception and propagates errors, since there is no safe default for
// "did this record get created".
type Store struct {
	cli       Client
	cache     *cache.Manager
	log       zerolog.Logger
	sheetName string
	legacy    map[string]int64
	offline   bool
	now       func() time.Time
}

// New connects to the remote spreadsheet. When credentials are missing or
// the remote is unreachable, the store falls back permanently into an
// offline in-memory mode seeded with one sample transaction, so the rest of
// the system can run without live credentials.
func New(ctx context.Context, cfg Config, c *cache.Manager, log zerolog.Logger) *Store {
	s := &Store{
		cache:     c,
		log:       log.With().Str("component", "sheets").Logger(),
		sheetName: cfg.SheetName,
		legacy:    cfg.LegacyGroups,
		now:       time.Now,
	}

	if cfg.CredentialsFile == "" || cfg.SpreadsheetID == "" {
		s.log.Warn().Msg("spreadsheet credentials missing, running in offline mode")
		s.goOffline(ctx)
		return s
	}

	cli, err := NewGoogleClient(ctx, cfg.CredentialsFile, cfg.SpreadsheetID)
	if err != nil {
		s.log.Warn().Err(err).Msg("spreadsheet unreachable, running in offline mode")
		s.goOffline(ctx)
		return s
	}
	s.cli = cli

	// Initialize the header row up front so the first append lands below it.
	if _, err := s.cli.Worksheet(ctx, s.sheetName, transactionHeaders); err != nil {
		s.log.Warn().Err(err).Msg("worksheet init failed, running in offline mode")
		s.goOffline(ctx)
	}
	return s
}

// NewWithClient builds a Store over an explicit Client. Used by tests.
func NewWithClient(cli Client, cfg Config, c *cache.Manager, log zerolog.Logger, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		cli:       cli,
		cache:     c,
		log:       log.With().Str("component", "sheets").Logger(),
		sheetName: cfg.SheetName,
		legacy:    cfg.LegacyGroups,
		now:       now,
	}
}

// Offline reports whether the store fell back to in-memory mode at startup.
func (s *Store) Offline() bool { return s.offline }

func (s *Store) goOffline(ctx context.Context) {
	s.offline = true
	cli := NewMemoryClient()
	s.cli = cli
	if ws, err := cli.Worksheet(ctx, s.sheetName, transactionHeaders); err == nil {
		_ = ws.Append(ctx, []string{
			"1",
			s.now().In(domain.MSK).Format(domain.DateTimeLayout),
			"10000",
			"USDT TRC20",
			"5",
			"92.5",
			domain.StatusUnpaid,
			"Test Group",
			"",
			"",
		})
	}
}

func (s *Store) transactions(ctx context.Context) (Worksheet, error) {
	return s.cli.Worksheet(ctx, s.sheetName, transactionHeaders)
}

// AddTransaction appends a new row. The id is max of all existing numeric
// ids plus one; this scan-then-append is not atomic against concurrent
// writers, which is accepted for an operator-driven write rate.
func (s *Store) AddTransaction(ctx context.Context, tx domain.NewTransaction) (int64, error) {
	ws, err := s.transactions(ctx)
	if err != nil {
		return 0, err
	}
	ids, err := ws.Col(ctx, 1)
	if err != nil {
		return 0, err
	}

	var newID int64 = 1
	for i, raw := range ids {
		if i == 0 {
			continue // header
		}
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id >= newID {
			newID = id + 1
		}
	}

	row := []string{
		strconv.FormatInt(newID, 10),
		s.now().In(domain.MSK).Format(domain.DateTimeLayout),
		tx.Amount,
		tx.Method,
		tx.Commission,
		tx.Rate,
		domain.StatusUnpaid,
		tx.Group,
		"",
		tx.ChatID,
	}
	if err := ws.Append(ctx, row); err != nil {
		return 0, err
	}

	s.cache.OnWrite(cache.WriteAddTransaction)
	s.log.Info().Int64("id", newID).Msg("transaction added")
	return newID, nil
}

// findRow returns the 1-based sheet row index and cells for the given
// transaction id, or 0 when not present.
func (s *Store) findRow(ctx context.Context, ws Worksheet, id int64) (int, []string, error) {
	ids, err := ws.Col(ctx, 1)
	if err != nil {
		return 0, nil, err
	}
	want := strconv.FormatInt(id, 10)
	for i, raw := range ids {
		if i == 0 {
			continue
		}
		if raw == want {
			rows, err := ws.Rows(ctx)
			if err != nil {
				return 0, nil, err
			}
			if i < len(rows) {
				return i + 1, rows[i], nil
			}
			return 0, nil, nil
		}
	}
	return 0, nil, nil
}

// UpdateTransaction merges the given fields into an existing row. ID,
// creation datetime and the group label are never rewritten here except when
// the update explicitly carries a chat id (migration path).
func (s *Store) UpdateTransaction(ctx context.Context, id int64, upd domain.TransactionUpdate) (bool, error) {
	ws, err := s.transactions(ctx)
	if err != nil {
		s.log.Error().Err(err).Int64("id", id).Msg("update transaction")
		return false, nil
	}
	rowIdx, row, err := s.findRow(ctx, ws, id)
	if err != nil {
		s.log.Error().Err(err).Int64("id", id).Msg("update transaction")
		return false, nil
	}
	if rowIdx == 0 {
		s.log.Error().Int64("id", id).Msg("transaction not found")
		return false, nil
	}

	get := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	pick := func(p *string, i int) string {
		if p != nil {
			return *p
		}
		return get(i)
	}
	merged := []string{
		get(0), // ID unchanged
		get(1), // Datetime unchanged
		pick(upd.Amount, 2),
		pick(upd.Method, 3),
		pick(upd.Commission, 4),
		pick(upd.Rate, 5),
		pick(upd.Status, 6),
		get(7), // Group unchanged
		pick(upd.Hash, 8),
		pick(upd.ChatID, 9),
	}
	if err := ws.UpdateRow(ctx, rowIdx, merged); err != nil {
		s.log.Error().Err(err).Int64("id", id).Msg("update transaction")
		return false, nil
	}

	s.cache.OnWrite(cache.WriteUpdateTransaction)
	s.log.Info().Int64("id", id).Msg("transaction updated")
	return true, nil
}

// Transaction looks up a single transaction by id. Missing rows and backend
// faults both come back as nil; faults are logged.
func (s *Store) Transaction(ctx context.Context, id int64) (*domain.TransactionRecord, error) {
	key := cache.Key(cache.NSGetTransaction, id)
	return cache.Through(s.cache, key, false, func() (*domain.TransactionRecord, error) {
		ws, err := s.transactions(ctx)
		if err != nil {
			s.log.Error().Err(err).Int64("id", id).Msg("get transaction")
			return nil, nil
		}
		rowIdx, row, err := s.findRow(ctx, ws, id)
		if err != nil {
			s.log.Error().Err(err).Int64("id", id).Msg("get transaction")
			return nil, nil
		}
		if rowIdx == 0 {
			return nil, nil
		}
		rec := rowToRecord(row)
		return &rec, nil
	})
}

// Transactions lists rows matching the query. A zero ChatID returns all
// chats; the façade applies the legacy group-label reconciliation on top.
func (s *Store) Transactions(ctx context.Context, q domain.TransactionQuery) ([]domain.TransactionRecord, error) {
	ns := cache.NSAllTransactions
	if q.UnpaidOnly {
		ns = cache.NSUnpaidTransactions
	} else if q.Date == domain.Today(s.now()) {
		ns = cache.NSDailyTransactions
	}
	key := cache.Key(ns, q.Date, q.ChatID)

	return cache.Through(s.cache, key, q.ForceRefresh, func() ([]domain.TransactionRecord, error) {
		ws, err := s.transactions(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("list transactions")
			return []domain.TransactionRecord{}, nil
		}
		rows, err := ws.Rows(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("list transactions")
			return []domain.TransactionRecord{}, nil
		}

		chatStr := ""
		if q.ChatID != 0 {
			chatStr = strconv.FormatInt(q.ChatID, 10)
		}

		out := []domain.TransactionRecord{}
		for i, row := range rows {
			if i == 0 {
				continue
			}
			if len(row) < 7 {
				s.log.Warn().Int("row", i+1).Msg("skipping row with insufficient columns")
				continue
			}
			rec := rowToRecord(row)
			if q.Date != "" && !hasDatePrefix(rec.Timestamp, q.Date) {
				continue
			}
			if q.UnpaidOnly && !domain.IsUnpaidStatus(rec.Status) {
				continue
			}
			if chatStr != "" && rec.ChatID != chatStr {
				continue
			}
			out = append(out, rec)
		}
		return out, nil
	})
}

// MarkTransactionPaid sets the paid status and the transaction hash
// together. Calling it again with the same hash is a no-op update and stays
// successful.
func (s *Store) MarkTransactionPaid(ctx context.Context, id int64, hash string) (bool, error) {
	rec, err := s.Transaction(ctx, id)
	if err != nil || rec == nil {
		s.log.Error().Int64("id", id).Msg("mark paid: transaction not found")
		return false, nil
	}
	status := domain.StatusPaid
	return s.UpdateTransaction(ctx, id, domain.TransactionUpdate{
		Status: &status,
		Hash:   &hash,
	})
}

func rowToRecord(row []string) domain.TransactionRecord {
	get := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	id, _ := strconv.ParseInt(get(0), 10, 64)
	return domain.TransactionRecord{
		ID:         id,
		Timestamp:  get(1),
		Amount:     get(2),
		Method:     get(3),
		Commission: get(4),
		Rate:       get(5),
		Status:     get(6),
		Group:      get(7),
		Hash:       get(8),
		ChatID:     get(9),
	}
}

func hasDatePrefix(timestamp, date string) bool {
	return len(timestamp) >= len(date) && timestamp[:len(date)] == date
}
