package services

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/xchangebot/ledger/internal/domain"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, domain.MSK)

func testNow() time.Time { return testTime }

// fakeBackend records calls and serves canned data; it stands in for either
// store in façade tests.
type fakeBackend struct {
	recs       []domain.TransactionRecord
	added      []domain.NewTransaction
	updates    map[int64]domain.TransactionUpdate
	lastQuery  domain.TransactionQuery
	statsCalls int
	stats      domain.DayStats
	failUpdate bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{updates: map[int64]domain.TransactionUpdate{}}
}

func (f *fakeBackend) AddTransaction(_ context.Context, tx domain.NewTransaction) (int64, error) {
	f.added = append(f.added, tx)
	return int64(len(f.added)), nil
}

func (f *fakeBackend) UpdateTransaction(_ context.Context, id int64, upd domain.TransactionUpdate) (bool, error) {
	if f.failUpdate {
		return false, errors.New("backend down")
	}
	f.updates[id] = upd
	for i := range f.recs {
		if f.recs[i].ID == id && upd.ChatID != nil {
			f.recs[i].ChatID = *upd.ChatID
		}
	}
	return true, nil
}

func (f *fakeBackend) Transaction(_ context.Context, id int64) (*domain.TransactionRecord, error) {
	for i := range f.recs {
		if f.recs[i].ID == id {
			rec := f.recs[i]
			return &rec, nil
		}
	}
	return nil, nil
}

func (f *fakeBackend) Transactions(_ context.Context, q domain.TransactionQuery) ([]domain.TransactionRecord, error) {
	f.lastQuery = q
	out := []domain.TransactionRecord{}
	for _, rec := range f.recs {
		if q.ChatID != 0 && rec.ChatID != strconv.FormatInt(q.ChatID, 10) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeBackend) MarkTransactionPaid(context.Context, int64, string) (bool, error) {
	return true, nil
}

func (f *fakeBackend) SaveDaySettings(context.Context, int64, float64, float64) (bool, error) {
	return true, nil
}

func (f *fakeBackend) DaySettings(context.Context, int64) (*domain.DaySettings, error) {
	return nil, nil
}

func (f *fakeBackend) IsDayOpen(context.Context, int64) (bool, error) { return false, nil }

func (f *fakeBackend) SetDayStatus(context.Context, int64, bool) (bool, error) { return true, nil }

func (f *fakeBackend) CurrentRate(context.Context, int64) (float64, bool, error) {
	return 0, false, nil
}

func (f *fakeBackend) DailyStatistics(context.Context, int64, bool) (domain.DayStats, error) {
	f.statsCalls++
	return f.stats, nil
}

func TestAddTransaction_SheetsPathMirrorsChatIntoGroup(t *testing.T) {
	f := newFakeBackend()
	m := NewManager(f, BackendSheets, nil, zerolog.Nop()).WithClock(testNow)

	if _, err := m.AddTransaction(context.Background(), domain.NewTransaction{Amount: "1000", ChatID: "42"}); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if got := f.added[0].Group; got != "42" {
		t.Fatalf("group = %q; want chat id mirrored", got)
	}

	// An explicit label is left alone.
	_, _ = m.AddTransaction(context.Background(), domain.NewTransaction{Amount: "1000", ChatID: "42", Group: "Office"})
	if got := f.added[1].Group; got != "Office" {
		t.Fatalf("group = %q; want Office", got)
	}
}

func TestAddTransaction_DatabasePathLeavesGroupAlone(t *testing.T) {
	f := newFakeBackend()
	m := NewManager(f, BackendDatabase, nil, zerolog.Nop()).WithClock(testNow)

	_, _ = m.AddTransaction(context.Background(), domain.NewTransaction{Amount: "1000", ChatID: "42"})
	if got := f.added[0].Group; got != "" {
		t.Fatalf("group = %q; want empty", got)
	}
}

func TestTransactions_SheetsPathReconcilesLegacyRows(t *testing.T) {
	f := newFakeBackend()
	f.recs = []domain.TransactionRecord{
		{ID: 1, ChatID: "42", Amount: "1000"},
		{ID: 2, Group: "Exchange Office", Amount: "2000"},
		{ID: 3, ChatID: "77", Amount: "3000"},
	}
	legacy := map[string]int64{"Exchange Office": 42}
	m := NewManager(f, BackendSheets, legacy, zerolog.Nop()).WithClock(testNow)

	recs, err := m.Transactions(context.Background(), domain.TransactionQuery{ChatID: 42})
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if f.lastQuery.ChatID != 0 {
		t.Fatalf("backend query chat = %d; façade must ask for all chats", f.lastQuery.ChatID)
	}
	if len(recs) != 2 {
		t.Fatalf("recs = %d; want 2", len(recs))
	}
	if recs[1].ChatID != "42" {
		t.Fatalf("legacy row chat not rewritten: %+v", recs[1])
	}
}

func TestTransactions_DatabasePathPassesChatThrough(t *testing.T) {
	f := newFakeBackend()
	f.recs = []domain.TransactionRecord{{ID: 1, ChatID: "42"}}
	m := NewManager(f, BackendDatabase, nil, zerolog.Nop()).WithClock(testNow)

	_, _ = m.Transactions(context.Background(), domain.TransactionQuery{ChatID: 42})
	if f.lastQuery.ChatID != 42 {
		t.Fatalf("backend query chat = %d; want 42", f.lastQuery.ChatID)
	}
}

func TestDailyStatistics_FacadeCache(t *testing.T) {
	f := newFakeBackend()
	f.stats = domain.DayStats{Date: "01.06.2025", TransactionsCount: 1}
	m := NewManager(f, BackendDatabase, nil, zerolog.Nop()).WithClock(testNow)
	ctx := context.Background()

	if _, err := m.DailyStatistics(ctx, 42, false); err != nil {
		t.Fatalf("DailyStatistics: %v", err)
	}
	_, _ = m.DailyStatistics(ctx, 42, false)
	if f.statsCalls != 1 {
		t.Fatalf("backend calls = %d; second read must hit the façade cache", f.statsCalls)
	}

	// Another chat misses.
	_, _ = m.DailyStatistics(ctx, 77, false)
	if f.statsCalls != 2 {
		t.Fatalf("backend calls = %d; want 2", f.statsCalls)
	}

	// Force refresh bypasses.
	_, _ = m.DailyStatistics(ctx, 42, true)
	if f.statsCalls != 3 {
		t.Fatalf("backend calls = %d; want 3", f.statsCalls)
	}

	// Any write drops the cached rollups.
	_, _ = m.AddTransaction(ctx, domain.NewTransaction{Amount: "1000", ChatID: "42"})
	_, _ = m.DailyStatistics(ctx, 42, false)
	if f.statsCalls != 4 {
		t.Fatalf("backend calls = %d; write must clear the cache", f.statsCalls)
	}

	// Settings writes clear only their chat.
	_, _ = m.DailyStatistics(ctx, 77, false)
	before := f.statsCalls
	_, _ = m.SaveDaySettings(ctx, 77, 100, 10)
	_, _ = m.DailyStatistics(ctx, 42, false)
	if f.statsCalls != before {
		t.Fatal("other chat's cached rollup must survive a settings write")
	}
	_, _ = m.DailyStatistics(ctx, 77, false)
	if f.statsCalls != before+1 {
		t.Fatal("written chat's rollup must be refetched")
	}
}

func TestDailyStatistics_CacheExpiresWithDay(t *testing.T) {
	f := newFakeBackend()
	m := NewManager(f, BackendDatabase, nil, zerolog.Nop())

	now := testTime
	m.WithClock(func() time.Time { return now })

	_, _ = m.DailyStatistics(context.Background(), 42, false)
	now = now.Add(24 * time.Hour)
	_, _ = m.DailyStatistics(context.Background(), 42, false)
	if f.statsCalls != 2 {
		t.Fatalf("backend calls = %d; yesterday's rollup must not serve today", f.statsCalls)
	}
}
