// Package domain defines the persistence models and wire-level records for
// the exchange ledger: per-chat day settings, transactions, and the daily
// statistics rollup. The relational models are mapped with GORM; the
// TransactionRecord type mirrors the spreadsheet row layout where every
// value round-trips as text.
package domain

import (
	"strconv"
	"strings"
	"time"
)

// MSK is the fixed regional timezone all ledger timestamps are recorded in.
var MSK = time.FixedZone("MSK", 3*60*60)

// Date and datetime layouts used across both backends and in the sheet cells.
const (
	DateLayout     = "02.01.2006"
	DateTimeLayout = "02.01.2006 15:04:05"
)

// Transaction payout statuses. Matching is deliberately loose: historical
// rows carry hand-edited values, so unpaid detection is substring-based
// while paid detection requires an exact (case-insensitive) match.
const (
	StatusUnpaid = "not paid"
	StatusPaid   = "paid"
)

// Day open/closed markers as stored in the DayStatus table.
const (
	DayOpen   = "Open"
	DayClosed = "Closed"
)

// IsPaidStatus reports whether a status value means the transaction has been
// paid out. Only an exact "paid" (any case, surrounding space ignored) counts.
func IsPaidStatus(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), StatusPaid)
}

// IsUnpaidStatus reports whether a status value should be treated as awaiting
// payout. Empty statuses and anything containing "not" qualify.
func IsUnpaidStatus(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	return s == "" || strings.Contains(s, "not")
}

// Today returns the current ledger date in MSK.
func Today(now time.Time) string {
	return now.In(MSK).Format(DateLayout)
}

// ChatSettings stores the exchange rate and commission in effect for a chat.
// The relational backend keeps a single global row reused for every chat;
// ChatID is retained for compatibility with the original per-chat scheme.
type ChatSettings struct {
	ID                int64     `gorm:"primaryKey"`
	ChatID            int64     `gorm:"uniqueIndex;not null"`
	ChatName          string    `gorm:"type:varchar(255)"`
	ExchangeRate      float64   `gorm:"not null;default:0"`
	CommissionPercent float64   `gorm:"not null;default:0"`
	IsDayOpen         bool      `gorm:"not null;default:false"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName returns the database table name for ChatSettings.
func (ChatSettings) TableName() string { return "chat_settings" }

// Transaction is one currency-exchange deal belonging to a chat. New rows
// start in StatusUnpaid with an empty hash; MarkTransactionPaid sets both
// together.
type Transaction struct {
	ID              int64   `gorm:"primaryKey"`
	ChatID          int64   `gorm:"index;not null"`
	Amount          int64   `gorm:"not null"`
	Method          string  `gorm:"type:varchar(50);not null"`
	Commission      float64 `gorm:"not null;default:0"`
	Rate            float64 `gorm:"not null;default:0"`
	Status          string  `gorm:"type:varchar(20);not null;default:'not paid'"`
	TransactionHash string  `gorm:"type:varchar(255)"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName returns the database table name for Transaction.
func (Transaction) TableName() string { return "transactions" }

// ToRecord converts a relational row into the wire record shared with the
// spreadsheet backend. Numeric fields are rendered as plain text, matching
// how spreadsheet cells round-trip.
func (t *Transaction) ToRecord() TransactionRecord {
	return TransactionRecord{
		ID:         t.ID,
		Timestamp:  t.CreatedAt.In(MSK).Format(DateTimeLayout),
		Amount:     strconv.FormatInt(t.Amount, 10),
		Method:     t.Method,
		Commission: formatFloat(t.Commission),
		Rate:       formatFloat(t.Rate),
		Status:     t.Status,
		Group:      strconv.FormatInt(t.ChatID, 10),
		Hash:       t.TransactionHash,
		ChatID:     strconv.FormatInt(t.ChatID, 10),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// TransactionRecord is the backend-neutral representation of a transaction,
// laid out exactly like the 10-column sheet row. Amount, Commission and Rate
// stay text because sheet cells may carry currency/percent decorations;
// consumers parse them defensively via the money package.
type TransactionRecord struct {
	ID         int64
	Timestamp  string
	Amount     string
	Method     string
	Commission string
	Rate       string
	Status     string
	Group      string
	Hash       string
	ChatID     string
}

// NewTransaction carries the caller-supplied fields of a transaction to be
// created. Values may arrive decorated ("1 000₽", "5%"); each backend
// normalizes at its own write boundary.
type NewTransaction struct {
	Amount     string
	Method     string
	Commission string
	Rate       string
	Group      string
	ChatID     string
}

// TransactionUpdate is a partial update: nil fields are left untouched.
type TransactionUpdate struct {
	Amount     *string
	Method     *string
	Commission *string
	Rate       *string
	Status     *string
	Hash       *string
	ChatID     *string
}

// TransactionQuery selects transactions from a backend. A zero ChatID means
// "all chats" (the spreadsheet path filters in the façade instead); an empty
// Date means no date restriction.
type TransactionQuery struct {
	ChatID       int64
	Date         string
	UnpaidOnly   bool
	ForceRefresh bool
}

// DaySettings is the rate/commission pair in effect for a chat on a date.
type DaySettings struct {
	Date              string
	Rate              float64
	CommissionPercent float64
}

// DayStats is the daily statistics rollup for one chat. Monetary and
// percentage fields are rounded to 2 decimal places, as are the
// settlement-currency (USDT) conversions.
type DayStats struct {
	Date              string
	TransactionsCount int
	TotalAmount       float64
	AwaitingAmount    float64
	ToPayAmount       float64
	PaidAmount        float64
	AvgRate           float64
	AvgCommission     float64
	UnpaidUSDT        float64
	ToPayUSDT         float64
	TotalUSDT         float64
	PaidUSDT          float64
	MethodsCount      map[string]int
}
