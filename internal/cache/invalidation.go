package cache

// Read-operation cache namespaces. Keys are always built as
// Key(namespace, args...), so clearing a namespace is a prefix-style
// pattern invalidation.
const (
	NSGetTransaction     = "get_transaction"
	NSAllTransactions    = "get_all_transactions"
	NSDailyTransactions  = "get_daily_transactions"
	NSUnpaidTransactions = "get_unpaid_transactions"
	NSDailyStatistics    = "get_daily_statistics"
	NSDaySettings        = "get_day_settings"
	NSIsDayOpen          = "is_day_open"
)

// WriteOp enumerates every mutation the stores perform. Each write clears a
// fixed set of read namespaces; there is no automatic dependency tracking,
// so this registry is the single place the write→read mapping lives.
type WriteOp int

const (
	WriteAddTransaction WriteOp = iota
	WriteUpdateTransaction
	WriteMarkTransactionPaid
	WriteSaveDaySettings
	WriteSetDayStatus
)

var writeInvalidations = map[WriteOp][]string{
	WriteAddTransaction: {
		NSGetTransaction,
		NSAllTransactions,
		NSDailyTransactions,
		NSUnpaidTransactions,
		NSDailyStatistics,
	},
	WriteUpdateTransaction: {
		NSGetTransaction,
		NSAllTransactions,
		NSDailyTransactions,
		NSUnpaidTransactions,
		NSDailyStatistics,
	},
	WriteMarkTransactionPaid: {
		NSGetTransaction,
		NSAllTransactions,
		NSDailyTransactions,
		NSUnpaidTransactions,
		NSDailyStatistics,
	},
	WriteSaveDaySettings: {
		NSDaySettings,
		NSDailyStatistics,
	},
	WriteSetDayStatus: {
		NSIsDayOpen,
		NSDailyStatistics,
	},
}

// OnWrite clears every read namespace registered for the given write
// operation. Stores call this after each successful mutation.
func (m *Manager) OnWrite(op WriteOp) {
	for _, ns := range writeInvalidations[op] {
		m.InvalidatePattern(ns)
	}
}
