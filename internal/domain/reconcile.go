package domain

import (
	"strconv"
	"strings"
)

// MatchChat reports whether rec belongs to chatID. It accepts, in order: the
// structured chat id, the legacy group label holding the id as text, or a
// configured legacy label→id mapping matched by prefix or exact label. On a
// label match the returned record's ChatID is rewritten to the requested id
// so downstream consumers can filter uniformly; the stored row is untouched.
func MatchChat(rec TransactionRecord, chatID int64, legacy map[string]int64) (TransactionRecord, bool) {
	chatStr := strconv.FormatInt(chatID, 10)

	if rec.ChatID == chatStr {
		return rec, true
	}
	if rec.Group == chatStr {
		rec.ChatID = chatStr
		return rec, true
	}
	for label, id := range legacy {
		if id != chatID {
			continue
		}
		if rec.Group == label || strings.HasPrefix(rec.Group, label) {
			rec.ChatID = chatStr
			return rec, true
		}
	}
	return rec, false
}

// LooksStructured reports whether a chat identifier field already carries a
// structured signed-integer id rather than a legacy free-text label.
func LooksStructured(id string) bool {
	if id == "" {
		return false
	}
	_, err := strconv.ParseInt(id, 10, 64)
	return err == nil
}
