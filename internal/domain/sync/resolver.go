package sync

import (
	"time"
)

// Decision результат сравнения входящей и хранимой версии
type Decision int

const (
	// DecisionAcceptIncoming создать запись или перезаписать устаревшую серверную
	DecisionAcceptIncoming Decision = iota
	// DecisionKeepExisting версия уже применена, повтор ничего не меняет
	DecisionKeepExisting
	// DecisionManualReview клиент прислал устаревшую версию
	DecisionManualReview
)

func (d Decision) String() string {
	switch d {
	case DecisionAcceptIncoming:
		return "accept_incoming"
	case DecisionKeepExisting:
		return "keep_existing"
	case DecisionManualReview:
		return "manual_review"
	default:
		return "unknown"
	}
}

// Resolve сравнивает lastModified входящей записи с хранимой (nil, если записи нет).
// Равенство меток считается повторной доставкой: так повторные загрузки
// безопасны без отдельного индекса дедупликации. Решение не зависит от
// порядка вызовов.
func Resolve(incoming time.Time, stored *time.Time) Decision {
	if stored == nil {
		return DecisionAcceptIncoming
	}

	switch {
	case stored.Before(incoming):
		return DecisionAcceptIncoming
	case stored.After(incoming):
		return DecisionManualReview
	default:
		return DecisionKeepExisting
	}
}
