// Package month содержит вспомогательные функции для работы с календарными месяцами.
package month

import "time"

// StartOf возвращает начало календарного месяца для переданного момента
// в его часовой зоне. Месячные квоты считаются от этой границы.
func StartOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// NextStart возвращает начало следующего календарного месяца.
func NextStart(t time.Time) time.Time {
	return StartOf(t).AddDate(0, 1, 0)
}
