// Package month содержит арифметику календарных месяцев: окна квот
// и сроки подписок.
package month

import (
	"time"

	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

// WindowOf возвращает окно квоты (год, месяц) для момента t в UTC.
func WindowOf(t time.Time) models.Window {
	u := t.UTC()
	return models.Window{Year: u.Year(), Month: u.Month()}
}

// Shift сдвигает окно на n месяцев (n может быть отрицательным).
func Shift(w models.Window, n int) models.Window {
	t := time.Date(w.Year, w.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return models.Window{Year: t.Year(), Month: t.Month()}
}

// Index возвращает порядковый номер окна в месяцах, удобный для сравнения.
func Index(w models.Window) int {
	return w.Year*12 + int(w.Month) - 1
}

// Before сообщает, что окно a раньше окна b.
func Before(a, b models.Window) bool {
	return Index(a) < Index(b)
}

// PeriodEnd возвращает окончание оплаченного периода: год или месяц от start.
func PeriodEnd(start time.Time, yearly bool) time.Time {
	if yearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}
