package service

import (
	"fmt"
	"strings"
	"time"
)

// RemindLayout — формат ручного ввода даты напоминания.
const RemindLayout = "02.01.2006 15:04"

// Пресеты напоминаний из кнопок CRM-бота.
const (
	RemindIn2Hours   = "2h"
	RemindTomorrow11 = "tom11"
	RemindIn3Days    = "3d"
	RemindClear      = "clear"
)

// ParseRemindAt разбирает "DD.MM.YYYY HH:MM" в зоне loc.
func ParseRemindAt(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(RemindLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse remind date %q: %w", s, err)
	}
	return t, nil
}

// RemindPreset вычисляет время по коду пресета. Для clear возвращает nil.
// ok=false для неизвестного кода.
func RemindPreset(code string, now time.Time) (at *time.Time, ok bool) {
	var t time.Time
	switch code {
	case RemindIn2Hours:
		t = now.Add(2 * time.Hour)
	case RemindTomorrow11:
		d := now.AddDate(0, 0, 1)
		t = time.Date(d.Year(), d.Month(), d.Day(), 11, 0, 0, 0, now.Location())
	case RemindIn3Days:
		t = now.AddDate(0, 0, 3)
	case RemindClear:
		return nil, true
	default:
		return nil, false
	}
	return &t, true
}

// FormatStamp форматирует время в зоне loc как "DD.MM.YYYY HH:MM".
func FormatStamp(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(RemindLayout)
}
