package service

import "strings"

// NormalizePhone приводит номер к виду +7XXXXXXXXXX.
// Возвращает "", если номер не российский мобильный/городской из 11 цифр.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 11 && digits[0] == '8':
		digits = "7" + digits[1:]
	case len(digits) == 10:
		digits = "7" + digits
	}
	if len(digits) != 11 || digits[0] != '7' {
		return ""
	}
	return "+" + digits
}
