package service

import (
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNotPositive = errors.New("value must be positive")
	ErrNegative    = errors.New("value must not be negative")
)

var priceCleaner = strings.NewReplacer(" ", "", "\u00a0", "", "₽", "", "руб.", "", "руб", "")

// ParsePrice разбирает целую цену вида "12 500" или "12500 ₽".
func ParsePrice(priceStr string) (int, error) {
	return strconv.Atoi(priceCleaner.Replace(strings.TrimSpace(priceStr)))
}

// ParsePriceOrZero — ParsePrice, где нечисловое значение даёт 0.
func ParsePriceOrZero(priceStr string) int {
	n, err := ParsePrice(priceStr)
	if err != nil {
		return 0
	}
	return n
}

// ParseDecimal разбирает число, допуская запятую как разделитель.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = priceCleaner.Replace(strings.TrimSpace(s))
	return decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
}

// ParseQuantity разбирает количество товара; допустимо только > 0.
func ParseQuantity(s string) (decimal.Decimal, error) {
	q, err := ParseDecimal(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !q.IsPositive() {
		return decimal.Zero, ErrNotPositive
	}
	return q, nil
}

// ParseNonNegative разбирает цену товара; отрицательная цена — ошибка.
func ParseNonNegative(s string) (decimal.Decimal, error) {
	d, err := ParseDecimal(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegative
	}
	return d, nil
}
