package helper

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatPrice форматирует целую цену с разделителем тысяч: 35000 → "35 000".
func FormatPrice(price int) string {
	if price < 0 {
		return "-" + groupThousands(fmt.Sprintf("%d", -price))
	}
	return groupThousands(fmt.Sprintf("%d", price))
}

// FormatAmount форматирует денежную сумму или количество без лишних нулей:
// 1234.50 → "1 234.5", 25.00 → "25".
func FormatAmount(d decimal.Decimal) string {
	s := d.String()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	out := sign + groupThousands(intPart)
	if hasFrac {
		out += "." + frac
	}
	return out
}

func groupThousands(str string) string {
	if len(str) <= 3 {
		return str
	}

	var result []rune
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result = append(result, ' ')
		}
		result = append(result, char)
	}
	return string(result)
}
