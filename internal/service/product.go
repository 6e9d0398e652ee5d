package service

import (
	"fmt"
	"strings"

	"github.com/Dmitryntvh/AVITO/internal/domain"
	"github.com/Dmitryntvh/AVITO/traits/helper"
)

// ValidateProduct проверяет товар из мастера добавления перед сохранением.
func ValidateProduct(p domain.Product) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid product: %w", err)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("invalid product: %w", ErrNegative)
	}
	return nil
}

// ProductLabel — подпись товара в каталоге: "Болт — 12.5/шт".
func ProductLabel(p domain.Product) string {
	label := p.Name + " — " + helper.FormatAmount(p.Price)
	if unit := strings.TrimSpace(p.Unit); unit != "" {
		label += "/" + unit
	}
	return label
}
