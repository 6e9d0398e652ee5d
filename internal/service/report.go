package service

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Dmitryntvh/AVITO/internal/domain"
	"github.com/Dmitryntvh/AVITO/traits/helper"
)

// OrderReport — сводка по заказам: оплачено / не оплачено / долг.
type OrderReport struct {
	Total  int
	Paid   int
	Unpaid int
	Sum    decimal.Decimal
	Debt   decimal.Decimal
	Debts  []domain.Order
}

// BuildOrderReport считает сводку. Заказ считается оплаченным только
// в статусе paid.
func BuildOrderReport(orders []domain.Order) OrderReport {
	var r OrderReport
	for _, o := range orders {
		r.Total++
		r.Sum = r.Sum.Add(o.TotalAmount)
		if o.Status == domain.OrderStatusPaid {
			r.Paid++
			continue
		}
		r.Unpaid++
		r.Debt = r.Debt.Add(o.TotalAmount)
		r.Debts = append(r.Debts, o)
	}
	return r
}

// Text рендерит отчёт для чата.
func (r OrderReport) Text() string {
	lines := []string{
		"📊 Отчёт",
		fmt.Sprintf("Всего заказов: %d", r.Total),
		fmt.Sprintf("Оплачено: %d", r.Paid),
		fmt.Sprintf("Не оплачено: %d", r.Unpaid),
		"Общая сумма: " + helper.FormatAmount(r.Sum),
		"Сумма задолженности: " + helper.FormatAmount(r.Debt),
	}
	if len(r.Debts) == 0 {
		lines = append(lines, "", "Все заказы оплачены")
		return strings.Join(lines, "\n")
	}

	lines = append(lines, "", "Неоплаченные заказы:")
	for _, o := range r.Debts {
		client := o.ClientName
		if client == "" {
			client = o.ClientPhone
		}
		if client == "" {
			client = "?"
		}
		lines = append(lines, fmt.Sprintf("• %s… | %s | %s | %s",
			ShortID(o.ID), client, helper.FormatAmount(o.TotalAmount), o.Status))
	}
	return strings.Join(lines, "\n")
}

// ShortID — первые 8 символов id для компактного вывода.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
