package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Dmitryntvh/AVITO/internal/domain"
)

func TestBuildOrderReport(t *testing.T) {
	orders := []domain.Order{
		{ID: "aaaaaaaa-1", Status: domain.OrderStatusPaid, TotalAmount: decimal.NewFromInt(1000)},
		{ID: "bbbbbbbb-2", Status: domain.OrderStatusShipped, TotalAmount: decimal.NewFromInt(2500), ClientName: "Иван"},
		{ID: "cccccccc-3", Status: domain.OrderStatusSubmitted, TotalAmount: decimal.RequireFromString("0.5"), ClientPhone: "+79990000000"},
	}

	r := BuildOrderReport(orders)
	assert.Equal(t, 3, r.Total)
	assert.Equal(t, 1, r.Paid)
	assert.Equal(t, 2, r.Unpaid)
	assert.True(t, decimal.RequireFromString("3500.5").Equal(r.Sum))
	assert.True(t, decimal.RequireFromString("2500.5").Equal(r.Debt))

	text := r.Text()
	assert.Contains(t, text, "Всего заказов: 3")
	assert.Contains(t, text, "Сумма задолженности: 2 500.5")
	assert.Contains(t, text, "• bbbbbbbb… | Иван | 2 500 | shipped")
	assert.Contains(t, text, "• cccccccc… | +79990000000 | 0.5 | submitted")
}

func TestBuildOrderReportAllPaid(t *testing.T) {
	r := BuildOrderReport([]domain.Order{{ID: "x", Status: domain.OrderStatusPaid}})
	assert.Contains(t, r.Text(), "Все заказы оплачены")
	assert.True(t, r.Debt.IsZero())
}
