package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dmitryntvh/AVITO/internal/domain"
)

func newShopRepo(t *testing.T) *ShopRepository {
	db, dialect := newTestDB(t)
	r := NewShopRepository(db, dialect)
	r.now = stepClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	return r
}

func mustProduct(t *testing.T, r *ShopRepository, code, price string) *domain.Product {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, r.UpsertProduct(ctx, domain.Product{
		Code: code, Name: "Товар " + code, Unit: "шт", Price: decimal.RequireFromString(price),
	}))
	p, err := r.GetProductByCode(ctx, code)
	require.NoError(t, err)
	return p
}

func TestInsertClientIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := newShopRepo(t)

	id1, err := r.InsertClient(ctx, 42, "+79990000000", "Пётр")
	require.NoError(t, err)
	id2, err := r.InsertClient(ctx, 42, "+70000000000", "Другой")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	c, err := r.GetClientByTgID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "+79990000000", c.Phone)
	assert.Equal(t, "Пётр", c.Name)

	_, err = r.GetClientByTgID(ctx, 7)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrderTotal(t *testing.T) {
	ctx := context.Background()
	r := newShopRepo(t)

	clientID, err := r.InsertClient(ctx, 1, "+79990000000", "")
	require.NoError(t, err)
	p1 := mustProduct(t, r, "p1", "10")
	p2 := mustProduct(t, r, "p2", "2.5")

	orderID, err := r.CreateOrder(ctx, clientID, "Москва, Тверская 1")
	require.NoError(t, err)

	two := decimal.NewFromInt(2)
	_, err = r.AddOrderItem(ctx, orderID, p1.ID, two, p1.Price)
	require.NoError(t, err)
	_, err = r.AddOrderItem(ctx, orderID, p2.ID, two, p2.Price)
	require.NoError(t, err)

	total, err := r.UpdateOrderTotal(ctx, orderID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(25).Equal(total), "total %s", total)

	order, err := r.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusNew, order.Status)
	assert.Equal(t, "Москва, Тверская 1", order.Address)
	assert.Equal(t, "+79990000000", order.ClientPhone)
	assert.True(t, decimal.NewFromInt(25).Equal(order.TotalAmount))
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Товар p1", order.Items[0].ProductName)
	assert.True(t, decimal.NewFromInt(20).Equal(order.Items[0].Amount))
	assert.True(t, decimal.NewFromInt(5).Equal(order.Items[1].Amount))
}

func TestOrderTotalFractionalPrices(t *testing.T) {
	ctx := context.Background()
	r := newShopRepo(t)

	clientID, err := r.InsertClient(ctx, 1, "+79990000000", "")
	require.NoError(t, err)
	p1 := mustProduct(t, r, "p1", "0.1")
	p2 := mustProduct(t, r, "p2", "0.2")
	p3 := mustProduct(t, r, "p3", "25.5")
	orderID, err := r.CreateOrder(ctx, clientID, "")
	require.NoError(t, err)

	one := decimal.NewFromInt(1)
	_, err = r.AddOrderItem(ctx, orderID, p1.ID, one, p1.Price)
	require.NoError(t, err)
	_, err = r.AddOrderItem(ctx, orderID, p2.ID, one, p2.Price)
	require.NoError(t, err)

	total, err := r.UpdateOrderTotal(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, "0.3", total.String())

	_, err = r.AddOrderItem(ctx, orderID, p3.ID, decimal.RequireFromString("1.3"), p3.Price)
	require.NoError(t, err)
	total, err = r.UpdateOrderTotal(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, "33.45", total.String())

	order, err := r.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, "33.45", order.TotalAmount.String())

	_, err = r.UpdateOrderTotal(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPlaceOrder(t *testing.T) {
	ctx := context.Background()
	r := newShopRepo(t)
	clientID, err := r.InsertClient(ctx, 1, "+79990000000", "")
	require.NoError(t, err)
	p := mustProduct(t, r, "p", "12.5")

	orderID, total, err := r.PlaceOrder(ctx, clientID, "Тверь", []domain.OrderLine{
		{ProductID: p.ID, Quantity: decimal.RequireFromString("1.5"), Price: p.Price},
	})
	require.NoError(t, err)
	assert.Equal(t, "18.75", total.String())

	o, err := r.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusSubmitted, o.Status)
	assert.Equal(t, "Тверь", o.Address)
	assert.Equal(t, "18.75", o.TotalAmount.String())
	require.Len(t, o.Items, 1)
}

func TestPlaceOrderRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	r := newShopRepo(t)
	clientID, err := r.InsertClient(ctx, 1, "+79990000000", "")
	require.NoError(t, err)
	p := mustProduct(t, r, "p", "10")

	_, _, err = r.PlaceOrder(ctx, clientID, "", []domain.OrderLine{
		{ProductID: p.ID, Quantity: decimal.NewFromInt(1), Price: p.Price},
		{ProductID: "missing-product", Quantity: decimal.NewFromInt(1), Price: p.Price},
	})
	require.Error(t, err)

	orders, err := r.ListOrdersByClient(ctx, clientID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestAmountFixedAtInsert(t *testing.T) {
	ctx := context.Background()
	r := newShopRepo(t)

	clientID, err := r.InsertClient(ctx, 1, "+79990000000", "")
	require.NoError(t, err)
	p := mustProduct(t, r, "p", "10")
	orderID, err := r.CreateOrder(ctx, clientID, "")
	require.NoError(t, err)
	_, err = r.AddOrderItem(ctx, orderID, p.ID, decimal.NewFromInt(3), p.Price)
	require.NoError(t, err)

	mustProduct(t, r, "p", "99")
	total, err := r.UpdateOrderTotal(ctx, orderID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(30).Equal(total))
}

func TestSetOrderStatusStamps(t *testing.T) {
	ctx := context.Background()
	r := newShopRepo(t)
	clientID, err := r.InsertClient(ctx, 1, "+79990000000", "")
	require.NoError(t, err)
	orderID, err := r.CreateOrder(ctx, clientID, "")
	require.NoError(t, err)

	require.NoError(t, r.SetOrderStatus(ctx, orderID, domain.OrderStatusConfirmed))
	o, err := r.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, o.Status)
	assert.False(t, o.ShippedAt.Valid)
	assert.False(t, o.DeliveredAt.Valid)
	assert.False(t, o.PaidAt.Valid)

	require.NoError(t, r.SetOrderStatus(ctx, orderID, domain.OrderStatusShipped))
	require.NoError(t, r.SetOrderStatus(ctx, orderID, domain.OrderStatusDelivered))
	require.NoError(t, r.SetOrderStatus(ctx, orderID, domain.OrderStatusReceived))
	o, err = r.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusReceived, o.Status)
	assert.True(t, o.ShippedAt.Valid)
	assert.True(t, o.DeliveredAt.Valid)
	assert.False(t, o.PaidAt.Valid)

	assert.ErrorIs(t, r.SetOrderStatus(ctx, "missing", "paid"), domain.ErrNotFound)
}

func TestRecordPaymentMarksPaid(t *testing.T) {
	ctx := context.Background()
	r := newShopRepo(t)
	clientID, err := r.InsertClient(ctx, 1, "+79990000000", "")
	require.NoError(t, err)
	orderID, err := r.CreateOrder(ctx, clientID, "")
	require.NoError(t, err)

	_, err = r.RecordPayment(ctx, orderID, decimal.NewFromInt(1), "cash")
	require.NoError(t, err)

	o, err := r.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, o.Status)
	assert.True(t, o.PaidAt.Valid)

	payments, err := r.ListPayments(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "cash", payments[0].Method)

	_, err = r.RecordPayment(ctx, "missing", decimal.NewFromInt(1), "cash")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListOrders(t *testing.T) {
	ctx := context.Background()
	r := newShopRepo(t)
	c1, err := r.InsertClient(ctx, 1, "+79990000001", "")
	require.NoError(t, err)
	c2, err := r.InsertClient(ctx, 2, "+79990000002", "")
	require.NoError(t, err)

	o1, err := r.CreateOrder(ctx, c1, "")
	require.NoError(t, err)
	o2, err := r.CreateOrder(ctx, c2, "")
	require.NoError(t, err)
	require.NoError(t, r.SetOrderStatus(ctx, o2, domain.OrderStatusSubmitted))

	all, err := r.ListOrders(ctx, "", 50, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, o2, all[0].ID)
	assert.Equal(t, "+79990000002", all[0].ClientPhone)

	submitted, err := r.ListOrders(ctx, domain.OrderStatusSubmitted, 50, 0)
	require.NoError(t, err)
	require.Len(t, submitted, 1)
	assert.Equal(t, o2, submitted[0].ID)

	mine, err := r.ListOrdersByClient(ctx, c1)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, o1, mine[0].ID)
}

func TestImportProductsSkipsIncompleteRows(t *testing.T) {
	ctx := context.Background()
	r := newShopRepo(t)
	mustProduct(t, r, "a", "1")

	n, err := r.ImportProducts(ctx, []domain.ImportRow{
		{Code: "a", Name: "Болт", Price: decimal.RequireFromString("3.5"), Unit: "шт"},
		{Code: "b", Name: "Гайка", Price: decimal.NewFromInt(2)},
		{Code: "", Name: "без кода"},
		{Code: "c", Name: "  "},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	products, err := r.ListProducts(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Болт", products[0].Name)
	assert.True(t, decimal.RequireFromString("3.5").Equal(products[0].Price))
}
