package domain

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Статусы заказа. SetOrderStatus ставит отметки времени только для
// shipped, delivered и paid; остальные коды меняют лишь status.
const (
	OrderStatusNew           = "new"
	OrderStatusDraft         = "draft"
	OrderStatusSubmitted     = "submitted"
	OrderStatusUnderReview   = "under_review"
	OrderStatusNeedsApproval = "needs_approval"
	OrderStatusAgreed        = "agreed"
	OrderStatusConfirmed     = "confirmed"
	OrderStatusShipped       = "shipped"
	OrderStatusDelivered     = "delivered"
	OrderStatusReceived      = "received"
	OrderStatusPaid          = "paid"
	OrderStatusClosed        = "closed"
	OrderStatusCancelled     = "cancelled"
)

var OrderStatusOptions = []Option{
	{OrderStatusDraft, "Черновик"},
	{OrderStatusSubmitted, "Отправлено"},
	{OrderStatusUnderReview, "На рассмотрении"},
	{OrderStatusNeedsApproval, "Требует согласования"},
	{OrderStatusAgreed, "Согласовано"},
	{OrderStatusConfirmed, "Подтверждено"},
	{OrderStatusShipped, "Отгружено"},
	{OrderStatusReceived, "Получено"},
	{OrderStatusPaid, "Оплачено"},
	{OrderStatusClosed, "Закрыто"},
	{OrderStatusCancelled, "Отменено"},
}

// SupplierStatuses — коды, которые может ставить поставщик.
var SupplierStatuses = map[string]bool{
	OrderStatusConfirmed: true,
	OrderStatusShipped:   true,
	OrderStatusReceived:  true,
}

// Client представляет запись в таблице clients.
type Client struct {
	ID        string    `json:"id" db:"id"`
	TgID      int64     `json:"tg_id" db:"tg_id"`
	Phone     string    `json:"phone" db:"phone"`
	Name      string    `json:"name" db:"name"`
	Address   string    `json:"address" db:"address"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Product представляет запись в таблице products.
type Product struct {
	ID          string          `json:"id" db:"id"`
	Code        string          `json:"code" db:"code" validate:"required"`
	Name        string          `json:"name" db:"name" validate:"required"`
	Description string          `json:"description" db:"description"`
	Unit        string          `json:"unit" db:"unit"`
	Price       decimal.Decimal `json:"price" db:"price"`
}

// Order представляет заказ вместе с данными клиента (для списков).
type Order struct {
	ID          string          `json:"id" db:"id"`
	ClientID    string          `json:"client_id" db:"client_id"`
	Status      string          `json:"status" db:"status"`
	TotalAmount decimal.Decimal `json:"total_amount" db:"total_amount"`
	Address     string          `json:"address" db:"address"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ShippedAt   sql.NullTime    `json:"shipped_at" db:"shipped_at"`
	DeliveredAt sql.NullTime    `json:"delivered_at" db:"delivered_at"`
	PaidAt      sql.NullTime    `json:"paid_at" db:"paid_at"`
	ClientPhone string          `json:"client_phone" db:"phone"`
	ClientName  string          `json:"client_name" db:"name"`
	Items       []OrderItem     `json:"items,omitempty"`
}

// OrderItem — позиция заказа; Amount фиксируется при вставке.
type OrderItem struct {
	ID          string          `json:"id" db:"id"`
	OrderID     string          `json:"order_id" db:"order_id"`
	ProductID   string          `json:"product_id" db:"product_id"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	ProductName string          `json:"product_name" db:"product_name"`
	ProductUnit string          `json:"product_unit" db:"product_unit"`
}

// OrderLine — позиция корзины, готовая к записи в заказ.
type OrderLine struct {
	ProductID string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
}

// Payment — строка платёжного журнала.
type Payment struct {
	ID        string          `json:"id" db:"id"`
	OrderID   string          `json:"order_id" db:"order_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Method    string          `json:"method" db:"method"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// ImportRow — строка прайс-листа после разбора файла.
type ImportRow struct {
	Code        string          `json:"code" validate:"required"`
	Name        string          `json:"name" validate:"required"`
	Price       decimal.Decimal `json:"price"`
	Unit        string          `json:"unit"`
	Description string          `json:"description"`
}
