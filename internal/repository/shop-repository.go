package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Dmitryntvh/AVITO/internal/domain"
	"github.com/Dmitryntvh/AVITO/traits/database"
)

const orderColumns = `o.id, o.client_id, o.status, o.total_amount, o.address, o.created_at,
	o.shipped_at, o.delivered_at, o.paid_at, c.phone, c.name`

// ShopRepository — клиенты, товары, заказы и оплаты магазина.
type ShopRepository struct {
	store
}

// NewShopRepository создаёт новый экземпляр ShopRepository.
func NewShopRepository(db *sql.DB, dialect database.Dialect) *ShopRepository {
	return &ShopRepository{store: newStore(db, dialect)}
}

// InsertClient регистрирует клиента. Повторный вызов с тем же tgID
// не меняет запись и возвращает существующий id.
func (r *ShopRepository) InsertClient(ctx context.Context, tgID int64, phone, name string) (string, error) {
	_, err := r.exec(ctx,
		`INSERT INTO clients (id, tg_id, phone, name, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (tg_id) DO NOTHING`,
		uuid.NewString(), tgID, phone, name, r.now(),
	)
	if err != nil {
		return "", fmt.Errorf("insert client: %w", err)
	}

	var id string
	if err := r.db.QueryRowContext(ctx, r.q(`SELECT id FROM clients WHERE tg_id = ?`), tgID).Scan(&id); err != nil {
		return "", fmt.Errorf("select client: %w", err)
	}
	return id, nil
}

// GetClientByTgID возвращает клиента или domain.ErrNotFound.
func (r *ShopRepository) GetClientByTgID(ctx context.Context, tgID int64) (*domain.Client, error) {
	var c domain.Client
	err := r.db.QueryRowContext(ctx, r.q(
		`SELECT id, tg_id, phone, name, address, created_at FROM clients WHERE tg_id = ?`), tgID,
	).Scan(&c.ID, &c.TgID, &c.Phone, &c.Name, &c.Address, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ListProducts возвращает страницу товаров по имени.
func (r *ShopRepository) ListProducts(ctx context.Context, limit, offset int) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, r.q(
		`SELECT id, code, name, description, unit, price FROM products
		ORDER BY name LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Unit, &p.Price); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetProductByCode возвращает товар по коду или domain.ErrNotFound.
func (r *ShopRepository) GetProductByCode(ctx context.Context, code string) (*domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx, r.q(
		`SELECT id, code, name, description, unit, price FROM products WHERE code = ?`), code,
	).Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Unit, &p.Price)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

const upsertProductSQL = `INSERT INTO products (id, code, name, description, unit, price, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (code) DO UPDATE SET
		name = excluded.name,
		description = excluded.description,
		unit = excluded.unit,
		price = excluded.price,
		updated_at = excluded.updated_at`

// UpsertProduct вставляет товар или обновляет его по коду.
func (r *ShopRepository) UpsertProduct(ctx context.Context, p domain.Product) error {
	now := r.now()
	_, err := r.exec(ctx, upsertProductSQL,
		uuid.NewString(), p.Code, p.Name, p.Description, p.Unit, p.Price, now, now)
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.Code, err)
	}
	return nil
}

// ImportProducts загружает прайс одной транзакцией: upsert по коду,
// отсутствующие в файле товары остаются. Строки без кода или названия
// пропускаются; возвращает число загруженных.
func (r *ShopRepository) ImportProducts(ctx context.Context, rows []domain.ImportRow) (int, error) {
	imported := 0
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		now := r.now()
		for _, row := range rows {
			code, name := strings.TrimSpace(row.Code), strings.TrimSpace(row.Name)
			if code == "" || name == "" {
				continue
			}
			_, err := tx.ExecContext(ctx, r.q(upsertProductSQL),
				uuid.NewString(), code, name, strings.TrimSpace(row.Description),
				strings.TrimSpace(row.Unit), row.Price, now, now)
			if err != nil {
				return fmt.Errorf("upsert product %s: %w", code, err)
			}
			imported++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return imported, nil
}

// sqlRunner — общее у *sql.DB и *sql.Tx.
type sqlRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// CreateOrder создаёт пустой заказ со статусом new.
func (r *ShopRepository) CreateOrder(ctx context.Context, clientID, address string) (string, error) {
	return r.createOrder(ctx, r.db, clientID, address)
}

func (r *ShopRepository) createOrder(ctx context.Context, run sqlRunner, clientID, address string) (string, error) {
	id := uuid.NewString()
	_, err := run.ExecContext(ctx, r.q(
		`INSERT INTO orders (id, client_id, status, total_amount, address, created_at)
		VALUES (?, ?, ?, 0, ?, ?)`),
		id, clientID, domain.OrderStatusNew, address, r.now(),
	)
	if err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	return id, nil
}

// AddOrderItem добавляет позицию; сумма фиксируется как qty × price.
func (r *ShopRepository) AddOrderItem(ctx context.Context, orderID, productID string, qty, price decimal.Decimal) (string, error) {
	return r.addOrderItem(ctx, r.db, orderID, productID, qty, price)
}

func (r *ShopRepository) addOrderItem(ctx context.Context, run sqlRunner, orderID, productID string, qty, price decimal.Decimal) (string, error) {
	id := uuid.NewString()
	_, err := run.ExecContext(ctx, r.q(
		`INSERT INTO order_items (id, order_id, product_id, quantity, price, amount)
		VALUES (?, ?, ?, ?, ?, ?)`),
		id, orderID, productID, qty, price, qty.Mul(price),
	)
	if err != nil {
		return "", fmt.Errorf("add order item: %w", err)
	}
	return id, nil
}

// UpdateOrderTotal пересчитывает сумму заказа по текущим позициям.
// Суммирование идёт в decimal: SQLite хранит NUMERIC как REAL.
func (r *ShopRepository) UpdateOrderTotal(ctx context.Context, orderID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		total, err = r.updateOrderTotal(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (r *ShopRepository) updateOrderTotal(ctx context.Context, run sqlRunner, orderID string) (decimal.Decimal, error) {
	total, err := r.sumOrderAmounts(ctx, run, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	res, err := run.ExecContext(ctx, r.q(`UPDATE orders SET total_amount = ? WHERE id = ?`), total, orderID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("update order total: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return decimal.Zero, err
	} else if n == 0 {
		return decimal.Zero, domain.ErrNotFound
	}
	return total, nil
}

func (r *ShopRepository) sumOrderAmounts(ctx context.Context, run sqlRunner, orderID string) (decimal.Decimal, error) {
	rows, err := run.QueryContext(ctx, r.q(`SELECT amount FROM order_items WHERE order_id = ?`), orderID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("query order amounts: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("scan order amount: %w", err)
		}
		total = total.Add(amount)
	}
	return total, rows.Err()
}

// PlaceOrder оформляет заказ из корзины одной транзакцией: заказ,
// позиции, итог и статус submitted. При любой ошибке в базе ничего
// не остаётся.
func (r *ShopRepository) PlaceOrder(ctx context.Context, clientID, address string, lines []domain.OrderLine) (string, decimal.Decimal, error) {
	var (
		orderID string
		total   decimal.Decimal
	)
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if orderID, err = r.createOrder(ctx, tx, clientID, address); err != nil {
			return err
		}
		for _, l := range lines {
			if _, err := r.addOrderItem(ctx, tx, orderID, l.ProductID, l.Quantity, l.Price); err != nil {
				return err
			}
		}
		if total, err = r.updateOrderTotal(ctx, tx, orderID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, r.q(`UPDATE orders SET status = ? WHERE id = ?`),
			domain.OrderStatusSubmitted, orderID)
		if err != nil {
			return fmt.Errorf("submit order: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", decimal.Zero, err
	}
	return orderID, total, nil
}

// ListOrders возвращает заказы с телефоном и именем клиента, новые первыми.
// Пустой status означает любой.
func (r *ShopRepository) ListOrders(ctx context.Context, status string, limit, offset int) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o JOIN clients c ON c.id = o.client_id`
	var args []any
	if status != "" {
		query += ` WHERE o.status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY o.created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)
	return r.queryOrders(ctx, query, args...)
}

// ListOrdersByClient возвращает все заказы клиента, новые первыми.
func (r *ShopRepository) ListOrdersByClient(ctx context.Context, clientID string) ([]domain.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders o JOIN clients c ON c.id = o.client_id
		WHERE o.client_id = ? ORDER BY o.created_at DESC`,
		clientID,
	)
}

// GetOrder возвращает заказ с позициями или domain.ErrNotFound.
func (r *ShopRepository) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, r.q(
		`SELECT `+orderColumns+` FROM orders o JOIN clients c ON c.id = o.client_id WHERE o.id = ?`), id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, notFound(err)
	}

	rows, err := r.db.QueryContext(ctx, r.q(
		`SELECT i.id, i.order_id, i.product_id, i.quantity, i.price, i.amount, p.name, p.unit
		FROM order_items i JOIN products p ON p.id = i.product_id
		WHERE i.order_id = ? ORDER BY p.name`), id)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price, &it.Amount,
			&it.ProductName, &it.ProductUnit); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// SetOrderStatus меняет статус. Для shipped, delivered и paid
// дополнительно ставится соответствующая отметка времени.
func (r *ShopRepository) SetOrderStatus(ctx context.Context, id, status string) error {
	sets := "status = ?"
	args := []any{status}
	switch status {
	case domain.OrderStatusShipped:
		sets += ", shipped_at = ?"
		args = append(args, r.now())
	case domain.OrderStatusDelivered:
		sets += ", delivered_at = ?"
		args = append(args, r.now())
	case domain.OrderStatusPaid:
		sets += ", paid_at = ?"
		args = append(args, r.now())
	}
	args = append(args, id)
	return r.execOne(ctx, `UPDATE orders SET `+sets+` WHERE id = ?`, args...)
}

// RecordPayment пишет оплату и переводит заказ в paid независимо от суммы.
func (r *ShopRepository) RecordPayment(ctx context.Context, orderID string, amount decimal.Decimal, method string) (string, error) {
	id := uuid.NewString()
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		now := r.now()
		res, err := tx.ExecContext(ctx, r.q(`UPDATE orders SET status = ?, paid_at = ? WHERE id = ?`),
			domain.OrderStatusPaid, now, orderID)
		if err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return domain.ErrNotFound
		}
		_, err = tx.ExecContext(ctx, r.q(
			`INSERT INTO payments (id, order_id, amount, method, created_at) VALUES (?, ?, ?, ?, ?)`),
			id, orderID, amount, method, now)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListPayments возвращает журнал оплат заказа.
func (r *ShopRepository) ListPayments(ctx context.Context, orderID string) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx, r.q(
		`SELECT id, order_id, amount, method, created_at FROM payments
		WHERE order_id = ? ORDER BY created_at`), orderID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *ShopRepository) queryOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func scanOrder(s scanner) (*domain.Order, error) {
	var o domain.Order
	err := s.Scan(&o.ID, &o.ClientID, &o.Status, &o.TotalAmount, &o.Address, &o.CreatedAt,
		&o.ShippedAt, &o.DeliveredAt, &o.PaidAt, &o.ClientPhone, &o.ClientName)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
