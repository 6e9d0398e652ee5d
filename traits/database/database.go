// ── traits/database/database.go ──────────────────────────────────────────────
package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect выбирает синтаксис плейсхолдеров и типов колонок.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

// Rebind переписывает плейсхолдеры "?" в "$1, $2, ..." для Postgres.
// Запросы в репозиториях пишутся в стиле "?" и не содержат "?" в литералах.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var (
		sb strings.Builder
		n  int
	)
	sb.Grow(len(query) + 8)
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Open открывает пул соединений для указанного драйвера.
func Open(driver, dsn string) (*sql.DB, Dialect, error) {
	var dialect Dialect
	switch driver {
	case "postgres", "postgresql":
		dialect = Postgres
	case "sqlite3", "sqlite":
		dialect = SQLite
		if !strings.Contains(dsn, "_foreign_keys") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "_foreign_keys=1"
		}
	default:
		return nil, "", fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, "", err
	}
	if dialect == SQLite {
		// SQLite: один писатель, а :memory: живёт в пределах одного соединения
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("ping %s: %w", dialect, err)
	}
	return db, dialect, nil
}

// CreateTables создаёт все необходимые таблицы, если они не существуют,
// и добавляет недостающие колонки. Безопасно вызывать при каждом старте.
func CreateTables(db *sql.DB, dialect Dialect) error {
	steps := []struct {
		name string
		fn   func(*sql.DB, Dialect) error
	}{
		{"leads", createLeadsTable},
		{"catalog", createCatalogTables},
		{"shop", createShopTables},
	}
	for _, step := range steps {
		if err := step.fn(db, dialect); err != nil {
			return fmt.Errorf("create %s tables: %w", step.name, err)
		}
	}
	return nil
}

// types возвращает (uuid, timestamp) типы колонок для диалекта.
func types(d Dialect) (string, string) {
	if d == Postgres {
		return "UUID", "TIMESTAMPTZ"
	}
	return "TEXT", "TIMESTAMP"
}

func execAll(db *sql.DB, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("%s: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if i := strings.IndexByte(stmt, '\n'); i > 0 {
		return stmt[:i]
	}
	return stmt
}

func createLeadsTable(db *sql.DB, d Dialect) error {
	id, ts := types(d)
	stmt := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS leads (
		id %s PRIMARY KEY,
		phone TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		model_code TEXT,
		created_at %s NOT NULL
	);
	`, id, ts)
	if err := execAll(db, stmt); err != nil {
		return err
	}

	columns := []struct{ name, def string }{
		{"name", "TEXT"},
		{"full_name", "TEXT NOT NULL DEFAULT ''"},
		{"city", "TEXT NOT NULL DEFAULT ''"},
		{"interest", "TEXT NOT NULL DEFAULT ''"},
		{"segment", "TEXT NOT NULL DEFAULT 'unknown'"},
		{"status", "TEXT NOT NULL DEFAULT 'new'"},
		{"note", "TEXT NOT NULL DEFAULT ''"},
		{"last_contact_at", ts},
		{"remind_at", ts},
	}
	for _, c := range columns {
		if err := addColumn(db, d, "leads", c.name, c.def); err != nil {
			return err
		}
	}

	return execAll(db,
		`CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);`,
		`CREATE INDEX IF NOT EXISTS idx_leads_segment ON leads(segment);`,
		`CREATE INDEX IF NOT EXISTS idx_leads_remind_at ON leads(remind_at);`,
	)
}

// addColumn добавляет колонку, если её ещё нет. SQLite не знает
// ADD COLUMN IF NOT EXISTS, поэтому там проверяем PRAGMA table_info.
func addColumn(db *sql.DB, d Dialect, table, column, def string) error {
	if d == Postgres {
		_, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s;", table, column, def))
		return err
	}

	exists, err := sqliteHasColumn(db, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s;", table, column, def))
	return err
}

func sqliteHasColumn(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s);", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}

func createCatalogTables(db *sql.DB, d Dialect) error {
	id, ts := types(d)
	return execAll(db,
		fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS catalog_models (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		short TEXT NOT NULL DEFAULT '',
		price_drawings INTEGER NOT NULL DEFAULT 0,
		drawings_url TEXT NOT NULL DEFAULT '',
		updated_at %s NOT NULL
	);
	`, ts),
		fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS catalog_kits (
		id %s PRIMARY KEY,
		model_code TEXT NOT NULL REFERENCES catalog_models(code) ON DELETE CASCADE,
		material TEXT NOT NULL,
		price INTEGER NOT NULL DEFAULT 0
	);
	`, id),
		fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS catalog_images (
		id %s PRIMARY KEY,
		model_code TEXT NOT NULL REFERENCES catalog_models(code) ON DELETE CASCADE,
		url TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0
	);
	`, id),
		`CREATE INDEX IF NOT EXISTS idx_catalog_kits_model ON catalog_kits(model_code);`,
		`CREATE INDEX IF NOT EXISTS idx_catalog_images_model ON catalog_images(model_code);`,
	)
}

func createShopTables(db *sql.DB, d Dialect) error {
	id, ts := types(d)
	return execAll(db,
		fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS clients (
		id %s PRIMARY KEY,
		tg_id BIGINT UNIQUE,
		phone TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		created_at %s NOT NULL
	);
	`, id, ts),
		fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS products (
		id %s PRIMARY KEY,
		code TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		unit TEXT NOT NULL DEFAULT '',
		price NUMERIC(12,2) NOT NULL DEFAULT 0,
		created_at %s NOT NULL,
		updated_at %s NOT NULL
	);
	`, id, ts, ts),
		fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS orders (
		id %s PRIMARY KEY,
		client_id %s NOT NULL REFERENCES clients(id),
		status TEXT NOT NULL DEFAULT 'new',
		total_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
		address TEXT NOT NULL DEFAULT '',
		created_at %s NOT NULL,
		shipped_at %s,
		delivered_at %s,
		paid_at %s
	);
	`, id, id, ts, ts, ts, ts),
		fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS order_items (
		id %s PRIMARY KEY,
		order_id %s NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id %s NOT NULL REFERENCES products(id),
		quantity NUMERIC(12,3) NOT NULL,
		price NUMERIC(12,2) NOT NULL,
		amount NUMERIC(14,2) NOT NULL
	);
	`, id, id, id),
		fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS payments (
		id %s PRIMARY KEY,
		order_id %s NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		amount NUMERIC(14,2) NOT NULL,
		method TEXT NOT NULL DEFAULT '',
		created_at %s NOT NULL
	);
	`, id, id, ts),
		`CREATE INDEX IF NOT EXISTS idx_orders_client ON orders(client_id);`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);`,
		`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);`,
		`CREATE INDEX IF NOT EXISTS idx_payments_order ON payments(order_id);`,
	)
}
