package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/Dmitryntvh/AVITO/internal/domain"
	"github.com/Dmitryntvh/AVITO/traits/database"
)

// CatalogRepository хранит модели каталога, комплекты и фото.
type CatalogRepository struct {
	store
}

// NewCatalogRepository создаёт новый экземпляр CatalogRepository.
func NewCatalogRepository(db *sql.DB, dialect database.Dialect) *CatalogRepository {
	return &CatalogRepository{store: newStore(db, dialect)}
}

// ListModels возвращает модели без комплектов и фото, свежие первыми.
func (r *CatalogRepository) ListModels(ctx context.Context) ([]domain.CatalogModel, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT code, name, short, price_drawings, drawings_url, updated_at
		FROM catalog_models ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var models []domain.CatalogModel
	for rows.Next() {
		var m domain.CatalogModel
		if err := rows.Scan(&m.Code, &m.Name, &m.Short, &m.PriceDrawings, &m.DrawingsURL, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// GetModel возвращает модель с комплектами (по материалу) и фото
// (по sort_order, url) или domain.ErrNotFound.
func (r *CatalogRepository) GetModel(ctx context.Context, code string) (*domain.CatalogModel, error) {
	var m domain.CatalogModel
	err := r.db.QueryRowContext(ctx, r.q(
		`SELECT code, name, short, price_drawings, drawings_url, updated_at
		FROM catalog_models WHERE code = ?`), code,
	).Scan(&m.Code, &m.Name, &m.Short, &m.PriceDrawings, &m.DrawingsURL, &m.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}

	kits, err := r.db.QueryContext(ctx, r.q(
		`SELECT material, price FROM catalog_kits WHERE model_code = ? ORDER BY material`), code)
	if err != nil {
		return nil, fmt.Errorf("query kits: %w", err)
	}
	for kits.Next() {
		var k domain.Kit
		if err := kits.Scan(&k.Material, &k.Price); err != nil {
			kits.Close()
			return nil, fmt.Errorf("scan kit: %w", err)
		}
		m.Kits = append(m.Kits, k)
	}
	kits.Close()
	if err := kits.Err(); err != nil {
		return nil, err
	}

	images, err := r.db.QueryContext(ctx, r.q(
		`SELECT url, sort_order FROM catalog_images WHERE model_code = ? ORDER BY sort_order, url`), code)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer images.Close()
	for images.Next() {
		var img domain.Image
		if err := images.Scan(&img.URL, &img.SortOrder); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		m.Images = append(m.Images, img)
	}
	return &m, images.Err()
}

// UpsertModel вставляет модель или обновляет все её поля.
func (r *CatalogRepository) UpsertModel(ctx context.Context, m domain.CatalogModel) error {
	_, err := r.exec(ctx,
		`INSERT INTO catalog_models (code, name, short, price_drawings, drawings_url, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET
			name = excluded.name,
			short = excluded.short,
			price_drawings = excluded.price_drawings,
			drawings_url = excluded.drawings_url,
			updated_at = excluded.updated_at`,
		m.Code, m.Name, m.Short, m.PriceDrawings, m.DrawingsURL, r.now(),
	)
	if err != nil {
		return fmt.Errorf("upsert model %s: %w", m.Code, err)
	}
	return nil
}

// ReplaceKits заменяет комплекты модели одной транзакцией.
func (r *CatalogRepository) ReplaceKits(ctx context.Context, code string, kits []domain.Kit) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM catalog_kits WHERE model_code = ?`), code); err != nil {
			return fmt.Errorf("delete kits: %w", err)
		}
		for _, k := range kits {
			_, err := tx.ExecContext(ctx, r.q(
				`INSERT INTO catalog_kits (id, model_code, material, price) VALUES (?, ?, ?, ?)`),
				uuid.NewString(), code, k.Material, k.Price,
			)
			if err != nil {
				return fmt.Errorf("insert kit: %w", err)
			}
		}
		return nil
	})
}

// ReplaceImages заменяет фото модели; sort_order нумеруется с 1 в порядке urls.
func (r *CatalogRepository) ReplaceImages(ctx context.Context, code string, urls []string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM catalog_images WHERE model_code = ?`), code); err != nil {
			return fmt.Errorf("delete images: %w", err)
		}
		for i, url := range urls {
			_, err := tx.ExecContext(ctx, r.q(
				`INSERT INTO catalog_images (id, model_code, url, sort_order) VALUES (?, ?, ?, ?)`),
				uuid.NewString(), code, url, i+1,
			)
			if err != nil {
				return fmt.Errorf("insert image: %w", err)
			}
		}
		return nil
	})
}

// DeleteModel удаляет модель; комплекты и фото удаляются каскадом.
func (r *CatalogRepository) DeleteModel(ctx context.Context, code string) error {
	if _, err := r.exec(ctx, `DELETE FROM catalog_models WHERE code = ?`, code); err != nil {
		return fmt.Errorf("delete model %s: %w", code, err)
	}
	return nil
}
