// ── internal/domain/model.go ─────────────────────────────────────────────────
package domain

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound возвращается репозиториями, когда строки нет.
var ErrNotFound = errors.New("not found")

// Статусы и сегменты лида. Список открытый: хранилище принимает любую строку.
const (
	LeadStatusNew     = "new"
	LeadStatusContact = "contact"
	LeadStatusWork    = "work"
	LeadStatusWaitPay = "wait_pay"
	LeadStatusPaid    = "paid"
	LeadStatusShipped = "shipped"
	LeadStatusLost    = "lost"
	LeadStatusClosed  = "closed"

	SegmentUnknown = "unknown"
	SegmentPrivate = "private"
	SegmentWelder  = "welder"
	SegmentFactory = "factory"
)

// Option is a code with a human label, used for bot keyboards.
type Option struct {
	Code  string
	Label string
}

var LeadStatusOptions = []Option{
	{LeadStatusNew, "🆕 Новый"},
	{LeadStatusContact, "📞 Контакт"},
	{LeadStatusWork, "🛠 В работе"},
	{LeadStatusWaitPay, "💳 Ждёт оплату"},
	{LeadStatusPaid, "✅ Оплачено"},
	{LeadStatusShipped, "📦 Отгружено"},
	{LeadStatusLost, "👻 Пропал"},
	{LeadStatusClosed, "🗑 Закрыт"},
}

var SegmentOptions = []Option{
	{SegmentUnknown, "❓ Не задан"},
	{SegmentPrivate, "👤 Частник"},
	{SegmentWelder, "🧑‍🏭 Сварщик"},
	{SegmentFactory, "🏭 Производственник"},
}

// Lead представляет запись в таблице leads.
type Lead struct {
	ID            string         `json:"id" db:"id"`
	Phone         string         `json:"phone" db:"phone"`
	Source        string         `json:"source" db:"source"`
	ModelCode     sql.NullString `json:"model_code" db:"model_code"`
	Name          sql.NullString `json:"name" db:"name"`
	FullName      string         `json:"full_name" db:"full_name"`
	City          string         `json:"city" db:"city"`
	Interest      string         `json:"interest" db:"interest"`
	Segment       string         `json:"segment" db:"segment"`
	Status        string         `json:"status" db:"status"`
	Note          string         `json:"note" db:"note"`
	LastContactAt sql.NullTime   `json:"last_contact_at" db:"last_contact_at"`
	RemindAt      sql.NullTime   `json:"remind_at" db:"remind_at"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

// NewLead — данные воронки для создания лида.
type NewLead struct {
	Phone     string
	Source    string
	ModelCode string
	Name      string
}

// LeadProfile — частичное обновление профиля; nil означает "не менять".
type LeadProfile struct {
	FullName *string
	City     *string
	Interest *string
}

// Profile fields addressable from the bot.
const (
	ProfileFullName = "full_name"
	ProfileCity     = "city"
	ProfileInterest = "interest"
)

// ProfileField builds a LeadProfile that sets a single named field.
func ProfileField(field, value string) (LeadProfile, bool) {
	switch field {
	case ProfileFullName:
		return LeadProfile{FullName: &value}, true
	case ProfileCity:
		return LeadProfile{City: &value}, true
	case ProfileInterest:
		return LeadProfile{Interest: &value}, true
	default:
		return LeadProfile{}, false
	}
}

// CatalogModel представляет модель каталога с комплектами и фото.
type CatalogModel struct {
	Code          string    `json:"code" db:"code" validate:"required"`
	Name          string    `json:"name" db:"name" validate:"required"`
	Short         string    `json:"short" db:"short"`
	PriceDrawings int       `json:"price_drawings" db:"price_drawings" validate:"gte=0"`
	DrawingsURL   string    `json:"drawings_url" db:"drawings_url"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
	Kits          []Kit     `json:"kits,omitempty"`
	Images        []Image   `json:"images,omitempty"`
}

// Kit — вариант комплектации (материал + цена).
type Kit struct {
	Material string `json:"material" db:"material"`
	Price    int    `json:"price" db:"price"`
}

// Image — фото модели с явным порядком.
type Image struct {
	URL       string `json:"url" db:"url"`
	SortOrder int    `json:"sort_order" db:"sort_order"`
}

// ImageURLs returns the image URLs in stored order.
func (m *CatalogModel) ImageURLs() []string {
	urls := make([]string, 0, len(m.Images))
	for _, img := range m.Images {
		urls = append(urls, img.URL)
	}
	return urls
}
