package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Dmitryntvh/AVITO/internal/domain"
	"github.com/Dmitryntvh/AVITO/traits/database"
)

const leadColumns = `id, phone, source, model_code, name, full_name, city, interest,
	segment, status, note, last_contact_at, remind_at, created_at`

// LeadRepository хранит лиды воронки и CRM-поля.
type LeadRepository struct {
	store
}

// NewLeadRepository создаёт новый экземпляр LeadRepository.
func NewLeadRepository(db *sql.DB, dialect database.Dialect) *LeadRepository {
	return &LeadRepository{store: newStore(db, dialect)}
}

// InsertLead сохраняет новый лид со статусом new и сегментом unknown.
func (r *LeadRepository) InsertLead(ctx context.Context, in domain.NewLead) (string, error) {
	id := uuid.NewString()
	_, err := r.exec(ctx,
		`INSERT INTO leads (id, phone, source, model_code, name, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, in.Phone, in.Source, nullString(in.ModelCode), nullString(in.Name), r.now(),
	)
	if err != nil {
		return "", fmt.Errorf("insert lead: %w", err)
	}
	return id, nil
}

// CountLeads возвращает общее количество лидов.
func (r *LeadRepository) CountLeads(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count leads: %w", err)
	}
	return n, nil
}

// ListLeads возвращает страницу лидов, новые первыми.
func (r *LeadRepository) ListLeads(ctx context.Context, limit, offset int) ([]domain.Lead, error) {
	return r.queryLeads(ctx,
		`SELECT `+leadColumns+` FROM leads ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
}

// GetLead возвращает лид по id или domain.ErrNotFound.
func (r *LeadRepository) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+leadColumns+` FROM leads WHERE id = ?`), id)
	lead, err := scanLead(row)
	if err != nil {
		return nil, notFound(err)
	}
	return lead, nil
}

// SetLeadStatus меняет статус и отмечает время последнего контакта.
func (r *LeadRepository) SetLeadStatus(ctx context.Context, id, status string) error {
	return r.execOne(ctx,
		`UPDATE leads SET status = ?, last_contact_at = ? WHERE id = ?`,
		status, r.now(), id,
	)
}

// SetLeadSegment меняет сегмент и отмечает время последнего контакта.
func (r *LeadRepository) SetLeadSegment(ctx context.Context, id, segment string) error {
	return r.execOne(ctx,
		`UPDATE leads SET segment = ?, last_contact_at = ? WHERE id = ?`,
		segment, r.now(), id,
	)
}

// AppendLeadNote дописывает заметку в начало, отделяя пустой строкой.
// Пустой текст ничего не меняет.
func (r *LeadRepository) AppendLeadNote(ctx context.Context, id, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return r.execOne(ctx,
		`UPDATE leads
		SET note = CASE WHEN note = '' THEN ? ELSE ? || note END,
			last_contact_at = ?
		WHERE id = ?`,
		text, text+"\n\n", r.now(), id,
	)
}

// SetLeadRemindAt ставит напоминание; nil снимает его.
func (r *LeadRepository) SetLeadRemindAt(ctx context.Context, id string, at *time.Time) error {
	return r.execOne(ctx, `UPDATE leads SET remind_at = ? WHERE id = ?`, nullTime(at), id)
}

// UpdateLeadProfile обновляет только переданные поля профиля.
func (r *LeadRepository) UpdateLeadProfile(ctx context.Context, id string, p domain.LeadProfile) error {
	var (
		sets []string
		args []any
	)
	add := func(column string, v *string) {
		if v == nil {
			return
		}
		sets = append(sets, column+" = ?")
		args = append(args, strings.TrimSpace(*v))
	}
	add("full_name", p.FullName)
	add("city", p.City)
	add("interest", p.Interest)
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "last_contact_at = ?")
	args = append(args, r.now(), id)
	return r.execOne(ctx, `UPDATE leads SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
}

// DueReminders возвращает лиды с наступившим напоминанием, ранние первыми.
func (r *LeadRepository) DueReminders(ctx context.Context, limit int) ([]domain.Lead, error) {
	return r.queryLeads(ctx,
		`SELECT `+leadColumns+` FROM leads
		WHERE remind_at IS NOT NULL AND remind_at <= ?
		ORDER BY remind_at ASC LIMIT ?`,
		r.now(), limit,
	)
}

func (r *LeadRepository) queryLeads(ctx context.Context, query string, args ...any) ([]domain.Lead, error) {
	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	var leads []domain.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, *lead)
	}
	return leads, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLead(s scanner) (*domain.Lead, error) {
	var l domain.Lead
	err := s.Scan(
		&l.ID, &l.Phone, &l.Source, &l.ModelCode, &l.Name, &l.FullName, &l.City, &l.Interest,
		&l.Segment, &l.Status, &l.Note, &l.LastContactAt, &l.RemindAt, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
