package handler

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dmitryntvh/AVITO/config"
	"github.com/Dmitryntvh/AVITO/internal/domain"
	"github.com/Dmitryntvh/AVITO/internal/repository"
	"github.com/Dmitryntvh/AVITO/traits/database"
)

const adminID = 1

func newTestCRM(t *testing.T) (*CRMHandler, *fakeTelegram, *bot.Bot) {
	t.Helper()
	db, dialect, err := database.Open("sqlite3", "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.CreateTables(db, dialect))

	cfg := &config.Config{AdminIDs: config.IDSet{adminID: {}}, Location: time.UTC}
	h := NewCRMHandler(cfg, zap.NewNop(), repository.NewLeadRepository(db, dialect), repository.NewMemoryStateRepository())
	h.now = func() time.Time { return time.Date(2026, 1, 27, 9, 30, 0, 0, time.UTC) }

	f, b := newFakeTelegram(t)
	return h, f, b
}

func mustLead(t *testing.T, h *CRMHandler, phone string) string {
	t.Helper()
	id, err := h.leads.InsertLead(context.Background(), domain.NewLead{Phone: phone, Source: "avito", ModelCode: "polar-6"})
	require.NoError(t, err)
	return id
}

func TestCRMRejectsStrangers(t *testing.T) {
	ctx := context.Background()
	h, f, b := newTestCRM(t)

	h.DefaultHandler(ctx, b, textUpdate(99, "/start"))
	assert.Equal(t, "⛔ Доступ запрещён.", f.lastText())

	h.DefaultHandler(ctx, b, callbackUpdate(99, "leads:0:20"))
	call, ok := f.last("answerCallbackQuery")
	require.True(t, ok)
	assert.Equal(t, "⛔ Нет доступа", call.Params["text"])
	assert.Equal(t, "true", call.Params["show_alert"])
}

func TestCRMStartShowsMenu(t *testing.T) {
	ctx := context.Background()
	h, f, b := newTestCRM(t)

	h.DefaultHandler(ctx, b, textUpdate(adminID, "/start"))
	call, ok := f.last("sendMessage")
	require.True(t, ok)
	assert.Equal(t, "CRM-бот ✅", call.Params["text"])
	assert.Contains(t, call.Params["reply_markup"], crmButtonLeads)

	h.DefaultHandler(ctx, b, textUpdate(adminID, "что-то"))
	assert.Equal(t, "Нажми кнопку «📥 Лиды» или /start", f.lastText())
}

func TestCRMLeadsPagination(t *testing.T) {
	ctx := context.Background()
	h, f, b := newTestCRM(t)
	for i := 0; i < 25; i++ {
		mustLead(t, h, fmt.Sprintf("+7999000%04d", i))
	}

	h.DefaultHandler(ctx, b, textUpdate(adminID, crmButtonLeads))
	call, ok := f.last("sendMessage")
	require.True(t, ok)
	assert.Equal(t, "📥 Лиды 1–20 из 25\nВыбери лид:", call.Params["text"])
	assert.Contains(t, call.Params["reply_markup"], "leads:20:20")
	assert.NotContains(t, call.Params["reply_markup"], "◀️ Назад")

	h.DefaultHandler(ctx, b, callbackUpdate(adminID, "leads:20:20"))
	edit, ok := f.last("editMessageText")
	require.True(t, ok)
	assert.Equal(t, "📥 Лиды 21–25 из 25\nВыбери лид:", edit.Params["text"])
	assert.Contains(t, edit.Params["reply_markup"], "leads:0:20")
	assert.NotContains(t, edit.Params["reply_markup"], "▶️ Вперёд")

	h.DefaultHandler(ctx, b, callbackUpdate(adminID, "leads:abc:20"))
	answer, ok := f.last("answerCallbackQuery")
	require.True(t, ok)
	assert.Equal(t, "Ошибка пагинации", answer.Params["text"])
}

func TestCRMLeadCardAndStatus(t *testing.T) {
	ctx := context.Background()
	h, f, b := newTestCRM(t)
	id := mustLead(t, h, "+79990000001")

	h.DefaultHandler(ctx, b, callbackUpdate(adminID, "lead:"+id))
	card := f.lastText()
	assert.Contains(t, card, "📞 Телефон: +79990000001")
	assert.Contains(t, card, "Модель: polar-6")
	assert.Contains(t, card, "Статус: new")
	assert.Contains(t, card, "Напоминание: -")
	assert.True(t, strings.HasSuffix(card, "📝 Заметки:\n—"))

	h.DefaultHandler(ctx, b, callbackUpdate(adminID, "lead_status:"+id))
	edit, _ := f.last("editMessageText")
	assert.Contains(t, edit.Params["reply_markup"], "set_status:"+id+":wait_pay")

	h.DefaultHandler(ctx, b, callbackUpdate(adminID, "set_status:"+id+":"+domain.LeadStatusWaitPay))
	lead, err := h.leads.GetLead(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.LeadStatusWaitPay, lead.Status)
	assert.True(t, lead.LastContactAt.Valid)
	assert.Contains(t, f.lastText(), "Статус: wait_pay")

	h.DefaultHandler(ctx, b, callbackUpdate(adminID, "set_segment:"+id+":"+domain.SegmentWelder))
	answer, _ := f.last("answerCallbackQuery")
	assert.Equal(t, "✅ Сегмент сохранён", answer.Params["text"])
	lead, err = h.leads.GetLead(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SegmentWelder, lead.Segment)

	h.DefaultHandler(ctx, b, callbackUpdate(adminID, "set_status:missing:paid"))
	answer, _ = f.last("answerCallbackQuery")
	assert.Equal(t, "Лид не найден", answer.Params["text"])
}

func TestCRMNoteFlow(t *testing.T) {
	ctx := context.Background()
	h, f, b := newTestCRM(t)
	id := mustLead(t, h, "+79990000001")

	h.DefaultHandler(ctx, b, callbackUpdate(adminID, "lead_note:"+id))
	assert.Contains(t, f.lastText(), "📝 Напиши заметку")

	h.DefaultHandler(ctx, b, textUpdate(adminID, "перезвонить завтра"))
	texts := f.texts()
	require.GreaterOrEqual(t, len(texts), 2)
	assert.Equal(t, "✅ Заметка сохранена.", texts[len(texts)-2])

	lead, err := h.leads.GetLead(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "[27.01.2026 09:30] перезвонить завтра", lead.Note)

	// режим ввода снят: следующий текст идёт в меню
	h.DefaultHandler(ctx, b, textUpdate(adminID, "ещё"))
	assert.Equal(t, "Нажми кнопку «📥 Лиды» или /start", f.lastText())
}

func TestCRMStartCancelsPendingInput(t *testing.T) {
	ctx := context.Background()
	h, f, b := newTestCRM(t)
	id := mustLead(t, h, "+79990000001")

	h.DefaultHandler(ctx, b, callbackUpdate(adminID, "lead_note:"+id))
	h.DefaultHandler(ctx, b, textUpdate(adminID, "/start"))
	h.DefaultHandler(ctx, b, textUpdate(adminID, "не заметка"))
	assert.Equal(t, "Нажми кнопку «📥 Лиды» или /start", f.lastText())

	lead, err := h.leads.GetLead(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, lead.Note)
}

func TestCRMManualReminder(t *testing.T) {
	ctx := context.Background()
	h, f, b := newTestCRM(t)
	id := mustLead(t, h, "+79990000001")

	h.DefaultHandler(ctx, b, callbackUpdate(adminID, "remind_manual:"+id))
	h.DefaultHandler(ctx, b, textUpdate(adminID, "завтра"))
	assert.Equal(t, "❌ Формат неверный. Нужно: ДД.ММ.ГГГГ ЧЧ:ММ (пример: 27.01.2026 18:30)", f.lastText())

	h.DefaultHandler(ctx, b, textUpdate(adminID, "28.01.2026 18:30"))
	assert.Contains(t, f.texts(), "✅ Напоминание установлено.")
	assert.Contains(t, f.lastText(), "Напоминание: 28.01.2026 18:30")

	lead, err := h.leads.GetLead(ctx, id)
	require.NoError(t, err)
	require.True(t, lead.RemindAt.Valid)
	assert.True(t, time.Date(2026, 1, 28, 18, 30, 0, 0, time.UTC).Equal(lead.RemindAt.Time))
}

func TestCRMReminderPresets(t *testing.T) {
	ctx := context.Background()
	h, f, b := newTestCRM(t)
	id := mustLead(t, h, "+79990000001")

	h.DefaultHandler(ctx, b, callbackUpdate(adminID, "set_remind:"+id+":"+"tom11"))
	lead, err := h.leads.GetLead(ctx, id)
	require.NoError(t, err)
	require.True(t, lead.RemindAt.Valid)
	assert.True(t, time.Date(2026, 1, 28, 11, 0, 0, 0, time.UTC).Equal(lead.RemindAt.Time))

	h.DefaultHandler(ctx, b, callbackUpdate(adminID, "set_remind:"+id+":clear"))
	lead, err = h.leads.GetLead(ctx, id)
	require.NoError(t, err)
	assert.False(t, lead.RemindAt.Valid)

	h.DefaultHandler(ctx, b, callbackUpdate(adminID, "set_remind:"+id+":soon"))
	answer, _ := f.last("answerCallbackQuery")
	assert.Equal(t, "Неизвестный вариант", answer.Params["text"])
}

func TestCRMProfileInput(t *testing.T) {
	ctx := context.Background()
	h, f, b := newTestCRM(t)
	id := mustLead(t, h, "+79990000001")

	h.DefaultHandler(ctx, b, callbackUpdate(adminID, "set_profile_mode:"+id+":"+domain.ProfileCity))
	assert.Equal(t, profileHints[domain.ProfileCity], f.lastText())

	h.DefaultHandler(ctx, b, textUpdate(adminID, "  Нижний Тагил "))
	assert.Contains(t, f.texts(), "✅ Сохранено.")

	lead, err := h.leads.GetLead(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Нижний Тагил", lead.City)
	assert.Empty(t, lead.FullName)
}

func TestCRMDueReminders(t *testing.T) {
	ctx := context.Background()
	h, f, b := newTestCRM(t)

	h.DefaultHandler(ctx, b, textUpdate(adminID, crmButtonReminders))
	assert.Equal(t, "🔔 Сейчас нет просроченных напоминаний.", f.lastText())

	id := mustLead(t, h, "+79990000001")
	past := time.Now().Add(-time.Hour)
	require.NoError(t, h.leads.SetLeadRemindAt(ctx, id, &past))
	future := mustLead(t, h, "+79990000002")
	later := time.Now().Add(time.Hour)
	require.NoError(t, h.leads.SetLeadRemindAt(ctx, future, &later))

	h.DefaultHandler(ctx, b, textUpdate(adminID, crmButtonReminders))
	text := f.lastText()
	assert.True(t, strings.HasPrefix(text, "🔔 Пора позвонить/написать:"))
	assert.Contains(t, text, "• +79990000001 | polar-6 | new | id="+id)
	assert.NotContains(t, text, "+79990000002")
}
