package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Dmitryntvh/AVITO/config"
	"github.com/Dmitryntvh/AVITO/internal/domain"
	"github.com/Dmitryntvh/AVITO/internal/repository"
	"github.com/Dmitryntvh/AVITO/internal/service"
)

const (
	crmButtonLeads     = "📥 Лиды"
	crmButtonReminders = "🔔 Напоминания"

	leadsPageSize    = 20
	remindersListCap = 30
)

var profileHints = map[string]string{
	domain.ProfileFullName: "👤 Введи ФИО (пример: Иванов Иван Иванович)",
	domain.ProfileCity:     "🏙 Введи город (пример: Нижний Тагил)",
	domain.ProfileInterest: "🎯 Введи интерес (пример: чертежи / заготовка / готовый чан / несколько моделей)",
}

// CRMHandler обслуживает CRM-бота для администраторов.
type CRMHandler struct {
	messenger
	cfg    *config.Config
	logger *zap.Logger
	leads  *repository.LeadRepository
	state  StateStore
	now    func() time.Time
}

func NewCRMHandler(cfg *config.Config, zapLogger *zap.Logger, leads *repository.LeadRepository, state StateStore) *CRMHandler {
	return &CRMHandler{
		messenger: messenger{logger: zapLogger},
		cfg:       cfg,
		logger:    zapLogger,
		leads:     leads,
		state:     state,
		now:       time.Now,
	}
}

// Options регистрирует обработчики CRM-бота.
func (h *CRMHandler) Options() []bot.Option {
	return []bot.Option{
		bot.WithDefaultHandler(h.DefaultHandler),
		bot.WithMessageTextHandler("/start", bot.MatchTypePrefix, h.StartHandler),
	}
}

func (h *CRMHandler) mainKeyboard() *models.ReplyKeyboardMarkup {
	return replyKeyboard([]string{crmButtonLeads, crmButtonReminders})
}

// StartHandler показывает меню и сбрасывает ожидаемый ввод.
func (h *CRMHandler) StartHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	userID := updateUser(update)
	chatID := update.Message.Chat.ID
	if !h.cfg.AdminIDs.Has(userID) {
		h.send(ctx, b, chatID, "⛔ Доступ запрещён.", nil)
		return
	}
	if err := h.state.Delete(ctx, stateKey("crm", userID)); err != nil {
		h.logger.Warn("Failed to clear pending input", zap.Error(err), zap.Int64("user_id", userID))
	}
	h.send(ctx, b, chatID, "CRM-бот ✅", h.mainKeyboard())
}

// DefaultHandler разбирает текст и нажатия кнопок.
func (h *CRMHandler) DefaultHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	switch {
	case update.CallbackQuery != nil:
		h.onCallback(ctx, b, update.CallbackQuery)
	case update.Message != nil && update.Message.Text != "":
		if strings.HasPrefix(update.Message.Text, "/start") {
			h.StartHandler(ctx, b, update)
			return
		}
		h.onText(ctx, b, update.Message)
	}
}

func (h *CRMHandler) onText(ctx context.Context, b *bot.Bot, msg *models.Message) {
	userID := msg.Chat.ID
	if msg.From != nil {
		userID = msg.From.ID
	}
	chatID := msg.Chat.ID
	if !h.cfg.AdminIDs.Has(userID) {
		h.send(ctx, b, chatID, "⛔ Доступ запрещён.", nil)
		return
	}
	text := strings.TrimSpace(msg.Text)

	var pending domain.PendingInput
	ok, err := h.state.Load(ctx, stateKey("crm", userID), &pending)
	if err != nil {
		h.logger.Error("Failed to load pending input", zap.Error(err), zap.Int64("user_id", userID))
	}
	if ok {
		h.handlePending(ctx, b, chatID, userID, pending, text)
		return
	}

	switch text {
	case crmButtonLeads:
		h.showLeads(ctx, b, chatID, nil, 0, leadsPageSize)
	case crmButtonReminders:
		h.showReminders(ctx, b, chatID)
	default:
		h.send(ctx, b, chatID, "Нажми кнопку «📥 Лиды» или /start", nil)
	}
}

func (h *CRMHandler) handlePending(ctx context.Context, b *bot.Bot, chatID, userID int64, p domain.PendingInput, text string) {
	log := h.logger.With(zap.Int64("user_id", userID), zap.String("lead_id", p.LeadID), zap.String("mode", p.Mode))

	switch p.Mode {
	case domain.PendingNote:
		stamp := service.FormatStamp(h.now(), h.location())
		if err := h.leads.AppendLeadNote(ctx, p.LeadID, fmt.Sprintf("[%s] %s", stamp, text)); err != nil {
			log.Error("Failed to append note", zap.Error(err))
			h.send(ctx, b, chatID, "❌ Не удалось сохранить заметку.", nil)
			return
		}
		h.clearPending(ctx, userID)
		h.send(ctx, b, chatID, "✅ Заметка сохранена.", nil)

	case domain.PendingRemind:
		at, err := service.ParseRemindAt(text, h.location())
		if err != nil {
			h.send(ctx, b, chatID, "❌ Формат неверный. Нужно: ДД.ММ.ГГГГ ЧЧ:ММ (пример: 27.01.2026 18:30)", nil)
			return
		}
		if err := h.leads.SetLeadRemindAt(ctx, p.LeadID, &at); err != nil {
			log.Error("Failed to set reminder", zap.Error(err))
			h.send(ctx, b, chatID, "❌ Не удалось сохранить напоминание.", nil)
			return
		}
		h.clearPending(ctx, userID)
		h.send(ctx, b, chatID, "✅ Напоминание установлено.", nil)

	case domain.PendingProfile:
		profile, ok := domain.ProfileField(p.Field, text)
		if ok {
			if err := h.leads.UpdateLeadProfile(ctx, p.LeadID, profile); err != nil {
				log.Error("Failed to update profile", zap.Error(err))
				h.send(ctx, b, chatID, "❌ Не удалось сохранить.", nil)
				return
			}
		}
		h.clearPending(ctx, userID)
		h.send(ctx, b, chatID, "✅ Сохранено.", nil)

	default:
		h.clearPending(ctx, userID)
		return
	}

	h.sendLeadCard(ctx, b, chatID, p.LeadID)
}

func (h *CRMHandler) setPending(ctx context.Context, userID int64, p domain.PendingInput) {
	if err := h.state.Save(ctx, stateKey("crm", userID), p); err != nil {
		h.logger.Error("Failed to save pending input", zap.Error(err), zap.Int64("user_id", userID))
	}
}

func (h *CRMHandler) clearPending(ctx context.Context, userID int64) {
	if err := h.state.Delete(ctx, stateKey("crm", userID)); err != nil {
		h.logger.Warn("Failed to clear pending input", zap.Error(err), zap.Int64("user_id", userID))
	}
}

func (h *CRMHandler) onCallback(ctx context.Context, b *bot.Bot, cq *models.CallbackQuery) {
	userID := cq.From.ID
	if !h.cfg.AdminIDs.Has(userID) {
		h.answer(ctx, b, cq, "⛔ Нет доступа", true)
		return
	}
	data := cq.Data
	action, rest, _ := strings.Cut(data, ":")

	switch action {
	case "leads":
		parts, ok := splitData(data, 3)
		if !ok {
			h.answer(ctx, b, cq, "Ошибка пагинации", true)
			return
		}
		offset, err1 := strconv.Atoi(parts[1])
		limit, err2 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || offset < 0 || limit <= 0 {
			h.answer(ctx, b, cq, "Ошибка пагинации", true)
			return
		}
		h.answer(ctx, b, cq, "", false)
		h.showLeads(ctx, b, 0, cq, offset, limit)

	case "leads_back":
		h.answer(ctx, b, cq, "", false)
		h.showLeads(ctx, b, 0, cq, 0, leadsPageSize)

	case "lead":
		h.answer(ctx, b, cq, "", false)
		h.editLeadCard(ctx, b, cq, rest)

	case "lead_status":
		h.answer(ctx, b, cq, "", false)
		h.edit(ctx, b, cq, "Выбери статус:", optionsKeyboard(rest, "set_status", domain.LeadStatusOptions))

	case "lead_segment":
		h.answer(ctx, b, cq, "", false)
		h.edit(ctx, b, cq, "Выбери сегмент:", optionsKeyboard(rest, "set_segment", domain.SegmentOptions))

	case "set_status", "set_segment":
		parts, ok := splitData(data, 3)
		if !ok {
			h.answer(ctx, b, cq, "Неверный формат команды", true)
			return
		}
		leadID, code := parts[1], parts[2]
		var err error
		if action == "set_status" {
			err = h.leads.SetLeadStatus(ctx, leadID, code)
		} else {
			err = h.leads.SetLeadSegment(ctx, leadID, code)
		}
		if err != nil {
			h.logger.Error("Failed to update lead", zap.Error(err), zap.String("lead_id", leadID), zap.String("action", action))
			h.answer(ctx, b, cq, h.leadErrorText(err), true)
			return
		}
		if action == "set_status" {
			h.answer(ctx, b, cq, "✅ Статус сохранён", false)
		} else {
			h.answer(ctx, b, cq, "✅ Сегмент сохранён", false)
		}
		h.editLeadCard(ctx, b, cq, leadID)

	case "lead_note":
		h.setPending(ctx, userID, domain.PendingInput{Mode: domain.PendingNote, LeadID: rest})
		h.answer(ctx, b, cq, "", false)
		h.edit(ctx, b, cq, "📝 Напиши заметку одним сообщением.\n"+
			"Пример: «Хочет Polar-6, думает, перезвонить завтра»\n\n"+
			"Чтобы отменить — отправь /start.", nil)

	case "lead_remind":
		h.answer(ctx, b, cq, "", false)
		h.edit(ctx, b, cq, "⏰ Выбери когда напомнить:", remindKeyboard(rest))

	case "set_remind":
		parts, ok := splitData(data, 3)
		if !ok {
			h.answer(ctx, b, cq, "Неверный формат команды", true)
			return
		}
		leadID := parts[1]
		at, ok := service.RemindPreset(parts[2], h.now().In(h.location()))
		if !ok {
			h.answer(ctx, b, cq, "Неизвестный вариант", true)
			return
		}
		if err := h.leads.SetLeadRemindAt(ctx, leadID, at); err != nil {
			h.logger.Error("Failed to set reminder", zap.Error(err), zap.String("lead_id", leadID))
			h.answer(ctx, b, cq, h.leadErrorText(err), true)
			return
		}
		h.answer(ctx, b, cq, "✅ Готово", false)
		h.editLeadCard(ctx, b, cq, leadID)

	case "remind_manual":
		h.setPending(ctx, userID, domain.PendingInput{Mode: domain.PendingRemind, LeadID: rest})
		h.answer(ctx, b, cq, "", false)
		h.edit(ctx, b, cq, "✍️ Введи дату и время: ДД.ММ.ГГГГ ЧЧ:ММ (пример: 27.01.2026 18:30)\n\n"+
			"Чтобы отменить — отправь /start.", nil)

	case "lead_profile":
		h.answer(ctx, b, cq, "", false)
		h.edit(ctx, b, cq, "✍️ Какие данные заполнить?", profileKeyboard(rest))

	case "set_profile_mode":
		parts, ok := splitData(data, 3)
		if !ok {
			h.answer(ctx, b, cq, "Неверный формат команды", true)
			return
		}
		h.setPending(ctx, userID, domain.PendingInput{Mode: domain.PendingProfile, LeadID: parts[1], Field: parts[2]})
		h.answer(ctx, b, cq, "", false)
		hint, ok := profileHints[parts[2]]
		if !ok {
			hint = "Введи значение"
		}
		h.edit(ctx, b, cq, hint, nil)

	default:
		h.answer(ctx, b, cq, "", false)
	}
}

func (h *CRMHandler) location() *time.Location {
	if h.cfg.Location == nil {
		return time.Local
	}
	return h.cfg.Location
}

func (h *CRMHandler) leadErrorText(err error) string {
	if errors.Is(err, domain.ErrNotFound) {
		return "Лид не найден"
	}
	return "Ошибка базы данных"
}

// showLeads выводит страницу лидов: новым сообщением в chatID или
// правкой сообщения с кнопкой cq.
func (h *CRMHandler) showLeads(ctx context.Context, b *bot.Bot, chatID int64, cq *models.CallbackQuery, offset, limit int) {
	total, err := h.leads.CountLeads(ctx)
	if err != nil {
		h.logger.Error("Failed to count leads", zap.Error(err))
		h.replyOrEdit(ctx, b, chatID, cq, "Ошибка базы данных", nil)
		return
	}
	rows, err := h.leads.ListLeads(ctx, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list leads", zap.Error(err))
		h.replyOrEdit(ctx, b, chatID, cq, "Ошибка базы данных", nil)
		return
	}

	if total == 0 {
		h.replyOrEdit(ctx, b, chatID, cq, "Лидов пока нет.", nil)
		return
	}
	text := fmt.Sprintf("📥 Лиды %d–%d из %d\nВыбери лид:", offset+1, min(offset+limit, total), total)
	h.replyOrEdit(ctx, b, chatID, cq, text, leadsKeyboard(rows, offset, limit, total))
}

func (h *CRMHandler) replyOrEdit(ctx context.Context, b *bot.Bot, chatID int64, cq *models.CallbackQuery, text string, kb *models.InlineKeyboardMarkup) {
	if cq != nil {
		h.edit(ctx, b, cq, text, kb)
		return
	}
	if kb == nil {
		h.send(ctx, b, chatID, text, nil)
		return
	}
	h.send(ctx, b, chatID, text, kb)
}

func (h *CRMHandler) showReminders(ctx context.Context, b *bot.Bot, chatID int64) {
	rows, err := h.leads.DueReminders(ctx, remindersListCap)
	if err != nil {
		h.logger.Error("Failed to load due reminders", zap.Error(err))
		h.send(ctx, b, chatID, "Ошибка базы данных", nil)
		return
	}
	if len(rows) == 0 {
		h.send(ctx, b, chatID, "🔔 Сейчас нет просроченных напоминаний.", nil)
		return
	}

	lines := []string{"🔔 Пора позвонить/написать:\n"}
	for _, l := range rows {
		lines = append(lines, fmt.Sprintf("• %s | %s | %s | id=%s", l.Phone, orDash(l.ModelCode.String), l.Status, l.ID))
	}
	h.send(ctx, b, chatID, strings.Join(lines, "\n"), nil)
}

func (h *CRMHandler) sendLeadCard(ctx context.Context, b *bot.Bot, chatID int64, leadID string) {
	lead, err := h.leads.GetLead(ctx, leadID)
	if err != nil {
		h.logger.Error("Failed to load lead", zap.Error(err), zap.String("lead_id", leadID))
		h.send(ctx, b, chatID, h.leadErrorText(err), nil)
		return
	}
	h.send(ctx, b, chatID, h.leadCardText(lead), leadCardKeyboard(lead.ID))
}

func (h *CRMHandler) editLeadCard(ctx context.Context, b *bot.Bot, cq *models.CallbackQuery, leadID string) {
	lead, err := h.leads.GetLead(ctx, leadID)
	if err != nil {
		h.logger.Error("Failed to load lead", zap.Error(err), zap.String("lead_id", leadID))
		h.edit(ctx, b, cq, h.leadErrorText(err), nil)
		return
	}
	h.edit(ctx, b, cq, h.leadCardText(lead), leadCardKeyboard(lead.ID))
}

func (h *CRMHandler) leadCardText(l *domain.Lead) string {
	stamp := func(valid bool, t time.Time) string {
		if !valid {
			return "-"
		}
		return service.FormatStamp(t, h.location())
	}
	return fmt.Sprintf("👤 Лид\n\n"+
		"ID: %s\n"+
		"📞 Телефон: %s\n"+
		"Источник: %s\n"+
		"Модель: %s\n"+
		"👤 ФИО: %s\n"+
		"🏙 Город: %s\n"+
		"🎯 Интерес: %s\n"+
		"Сегмент: %s\n"+
		"Статус: %s\n"+
		"Создан: %s\n"+
		"Последний контакт: %s\n"+
		"Напоминание: %s\n\n"+
		"📝 Заметки:\n%s",
		l.ID, orDash(l.Phone), orDash(l.Source), orDash(l.ModelCode.String),
		orLongDash(l.FullName), orLongDash(l.City), orLongDash(l.Interest),
		l.Segment, l.Status,
		stamp(true, l.CreatedAt),
		stamp(l.LastContactAt.Valid, l.LastContactAt.Time),
		stamp(l.RemindAt.Valid, l.RemindAt.Time),
		orLongDash(l.Note),
	)
}

func leadsKeyboard(rows []domain.Lead, offset, limit, total int) *models.InlineKeyboardMarkup {
	kb := &models.InlineKeyboardMarkup{}
	for _, l := range rows {
		label := fmt.Sprintf("%s • %s • %s", orDash(l.Phone), orDash(l.ModelCode.String), l.Status)
		kb.InlineKeyboard = append(kb.InlineKeyboard, []models.InlineKeyboardButton{button(label, "lead:"+l.ID)})
	}

	var nav []models.InlineKeyboardButton
	if offset > 0 {
		nav = append(nav, button("◀️ Назад", fmt.Sprintf("leads:%d:%d", max(offset-limit, 0), limit)))
	}
	if offset+limit < total {
		nav = append(nav, button("▶️ Вперёд", fmt.Sprintf("leads:%d:%d", offset+limit, limit)))
	}
	if len(nav) > 0 {
		kb.InlineKeyboard = append(kb.InlineKeyboard, nav)
	}
	return kb
}

func leadCardKeyboard(leadID string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{button("🔁 Статус", "lead_status:"+leadID), button("🏷 Сегмент", "lead_segment:"+leadID)},
		{button("📝 Заметка", "lead_note:"+leadID), button("⏰ Напомнить", "lead_remind:"+leadID)},
		{button("✍️ Данные (ФИО/город/интерес)", "lead_profile:"+leadID)},
		{button("⬅️ К списку", "leads_back")},
	}}
}

func optionsKeyboard(leadID, action string, options []domain.Option) *models.InlineKeyboardMarkup {
	kb := &models.InlineKeyboardMarkup{}
	for _, o := range options {
		kb.InlineKeyboard = append(kb.InlineKeyboard, []models.InlineKeyboardButton{
			button(o.Label, action+":"+leadID+":"+o.Code),
		})
	}
	kb.InlineKeyboard = append(kb.InlineKeyboard, []models.InlineKeyboardButton{button("⬅️ Назад", "lead:"+leadID)})
	return kb
}

func remindKeyboard(leadID string) *models.InlineKeyboardMarkup {
	preset := func(code string) string { return "set_remind:" + leadID + ":" + code }
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{button("⏱ +2 часа", preset(service.RemindIn2Hours)), button("📅 Завтра 11:00", preset(service.RemindTomorrow11))},
		{button("📆 +3 дня", preset(service.RemindIn3Days)), button("✍️ Ввести вручную", "remind_manual:"+leadID)},
		{button("🧹 Убрать напоминание", preset(service.RemindClear))},
		{button("⬅️ Назад", "lead:"+leadID)},
	}}
}

func profileKeyboard(leadID string) *models.InlineKeyboardMarkup {
	mode := func(field string) string { return "set_profile_mode:" + leadID + ":" + field }
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{button("👤 Ввести ФИО", mode(domain.ProfileFullName))},
		{button("🏙 Ввести город", mode(domain.ProfileCity))},
		{button("🎯 Ввести интерес", mode(domain.ProfileInterest))},
		{button("⬅️ Назад", "lead:"+leadID)},
	}}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func orLongDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
