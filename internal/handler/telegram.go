package handler

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// StateStore хранит незавершённые диалоги пользователей ботов.
type StateStore interface {
	Load(ctx context.Context, key string, v any) (bool, error)
	Save(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
}

func stateKey(prefix string, userID int64) string {
	return prefix + ":" + strconv.FormatInt(userID, 10)
}

// updateUser возвращает id автора сообщения или нажатия кнопки.
func updateUser(update *models.Update) int64 {
	switch {
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.ID
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID
	case update.Message != nil:
		return update.Message.Chat.ID
	}
	return 0
}

// callbackTarget возвращает чат и сообщение, к которому привязана кнопка.
// messageID = 0, если сообщение недоступно.
func callbackTarget(cq *models.CallbackQuery) (chatID int64, messageID int) {
	switch {
	case cq.Message.Message != nil:
		return cq.Message.Message.Chat.ID, cq.Message.Message.ID
	case cq.Message.InaccessibleMessage != nil:
		return cq.Message.InaccessibleMessage.Chat.ID, 0
	}
	return cq.From.ID, 0
}

// splitData режет callback data на n частей; ok=false при другом числе частей.
func splitData(data string, n int) ([]string, bool) {
	parts := strings.SplitN(data, ":", n)
	if len(parts) != n {
		return nil, false
	}
	return parts, true
}

// messenger оборачивает отправку сообщений с логированием ошибок.
type messenger struct {
	logger *zap.Logger
}

func (m messenger) send(ctx context.Context, b *bot.Bot, chatID int64, text string, markup models.ReplyMarkup) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	})
	if err != nil {
		m.logger.Error("Failed to send message", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func (m messenger) answer(ctx context.Context, b *bot.Bot, cq *models.CallbackQuery, text string, alert bool) {
	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: cq.ID,
		Text:            text,
		ShowAlert:       alert,
	})
	if err != nil {
		m.logger.Warn("Failed to answer callback", zap.Error(err), zap.String("data", cq.Data))
	}
}

// edit заменяет текст сообщения с кнопкой или шлёт новое, если его нельзя править.
func (m messenger) edit(ctx context.Context, b *bot.Bot, cq *models.CallbackQuery, text string, markup *models.InlineKeyboardMarkup) {
	chatID, messageID := callbackTarget(cq)
	if messageID == 0 {
		var rm models.ReplyMarkup
		if markup != nil {
			rm = markup
		}
		m.send(ctx, b, chatID, text, rm)
		return
	}

	params := &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := b.EditMessageText(ctx, params); err != nil {
		m.logger.Error("Failed to edit message", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func button(text, data string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, CallbackData: data}
}

func replyKeyboard(rows ...[]string) *models.ReplyKeyboardMarkup {
	kb := &models.ReplyKeyboardMarkup{ResizeKeyboard: true}
	for _, row := range rows {
		buttons := make([]models.KeyboardButton, 0, len(row))
		for _, text := range row {
			buttons = append(buttons, models.KeyboardButton{Text: text})
		}
		kb.Keyboard = append(kb.Keyboard, buttons)
	}
	return kb
}
