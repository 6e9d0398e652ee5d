package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Dmitryntvh/AVITO/config"
	"github.com/Dmitryntvh/AVITO/internal/domain"
	"github.com/Dmitryntvh/AVITO/internal/repository"
	"github.com/Dmitryntvh/AVITO/internal/service"
	"github.com/Dmitryntvh/AVITO/traits/helper"
)

const (
	shopButtonCatalog  = "🛍️ Каталог"
	shopButtonCart     = "🛒 Корзина"
	shopButtonMyOrders = "📦 Мои заказы"

	shopButtonRequests = "📦 Заявки"
	shopButtonReport   = "📊 Отчёт"

	shopButtonOrders     = "📦 Заказы"
	shopButtonProducts   = "📚 Товары"
	shopButtonAddProduct = "➕ Товар"
	shopButtonImport     = "📥 Импорт прайса"

	shopFailText = "Произошла ошибка. Попробуйте позже."

	catalogLimit   = 100
	ordersLimit    = 50
	reportLimit    = 1000
	maxPriceFile   = 10 << 20
	paymentMethod  = "manual"
	supplierWorker = 10
)

type role int

const (
	roleClient role = iota
	roleSupplier
	roleAdmin
)

// ShopHandler обслуживает бота магазина: клиентов, поставщиков и админов.
type ShopHandler struct {
	messenger
	cfg        *config.Config
	logger     *zap.Logger
	shop       *repository.ShopRepository
	state      StateStore
	httpClient *http.Client
}

func NewShopHandler(cfg *config.Config, zapLogger *zap.Logger, shop *repository.ShopRepository, state StateStore) *ShopHandler {
	return &ShopHandler{
		messenger:  messenger{logger: zapLogger},
		cfg:        cfg,
		logger:     zapLogger,
		shop:       shop,
		state:      state,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Options регистрирует обработчики бота магазина.
func (h *ShopHandler) Options() []bot.Option {
	return []bot.Option{
		bot.WithDefaultHandler(h.DefaultHandler),
		bot.WithMessageTextHandler("/start", bot.MatchTypePrefix, h.StartHandler),
	}
}

func (h *ShopHandler) roleOf(userID int64) role {
	switch {
	case h.cfg.AdminIDs.Has(userID):
		return roleAdmin
	case h.cfg.SupplierIDs.Has(userID):
		return roleSupplier
	default:
		return roleClient
	}
}

func clientMenu() *models.ReplyKeyboardMarkup {
	return replyKeyboard([]string{shopButtonCatalog, shopButtonCart, shopButtonMyOrders})
}

func supplierMenu() *models.ReplyKeyboardMarkup {
	return replyKeyboard([]string{shopButtonRequests, shopButtonReport})
}

func adminMenu() *models.ReplyKeyboardMarkup {
	return replyKeyboard(
		[]string{shopButtonOrders, shopButtonProducts, shopButtonAddProduct},
		[]string{shopButtonImport, shopButtonReport},
	)
}

func contactKeyboard() *models.ReplyKeyboardMarkup {
	return &models.ReplyKeyboardMarkup{
		Keyboard: [][]models.KeyboardButton{
			{{Text: "📲 Отправить номер телефона", RequestContact: true}},
		},
		ResizeKeyboard: true,
	}
}

func (h *ShopHandler) loadSession(ctx context.Context, userID int64) domain.ShopSession {
	var sess domain.ShopSession
	if _, err := h.state.Load(ctx, stateKey("shop", userID), &sess); err != nil {
		h.logger.Error("Failed to load shop session", zap.Error(err), zap.Int64("user_id", userID))
	}
	return sess
}

func (h *ShopHandler) saveSession(ctx context.Context, userID int64, sess domain.ShopSession) {
	if err := h.state.Save(ctx, stateKey("shop", userID), sess); err != nil {
		h.logger.Error("Failed to save shop session", zap.Error(err), zap.Int64("user_id", userID))
	}
}

// StartHandler показывает меню по роли и сбрасывает незаконченный шаг.
func (h *ShopHandler) StartHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	userID := updateUser(update)
	chatID := update.Message.Chat.ID

	sess := h.loadSession(ctx, userID)
	if sess.Step != "" {
		sess.Reset()
		h.saveSession(ctx, userID, sess)
	}

	switch h.roleOf(userID) {
	case roleAdmin:
		h.send(ctx, b, chatID, "Меню администратора", adminMenu())
	case roleSupplier:
		h.send(ctx, b, chatID, "Меню поставщика", supplierMenu())
	default:
		_, err := h.shop.GetClientByTgID(ctx, userID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			h.send(ctx, b, chatID, "Здравствуйте! Чтобы оформить заказ, пожалуйста, поделитесь своим номером телефона.", contactKeyboard())
		case err != nil:
			h.logger.Error("Failed to load client", zap.Error(err), zap.Int64("user_id", userID))
			h.send(ctx, b, chatID, shopFailText, nil)
		default:
			h.send(ctx, b, chatID, "Главное меню", clientMenu())
		}
	}
}

// DefaultHandler разбирает контакты, документы, текст и нажатия кнопок.
func (h *ShopHandler) DefaultHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery != nil {
		h.onCallback(ctx, b, update.CallbackQuery)
		return
	}
	msg := update.Message
	if msg == nil {
		return
	}
	switch {
	case msg.Contact != nil:
		h.onContact(ctx, b, update)
	case msg.Document != nil:
		h.onDocument(ctx, b, update)
	case strings.HasPrefix(msg.Text, "/start"):
		h.StartHandler(ctx, b, update)
	case msg.Text != "":
		h.onText(ctx, b, update)
	}
}

func (h *ShopHandler) onContact(ctx context.Context, b *bot.Bot, update *models.Update) {
	userID := updateUser(update)
	chatID := update.Message.Chat.ID
	if h.roleOf(userID) != roleClient {
		return
	}
	contact := update.Message.Contact
	phone := service.NormalizePhone(contact.PhoneNumber)
	if phone == "" {
		phone = strings.TrimSpace(contact.PhoneNumber)
	}
	name := strings.TrimSpace(contact.FirstName + " " + contact.LastName)

	clientID, err := h.shop.InsertClient(ctx, userID, phone, name)
	if err != nil {
		h.logger.Error("Failed to register client", zap.Error(err), zap.Int64("user_id", userID))
		h.send(ctx, b, chatID, shopFailText, nil)
		return
	}
	h.logger.Info("Client registered", zap.Int64("user_id", userID), zap.String("client_id", clientID))

	sess := h.loadSession(ctx, userID)
	sess.Reset()
	h.saveSession(ctx, userID, sess)
	h.send(ctx, b, chatID, "Спасибо! Теперь вы можете оформить заказ.", clientMenu())
}

func (h *ShopHandler) onText(ctx context.Context, b *bot.Bot, update *models.Update) {
	userID := updateUser(update)
	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)
	sess := h.loadSession(ctx, userID)

	switch h.roleOf(userID) {
	case roleAdmin:
		if sess.Step != "" {
			h.adminStep(ctx, b, chatID, userID, sess, text)
			return
		}
		h.adminMenuAction(ctx, b, chatID, userID, sess, text)
	case roleSupplier:
		switch text {
		case shopButtonRequests:
			h.sendOrders(ctx, b, chatID, "Список заявок:")
		case shopButtonReport:
			h.sendReport(ctx, b, chatID, supplierMenu())
		default:
			h.send(ctx, b, chatID, "Используйте меню для выбора действия.", supplierMenu())
		}
	default:
		if sess.Step != "" {
			h.clientStep(ctx, b, chatID, userID, sess, text)
			return
		}
		switch text {
		case shopButtonCatalog:
			h.send(ctx, b, chatID, "Выберите товар:", h.productsKeyboard(ctx))
		case shopButtonCart:
			msg, kb := h.cartView(ctx, sess)
			h.send(ctx, b, chatID, msg, kb)
		case shopButtonMyOrders:
			h.sendClientOrders(ctx, b, chatID, userID)
		default:
			h.send(ctx, b, chatID, "Выберите действие через меню.", clientMenu())
		}
	}
}

func (h *ShopHandler) clientStep(ctx context.Context, b *bot.Bot, chatID, userID int64, sess domain.ShopSession, text string) {
	switch sess.Step {
	case domain.StepEnterQty:
		qty, err := service.ParseQuantity(text)
		if err != nil {
			h.send(ctx, b, chatID, "Введите корректное количество, например 2.5", nil)
			return
		}
		if sess.PendingProduct == "" {
			sess.Reset()
			h.saveSession(ctx, userID, sess)
			h.send(ctx, b, chatID, "Произошла ошибка. Попробуйте снова.", nil)
			return
		}
		sess.AddToCart(sess.PendingProduct, qty)
		sess.Reset()
		h.saveSession(ctx, userID, sess)
		h.send(ctx, b, chatID, "Товар добавлен в корзину.", &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{{
				button("➕ Продолжить", "shop:more"),
				button("🛒 Корзина", "cart:show"),
			}},
		})

	case domain.StepEnterAddress:
		if text == "" {
			h.send(ctx, b, chatID, "Введите корректный адрес доставки.", nil)
			return
		}
		h.placeOrder(ctx, b, chatID, userID, sess, text)

	default:
		sess.Reset()
		h.saveSession(ctx, userID, sess)
		h.send(ctx, b, chatID, "Выберите действие через меню.", clientMenu())
	}
}

// placeOrder оформляет заказ из корзины и рассылает его поставщикам.
func (h *ShopHandler) placeOrder(ctx context.Context, b *bot.Bot, chatID, userID int64, sess domain.ShopSession, address string) {
	log := h.logger.With(zap.Int64("user_id", userID))

	client, err := h.shop.GetClientByTgID(ctx, userID)
	if err != nil {
		sess.Reset()
		h.saveSession(ctx, userID, sess)
		if errors.Is(err, domain.ErrNotFound) {
			h.send(ctx, b, chatID, "Ошибка: клиент не найден. Попробуйте /start.", nil)
			return
		}
		log.Error("Failed to load client", zap.Error(err))
		h.send(ctx, b, chatID, shopFailText, nil)
		return
	}
	if len(sess.Cart) == 0 {
		sess.Reset()
		h.saveSession(ctx, userID, sess)
		h.send(ctx, b, chatID, "Ваша корзина пуста.", clientMenu())
		return
	}

	var (
		orderLines []domain.OrderLine
		lines      []string
	)
	for _, code := range sess.CartOrder {
		qty := sess.Cart[code]
		p, err := h.shop.GetProductByCode(ctx, code)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			log.Error("Failed to load product", zap.Error(err), zap.String("code", code))
			h.send(ctx, b, chatID, shopFailText, nil)
			return
		}
		orderLines = append(orderLines, domain.OrderLine{ProductID: p.ID, Quantity: qty, Price: p.Price})
		lines = append(lines, "• "+p.Name+" — "+withUnit(helper.FormatAmount(qty), p.Unit))
	}

	orderID, total, err := h.shop.PlaceOrder(ctx, client.ID, address, orderLines)
	if err != nil {
		log.Error("Failed to place order", zap.Error(err))
		h.send(ctx, b, chatID, shopFailText, nil)
		return
	}
	log = log.With(zap.String("order_id", orderID))

	sess.ClearCart()
	sess.Reset()
	h.saveSession(ctx, userID, sess)
	log.Info("Order placed", zap.String("total", total.String()))

	h.send(ctx, b, chatID, fmt.Sprintf("Заказ создан! Номер заказа: %s.\n"+
		"Наш менеджер свяжется с вами для подтверждения. Спасибо за заказ!", orderID), clientMenu())

	info := []string{
		"📦 Новый заказ " + orderID,
		fmt.Sprintf("Клиент: %s / %s", client.Name, client.Phone),
		"Адрес: " + address,
		"Состав заказа:",
	}
	info = append(info, lines...)
	info = append(info, "Итого: "+helper.FormatAmount(total))
	h.notifySuppliers(ctx, b, strings.Join(info, "\n"))
}

// notifySuppliers рассылает текст всем поставщикам с ограничением
// скорости Bot API.
func (h *ShopHandler) notifySuppliers(ctx context.Context, b *bot.Bot, text string) (sent, failed int64) {
	ids := h.cfg.SupplierIDs.IDs()
	if len(ids) == 0 {
		return 0, 0
	}

	rateLimiter := rate.NewLimiter(rate.Every(time.Second/29), 1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(supplierWorker)

	for _, id := range ids {
		g.Go(func() error {
			if err := rateLimiter.Wait(gctx); err != nil {
				return err
			}
			_, err := b.SendMessage(gctx, &bot.SendMessageParams{ChatID: id, Text: text})
			if err != nil {
				atomic.AddInt64(&failed, 1)
				h.logger.Warn("Failed to notify supplier", zap.Int64("supplier_id", id), zap.Error(err))
				return nil
			}
			atomic.AddInt64(&sent, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.logger.Error("Supplier notification interrupted", zap.Error(err))
	}
	return atomic.LoadInt64(&sent), atomic.LoadInt64(&failed)
}

func (h *ShopHandler) adminMenuAction(ctx context.Context, b *bot.Bot, chatID, userID int64, sess domain.ShopSession, text string) {
	switch text {
	case shopButtonOrders:
		h.sendOrders(ctx, b, chatID, "Список заказов:")
	case shopButtonProducts:
		h.send(ctx, b, chatID, "Каталог товаров:", h.productsKeyboard(ctx))
	case shopButtonAddProduct:
		sess.Step = domain.StepProductCode
		sess.Draft = &domain.Product{}
		h.saveSession(ctx, userID, sess)
		h.send(ctx, b, chatID, "Введите код товара:", nil)
	case shopButtonImport:
		sess.Step = domain.StepAwaitPriceFile
		h.saveSession(ctx, userID, sess)
		h.send(ctx, b, chatID, "Отправьте Excel‑файл (.xlsx, .xlsm) или CSV с колонками code, name, price, "+
			"unit (необязательно), description (необязательно).", nil)
	case shopButtonReport:
		h.sendReport(ctx, b, chatID, adminMenu())
	default:
		h.send(ctx, b, chatID, "Используйте меню для выбора действия.", adminMenu())
	}
}

func (h *ShopHandler) adminStep(ctx context.Context, b *bot.Bot, chatID, userID int64, sess domain.ShopSession, text string) {
	if sess.Draft == nil {
		sess.Draft = &domain.Product{}
	}
	draft := sess.Draft

	switch sess.Step {
	case domain.StepProductCode:
		if text == "" {
			h.send(ctx, b, chatID, "Код не может быть пустым. Введите код товара:", nil)
			return
		}
		draft.Code = text
		sess.Step = domain.StepProductName
		h.saveSession(ctx, userID, sess)
		h.send(ctx, b, chatID, "Введите название товара:", nil)

	case domain.StepProductName:
		if text == "" {
			h.send(ctx, b, chatID, "Название не может быть пустым. Введите название товара:", nil)
			return
		}
		draft.Name = text
		sess.Step = domain.StepProductPrice
		h.saveSession(ctx, userID, sess)
		h.send(ctx, b, chatID, "Введите цену за единицу (например, 25.5):", nil)

	case domain.StepProductPrice:
		price, err := service.ParseNonNegative(text)
		if err != nil {
			h.send(ctx, b, chatID, "Введите корректную цену, например 10.5", nil)
			return
		}
		draft.Price = price
		sess.Step = domain.StepProductUnit
		h.saveSession(ctx, userID, sess)
		h.send(ctx, b, chatID, "Введите единицу измерения (например, кг, м; или '-' если не нужно):", nil)

	case domain.StepProductUnit:
		if text == "-" {
			text = ""
		}
		draft.Unit = text
		sess.Step = domain.StepProductDesc
		h.saveSession(ctx, userID, sess)
		h.send(ctx, b, chatID, "Введите описание (или '-' для пропуска):", nil)

	case domain.StepProductDesc:
		if text == "-" {
			text = ""
		}
		draft.Description = text
		product := *draft
		sess.Reset()
		h.saveSession(ctx, userID, sess)

		if err := service.ValidateProduct(product); err != nil {
			h.send(ctx, b, chatID, "Не удалось добавить товар: "+err.Error(), adminMenu())
			return
		}
		if err := h.shop.UpsertProduct(ctx, product); err != nil {
			h.logger.Error("Failed to upsert product", zap.Error(err), zap.String("code", product.Code))
			h.send(ctx, b, chatID, shopFailText, adminMenu())
			return
		}
		h.send(ctx, b, chatID, fmt.Sprintf("Товар '%s' добавлен/обновлён.", product.Name), adminMenu())

	case domain.StepEnterPayment:
		amount, err := service.ParseQuantity(text)
		if err != nil {
			h.send(ctx, b, chatID, "Введите сумму оплаты, например 1500", nil)
			return
		}
		orderID := sess.PendingOrder
		sess.Reset()
		h.saveSession(ctx, userID, sess)

		if _, err := h.shop.RecordPayment(ctx, orderID, amount, paymentMethod); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				h.send(ctx, b, chatID, "Заказ не найден", adminMenu())
				return
			}
			h.logger.Error("Failed to record payment", zap.Error(err), zap.String("order_id", orderID))
			h.send(ctx, b, chatID, shopFailText, adminMenu())
			return
		}
		h.send(ctx, b, chatID, "✅ Оплата "+helper.FormatAmount(amount)+" записана.", adminMenu())
		h.sendOrderCard(ctx, b, chatID, orderID, roleAdmin)

	case domain.StepAwaitPriceFile:
		h.send(ctx, b, chatID, "Отправьте файл Excel (.xlsx, .xlsm) или CSV (.csv). Чтобы отменить — /start.", nil)

	default:
		sess.Reset()
		h.saveSession(ctx, userID, sess)
		h.send(ctx, b, chatID, "Неверное состояние. Попробуйте снова выбрать \"➕ Товар\".", adminMenu())
	}
}

func (h *ShopHandler) onDocument(ctx context.Context, b *bot.Bot, update *models.Update) {
	userID := updateUser(update)
	chatID := update.Message.Chat.ID
	if h.roleOf(userID) != roleAdmin {
		return
	}
	sess := h.loadSession(ctx, userID)
	if sess.Step != domain.StepAwaitPriceFile {
		return
	}

	doc := update.Message.Document
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(doc.FileName)), ".")
	if !service.PriceListExts[ext] {
		h.send(ctx, b, chatID, "Пожалуйста, отправьте файл Excel (.xlsx, .xlsm) или CSV (.csv).", nil)
		return
	}

	sess.Reset()
	h.saveSession(ctx, userID, sess)

	data, err := h.downloadFile(ctx, b, doc.FileID)
	if err != nil {
		h.logger.Error("Failed to download price file", zap.Error(err), zap.String("file", doc.FileName))
		h.send(ctx, b, chatID, "Не удалось прочитать файл: "+err.Error(), adminMenu())
		return
	}
	rows, err := service.ParsePriceList(doc.FileName, data)
	if err != nil {
		h.logger.Warn("Failed to parse price file", zap.Error(err), zap.String("file", doc.FileName))
		h.send(ctx, b, chatID, "Не удалось прочитать файл: "+err.Error(), adminMenu())
		return
	}
	if len(rows) == 0 {
		h.send(ctx, b, chatID, "В файле нет валидных строк.", adminMenu())
		return
	}

	n, err := h.shop.ImportProducts(ctx, rows)
	if err != nil {
		h.logger.Error("Failed to import products", zap.Error(err))
		h.send(ctx, b, chatID, shopFailText, adminMenu())
		return
	}
	h.logger.Info("Price list imported", zap.Int("rows", n), zap.String("file", doc.FileName))
	h.send(ctx, b, chatID, fmt.Sprintf("Импортировано %d записей.", n), adminMenu())
}

func (h *ShopHandler) downloadFile(ctx context.Context, b *bot.Bot, fileID string) ([]byte, error) {
	file, err := b.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.FileDownloadLink(file), nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPriceFile+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) > maxPriceFile {
		return nil, errors.New("файл слишком большой")
	}
	return data, nil
}

func (h *ShopHandler) onCallback(ctx context.Context, b *bot.Bot, cq *models.CallbackQuery) {
	userID := cq.From.ID
	r := h.roleOf(userID)
	data := cq.Data
	action, rest, _ := strings.Cut(data, ":")

	if data == "noop" {
		h.answer(ctx, b, cq, "", false)
		return
	}

	if r == roleAdmin || r == roleSupplier {
		switch action {
		case "order":
			h.answer(ctx, b, cq, "", false)
			h.editOrderCard(ctx, b, cq, rest, r)
			return
		case "setstat":
			h.setOrderStatus(ctx, b, cq, r)
			return
		case "pay":
			if r != roleAdmin {
				h.answer(ctx, b, cq, "⛔ Нет доступа", true)
				return
			}
			sess := h.loadSession(ctx, userID)
			sess.Reset()
			sess.Step = domain.StepEnterPayment
			sess.PendingOrder = rest
			h.saveSession(ctx, userID, sess)
			h.answer(ctx, b, cq, "", false)
			h.edit(ctx, b, cq, fmt.Sprintf("Введите сумму оплаты для заказа %s…:", service.ShortID(rest)), nil)
			return
		case "prod":
			if r == roleAdmin {
				h.showProductInfo(ctx, b, cq, rest)
				return
			}
		}
	}

	sess := h.loadSession(ctx, userID)
	switch {
	case action == "prod":
		p, err := h.shop.GetProductByCode(ctx, rest)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				h.logger.Error("Failed to load product", zap.Error(err), zap.String("code", rest))
			}
			h.answer(ctx, b, cq, "Товар не найден", true)
			return
		}
		sess.Reset()
		sess.Step = domain.StepEnterQty
		sess.PendingProduct = p.Code
		h.saveSession(ctx, userID, sess)
		h.answer(ctx, b, cq, "", false)
		h.edit(ctx, b, cq, fmt.Sprintf("%s\nЦена: %s\nВведите количество:",
			p.Name, withUnit(helper.FormatAmount(p.Price), p.Unit)), nil)

	case data == "shop:more", data == "cart:back":
		h.answer(ctx, b, cq, "", false)
		h.edit(ctx, b, cq, "Выберите товар:", h.productsKeyboard(ctx))

	case data == "cart:show":
		h.answer(ctx, b, cq, "", false)
		msg, kb := h.cartView(ctx, sess)
		h.edit(ctx, b, cq, msg, kb)

	case data == "cart:clear":
		sess.ClearCart()
		h.saveSession(ctx, userID, sess)
		h.answer(ctx, b, cq, "Корзина очищена", false)
		msg, kb := h.cartView(ctx, sess)
		h.edit(ctx, b, cq, msg, kb)

	case data == "cart:place":
		if len(sess.Cart) == 0 {
			h.answer(ctx, b, cq, "Корзина пуста", true)
			return
		}
		sess.Reset()
		sess.Step = domain.StepEnterAddress
		h.saveSession(ctx, userID, sess)
		h.answer(ctx, b, cq, "", false)
		h.edit(ctx, b, cq, "Введите адрес доставки (улица, дом, комментарий):", nil)

	default:
		h.answer(ctx, b, cq, "", false)
	}
}

func (h *ShopHandler) setOrderStatus(ctx context.Context, b *bot.Bot, cq *models.CallbackQuery, r role) {
	parts, ok := splitData(cq.Data, 3)
	if !ok {
		h.answer(ctx, b, cq, "Неверный формат команды", true)
		return
	}
	orderID, status := parts[1], parts[2]
	if status == "" || (r == roleSupplier && !domain.SupplierStatuses[status]) {
		h.answer(ctx, b, cq, "Недопустимый статус", true)
		return
	}
	if err := h.shop.SetOrderStatus(ctx, orderID, status); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.answer(ctx, b, cq, "Заказ не найден", true)
			return
		}
		h.logger.Error("Failed to set order status", zap.Error(err),
			zap.String("order_id", orderID), zap.Int64("user_id", cq.From.ID))
		h.answer(ctx, b, cq, "Ошибка при обновлении статуса", true)
		return
	}
	h.answer(ctx, b, cq, "Статус обновлён", false)
	h.editOrderCard(ctx, b, cq, orderID, r)
}

func (h *ShopHandler) showProductInfo(ctx context.Context, b *bot.Bot, cq *models.CallbackQuery, code string) {
	p, err := h.shop.GetProductByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			h.logger.Error("Failed to load product", zap.Error(err), zap.String("code", code))
		}
		h.answer(ctx, b, cq, "Товар не найден", true)
		return
	}
	h.answer(ctx, b, cq, "", false)
	text := fmt.Sprintf("📦 %s\nКод: %s\nЦена: %s\nОписание: %s",
		p.Name, p.Code, withUnit(helper.FormatAmount(p.Price), p.Unit), orLongDash(p.Description))
	h.edit(ctx, b, cq, text, &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{button("🔙 В каталог", "cart:back")}},
	})
}

func (h *ShopHandler) productsKeyboard(ctx context.Context) *models.InlineKeyboardMarkup {
	kb := &models.InlineKeyboardMarkup{}
	products, err := h.shop.ListProducts(ctx, catalogLimit, 0)
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
	}
	for _, p := range products {
		kb.InlineKeyboard = append(kb.InlineKeyboard, []models.InlineKeyboardButton{
			button(service.ProductLabel(p), "prod:"+p.Code),
		})
	}
	if len(kb.InlineKeyboard) == 0 {
		kb.InlineKeyboard = append(kb.InlineKeyboard, []models.InlineKeyboardButton{button("Каталог пуст", "noop")})
	}
	return kb
}

func (h *ShopHandler) cartView(ctx context.Context, sess domain.ShopSession) (string, *models.InlineKeyboardMarkup) {
	kb := &models.InlineKeyboardMarkup{}
	if len(sess.Cart) > 0 {
		kb.InlineKeyboard = append(kb.InlineKeyboard,
			[]models.InlineKeyboardButton{button("📦 Оформить заказ", "cart:place")},
			[]models.InlineKeyboardButton{button("🧹 Очистить", "cart:clear")},
		)
	}
	kb.InlineKeyboard = append(kb.InlineKeyboard, []models.InlineKeyboardButton{button("🔙 В каталог", "cart:back")})

	if len(sess.Cart) == 0 {
		return "Корзина пуста.", kb
	}

	lines := []string{"Ваша корзина:"}
	total := decimal.Zero
	for _, code := range sess.CartOrder {
		qty := sess.Cart[code]
		p, err := h.shop.GetProductByCode(ctx, code)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				h.logger.Error("Failed to load product", zap.Error(err), zap.String("code", code))
			}
			continue
		}
		amount := p.Price.Mul(qty)
		total = total.Add(amount)
		lines = append(lines, fmt.Sprintf("• %s — %s × %s = %s",
			p.Name, withUnit(helper.FormatAmount(qty), p.Unit), helper.FormatAmount(p.Price), helper.FormatAmount(amount)))
	}
	lines = append(lines, "", "Итого: "+helper.FormatAmount(total))
	return strings.Join(lines, "\n"), kb
}

func (h *ShopHandler) sendClientOrders(ctx context.Context, b *bot.Bot, chatID, userID int64) {
	client, err := h.shop.GetClientByTgID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		h.send(ctx, b, chatID, "Сначала зарегистрируйтесь, поделившись номером телефона.", contactKeyboard())
		return
	}
	if err != nil {
		h.logger.Error("Failed to load client", zap.Error(err), zap.Int64("user_id", userID))
		h.send(ctx, b, chatID, shopFailText, nil)
		return
	}

	orders, err := h.shop.ListOrdersByClient(ctx, client.ID)
	if err != nil {
		h.logger.Error("Failed to list client orders", zap.Error(err), zap.String("client_id", client.ID))
		h.send(ctx, b, chatID, shopFailText, nil)
		return
	}
	if len(orders) == 0 {
		h.send(ctx, b, chatID, "У вас пока нет заказов.", nil)
		return
	}

	lines := []string{"Ваши заказы:"}
	for _, o := range orders {
		lines = append(lines, fmt.Sprintf("• %s… | %s | %s | %s",
			service.ShortID(o.ID), o.CreatedAt.In(h.location()).Format("02.01.2006"),
			helper.FormatAmount(o.TotalAmount), o.Status))
	}
	h.send(ctx, b, chatID, strings.Join(lines, "\n"), nil)
}

func (h *ShopHandler) sendOrders(ctx context.Context, b *bot.Bot, chatID int64, title string) {
	orders, err := h.shop.ListOrders(ctx, "", ordersLimit, 0)
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		h.send(ctx, b, chatID, shopFailText, nil)
		return
	}

	kb := &models.InlineKeyboardMarkup{}
	for _, o := range orders {
		label := fmt.Sprintf("%s… | %s | %s", service.ShortID(o.ID), helper.FormatAmount(o.TotalAmount), o.Status)
		kb.InlineKeyboard = append(kb.InlineKeyboard, []models.InlineKeyboardButton{button(label, "order:"+o.ID)})
	}
	if len(orders) == 0 {
		kb.InlineKeyboard = append(kb.InlineKeyboard, []models.InlineKeyboardButton{button("Нет заказов", "noop")})
	}
	h.send(ctx, b, chatID, title, kb)
}

func (h *ShopHandler) sendReport(ctx context.Context, b *bot.Bot, chatID int64, menu *models.ReplyKeyboardMarkup) {
	orders, err := h.shop.ListOrders(ctx, "", reportLimit, 0)
	if err != nil {
		h.logger.Error("Failed to build report", zap.Error(err))
		h.send(ctx, b, chatID, shopFailText, nil)
		return
	}
	if len(orders) == 0 {
		h.send(ctx, b, chatID, "Нет заказов.", menu)
		return
	}
	h.send(ctx, b, chatID, service.BuildOrderReport(orders).Text(), menu)
}

func (h *ShopHandler) sendOrderCard(ctx context.Context, b *bot.Bot, chatID int64, orderID string, r role) {
	order, err := h.shop.GetOrder(ctx, orderID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			h.logger.Error("Failed to load order", zap.Error(err), zap.String("order_id", orderID))
		}
		h.send(ctx, b, chatID, "Заказ не найден", nil)
		return
	}
	h.send(ctx, b, chatID, h.orderCardText(order), orderKeyboard(order.ID, r))
}

func (h *ShopHandler) editOrderCard(ctx context.Context, b *bot.Bot, cq *models.CallbackQuery, orderID string, r role) {
	order, err := h.shop.GetOrder(ctx, orderID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			h.logger.Error("Failed to load order", zap.Error(err), zap.String("order_id", orderID))
		}
		h.edit(ctx, b, cq, "Заказ не найден", nil)
		return
	}
	h.edit(ctx, b, cq, h.orderCardText(order), orderKeyboard(order.ID, r))
}

func (h *ShopHandler) orderCardText(o *domain.Order) string {
	lines := []string{
		"🧾 Заказ " + o.ID,
		"Дата: " + service.FormatStamp(o.CreatedAt, h.location()),
		fmt.Sprintf("Клиент: %s / %s", o.ClientName, o.ClientPhone),
		"Статус: " + o.Status,
	}
	if o.Address != "" {
		lines = append(lines, "Адрес: "+o.Address)
	}
	lines = append(lines, "", "Позиции:")
	for _, it := range o.Items {
		name := it.ProductName
		if name == "" {
			name = it.ProductID
		}
		lines = append(lines, fmt.Sprintf("• %s — %s × %s = %s",
			name, withUnit(helper.FormatAmount(it.Quantity), it.ProductUnit),
			helper.FormatAmount(it.Price), helper.FormatAmount(it.Amount)))
	}
	lines = append(lines, "", "Итого: "+helper.FormatAmount(o.TotalAmount))
	return strings.Join(lines, "\n")
}

func orderKeyboard(orderID string, r role) *models.InlineKeyboardMarkup {
	kb := &models.InlineKeyboardMarkup{}
	for _, o := range domain.OrderStatusOptions {
		kb.InlineKeyboard = append(kb.InlineKeyboard, []models.InlineKeyboardButton{
			button(o.Label, "setstat:"+orderID+":"+o.Code),
		})
	}
	if r == roleAdmin {
		kb.InlineKeyboard = append(kb.InlineKeyboard, []models.InlineKeyboardButton{button("💳 Внести оплату", "pay:"+orderID)})
	}
	return kb
}

func (h *ShopHandler) location() *time.Location {
	if h.cfg.Location == nil {
		return time.Local
	}
	return h.cfg.Location
}

func withUnit(value, unit string) string {
	if unit = strings.TrimSpace(unit); unit != "" {
		return value + "/" + unit
	}
	return value
}
