package handler

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Dmitryntvh/AVITO/config"
	"github.com/Dmitryntvh/AVITO/internal/domain"
	"github.com/Dmitryntvh/AVITO/internal/repository"
	"github.com/Dmitryntvh/AVITO/internal/service"
	"github.com/Dmitryntvh/AVITO/traits/helper"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	leadCookie    = "lead_id"
	leadCookieTTL = 30 * 24 * time.Hour
	sessionCookie = "admin_session"
)

// WebHandler обслуживает воронку лидов и админку каталога.
type WebHandler struct {
	cfg      *config.Config
	logger   *zap.Logger
	leads    *repository.LeadRepository
	catalog  *repository.CatalogRepository
	sessions *service.SessionManager
	tmpl     *template.Template
}

func NewWebHandler(cfg *config.Config, zapLogger *zap.Logger, leads *repository.LeadRepository,
	catalog *repository.CatalogRepository, sessions *service.SessionManager) (*WebHandler, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"price": helper.FormatPrice,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &WebHandler{
		cfg:      cfg,
		logger:   zapLogger,
		leads:    leads,
		catalog:  catalog,
		sessions: sessions,
		tmpl:     tmpl,
	}, nil
}

// Routes собирает все маршруты панели с логированием и восстановлением после паники.
func (h *WebHandler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(h.cfg.StaticDir))))
	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("GET /go/{model_code}", h.PhoneGate)
	mux.HandleFunc("POST /go/submit", h.SubmitPhone)
	mux.HandleFunc("GET /models/{model_code}", h.ModelPage)
	mux.HandleFunc("GET /drawings/{model_code}", h.DrawingsPage)

	mux.HandleFunc("GET /admin/login", h.AdminLogin)
	mux.HandleFunc("GET /admin/auth/telegram", h.AdminAuthTelegram)
	mux.HandleFunc("GET /admin/logout", h.AdminLogout)
	mux.HandleFunc("GET /admin/models", h.requireAdmin(h.AdminModels))
	mux.HandleFunc("GET /admin/models/new", h.requireAdmin(h.AdminModelNew))
	mux.HandleFunc("GET /admin/models/{code}", h.requireAdmin(h.AdminModelEdit))
	mux.HandleFunc("POST /admin/models/save", h.requireAdmin(h.AdminModelSave))
	mux.HandleFunc("POST /admin/models/delete", h.requireAdmin(h.AdminModelDelete))

	return h.recoverer(h.accessLog(mux))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (h *WebHandler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func (h *WebHandler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				h.logger.Error("Panic in HTTP handler", zap.Any("panic", v), zap.String("path", r.URL.Path))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *WebHandler) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("Failed to render template", zap.Error(err), zap.String("template", name))
		h.htmlError(w, http.StatusInternalServerError, "Внутренняя ошибка")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (h *WebHandler) htmlError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte("<h1>" + template.HTMLEscapeString(msg) + "</h1>"))
}

func gateURL(modelCode, src string) string {
	return "/go/" + url.PathEscape(modelCode) + "?src=" + url.QueryEscape(src)
}

// Health — проверка живости для балансировщика.
func (h *WebHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "chan-crm",
	})
}

// Root ведёт на воронку первой модели или в админку, если каталог пуст.
func (h *WebHandler) Root(w http.ResponseWriter, r *http.Request) {
	models, err := h.catalog.ListModels(r.Context())
	if err != nil {
		h.logger.Error("Failed to list models", zap.Error(err))
		h.htmlError(w, http.StatusInternalServerError, "Внутренняя ошибка")
		return
	}
	if len(models) == 0 {
		http.Redirect(w, r, "/admin/models", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, gateURL(models[0].Code, "root"), http.StatusSeeOther)
}

func (h *WebHandler) PhoneGate(w http.ResponseWriter, r *http.Request) {
	src := r.URL.Query().Get("src")
	if src == "" {
		src = "unknown"
	}
	h.render(w, "phone_gate", map[string]any{
		"ModelCode": r.PathValue("model_code"),
		"Src":       src,
	})
}

// SubmitPhone сохраняет лид и открывает страницу модели.
func (h *WebHandler) SubmitPhone(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.htmlError(w, http.StatusBadRequest, "Некорректная форма")
		return
	}
	modelCode := strings.TrimSpace(r.PostForm.Get("model_code"))
	src := r.PostForm.Get("src")
	if src == "" {
		src = "unknown"
	}

	phone := service.NormalizePhone(r.PostForm.Get("phone"))
	if !r.PostForm.Has("agree") || phone == "" {
		http.Redirect(w, r, gateURL(modelCode, src), http.StatusSeeOther)
		return
	}

	leadID, err := h.leads.InsertLead(r.Context(), domain.NewLead{
		Phone:     phone,
		Source:    src,
		ModelCode: modelCode,
	})
	if err != nil {
		h.logger.Error("Failed to insert lead", zap.Error(err), zap.String("model_code", modelCode))
		h.htmlError(w, http.StatusInternalServerError, "Внутренняя ошибка")
		return
	}
	h.logger.Info("Lead captured", zap.String("lead_id", leadID), zap.String("source", src))

	http.SetCookie(w, &http.Cookie{
		Name:     leadCookie,
		Value:    leadID,
		Path:     "/",
		MaxAge:   int(leadCookieTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/models/"+url.PathEscape(modelCode), http.StatusSeeOther)
}

// loadModel отдаёт модель или пишет 404/500 и возвращает nil.
func (h *WebHandler) loadModel(w http.ResponseWriter, r *http.Request, code string) *domain.CatalogModel {
	m, err := h.catalog.GetModel(r.Context(), code)
	if errors.Is(err, domain.ErrNotFound) {
		h.htmlError(w, http.StatusNotFound, "Модель не найдена")
		return nil
	}
	if err != nil {
		h.logger.Error("Failed to load model", zap.Error(err), zap.String("model_code", code))
		h.htmlError(w, http.StatusInternalServerError, "Внутренняя ошибка")
		return nil
	}
	return m
}

func (h *WebHandler) ModelPage(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("model_code")
	m := h.loadModel(w, r, code)
	if m == nil {
		return
	}
	h.render(w, "model", map[string]any{"Model": m, "ModelCode": code})
}

// DrawingsPage пускает только после ввода телефона.
func (h *WebHandler) DrawingsPage(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("model_code")
	if c, err := r.Cookie(leadCookie); err != nil || c.Value == "" {
		http.Redirect(w, r, gateURL(code, "drawings"), http.StatusSeeOther)
		return
	}
	m := h.loadModel(w, r, code)
	if m == nil {
		return
	}
	if m.DrawingsURL == "" {
		h.htmlError(w, http.StatusNotFound, "Ссылка на чертежи не задана")
		return
	}
	h.render(w, "drawings", map[string]any{"Model": m, "ModelCode": code})
}

func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

func (h *WebHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	if h.cfg.LoginBotUsername == "" {
		h.htmlError(w, http.StatusInternalServerError, "TELEGRAM_BOT_USERNAME not set")
		return
	}
	h.render(w, "admin_login", map[string]any{
		"BotUsername": h.cfg.LoginBotUsername,
		"AuthURL":     requestBaseURL(r) + "/admin/auth/telegram",
	})
}

// AdminAuthTelegram проверяет подпись виджета и выдаёт сессию админу.
func (h *WebHandler) AdminAuthTelegram(w http.ResponseWriter, r *http.Request) {
	if h.cfg.LoginBotToken == "" {
		h.htmlError(w, http.StatusInternalServerError, "TELEGRAM_BOT_TOKEN not set")
		return
	}
	values := r.URL.Query()
	if !service.CheckTelegramAuth(values, h.cfg.LoginBotToken) {
		h.logger.Warn("Telegram auth failed", zap.String("remote", r.RemoteAddr))
		h.htmlError(w, http.StatusForbidden, "Telegram auth failed")
		return
	}
	user, ok := service.TelegramUserFrom(values)
	if !ok || !h.cfg.AdminIDs.Has(user.ID) {
		h.logger.Warn("Admin access denied", zap.Int64("user_id", user.ID))
		h.htmlError(w, http.StatusForbidden, "Access denied")
		return
	}

	token, err := h.sessions.Issue(user.ID, user.Username)
	if err != nil {
		h.logger.Error("Failed to issue session", zap.Error(err), zap.Int64("user_id", user.ID))
		h.htmlError(w, http.StatusInternalServerError, "Внутренняя ошибка")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	h.logger.Info("Admin logged in", zap.Int64("user_id", user.ID))
	http.Redirect(w, r, "/admin/models", http.StatusSeeOther)
}

func (h *WebHandler) AdminLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}

type adminHandlerFunc func(w http.ResponseWriter, r *http.Request, claims *service.SessionClaims)

// requireAdmin отвечает 401 без действующей сессии администратора.
func (h *WebHandler) requireAdmin(next adminHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		if err != nil {
			h.htmlError(w, http.StatusUnauthorized, "Not authorized")
			return
		}
		claims, err := h.sessions.Parse(c.Value)
		if err != nil || !h.cfg.AdminIDs.Has(claims.TgID) {
			h.htmlError(w, http.StatusUnauthorized, "Not authorized")
			return
		}
		next(w, r, claims)
	}
}

func (h *WebHandler) AdminModels(w http.ResponseWriter, r *http.Request, claims *service.SessionClaims) {
	models, err := h.catalog.ListModels(r.Context())
	if err != nil {
		h.logger.Error("Failed to list models", zap.Error(err))
		h.htmlError(w, http.StatusInternalServerError, "Внутренняя ошибка")
		return
	}
	h.render(w, "admin_models", map[string]any{"Models": models, "Username": claims.Username})
}

func (h *WebHandler) AdminModelNew(w http.ResponseWriter, r *http.Request, _ *service.SessionClaims) {
	h.render(w, "admin_model_form", map[string]any{"M": service.ModelForm{PriceDrawings: "0"}, "IsNew": true})
}

func (h *WebHandler) AdminModelEdit(w http.ResponseWriter, r *http.Request, _ *service.SessionClaims) {
	m := h.loadModel(w, r, r.PathValue("code"))
	if m == nil {
		return
	}
	form := service.ModelForm{
		Code:          m.Code,
		Name:          m.Name,
		Short:         m.Short,
		PriceDrawings: helper.FormatPrice(m.PriceDrawings),
		DrawingsURL:   m.DrawingsURL,
		KitsText:      service.KitsToText(m.Kits),
		ImagesText:    service.ImagesToText(m.ImageURLs()),
	}
	h.render(w, "admin_model_form", map[string]any{"M": form, "IsNew": false})
}

// AdminModelSave сохраняет модель вместе с комплектами и фото.
func (h *WebHandler) AdminModelSave(w http.ResponseWriter, r *http.Request, claims *service.SessionClaims) {
	if err := r.ParseForm(); err != nil {
		h.htmlError(w, http.StatusBadRequest, "Некорректная форма")
		return
	}
	form := service.ModelForm{
		Code:          r.PostForm.Get("code"),
		Name:          r.PostForm.Get("name"),
		Short:         r.PostForm.Get("short"),
		PriceDrawings: r.PostForm.Get("price_drawings"),
		DrawingsURL:   r.PostForm.Get("drawings_url"),
		KitsText:      r.PostForm.Get("kits_text"),
		ImagesText:    r.PostForm.Get("images_text"),
	}
	m := form.Model()
	if err := service.ValidateModel(m); err != nil {
		h.logger.Warn("Invalid model form", zap.Error(err), zap.String("model_code", m.Code))
		h.htmlError(w, http.StatusBadRequest, "Нужно заполнить code и name")
		return
	}

	ctx := r.Context()
	log := h.logger.With(zap.String("model_code", m.Code), zap.Int64("user_id", claims.TgID))
	if err := h.catalog.UpsertModel(ctx, m); err != nil {
		log.Error("Failed to upsert model", zap.Error(err))
		h.htmlError(w, http.StatusInternalServerError, "Внутренняя ошибка")
		return
	}
	if err := h.catalog.ReplaceKits(ctx, m.Code, m.Kits); err != nil {
		log.Error("Failed to replace kits", zap.Error(err))
		h.htmlError(w, http.StatusInternalServerError, "Внутренняя ошибка")
		return
	}
	if err := h.catalog.ReplaceImages(ctx, m.Code, m.ImageURLs()); err != nil {
		log.Error("Failed to replace images", zap.Error(err))
		h.htmlError(w, http.StatusInternalServerError, "Внутренняя ошибка")
		return
	}
	log.Info("Model saved", zap.Int("kits", len(m.Kits)), zap.Int("images", len(m.Images)))
	http.Redirect(w, r, "/admin/models/"+url.PathEscape(m.Code), http.StatusSeeOther)
}

func (h *WebHandler) AdminModelDelete(w http.ResponseWriter, r *http.Request, claims *service.SessionClaims) {
	if err := r.ParseForm(); err != nil {
		h.htmlError(w, http.StatusBadRequest, "Некорректная форма")
		return
	}
	code := strings.TrimSpace(r.PostForm.Get("code"))
	if err := h.catalog.DeleteModel(r.Context(), code); err != nil && !errors.Is(err, domain.ErrNotFound) {
		h.logger.Error("Failed to delete model", zap.Error(err), zap.String("model_code", code))
		h.htmlError(w, http.StatusInternalServerError, "Внутренняя ошибка")
		return
	}
	h.logger.Info("Model deleted", zap.String("model_code", code), zap.Int64("user_id", claims.TgID))
	http.Redirect(w, r, "/admin/models", http.StatusSeeOther)
}
