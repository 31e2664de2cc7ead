package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/tgwiki/internal/model"
	"github.com/hitoshi/tgwiki/internal/render"
	"github.com/hitoshi/tgwiki/internal/wiki"
)

// UserService はユーザー解決と設定のサービスインターフェース。settings.Serviceが実装する。
type UserService interface {
	ResolveUser(ctx context.Context, identity model.ExternalIdentity, updateProfile bool) (int64, error)
	GetSettings(ctx context.Context, userID int64) (model.UserSettings, error)
	SetPageLen(ctx context.Context, userID int64, pageLen int) (model.UserSettings, error)
	SetRendering(ctx context.Context, userID int64, sendText, sendImage *bool) (model.UserSettings, error)
	SetAppLang(ctx context.Context, userID int64, lang string) (model.UserSettings, error)
	SetWikiLang(ctx context.Context, userID int64, lang string) (model.UserSettings, error)
	TouchLastSeen(ctx context.Context, userID int64) error
}

// Recommender は未閲覧記事の推薦インターフェース。reco.Serviceが実装する。
type Recommender interface {
	GetNextArticle(ctx context.Context, userID int64, opts wiki.FetchOptions) (*model.Article, error)
}

// UserArticleService はユーザーの閲覧履歴に記録する記事取得と検索のインターフェース。
// search.Serviceが実装する。
type UserArticleService interface {
	Search(ctx context.Context, query string, limit int, lang string) ([]model.ArticleMeta, error)
	GetArticleByPageID(ctx context.Context, pageID, userID int64, opts wiki.FetchOptions) (*model.Article, error)
}

// PageRenderer は記事のページ変換のインターフェース。render.Rendererが実装する。
type PageRenderer interface {
	Render(article model.Article, page int, opts render.Options) (render.Page, error)
}

// UserHandler はユーザー単位の推薦・記事閲覧・設定のHTTPハンドラー。
// 記事はキャッシュに完全な形で保存するため常に本文と画像付きで取得し、
// ユーザー設定のsend_text/send_imageはレスポンス生成時に適用する。
type UserHandler struct {
	users    UserService
	reco     Recommender
	articles UserArticleService
	renderer PageRenderer
	validate *validator.Validate
	logger   *slog.Logger
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(
	users UserService,
	reco Recommender,
	articles UserArticleService,
	renderer PageRenderer,
	logger *slog.Logger,
) *UserHandler {
	return &UserHandler{
		users:    users,
		reco:     reco,
		articles: articles,
		renderer: renderer,
		validate: newValidator(),
		logger:   logger,
	}
}

// --- リクエスト・レスポンス型 ---

// resolveUserRequest はユーザー解決リクエストのボディ。
type resolveUserRequest struct {
	Provider      string `json:"provider" validate:"max=32"`
	ExternalID    string `json:"external_id" validate:"required,max=128"`
	Username      string `json:"username" validate:"max=64"`
	FirstName     string `json:"first_name" validate:"max=128"`
	LastName      string `json:"last_name" validate:"max=128"`
	LanguageCode  string `json:"language_code" validate:"max=16"`
	UpdateProfile bool   `json:"update_profile"`
}

// resolveUserResponse はユーザー解決のレスポンス。
type resolveUserResponse struct {
	UserID int64 `json:"user_id"`
}

// settingsPatchRequest は設定の部分更新リクエストのボディ。nilの項目は変更しない。
type settingsPatchRequest struct {
	PageLen   *int    `json:"page_len"`
	SendText  *bool   `json:"send_text"`
	SendImage *bool   `json:"send_image"`
	AppLang   *string `json:"app_lang" validate:"omitnil,max=16"`
	WikiLang  *string `json:"wiki_lang" validate:"omitnil,wikilang"`
}

func (req settingsPatchRequest) empty() bool {
	return req.PageLen == nil && req.SendText == nil && req.SendImage == nil &&
		req.AppLang == nil && req.WikiLang == nil
}

// userArticleResponse は記事と1ページ目の表示内容のレスポンス。
type userArticleResponse struct {
	Article articleResponse `json:"article"`
	Page    render.Page     `json:"page"`
}

// ResolveUser は外部identityを内部ユーザーIDに解決する。未登録の場合は作成する。
// POST /api/v1/users/resolve
func (h *UserHandler) ResolveUser(w http.ResponseWriter, r *http.Request) {
	var req resolveUserRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	req.Provider = strings.TrimSpace(req.Provider)
	if req.Provider == "" {
		req.Provider = model.ProviderTelegram
	}
	req.ExternalID = strings.TrimSpace(req.ExternalID)
	if err := h.validate.Struct(req); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	identity := model.ExternalIdentity{
		Provider:     req.Provider,
		ExternalID:   req.ExternalID,
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		LanguageCode: req.LanguageCode,
	}
	userID, err := h.users.ResolveUser(r.Context(), identity, req.UpdateProfile)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resolveUserResponse{UserID: userID})
}

// NextArticle はユーザーが最近閲覧していないランダム記事を返す。
// GET /api/v1/users/{userID}/next
func (h *UserHandler) NextArticle(w http.ResponseWriter, r *http.Request) {
	userID, settings, ok := h.userSettings(w, r)
	if !ok {
		return
	}

	if err := h.users.TouchLastSeen(r.Context(), userID); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	article, err := h.reco.GetNextArticle(r.Context(), userID, fullFetchOptions(settings))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if article == nil {
		writeNotFound(w)
		return
	}
	h.writeUserArticle(w, r, *article, settings)
}

// Search はユーザーのWiki言語で記事を検索する。
// GET /api/v1/users/{userID}/search?q=&limit=
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	_, settings, ok := h.userSettings(w, r)
	if !ok {
		return
	}

	req, err := parseSearchRequest(r, h.validate, settings.WikiLang)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	items, err := h.articles.Search(r.Context(), req.Query, req.Limit, req.Lang)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Items: nonNilMetas(items)})
}

// GetArticle はpageidで記事を返し、ユーザーの閲覧履歴に記録する。
// GET /api/v1/users/{userID}/articles/{pageid}
func (h *UserHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	userID, settings, ok := h.userSettings(w, r)
	if !ok {
		return
	}
	article, ok := h.fetchArticle(w, r, userID, settings)
	if !ok {
		return
	}
	h.writeUserArticle(w, r, *article, settings)
}

// GetArticlePage は記事の指定ページをユーザーのページ長で返す。
// GET /api/v1/users/{userID}/articles/{pageid}/pages/{page}
func (h *UserHandler) GetArticlePage(w http.ResponseWriter, r *http.Request) {
	page, err := pathInt(r, "page")
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	userID, settings, ok := h.userSettings(w, r)
	if !ok {
		return
	}
	article, ok := h.fetchArticle(w, r, userID, settings)
	if !ok {
		return
	}

	rendered, err := h.renderer.Render(*article, page, render.OptionsFromSettings(settings))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rendered)
}

// GetSettings はユーザー設定を返す。
// GET /api/v1/users/{userID}/settings
func (h *UserHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	_, settings, ok := h.userSettings(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings は指定された項目のみユーザー設定を更新する。
// 各項目は1項目ずつの更新として順に適用し、最後の結果を返す。
// PATCH /api/v1/users/{userID}/settings
func (h *UserHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	var req settingsPatchRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if req.empty() {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidArgumentError("at least one setting is required"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	ctx := r.Context()
	var updated model.UserSettings
	steps := []func() (model.UserSettings, error){}
	if req.PageLen != nil {
		steps = append(steps, func() (model.UserSettings, error) {
			return h.users.SetPageLen(ctx, userID, *req.PageLen)
		})
	}
	if req.SendText != nil || req.SendImage != nil {
		steps = append(steps, func() (model.UserSettings, error) {
			return h.users.SetRendering(ctx, userID, req.SendText, req.SendImage)
		})
	}
	if req.AppLang != nil {
		steps = append(steps, func() (model.UserSettings, error) {
			return h.users.SetAppLang(ctx, userID, *req.AppLang)
		})
	}
	if req.WikiLang != nil {
		steps = append(steps, func() (model.UserSettings, error) {
			return h.users.SetWikiLang(ctx, userID, *req.WikiLang)
		})
	}
	for _, step := range steps {
		if updated, err = step(); err != nil {
			handleServiceError(w, r, h.logger, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, updated)
}

// userSettings はURLのuserIDを検証し、ユーザー設定を読み込む。
// 失敗した場合はエラーレスポンスを書き込んでokにfalseを返す。
func (h *UserHandler) userSettings(w http.ResponseWriter, r *http.Request) (int64, model.UserSettings, bool) {
	userID, err := pathInt64(r, "userID")
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return 0, model.UserSettings{}, false
	}
	settings, err := h.users.GetSettings(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return 0, model.UserSettings{}, false
	}
	return userID, settings, true
}

// fetchArticle はURLのpageidの記事をユーザーのWiki言語で取得する。
// 見つからない場合は404を書き込んでokにfalseを返す。
func (h *UserHandler) fetchArticle(w http.ResponseWriter, r *http.Request, userID int64, settings model.UserSettings) (*model.Article, bool) {
	pageID, err := pathInt64(r, "pageid")
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return nil, false
	}
	article, err := h.articles.GetArticleByPageID(r.Context(), pageID, userID, fullFetchOptions(settings))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return nil, false
	}
	if article == nil {
		writeNotFound(w)
		return nil, false
	}
	return article, true
}

// writeUserArticle は記事とユーザー設定で描画した1ページ目を書き込む。
func (h *UserHandler) writeUserArticle(w http.ResponseWriter, r *http.Request, article model.Article, settings model.UserSettings) {
	first, err := h.renderer.Render(article, 1, render.OptionsFromSettings(settings))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, userArticleResponse{
		Article: newArticleResponse(article, settings.SendText, settings.SendImage),
		Page:    first,
	})
}

// fullFetchOptions はユーザーのWiki言語で本文・画像付きの取得オプションを返す。
func fullFetchOptions(settings model.UserSettings) wiki.FetchOptions {
	return wiki.FetchOptions{
		Lang:  settings.WikiLang,
		Text:  true,
		Image: true,
	}
}
