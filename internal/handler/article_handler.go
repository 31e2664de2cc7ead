package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/tgwiki/internal/model"
	"github.com/hitoshi/tgwiki/internal/wiki"
)

// defaultSearchLimit は検索結果件数のデフォルト値。上限は50件。
const defaultSearchLimit = 10

// ArticleSource は記事取得の取得元のインターフェース。wiki.Adapterが実装する。
// 記事が見つからない場合は (nil, nil) を返す。
type ArticleSource interface {
	RandomArticle(ctx context.Context, opts wiki.FetchOptions) (*model.Article, error)
	ArticleByTitle(ctx context.Context, title string, opts wiki.FetchOptions) (*model.Article, error)
	ArticleByPageID(ctx context.Context, pageID int64, opts wiki.FetchOptions) (*model.Article, error)
}

// ArticleSearcher は記事検索のインターフェース。search.Serviceが実装する。
type ArticleSearcher interface {
	Search(ctx context.Context, query string, limit int, lang string) ([]model.ArticleMeta, error)
}

// ArticleHandler はユーザーに紐付かない記事取得・検索のHTTPハンドラー。
type ArticleHandler struct {
	source   ArticleSource
	searcher ArticleSearcher
	validate *validator.Validate
	logger   *slog.Logger
}

// NewArticleHandler はArticleHandlerを生成する。
func NewArticleHandler(source ArticleSource, searcher ArticleSearcher, logger *slog.Logger) *ArticleHandler {
	return &ArticleHandler{
		source:   source,
		searcher: searcher,
		validate: newValidator(),
		logger:   logger,
	}
}

// --- リクエスト・レスポンス型 ---

// fetchRequest は記事取得のクエリパラメータ。
type fetchRequest struct {
	Lang      string `query:"lang" validate:"wikilang"`
	MinLength *int   `query:"min_length" validate:"omitnil,gte=1"`
	Text      bool   `query:"text"`
	Image     bool   `query:"image"`
}

func (req fetchRequest) options() wiki.FetchOptions {
	opts := wiki.FetchOptions{
		Lang:  req.Lang,
		Text:  req.Text,
		Image: req.Image,
	}
	if req.MinLength != nil {
		opts.MinLength = *req.MinLength
	}
	return opts
}

// searchRequest は検索のクエリパラメータ。
type searchRequest struct {
	Query string `query:"q" validate:"required,max=300"`
	Limit int    `query:"limit" validate:"gte=1,lte=50"`
	Lang  string `query:"lang" validate:"wikilang"`
}

// articleResponse は記事のAPIレスポンス。
type articleResponse struct {
	PageID       int64  `json:"pageid"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Extract      string `json:"extract,omitempty"`
	Lang         string `json:"lang"`
}

// newArticleResponse は記事をレスポンスに変換する。textとimageがfalseの項目は含めない。
func newArticleResponse(a model.Article, text, image bool) articleResponse {
	resp := articleResponse{
		PageID: a.PageID(),
		Title:  a.Meta.Title,
		URL:    a.Meta.URL,
		Lang:   a.Lang,
	}
	if text {
		resp.Extract = a.Extract
	}
	if image {
		resp.ThumbnailURL = a.Meta.ThumbnailURL
	}
	return resp
}

// searchResponse は検索結果のAPIレスポンス。
type searchResponse struct {
	Items []model.ArticleMeta `json:"items"`
}

// parseFetchRequest はクエリパラメータから記事取得のリクエストを組み立てる。
func (h *ArticleHandler) parseFetchRequest(r *http.Request) (fetchRequest, error) {
	text, err := queryBool(r, "text", true)
	if err != nil {
		return fetchRequest{}, err
	}
	image, err := queryBool(r, "image", true)
	if err != nil {
		return fetchRequest{}, err
	}

	req := fetchRequest{
		Lang:  model.NormalizeLang(r.URL.Query().Get("lang")),
		Text:  text,
		Image: image,
	}
	if r.URL.Query().Has("min_length") {
		n, err := queryInt(r, "min_length", 0)
		if err != nil {
			return fetchRequest{}, err
		}
		req.MinLength = &n
	}

	if err := h.validate.Struct(req); err != nil {
		return fetchRequest{}, err
	}
	return req, nil
}

// RandomArticle はランダムな記事を1件返す。
// GET /api/v1/articles/random?lang=&min_length=&text=&image=
func (h *ArticleHandler) RandomArticle(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseFetchRequest(r)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if req.MinLength == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidArgumentError("min_length is required"))
		return
	}

	article, err := h.source.RandomArticle(r.Context(), req.options())
	h.writeArticle(w, r, req, article, err)
}

// ArticleByTitle はタイトルで記事を返す。
// GET /api/v1/articles/by-title?title=&lang=&text=&image=
func (h *ArticleHandler) ArticleByTitle(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseFetchRequest(r)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if title == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidArgumentError("title is required"))
		return
	}

	article, err := h.source.ArticleByTitle(r.Context(), title, req.options())
	h.writeArticle(w, r, req, article, err)
}

// ArticleByPageID はpageidで記事を返す。
// GET /api/v1/articles/{pageid}?lang=&text=&image=
func (h *ArticleHandler) ArticleByPageID(w http.ResponseWriter, r *http.Request) {
	pageID, err := pathInt64(r, "pageid")
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	req, err := h.parseFetchRequest(r)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	article, err := h.source.ArticleByPageID(r.Context(), pageID, req.options())
	h.writeArticle(w, r, req, article, err)
}

// writeArticle は取得結果をレスポンスに書き込む。記事がnilの場合は404を返す。
func (h *ArticleHandler) writeArticle(w http.ResponseWriter, r *http.Request, req fetchRequest, article *model.Article, err error) {
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if article == nil {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, newArticleResponse(*article, req.Text, req.Image))
}

// Search は記事を検索する。
// GET /api/v1/search?q=&limit=&lang=
func (h *ArticleHandler) Search(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchRequest(r, h.validate, r.URL.Query().Get("lang"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	items, err := h.searcher.Search(r.Context(), req.Query, req.Limit, req.Lang)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Items: nonNilMetas(items)})
}

// parseSearchRequest はクエリパラメータから検索リクエストを組み立てる。
func parseSearchRequest(r *http.Request, validate *validator.Validate, lang string) (searchRequest, error) {
	limit, err := queryInt(r, "limit", defaultSearchLimit)
	if err != nil {
		return searchRequest{}, err
	}
	req := searchRequest{
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
		Limit: limit,
		Lang:  model.NormalizeLang(lang),
	}
	if err := validate.Struct(req); err != nil {
		return searchRequest{}, err
	}
	return req, nil
}

func nonNilMetas(items []model.ArticleMeta) []model.ArticleMeta {
	if items == nil {
		return []model.ArticleMeta{}
	}
	return items
}
