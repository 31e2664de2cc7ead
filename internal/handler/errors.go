package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/tgwiki/internal/fetch"
	"github.com/hitoshi/tgwiki/internal/middleware"
	"github.com/hitoshi/tgwiki/internal/model"
	"github.com/hitoshi/tgwiki/internal/reco"
	"github.com/hitoshi/tgwiki/internal/render"
	"github.com/hitoshi/tgwiki/internal/repository"
	"github.com/hitoshi/tgwiki/internal/wiki"
)

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// writeNotFound は記事未検出の404レスポンスを書き込む。
func writeNotFound(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusNotFound, model.NewArticleNotFoundError())
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// 500はエラー詳細をログに記録し、クライアントには一般的なメッセージのみを返す。
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	statusCode, apiErr := classifyError(r.Context(), err)

	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.Int("status", statusCode),
		slog.String("error", err.Error()),
	}
	switch {
	case statusCode == http.StatusInternalServerError:
		logger.Error("request failed", attrs...)
	case statusCode >= http.StatusInternalServerError || statusCode == http.StatusTooManyRequests:
		logger.Warn("upstream unavailable", attrs...)
	default:
		logger.Debug("request rejected", attrs...)
	}

	writeAPIErrorResponse(w, statusCode, apiErr)
}

// classifyError はエラーをHTTPステータスコードとAPIErrorに分類する。
// リクエストの期限切れは他の分類より優先する。
func classifyError(ctx context.Context, err error) (int, *model.APIError) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return mapAPIErrorToHTTPStatus(apiErr), apiErr
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, model.NewDeadlineExceededError()
	}

	var rangeErr *render.PageRangeError
	if errors.As(err, &rangeErr) {
		return http.StatusBadRequest, model.NewPageOutOfRangeError(rangeErr.Page, rangeErr.Total)
	}

	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		return http.StatusBadRequest, model.NewInvalidArgumentError(describeValidationErrors(validationErrs))
	case errors.Is(err, wiki.ErrUnsupportedLanguage), errors.Is(err, wiki.ErrInvalidArgument):
		return http.StatusBadRequest, model.NewInvalidArgumentError(err.Error())
	case errors.Is(err, repository.ErrUserNotFound):
		return http.StatusNotFound, model.NewUserNotFoundError()
	case errors.Is(err, render.ErrEmpty):
		return http.StatusNotFound, model.NewArticleNotFoundError()
	case errors.Is(err, reco.ErrNoFreshArticle):
		return http.StatusServiceUnavailable, model.NewUnavailableError()
	case errors.Is(err, fetch.ErrNotStarted):
		return http.StatusInternalServerError, model.NewInternalError()
	}

	if fe, ok := fetch.AsFetchError(err); ok {
		switch {
		case fe.StatusCode == http.StatusTooManyRequests:
			return http.StatusTooManyRequests, model.NewResourceExhaustedError()
		case fe.Transient:
			return http.StatusServiceUnavailable, model.NewUnavailableError()
		case fe.Kind == fetch.KindPermanentStatus && fe.StatusCode == http.StatusNotFound:
			return http.StatusNotFound, model.NewArticleNotFoundError()
		default:
			return http.StatusInternalServerError, model.NewInternalError()
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, model.NewDeadlineExceededError()
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, model.NewUnavailableError()
	}

	return http.StatusInternalServerError, model.NewInternalError()
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidArgument, model.ErrCodePageOutOfRange:
		return http.StatusBadRequest
	case model.ErrCodeArticleNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeResourceExhausted:
		return http.StatusTooManyRequests
	case model.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	case model.ErrCodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
