package handler

import (
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/hitoshi/tgwiki/internal/model"
	"github.com/hitoshi/tgwiki/internal/wiki"
)

// maxRequestBodySize はJSONリクエストボディの上限サイズ。
const maxRequestBodySize = 64 << 10

// newValidator はリクエスト検証用のvalidatorを生成する。
// エラーメッセージのフィールド名にはquery/jsonタグの名前を使う。
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"query", "json"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	_ = v.RegisterValidation("wikilang", func(fl validator.FieldLevel) bool {
		return wiki.IsSupported(fl.Field().String())
	})
	return v
}

// describeValidationErrors は検証エラーを「field: tag」の列に変換する。
func describeValidationErrors(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}

// queryBool はクエリパラメータを真偽値として読む。未指定の場合はdefを返す。
func queryBool(r *http.Request, name string, def bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, model.NewInvalidArgumentError(fmt.Sprintf("%s must be a boolean", name))
	}
	return b, nil
}

// queryInt はクエリパラメータを整数として読む。未指定の場合はdefを返す。
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewInvalidArgumentError(fmt.Sprintf("%s must be an integer", name))
	}
	return n, nil
}

// pathInt64 はURLパラメータを正の整数として読む。
func pathInt64(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, model.NewInvalidArgumentError(fmt.Sprintf("%s must be a positive integer", name))
	}
	return n, nil
}

// pathInt はURLパラメータを整数として読む。範囲の検証は呼び出し元が行う。
func pathInt(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0, model.NewInvalidArgumentError(fmt.Sprintf("%s must be an integer", name))
	}
	return n, nil
}

// decodeJSONBody はリクエストボディをdstにデコードする。未知のフィールドは拒否する。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return model.NewInvalidArgumentError("request body must be a valid JSON object")
	}
	if dec.More() {
		return model.NewInvalidArgumentError("request body must contain a single JSON object")
	}
	return nil
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
