package bizerr

import (
	"encoding/json"
	"fmt"
	"net/http"

	"eshop/internal/pkg/logger"
)

// WriteResult 把用例结果写成统一的 JSON 结构，未知错误只记日志不外泄
func WriteResult(w http.ResponseWriter, r *http.Request, data any, err error) {
	status := http.StatusOK
	res := Success(data)
	if err != nil {
		status = HTTPStatus(err)
		res = Failure(err)
		ev := logger.Ctx(r.Context()).Warn()
		if KindOf(err) == KindSystem {
			ev = logger.Ctx(r.Context()).Error()
		}
		ev.Err(err).Str("path", r.URL.Path).Str("code", res.Code).Msg("request failed")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(res)
}

// DecodeJSON 解析请求体，失败时返回 Validation 错误
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return Validation("INVALID_REQUEST_BODY", fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// Recover 把 handler 中的 panic 转换为 SYSTEM_ERROR
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				WriteResult(w, r, nil, fmt.Errorf("panic: %v", p))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
