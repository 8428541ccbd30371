package testutils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"

	"agrimarket/internal/identity"
)

// WithChiURLParams подставляет параметры пути в контекст chi запроса для тестов.
func WithChiURLParams(req *http.Request, params map[string]string) *http.Request {
	chiCtx := chi.NewRouteContext()
	for k, v := range params {
		chiCtx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, chiCtx))
}

// JSONRequest - запрос с JSON-телом и нужным заголовком.
func JSONRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AsUser кладёт в запрос сессию, как это делает middleware после проверки токена.
func AsUser(req *http.Request, userName string) *http.Request {
	sess := &identity.Session{AccountID: "acc-" + userName, UserName: userName}
	return req.WithContext(identity.WithSession(req.Context(), sess))
}
