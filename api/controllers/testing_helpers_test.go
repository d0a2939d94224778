package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/foodmarketplace/api/middleware"
	"github.com/angelmondragon/foodmarketplace/internal/cart"
	"github.com/angelmondragon/foodmarketplace/internal/storefront"
	"github.com/angelmondragon/foodmarketplace/pkg/eventbus"
	"github.com/angelmondragon/foodmarketplace/pkg/logger"
)

const testSession = "session-0001"

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func newTestOpener(t *testing.T, store cart.Store) *storefront.Opener {
	t.Helper()
	opener, err := storefront.NewOpener(storefront.OpenerParams{
		Store:      store,
		Bus:        eventbus.New(testLogger()),
		StorageKey: "foodmarketplace_cart",
		LegacyKeys: []string{"cartItems"},
		Logger:     testLogger(),
	})
	if err != nil {
		t.Fatalf("new opener: %v", err)
	}
	return opener
}

func newRequest(method, target, body string, params map[string]string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := middleware.WithSession(req.Context(), testSession)
	if len(params) > 0 {
		routeCtx := chi.NewRouteContext()
		for k, v := range params {
			routeCtx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	}
	return req.WithContext(ctx)
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, rec.Body.String())
	}
	return envelope.Error.Code
}
