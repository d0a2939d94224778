package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodmarketplace/internal/catalog"
	"github.com/angelmondragon/foodmarketplace/internal/checkout"
	"github.com/angelmondragon/foodmarketplace/internal/storefront"
	"github.com/angelmondragon/foodmarketplace/pkg/auth"
	"github.com/angelmondragon/foodmarketplace/pkg/config"
	"github.com/angelmondragon/foodmarketplace/pkg/db/models"
	"github.com/angelmondragon/foodmarketplace/pkg/eventbus"
	"github.com/angelmondragon/foodmarketplace/pkg/kvstore"
	"github.com/angelmondragon/foodmarketplace/pkg/logger"
	"github.com/angelmondragon/foodmarketplace/pkg/metrics"
)

const sessionHeader = "X-Cart-Session"

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev", CORSOrigins: []string{"http://localhost:3000"}},
		Cart: config.CartConfig{
			StorageKey: "foodmarketplace_cart",
			LegacyKeys: []string{"cartItems"},
			CookieName: "fm_cart_session",
		},
		Admin: config.AdminConfig{
			JWTSecret: strings.Repeat("k", 32),
			JWTIssuer: "foodmarketplace",
			TokenTTL:  time.Hour,
		},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := testConfig()
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Product{}, &models.Order{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn))
	if err != nil {
		t.Fatalf("catalog service: %v", err)
	}
	for _, p := range []catalog.UpsertInput{
		{ID: "kings-box", Title: "King's box", Category: "boxes", Price: decimal.RequireFromString("2.50"), IsActive: true},
		{ID: "paella", Title: "Paella", Category: "mains", Price: decimal.RequireFromString("4.00"), IsActive: true},
	} {
		if _, err := catalogSvc.Create(context.Background(), p); err != nil {
			t.Fatalf("seed %s: %v", p.ID, err)
		}
	}

	store := kvstore.NewMemory(0)
	registry := prometheus.NewRegistry()
	opener, err := storefront.NewOpener(storefront.OpenerParams{
		Store:      store,
		Bus:        eventbus.New(logg),
		StorageKey: cfg.Cart.StorageKey,
		LegacyKeys: cfg.Cart.LegacyKeys,
		Logger:     logg,
		Metrics:    metrics.NewCartMetrics(registry),
	})
	if err != nil {
		t.Fatalf("opener: %v", err)
	}

	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Orders:   checkout.NewRepository(conn),
		Handoffs: store,
		Logger:   logg,
		TaxRate:  decimal.RequireFromString("0.04"),
		Merchant: "Food Marketplace",
	})
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}

	return NewRouter(cfg, logg, stubPinger{}, nil, registry, opener, catalogSvc, checkoutSvc)
}

func do(t *testing.T, router http.Handler, method, path, session, body string) *httptest.ResponseRecorder {
	t.Helper()
	return doAuth(t, router, method, path, session, "", body)
}

func doAuth(t *testing.T, router http.Handler, method, path, session, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req.Header.Set(sessionHeader, session)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func data(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(t)
	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := do(t, router, http.MethodGet, path, "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestCartSessionIsMintedAndEchoed(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/cart", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	minted := rec.Header().Get(sessionHeader)
	if minted == "" {
		t.Fatalf("expected a minted session header")
	}
	var view storefront.CartView
	data(t, rec, &view)
	if view.Session != minted {
		t.Fatalf("view session %q does not match header %q", view.Session, minted)
	}
}

func TestCartFlowAcrossRequests(t *testing.T) {
	router := newTestRouter(t)
	const session = "router-session-a"

	rec := do(t, router, http.MethodPost, "/api/cart/lines", session, `{"productId":"kings-box","quantity":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("add: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	do(t, router, http.MethodPost, "/api/cart/lines", session, `{"productId":"paella"}`)

	rec = do(t, router, http.MethodGet, "/api/cart", session, "")
	var view storefront.CartView
	data(t, rec, &view)
	if view.Badge.Count != 3 {
		t.Fatalf("expected 3 items after reload, got %d", view.Badge.Count)
	}
	if view.Drawer.Total != "€9.00" {
		t.Fatalf("unexpected total %q", view.Drawer.Total)
	}
	if view.Drawer.Open {
		t.Fatalf("a fresh page load starts with the drawer closed")
	}

	rec = do(t, router, http.MethodPut, "/api/cart/lines/kings-box", session, `{"quantity":0}`)
	data(t, rec, &view)
	if view.Badge.Count != 1 {
		t.Fatalf("expected 1 item after zeroing a line, got %d", view.Badge.Count)
	}

	rec = do(t, router, http.MethodGet, "/api/cart", "router-session-b", "")
	data(t, rec, &view)
	if view.Badge.Count != 0 {
		t.Fatalf("sessions must not share carts, got %d", view.Badge.Count)
	}

	rec = do(t, router, http.MethodDelete, "/api/cart", session, "")
	data(t, rec, &view)
	if !view.Drawer.Empty {
		t.Fatalf("expected empty cart after clear")
	}
}

func TestCatalogRoutes(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/products?category=mains", "", "")
	var page catalog.ListResult
	data(t, rec, &page)
	if len(page.Products) != 1 || page.Products[0].ID != "paella" {
		t.Fatalf("unexpected products %+v", page.Products)
	}

	rec = do(t, router, http.MethodGet, "/api/products/unknown", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = do(t, router, http.MethodGet, "/api/categories", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCheckoutFlow(t *testing.T) {
	router := newTestRouter(t)
	const session = "router-session-pay"

	rec := do(t, router, http.MethodPost, "/api/checkout", session, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("begin on empty cart: expected 422, got %d", rec.Code)
	}

	do(t, router, http.MethodPost, "/api/cart/lines", session, `{"productId":"kings-box","quantity":4}`)

	rec = do(t, router, http.MethodPost, "/api/checkout", session, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("begin: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var quote checkout.Quote
	data(t, rec, &quote)
	if quote.DisplayTotal != "€10.40" {
		t.Fatalf("expected €10.40 with 4%% tax, got %q", quote.DisplayTotal)
	}

	form := `{"fullName":"Ana Garcia","email":"ana@example.com","phone":"+34600123456","cardNumber":"4242424242424242","expiryMonth":"12","expiryYear":"30","cvv":"123"}`
	rec = do(t, router, http.MethodPost, "/api/checkout/pay", session, form)
	if rec.Code != http.StatusCreated {
		t.Fatalf("pay: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var paid struct {
		Order checkout.OrderDTO   `json:"order"`
		Cart  storefront.CartView `json:"cart"`
	}
	data(t, rec, &paid)
	if !strings.HasPrefix(paid.Order.ID, "GTS-") {
		t.Fatalf("unexpected order id %q", paid.Order.ID)
	}
	if paid.Cart.Badge.Count != 0 {
		t.Fatalf("expected cart cleared after payment")
	}

	rec = do(t, router, http.MethodGet, "/api/orders/"+paid.Order.ID+"/receipt", session, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("receipt: expected 200, got %d", rec.Code)
	}

	rec = do(t, router, http.MethodGet, "/api/orders/"+paid.Order.ID+"/receipt/qr.png", session, "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("qr: expected png, got %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = do(t, router, http.MethodPost, "/api/checkout/pay", session, form)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("second pay without a handoff: expected 422, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	do(t, router, http.MethodPost, "/api/cart/lines", "router-session-m", `{"productId":"paella"}`)

	rec := do(t, router, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "cart_mutations_total") {
		t.Fatalf("expected cart metrics in exposition")
	}
}

func payForCart(t *testing.T, router http.Handler, session string) checkout.OrderDTO {
	t.Helper()
	do(t, router, http.MethodPost, "/api/cart/lines", session, `{"productId":"paella"}`)
	if rec := do(t, router, http.MethodPost, "/api/checkout", session, ""); rec.Code != http.StatusOK {
		t.Fatalf("begin: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	form := `{"fullName":"Ana Garcia","email":"ana@example.com","phone":"+34600123456","cardNumber":"4242424242424242","expiryMonth":"12","expiryYear":"30","cvv":"123"}`
	rec := do(t, router, http.MethodPost, "/api/checkout/pay", session, form)
	if rec.Code != http.StatusCreated {
		t.Fatalf("pay: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var paid struct {
		Order checkout.OrderDTO `json:"order"`
	}
	data(t, rec, &paid)
	return paid.Order
}

func TestOrdersAreScopedToSession(t *testing.T) {
	router := newTestRouter(t)
	const owner, other = "router-session-owner", "router-session-other"
	order := payForCart(t, router, owner)

	paths := []string{
		"/api/orders/" + order.ID,
		"/api/orders/" + order.ID + "/receipt",
		"/api/orders/" + order.ID + "/receipt/qr.png",
	}
	for _, path := range paths {
		if rec := do(t, router, http.MethodGet, path, owner, ""); rec.Code != http.StatusOK {
			t.Fatalf("%s as owner: expected 200, got %d", path, rec.Code)
		}
		if rec := do(t, router, http.MethodGet, path, other, ""); rec.Code != http.StatusNotFound {
			t.Fatalf("%s as another session: expected 404, got %d", path, rec.Code)
		}
		if rec := do(t, router, http.MethodGet, path, "", ""); rec.Code != http.StatusNotFound {
			t.Fatalf("%s with a fresh session: expected 404, got %d", path, rec.Code)
		}
	}

	var list struct {
		Orders []checkout.OrderDTO `json:"orders"`
	}
	data(t, do(t, router, http.MethodGet, "/api/orders", owner, ""), &list)
	if len(list.Orders) != 1 || list.Orders[0].ID != order.ID {
		t.Fatalf("unexpected owner orders %+v", list.Orders)
	}
	data(t, do(t, router, http.MethodGet, "/api/orders", other, ""), &list)
	if len(list.Orders) != 0 {
		t.Fatalf("expected no orders for another session, got %d", len(list.Orders))
	}
}

func TestCatalogAdminRoutes(t *testing.T) {
	router := newTestRouter(t)
	token, err := auth.MintAdminToken(testConfig().Admin, time.Now(), "ops")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	body := `{"id":"tortilla","title":"Tortilla","category":"tapas","price":"6.50"}`
	if rec := do(t, router, http.MethodPost, "/api/products", "", body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("create without token: expected 401, got %d", rec.Code)
	}
	if rec := doAuth(t, router, http.MethodPost, "/api/products", "", token, body); rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := doAuth(t, router, http.MethodPost, "/api/products", "", token, body); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate create: expected 409, got %d", rec.Code)
	}

	rec := doAuth(t, router, http.MethodPut, "/api/products/tortilla", "", token, `{"title":"Tortilla de patatas","category":"tapas","price":"7.00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var product catalog.ProductDTO
	data(t, rec, &product)
	if product.DisplayPrice != "€7.00" || product.Title != "Tortilla de patatas" {
		t.Fatalf("unexpected product %+v", product)
	}

	do(t, router, http.MethodPost, "/api/cart/lines", "router-session-admin", `{"productId":"tortilla"}`)
	if rec := doAuth(t, router, http.MethodDelete, "/api/products/tortilla", "", token, ""); rec.Code != http.StatusOK {
		t.Fatalf("deactivate: expected 200, got %d", rec.Code)
	}

	var page catalog.ListResult
	data(t, do(t, router, http.MethodGet, "/api/products?category=tapas", "", ""), &page)
	if len(page.Products) != 0 {
		t.Fatalf("deactivated product still listed: %+v", page.Products)
	}
	if rec := do(t, router, http.MethodPost, "/api/cart/lines", "router-session-admin", `{"productId":"tortilla"}`); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("adding an inactive product: expected 422, got %d", rec.Code)
	}
	var view storefront.CartView
	data(t, do(t, router, http.MethodGet, "/api/cart", "router-session-admin", ""), &view)
	if view.Badge.Count != 1 {
		t.Fatalf("existing cart line should survive deactivation, got %d", view.Badge.Count)
	}
}
