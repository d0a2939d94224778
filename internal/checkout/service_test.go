package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodmarketplace/internal/cart"
	pkgcheckout "github.com/angelmondragon/foodmarketplace/pkg/checkout"
	"github.com/angelmondragon/foodmarketplace/pkg/db/models"
	"github.com/angelmondragon/foodmarketplace/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodmarketplace/pkg/errors"
	"github.com/angelmondragon/foodmarketplace/pkg/kvstore"
)

var testNow = time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)

type fixture struct {
	svc      Service
	handoffs *kvstore.Memory
	repo     *Repository
}

func newFixture(t *testing.T, orders orderRepository) fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Order{}))

	repo := NewRepository(conn)
	if orders == nil {
		orders = repo
	}
	handoffs := kvstore.NewMemory(0)
	svc, err := NewService(ServiceParams{
		Orders:      orders,
		Handoffs:    handoffs,
		TaxRate:     decimal.RequireFromString("0.04"),
		OrderPrefix: "GTS",
		Merchant:    "GTS",
		Now:         func() time.Time { return testNow },
		RandIntN:    func(int) int { return 7 },
	})
	require.NoError(t, err)
	return fixture{svc: svc, handoffs: handoffs, repo: repo}
}

func snapshot(t *testing.T) cart.Snapshot {
	t.Helper()
	engine, err := cart.Load(context.Background(), cart.Params{Key: "cart:s1", Store: kvstore.NewMemory(0)})
	require.NoError(t, err)
	require.NoError(t, engine.AddLine(context.Background(), cart.Product{
		ID: "p1", Title: "Paella", UnitPrice: decimal.RequireFromString("12.50"),
	}, 2))
	return engine.Snapshot()
}

func validForm() pkgcheckout.PaymentForm {
	return pkgcheckout.PaymentForm{
		FullName:    "Ana García",
		Email:       "ana@example.com",
		Phone:       "600123456",
		CardNumber:  "4111111111111111",
		ExpiryMonth: "12",
		ExpiryYear:  "28",
		CVV:         "321",
	}
}

func TestBeginRejectsEmptyCart(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Begin(context.Background(), "s1", cart.Snapshot{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestBeginQuotesAndStoresHandoff(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	quote, err := f.svc.Begin(ctx, "s1", snapshot(t))
	require.NoError(t, err)
	assert.Equal(t, "€25.00", quote.DisplaySubtotal)
	assert.Equal(t, "€1.00", quote.DisplayTax)
	assert.Equal(t, "€26.00", quote.DisplayTotal)
	assert.Equal(t, 2, quote.Summary.ItemCount)

	_, ok, err := f.handoffs.Load(ctx, HandoffKey("s1"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPayWithoutHandoffIsStateConflict(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Pay(context.Background(), "s1", validForm())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestPayRejectsInvalidForm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, err := f.svc.Begin(ctx, "s1", snapshot(t))
	require.NoError(t, err)

	form := validForm()
	form.CVV = "1"
	_, err = f.svc.Pay(ctx, "s1", form)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, ok, _ := f.handoffs.Load(ctx, HandoffKey("s1"))
	assert.True(t, ok, "handoff survives a rejected form")
}

func TestPayCreatesOrderAndReceipt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, err := f.svc.Begin(ctx, "s1", snapshot(t))
	require.NoError(t, err)

	order, err := f.svc.Pay(ctx, "s1", validForm())
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("GTS-%d-7", testNow.UnixMilli()), order.ID)
	assert.Equal(t, enums.OrderStatusPaid, order.Status)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("26")))

	_, ok, _ := f.handoffs.Load(ctx, HandoffKey("s1"))
	assert.False(t, ok, "handoff dropped after payment")

	receipt, err := f.svc.Receipt(ctx, "s1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana García", receipt.Order.CustomerName)

	raw, err := json.Marshal(receipt.Payload)
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`{
		"orderId": %q,
		"total": 26.00,
		"items": [{"title": "Paella", "quantity": 2, "price": 12.50}],
		"timestamp": "2025-06-01T10:30:00.000Z",
		"merchant": "GTS",
		"type": "payment_confirmation"
	}`, order.ID), string(raw))

	png, err := f.svc.ReceiptQR(ctx, "s1", order.ID, 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestPayTwiceNeedsNewCheckout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, err := f.svc.Begin(ctx, "s1", snapshot(t))
	require.NoError(t, err)
	_, err = f.svc.Pay(ctx, "s1", validForm())
	require.NoError(t, err)

	_, err = f.svc.Pay(ctx, "s1", validForm())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

type collidingRepo struct {
	*Repository
	failures int
	ids      []string
}

func (c *collidingRepo) Create(ctx context.Context, order *models.Order) error {
	c.ids = append(c.ids, order.ID)
	if c.failures > 0 {
		c.failures--
		return errors.New("UNIQUE constraint failed: orders.id")
	}
	return c.Repository.Create(ctx, order)
}

func TestPayRetriesOrderIDCollision(t *testing.T) {
	ctx := context.Background()
	base := newFixture(t, nil)
	repo := &collidingRepo{Repository: base.repo, failures: 2}

	svc, err := NewService(ServiceParams{
		Orders:   repo,
		Handoffs: base.handoffs,
		TaxRate:  decimal.RequireFromString("0.04"),
		Now:      func() time.Time { return testNow },
	})
	require.NoError(t, err)

	_, err = svc.Begin(ctx, "s1", snapshot(t))
	require.NoError(t, err)
	order, err := svc.Pay(ctx, "s1", validForm())
	require.NoError(t, err)
	assert.Len(t, repo.ids, 3)
	assert.Equal(t, repo.ids[2], order.ID)
}

func TestPayHonoursCancellation(t *testing.T) {
	f := newFixture(t, nil)
	svc, err := NewService(ServiceParams{
		Orders:       f.repo,
		Handoffs:     f.handoffs,
		PaymentDelay: time.Minute,
		Now:          func() time.Time { return testNow },
	})
	require.NoError(t, err)

	_, err = svc.Begin(context.Background(), "s1", snapshot(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Pay(ctx, "s1", validForm())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))

	_, ok, _ := f.handoffs.Load(context.Background(), HandoffKey("s1"))
	assert.True(t, ok, "interrupted payment puts the handoff back")
}

func TestReceiptNotFound(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Receipt(context.Background(), "s1", "GTS-1-1")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestClampQRSize(t *testing.T) {
	assert.Equal(t, DefaultQRSize, clampQRSize(0))
	assert.Equal(t, minQRSize, clampQRSize(10))
	assert.Equal(t, maxQRSize, clampQRSize(5000))
	assert.Equal(t, 300, clampQRSize(300))
}

func TestConcurrentPayCreatesOneOrder(t *testing.T) {
	f := newFixture(t, nil)
	svc, err := NewService(ServiceParams{
		Orders:       f.repo,
		Handoffs:     f.handoffs,
		PaymentDelay: 20 * time.Millisecond,
		Now:          func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.Begin(context.Background(), "s1", snapshot(t)); err != nil {
		t.Fatalf("begin: %v", err)
	}

	const submits = 4
	errs := make([]error, submits)
	var wg sync.WaitGroup
	for i := 0; i < submits; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Pay(context.Background(), "s1", validForm())
		}(i)
	}
	wg.Wait()

	paid := 0
	for _, err := range errs {
		switch {
		case err == nil:
			paid++
		case !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if paid != 1 {
		t.Fatalf("expected exactly one paid submit, got %d", paid)
	}
	orders, err := f.repo.ListBySession(context.Background(), "s1", 10)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected one stored order, got %d", len(orders))
	}
}

type brokenRepo struct {
	*Repository
}

func (brokenRepo) Create(context.Context, *models.Order) error {
	return errors.New("connection reset")
}

func TestPayRestoresHandoffWhenOrderFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	svc, err := NewService(ServiceParams{
		Orders:   brokenRepo{Repository: f.repo},
		Handoffs: f.handoffs,
		Now:      func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.Begin(ctx, "s1", snapshot(t)); err != nil {
		t.Fatalf("begin: %v", err)
	}

	if _, err := svc.Pay(ctx, "s1", validForm()); !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if _, ok, _ := f.handoffs.Load(ctx, HandoffKey("s1")); !ok {
		t.Fatal("expected handoff to be restored for a retry")
	}
}

func TestReceiptHiddenFromOtherSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	if _, err := f.svc.Begin(ctx, "s1", snapshot(t)); err != nil {
		t.Fatalf("begin: %v", err)
	}
	order, err := f.svc.Pay(ctx, "s1", validForm())
	if err != nil {
		t.Fatalf("pay: %v", err)
	}

	if _, err := f.svc.Receipt(ctx, "s2", order.ID); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for another session, got %v", err)
	}
	if _, err := f.svc.ReceiptQR(ctx, "s2", order.ID, 0); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for another session's qr, got %v", err)
	}
	if _, err := f.svc.Order(ctx, "s2", order.ID); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for another session's order, got %v", err)
	}
	if _, err := f.svc.Receipt(ctx, "", order.ID); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error without a session, got %v", err)
	}
}

func TestOrdersListsSessionOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	now := testNow
	svc, err := NewService(ServiceParams{
		Orders:   f.repo,
		Handoffs: f.handoffs,
		Now: func() time.Time {
			now = now.Add(time.Second)
			return now
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	var ids []string
	for _, session := range []string{"s1", "s2", "s1"} {
		if _, err := svc.Begin(ctx, session, snapshot(t)); err != nil {
			t.Fatalf("begin %s: %v", session, err)
		}
		order, err := svc.Pay(ctx, session, validForm())
		if err != nil {
			t.Fatalf("pay %s: %v", session, err)
		}
		ids = append(ids, order.ID)
	}

	orders, err := svc.Orders(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("orders: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders for s1, got %d", len(orders))
	}
	if orders[0].ID != ids[2] || orders[1].ID != ids[0] {
		t.Fatalf("unexpected order: %s, %s", orders[0].ID, orders[1].ID)
	}

	one, err := svc.Orders(ctx, "s1", 1)
	if err != nil || len(one) != 1 {
		t.Fatalf("limit not applied: %d, %v", len(one), err)
	}
	if _, err := svc.Orders(ctx, " ", 0); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
