package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodmarketplace/internal/cart"
	"github.com/angelmondragon/foodmarketplace/internal/storefront"
	pkgcheckout "github.com/angelmondragon/foodmarketplace/pkg/checkout"
	"github.com/angelmondragon/foodmarketplace/pkg/db"
	"github.com/angelmondragon/foodmarketplace/pkg/db/models"
	"github.com/angelmondragon/foodmarketplace/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodmarketplace/pkg/errors"
	"github.com/angelmondragon/foodmarketplace/pkg/kvstore"
	"github.com/angelmondragon/foodmarketplace/pkg/logger"
)

const (
	handoffKeyPrefix    = "checkout:"
	maxOrderIDAttempts  = 5
	orderIDRandomSpread = 1000

	DefaultOrderListLimit = 20
	MaxOrderListLimit     = 100
)

// Service runs the simulated checkout: snapshot handoff, payment and receipt.
type Service interface {
	// Begin stores the cart snapshot for session and quotes it.
	Begin(ctx context.Context, session string, snap cart.Snapshot) (*Quote, error)
	// Pay validates the form, simulates the charge and records the order. The
	// caller is responsible for clearing the cart afterwards.
	Pay(ctx context.Context, session string, form pkgcheckout.PaymentForm) (*OrderDTO, error)
	// Orders lists the session's orders, newest first.
	Orders(ctx context.Context, session string, limit int) ([]OrderDTO, error)
	Order(ctx context.Context, session, orderID string) (*OrderDTO, error)
	// Receipt and ReceiptQR only resolve orders placed by session; any other
	// order reads as not found.
	Receipt(ctx context.Context, session, orderID string) (*Receipt, error)
	ReceiptQR(ctx context.Context, session, orderID string, size int) ([]byte, error)
}

type orderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id string) (*models.Order, error)
	ListBySession(ctx context.Context, session string, limit int) ([]models.Order, error)
}

// ServiceParams wires a checkout Service.
type ServiceParams struct {
	Orders       orderRepository
	Handoffs     kvstore.Store
	Validator    *pkgcheckout.Validator
	Logger       *logger.Logger
	TaxRate      decimal.Decimal
	OrderPrefix  string
	Merchant     string
	PaymentDelay time.Duration
	Now          func() time.Time
	RandIntN     func(n int) int
}

type service struct {
	orders    orderRepository
	handoffs  kvstore.Store
	validator *pkgcheckout.Validator
	logg      *logger.Logger
	taxRate   decimal.Decimal
	prefix    string
	merchant  string
	delay     time.Duration
	now       func() time.Time
	randIntN  func(n int) int
}

type handoff struct {
	Session string          `json:"session"`
	Lines   json.RawMessage `json:"lines"`
	TakenAt time.Time       `json:"takenAt"`
}

// NewService validates wiring and builds the checkout service.
func NewService(p ServiceParams) (Service, error) {
	if p.Orders == nil {
		return nil, errors.New("order repository required")
	}
	if p.Handoffs == nil {
		return nil, errors.New("handoff store required")
	}
	if p.TaxRate.IsNegative() {
		return nil, errors.New("tax rate must be non-negative")
	}
	s := &service{
		orders:    p.Orders,
		handoffs:  p.Handoffs,
		validator: p.Validator,
		logg:      p.Logger,
		taxRate:   p.TaxRate,
		prefix:    strings.TrimSpace(p.OrderPrefix),
		merchant:  p.Merchant,
		delay:     p.PaymentDelay,
		now:       p.Now,
		randIntN:  p.RandIntN,
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.randIntN == nil {
		s.randIntN = rand.IntN
	}
	if s.prefix == "" {
		s.prefix = "GTS"
	}
	if s.validator == nil {
		v, err := pkgcheckout.NewValidator(s.now)
		if err != nil {
			return nil, err
		}
		s.validator = v
	}
	return s, nil
}

// HandoffKey is where the checkout snapshot for session lives.
func HandoffKey(session string) string {
	return handoffKeyPrefix + session
}

func (s *service) Begin(ctx context.Context, session string, snap cart.Snapshot) (*Quote, error) {
	session = strings.TrimSpace(session)
	if session == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session is required")
	}
	if snap.Empty() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
	}

	lines, err := cart.EncodeLines(snap.Lines)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode checkout snapshot")
	}
	takenAt := snap.TakenAt
	if takenAt.IsZero() {
		takenAt = s.now().UTC()
	}
	raw, err := json.Marshal(handoff{Session: session, Lines: lines, TakenAt: takenAt})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode checkout snapshot")
	}
	if err := s.handoffs.Save(ctx, HandoffKey(session), string(raw)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store checkout snapshot")
	}

	snap.TakenAt = takenAt
	return s.quote(snap), nil
}

func (s *service) Pay(ctx context.Context, session string, form pkgcheckout.PaymentForm) (*OrderDTO, error) {
	session = strings.TrimSpace(session)
	if session == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session is required")
	}
	if err := s.validator.ValidatePayment(form); err != nil {
		return nil, err
	}

	// The handoff is claimed before charging so two concurrent submits for
	// the same session cannot both produce an order.
	key := HandoffKey(session)
	raw, ok, err := s.handoffs.Take(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout snapshot")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no checkout in progress")
	}
	snap, err := decodeHandoff(session, raw)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithSessionID(ctx, session)

	if err := s.simulatePayment(ctx); err != nil {
		s.restoreHandoff(ctx, key, raw)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment interrupted")
	}

	t := computeTotals(snap.TotalAmount, s.taxRate)
	items := make([]models.OrderItem, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		items = append(items, models.OrderItem{
			ProductID: l.ID,
			Title:     l.Title,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	order := &models.Order{
		SessionID:     session,
		CustomerName:  strings.TrimSpace(form.FullName),
		CustomerEmail: strings.TrimSpace(form.Email),
		Items:         items,
		Subtotal:      t.subtotal,
		Tax:           t.tax,
		Total:         t.total,
		Status:        enums.OrderStatusPaid,
	}
	if err := s.createOrder(ctx, order); err != nil {
		s.restoreHandoff(ctx, key, raw)
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID,
		"total":    order.Total.StringFixed(2),
	}), "checkout.order_paid")

	dto := toOrderDTO(*order)
	return &dto, nil
}

func (s *service) Orders(ctx context.Context, session string, limit int) ([]OrderDTO, error) {
	session = strings.TrimSpace(session)
	if session == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session is required")
	}
	if limit <= 0 {
		limit = DefaultOrderListLimit
	}
	if limit > MaxOrderListLimit {
		limit = MaxOrderListLimit
	}
	rows, err := s.orders.ListBySession(ctx, session, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := make([]OrderDTO, 0, len(rows))
	for _, o := range rows {
		out = append(out, toOrderDTO(o))
	}
	return out, nil
}

func (s *service) Order(ctx context.Context, session, orderID string) (*OrderDTO, error) {
	order, err := s.findOrder(ctx, session, orderID)
	if err != nil {
		return nil, err
	}
	dto := toOrderDTO(*order)
	return &dto, nil
}

func (s *service) Receipt(ctx context.Context, session, orderID string) (*Receipt, error) {
	order, err := s.findOrder(ctx, session, orderID)
	if err != nil {
		return nil, err
	}
	return &Receipt{
		Order:   toOrderDTO(*order),
		Payload: buildQRPayload(*order, s.merchant),
	}, nil
}

func (s *service) ReceiptQR(ctx context.Context, session, orderID string, size int) ([]byte, error) {
	order, err := s.findOrder(ctx, session, orderID)
	if err != nil {
		return nil, err
	}
	png, err := renderQR(buildQRPayload(*order, s.merchant), size)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render receipt qr")
	}
	return png, nil
}

func (s *service) quote(snap cart.Snapshot) *Quote {
	t := computeTotals(snap.TotalAmount, s.taxRate)
	return &Quote{
		Summary:         storefront.NewCheckoutSummary(snap).View(),
		TaxRate:         s.taxRate,
		Subtotal:        t.subtotal,
		Tax:             t.tax,
		Total:           t.total,
		DisplaySubtotal: storefront.FormatPrice(t.subtotal),
		DisplayTax:      storefront.FormatPrice(t.tax),
		DisplayTotal:    storefront.FormatPrice(t.total),
	}
}

func decodeHandoff(session, raw string) (cart.Snapshot, error) {
	var h handoff
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		return cart.Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "checkout snapshot unreadable")
	}
	lines, _, err := cart.DecodeLines(h.Lines)
	if err != nil || len(lines) == 0 {
		return cart.Snapshot{}, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout snapshot is empty")
	}

	snap := cart.Snapshot{Key: HandoffKey(session), Lines: lines, TakenAt: h.TakenAt}
	for _, l := range lines {
		snap.TotalItemCount += l.Quantity
		snap.TotalAmount = snap.TotalAmount.Add(l.Subtotal())
	}
	return snap, nil
}

// restoreHandoff puts a claimed snapshot back after a failed payment so the
// shopper can retry without going through the cart again.
func (s *service) restoreHandoff(ctx context.Context, key, raw string) {
	if err := s.handoffs.Save(context.WithoutCancel(ctx), key, raw); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "checkout.handoff_restore_failed")
	}
}

func (s *service) simulatePayment(ctx context.Context) error {
	if s.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *service) createOrder(ctx context.Context, order *models.Order) error {
	var lastErr error
	for attempt := 0; attempt < maxOrderIDAttempts; attempt++ {
		now := s.now().UTC()
		order.ID = s.newOrderID(now)
		order.CreatedAt = now

		err := s.orders.Create(ctx, order)
		if err == nil {
			return nil
		}
		if !db.IsUniqueViolation(err) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		lastErr = err
	}
	return pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "could not allocate order id")
}

func (s *service) newOrderID(now time.Time) string {
	return fmt.Sprintf("%s-%d-%d", s.prefix, now.UnixMilli(), s.randIntN(orderIDRandomSpread))
}

func (s *service) findOrder(ctx context.Context, session, orderID string) (*models.Order, error) {
	session = strings.TrimSpace(session)
	if session == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session is required")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.SessionID != session {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}
