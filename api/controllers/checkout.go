package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/foodmarketplace/api/middleware"
	"github.com/angelmondragon/foodmarketplace/api/responses"
	"github.com/angelmondragon/foodmarketplace/api/validators"
	"github.com/angelmondragon/foodmarketplace/internal/checkout"
	"github.com/angelmondragon/foodmarketplace/internal/storefront"
	pkgcheckout "github.com/angelmondragon/foodmarketplace/pkg/checkout"
	pkgerrors "github.com/angelmondragon/foodmarketplace/pkg/errors"
	"github.com/angelmondragon/foodmarketplace/pkg/logger"
)

type payResponse struct {
	Order *checkout.OrderDTO   `json:"order"`
	Cart  storefront.CartView `json:"cart"`
}

// BeginCheckout snapshots the session cart into a checkout handoff and
// returns the quote.
func BeginCheckout(opener CartOpener, svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		page, ok := openPage(w, r, opener, logg)
		if !ok {
			return
		}
		defer page.Close()

		quote, err := svc.Begin(r.Context(), page.Session, page.Engine.Snapshot())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// PayCheckout settles the pending handoff and empties the cart once the
// order exists.
func PayCheckout(opener CartOpener, svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var form pkgcheckout.PaymentForm
		if err := validators.DecodeJSONBody(r, &form); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, ok := requireSession(w, r, logg)
		if !ok {
			return
		}

		order, err := svc.Pay(r.Context(), session, form)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, ok := openPage(w, r, opener, logg)
		if !ok {
			return
		}
		defer page.Close()

		if err := page.Absorb(page.Engine.Clear(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payResponse{Order: order, Cart: page.View()})
	}
}

// ListOrders returns the session's past orders, newest first.
func ListOrders(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		session, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", checkout.DefaultOrderListLimit, 1, checkout.MaxOrderListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, err := svc.Orders(r.Context(), session, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"orders": orders})
	}
}

func GetOrder(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		session, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		orderID, ok := orderIDParam(w, r, logg)
		if !ok {
			return
		}

		order, err := svc.Order(r.Context(), session, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func GetReceipt(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		session, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		orderID, ok := orderIDParam(w, r, logg)
		if !ok {
			return
		}

		receipt, err := svc.Receipt(r.Context(), session, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, receipt)
	}
}

// GetReceiptQR renders the payment confirmation QR code as PNG.
func GetReceiptQR(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		session, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		orderID, ok := orderIDParam(w, r, logg)
		if !ok {
			return
		}
		size, err := validators.ParseQueryInt(r, "size", checkout.DefaultQRSize, 1, 4096)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		png, err := svc.ReceiptQR(r.Context(), session, orderID, size)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePNG(w, png)
	}
}

func requireSession(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (string, bool) {
	session := middleware.SessionFromContext(r.Context())
	if session == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cart session required"))
		return "", false
	}
	return session, true
}

func orderIDParam(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if id == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id required"))
		return "", false
	}
	return id, true
}
