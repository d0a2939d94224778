package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/foodmarketplace/api/responses"
	"github.com/angelmondragon/foodmarketplace/api/validators"
	"github.com/angelmondragon/foodmarketplace/internal/cart"
	"github.com/angelmondragon/foodmarketplace/internal/storefront"
	"github.com/angelmondragon/foodmarketplace/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodmarketplace/pkg/errors"
	"github.com/angelmondragon/foodmarketplace/pkg/eventbus"
	"github.com/angelmondragon/foodmarketplace/pkg/logger"
)

// CartOpener hydrates the cart for one session.
type CartOpener interface {
	Open(ctx context.Context, session string) (*storefront.Page, error)
}

// CartProducts resolves a catalog product into the shape the cart stores.
type CartProducts interface {
	CartProduct(ctx context.Context, id string) (cart.Product, error)
}

type addLineRequest struct {
	ProductID string `json:"productId" validate:"required,max=64"`
	Quantity  int    `json:"quantity" validate:"omitempty,min=1,max=999"`
}

type updateLineRequest struct {
	Quantity *int `json:"quantity" validate:"required,max=999"`
}

type toggleRequest struct {
	Action string `json:"action" validate:"omitempty,oneof=toggle show close"`
}

func GetCart(opener CartOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, ok := openPage(w, r, opener, logg)
		if !ok {
			return
		}
		defer page.Close()
		responses.WriteSuccess(w, page.View())
	}
}

// AddCartLine adds a catalog product to the session cart. The price is the
// catalog price at the moment of adding.
func AddCartLine(opener CartOpener, products CartProducts, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if products == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var req addLineRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}

		product, err := products.CartProduct(r.Context(), strings.TrimSpace(req.ProductID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, ok := openPage(w, r, opener, logg)
		if !ok {
			return
		}
		defer page.Close()

		if err := page.Absorb(page.Engine.AddLine(r.Context(), product, req.Quantity)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page.View())
	}
}

// UpdateCartLine sets a line's quantity; zero or less removes it.
func UpdateCartLine(opener CartOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lineID, ok := lineIDParam(w, r, logg)
		if !ok {
			return
		}

		var req updateLineRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, ok := openPage(w, r, opener, logg)
		if !ok {
			return
		}
		defer page.Close()

		if err := page.Absorb(page.Engine.SetQuantity(r.Context(), lineID, *req.Quantity)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page.View())
	}
}

func RemoveCartLine(opener CartOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lineID, ok := lineIDParam(w, r, logg)
		if !ok {
			return
		}

		page, ok := openPage(w, r, opener, logg)
		if !ok {
			return
		}
		defer page.Close()

		if err := page.Absorb(page.Engine.RemoveLine(r.Context(), lineID)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page.View())
	}
}

func ClearCart(opener CartOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, ok := openPage(w, r, opener, logg)
		if !ok {
			return
		}
		defer page.Close()

		if err := page.Absorb(page.Engine.Clear(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page.View())
	}
}

// ToggleCart announces a drawer visibility change and returns the resulting
// view. An empty body toggles.
func ToggleCart(opener CartOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req toggleRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, ok := openPage(w, r, opener, logg)
		if !ok {
			return
		}
		defer page.Close()

		page.Announce(r.Context(), eventbus.Event{Name: drawerEvent(req.Action)})
		responses.WriteSuccess(w, page.View())
	}
}

func drawerEvent(action string) enums.EventName {
	switch action {
	case "show":
		return enums.EventCartShow
	case "close":
		return enums.EventCartClosed
	default:
		return enums.EventCartToggle
	}
}

func openPage(w http.ResponseWriter, r *http.Request, opener CartOpener, logg *logger.Logger) (*storefront.Page, bool) {
	if opener == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
		return nil, false
	}
	session, ok := requireSession(w, r, logg)
	if !ok {
		return nil, false
	}
	page, err := opener.Open(r.Context(), session)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open cart"))
		return nil, false
	}
	return page, true
}

func lineIDParam(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "lineId"))
	if id == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "line id required"))
		return "", false
	}
	return id, true
}
