package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/foodmarketplace/api/responses"
	"github.com/angelmondragon/foodmarketplace/api/validators"
	"github.com/angelmondragon/foodmarketplace/internal/catalog"
	pkgerrors "github.com/angelmondragon/foodmarketplace/pkg/errors"
	"github.com/angelmondragon/foodmarketplace/pkg/logger"
	"github.com/angelmondragon/foodmarketplace/pkg/pagination"
)

const maxCatalogLimit = 100

type productRequest struct {
	ID            string           `json:"id" validate:"omitempty,max=64"`
	Title         string           `json:"title" validate:"required,max=200"`
	Supplier      string           `json:"supplier" validate:"omitempty,max=120"`
	Category      string           `json:"category" validate:"omitempty,max=64"`
	Image         string           `json:"image" validate:"omitempty,max=512"`
	Price         *decimal.Decimal `json:"price" validate:"required"`
	OriginalPrice *decimal.Decimal `json:"originalPrice"`
	IsActive      *bool            `json:"isActive"`
}

func (p productRequest) input(id string) catalog.UpsertInput {
	in := catalog.UpsertInput{
		ID:            id,
		Title:         p.Title,
		Supplier:      p.Supplier,
		Category:      p.Category,
		Image:         p.Image,
		Price:         *p.Price,
		OriginalPrice: p.OriginalPrice,
		IsActive:      true,
	}
	if p.IsActive != nil {
		in.IsActive = *p.IsActive
	}
	return in
}

// ListProducts returns a cursor page of active products.
func ListProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, maxCatalogLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), catalog.ListInput{
			Category: validators.ParseQueryString(r, "category", 64),
			Limit:    limit,
			Cursor:   validators.ParseQueryString(r, "cursor", 256),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func GetProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, ok := productIDParam(w, r, logg)
		if !ok {
			return
		}

		product, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func ListCategories(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		categories, err := svc.Categories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"categories": categories})
	}
}

// CreateProduct adds a product to the catalog. A body without an id gets a
// generated one.
func CreateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var req productRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), req.input(strings.TrimSpace(req.ID)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// PutProduct creates or replaces the product named in the path.
func PutProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		id, ok := productIDParam(w, r, logg)
		if !ok {
			return
		}

		var req productRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.ID != "" && strings.TrimSpace(req.ID) != id {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "body id does not match path"))
			return
		}

		product, err := svc.Upsert(r.Context(), req.input(id))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// DeactivateProduct soft-deletes a product. Carts that already hold it keep
// their line.
func DeactivateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		id, ok := productIDParam(w, r, logg)
		if !ok {
			return
		}

		product, err := svc.Deactivate(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func productIDParam(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "productId"))
	if id == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product id required"))
		return "", false
	}
	return id, true
}
