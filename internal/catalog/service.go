package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodmarketplace/internal/cart"
	"github.com/angelmondragon/foodmarketplace/pkg/db"
	"github.com/angelmondragon/foodmarketplace/pkg/db/models"
	pkgerrors "github.com/angelmondragon/foodmarketplace/pkg/errors"
	"github.com/angelmondragon/foodmarketplace/pkg/pagination"
)

// Service exposes catalog reads and product maintenance.
type Service interface {
	List(ctx context.Context, input ListInput) (*ListResult, error)
	Get(ctx context.Context, id string) (*ProductDTO, error)
	Categories(ctx context.Context) ([]string, error)
	// Create inserts a new product, minting an id when none is given.
	Create(ctx context.Context, input UpsertInput) (*ProductDTO, error)
	Upsert(ctx context.Context, input UpsertInput) (*ProductDTO, error)
	// Deactivate hides a product from listings and from new cart lines.
	Deactivate(ctx context.Context, id string) (*ProductDTO, error)
	// CartProduct resolves an active product into what the cart engine adds.
	CartProduct(ctx context.Context, id string) (cart.Product, error)
}

type repository interface {
	FindByID(ctx context.Context, id string) (*models.Product, error)
	ListActive(ctx context.Context, category string, cursor *pagination.Cursor, limit int) ([]models.Product, error)
	Categories(ctx context.Context) ([]string, error)
	Create(ctx context.Context, product *models.Product) error
	Upsert(ctx context.Context, product *models.Product) error
	Deactivate(ctx context.Context, id string, at time.Time) (int64, error)
}

type service struct {
	repo repository
	now  func() time.Time
}

// NewService builds the catalog service.
func NewService(repo repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("catalog repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(input.Limit)

	rows, err := s.repo.ListActive(ctx, strings.TrimSpace(input.Category), cursor, pagination.LimitWithBuffer(input.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	result := &ListResult{Products: make([]ProductDTO, 0, len(rows))}
	if len(rows) > limit {
		last := rows[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		rows = rows[:limit]
	}
	for _, row := range rows {
		result.Products = append(result.Products, toDTO(row))
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, id string) (*ProductDTO, error) {
	product, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toDTO(*product)
	return &dto, nil
}

func (s *service) Categories(ctx context.Context) ([]string, error) {
	out, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, input UpsertInput) (*ProductDTO, error) {
	if strings.TrimSpace(input.ID) == "" {
		input.ID = uuid.NewString()
	}
	product, err := s.buildProduct(input)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, product); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product already exists").
				WithDetails(map[string]any{"productId": product.ID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return s.Get(ctx, product.ID)
}

func (s *service) Upsert(ctx context.Context, input UpsertInput) (*ProductDTO, error) {
	product, err := s.buildProduct(input)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert product")
	}
	return s.Get(ctx, product.ID)
}

func (s *service) Deactivate(ctx context.Context, id string) (*ProductDTO, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	n, err := s.repo.Deactivate(ctx, id, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate product")
	}
	if n == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return s.Get(ctx, id)
}

func (s *service) buildProduct(input UpsertInput) (*models.Product, error) {
	input.ID = strings.TrimSpace(input.ID)
	input.Title = strings.TrimSpace(input.Title)
	if input.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product title is required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
	}
	if input.OriginalPrice != nil && input.OriginalPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "original price must be non-negative")
	}

	now := s.now().UTC()
	product := &models.Product{
		ID:        input.ID,
		Title:     input.Title,
		Supplier:  strings.TrimSpace(input.Supplier),
		Category:  strings.TrimSpace(input.Category),
		Image:     strings.TrimSpace(input.Image),
		Price:     input.Price.Round(2),
		IsActive:  input.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.OriginalPrice != nil {
		product.OriginalPrice = decimal.NewNullDecimal(input.OriginalPrice.Round(2))
	}
	return product, nil
}

func (s *service) CartProduct(ctx context.Context, id string) (cart.Product, error) {
	product, err := s.find(ctx, id)
	if err != nil {
		return cart.Product{}, err
	}
	if !product.IsActive {
		return cart.Product{}, pkgerrors.New(pkgerrors.CodeStateConflict, "product is not available").
			WithDetails(map[string]any{"productId": product.ID})
	}

	out := cart.Product{
		ID:        product.ID,
		Title:     product.Title,
		UnitPrice: product.Price,
		Image:     product.Image,
		Supplier:  product.Supplier,
	}
	if product.OriginalPrice.Valid {
		op := product.OriginalPrice.Decimal
		out.OriginalPrice = &op
	}
	return out, nil
}

func (s *service) find(ctx context.Context, id string) (*models.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}
