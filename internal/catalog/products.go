package catalog

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

type Category struct {
	ID         string `json:"id,omitempty"`
	DatabaseID int64  `json:"databaseId,omitempty"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
}

type Product struct {
	ID               string     `json:"id"`
	DatabaseID       int64      `json:"databaseId"`
	Slug             string     `json:"slug"`
	Name             string     `json:"name"`
	Type             string     `json:"type,omitempty"`
	Description      string     `json:"description,omitempty"`
	ShortDescription string     `json:"shortDescription,omitempty"`
	Price            *float64   `json:"price"`
	RegularPrice     *float64   `json:"regularPrice,omitempty"`
	SalePrice        *float64   `json:"salePrice,omitempty"`
	StockQuantity    *int       `json:"stockQuantity,omitempty"`
	StockStatus      string     `json:"stockStatus,omitempty"`
	ImageURL         string     `json:"imageUrl,omitempty"`
	ImageAlt         string     `json:"imageAlt,omitempty"`
	Categories       []Category `json:"categories,omitempty"`
}

type ProductQuery struct {
	Search     string
	Categories []string
	First      int
	After      string
}

type ProductPage struct {
	Products    []Product `json:"products"`
	HasNextPage bool      `json:"hasNextPage"`
	EndCursor   string    `json:"endCursor,omitempty"`
}

// gqlProduct mirrors the WPGraphQL node shape.
type gqlProduct struct {
	ID               string  `json:"id"`
	DatabaseID       int64   `json:"databaseId"`
	Slug             string  `json:"slug"`
	Name             string  `json:"name"`
	Type             string  `json:"type"`
	Description      string  `json:"description"`
	ShortDescription string  `json:"shortDescription"`
	Price            *string `json:"price"`
	RegularPrice     *string `json:"regularPrice"`
	SalePrice        *string `json:"salePrice"`
	StockQuantity    *int    `json:"stockQuantity"`
	StockStatus      string  `json:"stockStatus"`
	Image            *struct {
		SourceURL string `json:"sourceUrl"`
		AltText   string `json:"altText"`
	} `json:"image"`
	ProductCategories struct {
		Nodes []Category `json:"nodes"`
	} `json:"productCategories"`
}

func (g gqlProduct) normalize() Product {
	p := Product{
		ID:               g.ID,
		DatabaseID:       g.DatabaseID,
		Slug:             g.Slug,
		Name:             g.Name,
		Type:             g.Type,
		Description:      g.Description,
		ShortDescription: g.ShortDescription,
		Price:            parsePrice(g.Price),
		RegularPrice:     parsePrice(g.RegularPrice),
		SalePrice:        parsePrice(g.SalePrice),
		StockQuantity:    g.StockQuantity,
		StockStatus:      g.StockStatus,
		Categories:       g.ProductCategories.Nodes,
	}
	if g.Image != nil {
		p.ImageURL = g.Image.SourceURL
		p.ImageAlt = g.Image.AltText
	}
	return p
}

// parsePrice reads a plain number, or failing that the digits of a
// formatted amount such as "$12.990" (CLP has no decimals).
func parsePrice(s *string) *float64 {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return &f
	}
	var digits strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return nil
	}
	f, err := strconv.ParseFloat(digits.String(), 64)
	if err != nil {
		return nil
	}
	return &f
}

// Service combines the GraphQL catalog with the REST API for prices the
// catalog does not expose.
type Service struct {
	gql *GraphQL
	woo *Woo
	log *slog.Logger
}

func NewService(gql *GraphQL, woo *Woo, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gql: gql, woo: woo, log: logger.With("component", "catalog")}
}

func (s *Service) Products(ctx context.Context, q ProductQuery) (ProductPage, error) {
	if q.First <= 0 || q.First > 100 {
		q.First = 20
	}
	vars := map[string]any{"first": q.First}
	if q.Search != "" {
		vars["search"] = q.Search
	}
	if len(q.Categories) > 0 {
		vars["cat"] = q.Categories
	}
	if q.After != "" {
		vars["after"] = q.After
	}

	var data struct {
		Products struct {
			Nodes    []gqlProduct `json:"nodes"`
			PageInfo struct {
				HasNextPage bool   `json:"hasNextPage"`
				EndCursor   string `json:"endCursor"`
			} `json:"pageInfo"`
		} `json:"products"`
	}
	if err := s.gql.Do(ctx, queryProducts, vars, &data); err != nil {
		return ProductPage{}, err
	}

	page := ProductPage{
		Products:    make([]Product, 0, len(data.Products.Nodes)),
		HasNextPage: data.Products.PageInfo.HasNextPage,
		EndCursor:   data.Products.PageInfo.EndCursor,
	}
	for _, n := range data.Products.Nodes {
		page.Products = append(page.Products, n.normalize())
	}
	return page, nil
}

// Product returns ErrProductNotFound when the slug is unknown.
func (s *Service) Product(ctx context.Context, slug string) (Product, error) {
	var data struct {
		Product *gqlProduct `json:"product"`
	}
	if err := s.gql.Do(ctx, queryProduct, map[string]any{"slug": slug}, &data); err != nil {
		return Product{}, err
	}
	if data.Product == nil {
		return Product{}, ErrProductNotFound
	}
	return data.Product.normalize(), nil
}

func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	var data struct {
		ProductCategories struct {
			Nodes []Category `json:"nodes"`
		} `json:"productCategories"`
	}
	if err := s.gql.Do(ctx, queryCategories, nil, &data); err != nil {
		return nil, err
	}
	return data.ProductCategories.Nodes, nil
}

// BackfillPrices fills missing prices from the REST API, by database id
// first and slug second. Lookup failures leave the price empty.
func (s *Service) BackfillPrices(ctx context.Context, products []Product) {
	if s.woo == nil || !s.woo.Configured() {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range products {
		if products[i].Price != nil {
			continue
		}
		p := &products[i]
		g.Go(func() error {
			var wp *WooProduct
			if p.DatabaseID != 0 {
				wp, _ = s.woo.ProductByID(gctx, p.DatabaseID)
			}
			if wp == nil && p.Slug != "" {
				wp, _ = s.woo.ProductBySlug(gctx, p.Slug)
			}
			if wp == nil {
				return nil
			}
			if price := wp.EffectivePrice(); price != nil {
				p.Price = price
			} else {
				s.log.Debug("no price in REST product", "id", p.DatabaseID, "slug", p.Slug)
			}
			return nil
		})
	}
	_ = g.Wait()
}
