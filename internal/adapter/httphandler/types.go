package httphandler

import "github.com/niksmo/storefront/internal/core/domain"

type (
	Product struct {
		ID       int64   `json:"id"`
		Name     string  `json:"name"`
		Category string  `json:"category"`
		Price    string  `json:"price"`
		Rating   float64 `json:"rating"`
		Image    string  `json:"image"`
	}

	CartLine struct {
		Product  Product `json:"product"`
		Quantity int     `json:"quantity"`
		Subtotal string  `json:"subtotal"`
	}

	Cart struct {
		Lines     []CartLine `json:"lines"`
		ItemCount int        `json:"item_count"`
		Total     string     `json:"total"`
	}

	Session struct {
		SessionID  string    `json:"session_id"`
		Query      string    `json:"query"`
		Category   string    `json:"category"`
		Categories []string  `json:"categories"`
		Products   []Product `json:"products"`
		Cart       Cart      `json:"cart"`
	}

	Demand struct {
		ProductID int64 `json:"product_id"`
		Units     int64 `json:"units"`
	}
)

type (
	QueryRequest struct {
		Query string `json:"query"`
	}

	CategoryRequest struct {
		Category string `json:"category"`
	}

	CartItemRequest struct {
		ProductID int64 `json:"product_id"`
	}
)

func toProduct(p domain.Product) Product {
	return Product{
		ID:       p.ID,
		Name:     p.Name,
		Category: p.Category,
		Price:    domain.FormatAmount(p.Price),
		Rating:   p.Rating,
		Image:    p.Image,
	}
}

func toProducts(ps []domain.Product) []Product {
	out := make([]Product, len(ps))
	for i, p := range ps {
		out[i] = toProduct(p)
	}
	return out
}

func toSession(id string, v domain.View) Session {
	lines := make([]CartLine, len(v.Lines))
	for i, l := range v.Lines {
		lines[i] = CartLine{
			Product:  toProduct(l.Product),
			Quantity: l.Quantity,
			Subtotal: domain.FormatAmount(l.Subtotal()),
		}
	}

	return Session{
		SessionID:  id,
		Query:      v.Query,
		Category:   v.Category,
		Categories: v.Categories,
		Products:   toProducts(v.Products),
		Cart: Cart{
			Lines:     lines,
			ItemCount: v.ItemCount,
			Total:     domain.FormatAmount(v.Total),
		},
	}
}
