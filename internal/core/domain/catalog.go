package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Categories returns the category selector values for products:
// [AllCategories] followed by every distinct category in first-seen order.
func Categories(products []Product) []string {
	categories := []string{AllCategories}
	seen := make(map[string]struct{}, len(products))
	for _, p := range products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		categories = append(categories, p.Category)
	}
	return categories
}

// VisibleProducts returns the products whose name contains query
// (case-insensitive) and whose category equals category, unless category
// is [AllCategories]. The input order is kept. The result is never nil.
func VisibleProducts(products []Product, query, category string) []Product {
	query = strings.ToLower(query)

	visible := make([]Product, 0, len(products))
	for _, p := range products {
		if !strings.Contains(strings.ToLower(p.Name), query) {
			continue
		}
		if category != AllCategories && p.Category != category {
			continue
		}
		visible = append(visible, p)
	}
	return visible
}

// A Catalog is an immutable product list with its category set computed once.
type Catalog struct {
	products   []Product
	index      map[int64]int
	categories []string
}

func NewCatalog(products []Product) (Catalog, error) {
	const op = "NewCatalog"

	index := make(map[int64]int, len(products))
	for i, p := range products {
		if _, ok := index[p.ID]; ok {
			return Catalog{}, fmt.Errorf(
				"%s: %w: %d", op, ErrDuplicateProductID, p.ID,
			)
		}
		index[p.ID] = i
	}

	products = slices.Clone(products)
	return Catalog{
		products:   products,
		index:      index,
		categories: Categories(products),
	}, nil
}

// Products returns a copy of the catalog's product list.
func (c Catalog) Products() []Product {
	return slices.Clone(c.products)
}

func (c Catalog) Categories() []string {
	return slices.Clone(c.categories)
}

func (c Catalog) Visible(query, category string) []Product {
	return VisibleProducts(c.products, query, category)
}

func (c Catalog) Product(id int64) (Product, bool) {
	i, ok := c.index[id]
	if !ok {
		return Product{}, false
	}
	return c.products[i], true
}

func (c Catalog) Len() int {
	return len(c.products)
}
