package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// A Session is the browsing state of one shopper: the search query,
// the selected category and the cart.
type Session struct {
	Query    string
	Category string
	Cart     Ledger
}

func NewSession() Session {
	return Session{Category: AllCategories}
}

// An Event is a discrete user interaction applied to a [Session].
type Event interface {
	apply(Session) Session
}

type (
	QueryChanged struct {
		Query string
	}

	CategorySelected struct {
		Category string
	}

	ProductAdded struct {
		Product Product
	}

	ProductRemoved struct {
		ProductID int64
	}
)

func (e QueryChanged) apply(s Session) Session {
	s.Query = e.Query
	return s
}

func (e CategorySelected) apply(s Session) Session {
	s.Category = e.Category
	return s
}

func (e ProductAdded) apply(s Session) Session {
	s.Cart = s.Cart.Add(e.Product)
	return s
}

func (e ProductRemoved) apply(s Session) Session {
	s.Cart = s.Cart.Remove(e.ProductID)
	return s
}

// Apply returns the session that results from e.
func (s Session) Apply(e Event) Session {
	return e.apply(s)
}

// A View is everything a storefront page renders for a session.
type View struct {
	Query      string
	Category   string
	Categories []string
	Products   []Product
	Lines      []CartLine
	ItemCount  int
	Total      decimal.Decimal
}

func (s Session) View(c Catalog) View {
	return View{
		Query:      s.Query,
		Category:   s.Category,
		Categories: c.Categories(),
		Products:   c.Visible(s.Query, s.Category),
		Lines:      slices.Clone(s.Cart.Lines),
		ItemCount:  s.Cart.ItemCount(),
		Total:      s.Cart.Total(),
	}
}

// A CartEvent records a change of units held for one product in one session.
// Delta is positive on add and negative on remove.
type CartEvent struct {
	SessionID  string
	Product    Product
	Delta      int
	OccurredAt time.Time
}
