package port

import (
	"context"

	"github.com/niksmo/storefront/internal/core/domain"
)

type CatalogBrowser interface {
	Categories() []string
	Products(query, category string) []domain.Product
	ProductDemand(ctx context.Context, productID int64) (int64, error)
}

type SessionKeeper interface {
	OpenSession(context.Context) (string, domain.View, error)
	Session(ctx context.Context, id string) (domain.View, error)
	CloseSession(ctx context.Context, id string) error
	SetQuery(ctx context.Context, id, query string) (domain.View, error)
	SelectCategory(ctx context.Context, id, category string) (domain.View, error)
	AddToCart(ctx context.Context, id string, productID int64) (domain.View, error)
	RemoveFromCart(ctx context.Context, id string, productID int64) (domain.View, error)
}

type ProductsLoader interface {
	LoadProducts(context.Context) ([]domain.Product, error)
}

// A SessionStore holds sessions by id.
//
// Update must serialize concurrent writers of the same id: fn observes the
// latest stored session and its result is stored only if no other writer
// committed in between. Get and Update return [domain.ErrSessionNotFound]
// for unknown or expired ids.
type SessionStore interface {
	Create(ctx context.Context, id string, s domain.Session) error
	Get(ctx context.Context, id string) (domain.Session, error)
	Update(
		ctx context.Context, id string,
		fn func(domain.Session) (domain.Session, error),
	) (domain.Session, error)
	Delete(ctx context.Context, id string) error
}

type CartEventsProducer interface {
	ProduceCartEvent(context.Context, domain.CartEvent) error
}

type DemandReader interface {
	ProductDemand(ctx context.Context, productID int64) (int64, error)
}
