package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

var _ port.CatalogBrowser = (*Service)(nil)
var _ port.SessionKeeper = (*Service)(nil)

type Service struct {
	catalog  domain.Catalog
	sessions port.SessionStore
	events   port.CartEventsProducer
	demand   port.DemandReader
}

// New returns the storefront service.
//
// events and demand are optional and may be nil.
func New(
	catalog domain.Catalog,
	sessions port.SessionStore,
	events port.CartEventsProducer,
	demand port.DemandReader,
) Service {
	return Service{
		catalog:  catalog,
		sessions: sessions,
		events:   events,
		demand:   demand,
	}
}

func (s Service) Categories() []string {
	return s.catalog.Categories()
}

func (s Service) Products(query, category string) []domain.Product {
	return s.catalog.Visible(query, category)
}

func (s Service) ProductDemand(ctx context.Context, productID int64) (int64, error) {
	const op = "Service.ProductDemand"

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if _, ok := s.catalog.Product(productID); !ok {
		return 0, fmt.Errorf("%s: %w", op, domain.ErrProductNotFound)
	}

	if s.demand == nil {
		return 0, fmt.Errorf("%s: %w", op, domain.ErrDemandUnavailable)
	}

	units, err := s.demand.ProductDemand(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return units, nil
}

func (s Service) OpenSession(ctx context.Context) (string, domain.View, error) {
	const op = "Service.OpenSession"

	if err := ctx.Err(); err != nil {
		return "", domain.View{}, fmt.Errorf("%s: %w", op, err)
	}

	id := uuid.NewString()
	session := domain.NewSession()
	if err := s.sessions.Create(ctx, id, session); err != nil {
		return "", domain.View{}, fmt.Errorf("%s: %w", op, err)
	}

	slog.Debug("session opened", "op", op, "sessionID", id)
	return id, session.View(s.catalog), nil
}

func (s Service) Session(ctx context.Context, id string) (domain.View, error) {
	const op = "Service.Session"

	if err := ctx.Err(); err != nil {
		return domain.View{}, fmt.Errorf("%s: %w", op, err)
	}

	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return domain.View{}, fmt.Errorf("%s: %w", op, err)
	}
	return session.View(s.catalog), nil
}

func (s Service) CloseSession(ctx context.Context, id string) error {
	const op = "Service.CloseSession"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.sessions.Delete(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s Service) SetQuery(
	ctx context.Context, id, query string,
) (domain.View, error) {
	const op = "Service.SetQuery"

	v, err := s.dispatch(ctx, id, domain.QueryChanged{Query: query})
	if err != nil {
		return domain.View{}, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

func (s Service) SelectCategory(
	ctx context.Context, id, category string,
) (domain.View, error) {
	const op = "Service.SelectCategory"

	v, err := s.dispatch(ctx, id, domain.CategorySelected{Category: category})
	if err != nil {
		return domain.View{}, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

func (s Service) AddToCart(
	ctx context.Context, id string, productID int64,
) (domain.View, error) {
	const op = "Service.AddToCart"

	product, ok := s.catalog.Product(productID)
	if !ok {
		return domain.View{}, fmt.Errorf("%s: %w", op, domain.ErrProductNotFound)
	}

	v, err := s.dispatch(ctx, id, domain.ProductAdded{Product: product})
	if err != nil {
		return domain.View{}, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, domain.CartEvent{
		SessionID: id,
		Product:   product,
		Delta:     1,
	})
	return v, nil
}

func (s Service) RemoveFromCart(
	ctx context.Context, id string, productID int64,
) (domain.View, error) {
	const op = "Service.RemoveFromCart"

	if err := ctx.Err(); err != nil {
		return domain.View{}, fmt.Errorf("%s: %w", op, err)
	}

	var (
		removed domain.CartLine
		found   bool
	)
	session, err := s.sessions.Update(ctx, id,
		func(cur domain.Session) (domain.Session, error) {
			removed, found = cur.Cart.Line(productID)
			return cur.Apply(domain.ProductRemoved{ProductID: productID}), nil
		},
	)
	if err != nil {
		return domain.View{}, fmt.Errorf("%s: %w", op, err)
	}

	if found {
		s.publish(ctx, domain.CartEvent{
			SessionID: id,
			Product:   removed.Product,
			Delta:     -removed.Quantity,
		})
	}
	return session.View(s.catalog), nil
}

func (s Service) dispatch(
	ctx context.Context, id string, e domain.Event,
) (domain.View, error) {
	if err := ctx.Err(); err != nil {
		return domain.View{}, err
	}

	session, err := s.sessions.Update(ctx, id,
		func(cur domain.Session) (domain.Session, error) {
			return cur.Apply(e), nil
		},
	)
	if err != nil {
		return domain.View{}, err
	}
	return session.View(s.catalog), nil
}

func (s Service) publish(ctx context.Context, e domain.CartEvent) {
	const op = "Service.publish"

	if s.events == nil {
		return
	}

	e.OccurredAt = time.Now().UTC()
	if err := s.events.ProduceCartEvent(ctx, e); err != nil {
		slog.Warn(
			"failed to publish cart event",
			"op", op,
			"sessionID", e.SessionID,
			"productID", e.Product.ID,
			"err", err,
		)
	}
}
