package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/lovoo/goka"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/pkg/schema"
)

var _ port.DemandReader = (*DemandView)(nil)

// A cartEventCodec used for serde [schema.CartEventV1]
type cartEventCodec struct {
	serde Serde
}

func newCartEventCodec(s Serde) cartEventCodec {
	return cartEventCodec{s}
}

func (c cartEventCodec) Encode(v any) ([]byte, error) {
	const op = "cartEventCodec.Encode"
	if _, ok := v.(schema.CartEventV1); !ok {
		return nil, opErr(ErrInvalidValueType, op)
	}
	return c.serde.Encode(v)
}

func (c cartEventCodec) Decode(data []byte) (any, error) {
	const op = "cartEventCodec.Decode"
	var s schema.CartEventV1
	err := c.serde.Decode(data, &s)
	if err != nil {
		return nil, opErr(err, op)
	}
	return s, nil
}

// A demandValue is the number of units of one product held in carts.
type demandValue int64

// A demandCodec used for serde [demandValue]
type demandCodec struct{}

func (demandCodec) Encode(v any) ([]byte, error) {
	const op = "demandCodec.Encode"
	dv, ok := v.(demandValue)
	if !ok {
		return nil, opErr(ErrInvalidValueType, op)
	}
	return strconv.AppendInt(nil, int64(dv), 10), nil
}

func (demandCodec) Decode(data []byte) (any, error) {
	const op = "demandCodec.Decode"
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return nil, opErr(err, op)
	}
	return demandValue(n), nil
}

// applyDelta folds a cart change into the current demand.
// Demand never goes below zero, even if removals are replayed
// without their adds after a retention cut.
func applyDelta(cur any, delta int) demandValue {
	v, _ := cur.(demandValue)
	v += demandValue(delta)
	if v < 0 {
		return 0
	}
	return v
}

// A DemandProcessor folds the cart events stream into a group table
// of units held per product id.
type DemandProcessor struct {
	gp *goka.Processor
}

func NewDemandProcessor(
	seedBrokers []string,
	inputStream string,
	group string,
	cartEventSerde Serde,
	opts ...goka.ProcessorOption,
) (DemandProcessor, error) {
	const op = "NewDemandProcessor"

	var p DemandProcessor

	gg := goka.DefineGroup(goka.Group(group),
		goka.Input(
			goka.Stream(inputStream),
			newCartEventCodec(cartEventSerde),
			p.processFn,
		),
		goka.Persist(demandCodec{}),
	)

	opts = append([]goka.ProcessorOption{withNoLogProcOpt()}, opts...)
	gp, err := goka.NewProcessor(seedBrokers, gg, opts...)
	if err != nil {
		return DemandProcessor{}, opErr(err, op)
	}

	return DemandProcessor{gp}, nil
}

// Run starts the processor and blocks until it is ready or ctx is done.
// stopFn is called when the processor stops unexpectedly.
func (p DemandProcessor) Run(
	ctx context.Context, stopFn context.CancelFunc, wg *sync.WaitGroup,
) {
	const op = "DemandProcessor.Run"
	log := slog.With("op", op)

	defer wg.Done()

	go p.run(ctx, stopFn)

	log.Info("preparing...")
	p.waitForReady(ctx)
	log.Info("running")
}

func (p DemandProcessor) Close() {
	const op = "DemandProcessor.Close"
	log := slog.With("op", op)

	log.Info("closing processor...")
	p.gp.Stop()
	log.Info("processor is closed")
}

func (p DemandProcessor) run(ctx context.Context, stopFn context.CancelFunc) {
	const op = "DemandProcessor.run"
	log := slog.With("op", op)

	err := p.gp.Run(ctx)
	if err != nil {
		log.Error("stopped", "err", err)
		stopFn()
		return
	}
	log.Info("stopped")
}

func (p DemandProcessor) waitForReady(ctx context.Context) {
	const op = "DemandProcessor.waitForReady"
	log := slog.With("op", op)

	err := p.gp.WaitForReadyContext(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Error("fall down while preparing", "err", err)
	}
}

func (DemandProcessor) processFn(ctx goka.Context, msg any) {
	const op = "DemandProcessor.processFn"
	log := slog.With("op", op)

	event, ok := msg.(schema.CartEventV1)
	if !ok {
		log.Error("unexpected message type", "type", fmt.Sprintf("%T", msg))
		return
	}

	v := applyDelta(ctx.Value(), event.Delta)
	ctx.SetValue(v)
	log.Debug(
		"demand updated",
		"productID", event.ProductID,
		"delta", event.Delta,
		"units", int64(v),
	)
}

// A DemandView serves reads of the demand group table.
type DemandView struct {
	gv *goka.View
}

func NewDemandView(
	seedBrokers []string, group string, opts ...goka.ViewOption,
) (DemandView, error) {
	const op = "NewDemandView"

	opts = append([]goka.ViewOption{withNoLogViewOpt()}, opts...)
	gv, err := goka.NewView(
		seedBrokers,
		goka.GroupTable(goka.Group(group)),
		demandCodec{},
		opts...,
	)
	if err != nil {
		return DemandView{}, opErr(err, op)
	}

	return DemandView{gv}, nil
}

func (v DemandView) Run(ctx context.Context) {
	const op = "DemandView.Run"
	log := slog.With("op", op)

	err := v.gv.Run(ctx)
	if err != nil {
		log.Error("unexpected fail on run", "err", err)
		return
	}
	log.Info("stopped")
}

func (v DemandView) ProductDemand(ctx context.Context, productID int64) (int64, error) {
	const op = "DemandView.ProductDemand"

	if err := ctx.Err(); err != nil {
		return 0, opErr(err, op)
	}

	if !v.gv.Recovered() {
		return 0, opErr(domain.ErrDemandUnavailable, op)
	}

	value, err := v.gv.Get(string(productKey(productID)))
	if err != nil {
		return 0, opErr(err, op)
	}

	if value == nil {
		return 0, nil
	}

	dv, ok := value.(demandValue)
	if !ok {
		return 0, opErr(ErrInvalidValueType, op)
	}
	return int64(dv), nil
}
