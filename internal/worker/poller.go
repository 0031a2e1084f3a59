package worker

import (
	"context"
	"errors"
	"time"

	"github.com/richardliu001/smm-panel/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Outbox is the repository surface the relay needs.
type Outbox interface {
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error
	MarkOutboxProcessed(ctx context.Context, id uint64) error
}

// OrderSyncer settles processing orders against the provider.
type OrderSyncer interface {
	SyncProcessingOrders(ctx context.Context, limit int) (int, error)
}

// Poller relays outbox events to Kafka and keeps order statuses fresh.
type Poller struct {
	outbox Outbox
	orders OrderSyncer
	batch  int
	log    *zap.SugaredLogger
}

func NewPoller(outbox Outbox, orders OrderSyncer, batch int, log *zap.SugaredLogger) *Poller {
	return &Poller{outbox: outbox, orders: orders, batch: batch, log: log}
}

// RelayOnce publishes one batch of pending events. An event that fails to
// publish stays pending and is retried on the next pass.
func (p *Poller) RelayOnce(ctx context.Context) (int, error) {
	events, err := p.outbox.PollOutbox(ctx, p.batch)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, evt := range events {
		if err := p.outbox.PublishEvent(ctx, evt); err != nil {
			p.log.Errorw("publish event", "id", evt.ID, "type", evt.EventType, "err", err)
			continue
		}
		if err := p.outbox.MarkOutboxProcessed(ctx, evt.ID); err != nil {
			p.log.Errorw("mark event processed", "id", evt.ID, "err", err)
			continue
		}
		sent++
	}
	if sent > 0 {
		p.log.Debugw("outbox relayed", "sent", sent, "polled", len(events))
	}
	return sent, nil
}

func (p *Poller) SyncOnce(ctx context.Context) (int, error) {
	n, err := p.orders.SyncProcessingOrders(ctx, p.batch)
	if n > 0 {
		p.log.Infow("orders settled", "count", n)
	}
	return n, err
}

// Run drives both loops until ctx is cancelled.
func (p *Poller) Run(ctx context.Context, relayEvery, syncEvery time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.loop(gctx, "outbox relay", relayEvery, p.RelayOnce) })
	if p.orders != nil {
		g.Go(func() error { return p.loop(gctx, "order sync", syncEvery, p.SyncOnce) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Poller) loop(ctx context.Context, name string, every time.Duration, step func(context.Context) (int, error)) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	p.log.Infow("worker loop started", "loop", name, "interval", every)
	for {
		select {
		case <-ctx.Done():
			p.log.Infow("worker loop stopped", "loop", name)
			return ctx.Err()
		case <-ticker.C:
			if _, err := step(ctx); err != nil && ctx.Err() == nil {
				p.log.Errorw("worker step failed", "loop", name, "err", err)
			}
		}
	}
}
