package bidding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/floroz/livebid/services/bidding-client/internal/domain/auctions"
	"github.com/floroz/livebid/services/bidding-client/internal/domain/bids"
)

var errFeedClosed = errors.New("change feed closed")

// reseed reads the full ledger and rebuilds the catalog and the highest bid
// projection. The tracker merges by amount, so readers never see a regression.
func (f *Facade) reseed(ctx context.Context) error {
	var (
		items  []auctions.Item
		ledger []bids.Bid
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = f.reader.ListItems(gctx)
		if err != nil {
			return fmt.Errorf("failed to list items: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		ledger, err = f.reader.ListBids(gctx)
		if err != nil {
			return fmt.Errorf("failed to list bids: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	f.catalog.replace(items, ledger)

	now := f.now()
	for _, a := range f.catalog.allAuctions() {
		f.watcher.Track(a, now)
	}
	f.tracker.Seed(items, ledger)
	// Edges crossed while disconnected fire now rather than on the next tick
	f.watcher.Observe(now)

	f.dispatch.publish(Change{Kind: ChangeResynced})
	return nil
}

func (f *Facade) newBackOff(ctx context.Context) backoff.BackOffContext {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0
	if f.cfg.ReconnectMaxInterval > 0 {
		policy.MaxInterval = f.cfg.ReconnectMaxInterval
	}
	return backoff.WithContext(policy, ctx)
}

// feedSubscription is one live change subscription. cancel releases it and
// whatever the feed holds for it (connection, queue, forwarding goroutine).
type feedSubscription struct {
	events <-chan bids.ChangeEvent
	cancel context.CancelFunc
}

func (f *Facade) subscribe(ctx context.Context) (*feedSubscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	events, err := f.feed.Subscribe(subCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return &feedSubscription{events: events, cancel: cancel}, nil
}

// connect subscribes and then reseeds, so nothing written during the reseed
// is lost. A failed reseed releases the subscription.
func (f *Facade) connect(ctx context.Context) (*feedSubscription, error) {
	sub, err := f.subscribe(ctx)
	if err != nil {
		return nil, err
	}
	if err := f.reseed(ctx); err != nil {
		sub.cancel()
		return nil, err
	}
	return sub, nil
}

// runFeed keeps the change subscription alive until ctx is cancelled. first,
// when set, is already seeded by Open. Every reconnection is followed by a
// full reseed so events missed while disconnected are recovered.
func (f *Facade) runFeed(ctx context.Context, first *feedSubscription) error {
	retry := f.newBackOff(ctx)
	sub := first

	for {
		var err error
		if sub == nil {
			sub, err = f.connect(ctx)
		}
		if err == nil {
			f.setSync(SyncConnected, nil)
			retry.Reset()
			err = f.consumeFeed(ctx, sub.events)
			sub.cancel()
			sub = nil
		}
		if ctx.Err() != nil {
			return nil
		}

		wait := retry.NextBackOff()
		if wait == backoff.Stop {
			return nil
		}
		f.logger.Warn("Ledger subscription lost, reconnecting", "error", err, "retry_in", wait)
		f.setSync(SyncReconnecting, err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (f *Facade) consumeFeed(ctx context.Context, events <-chan bids.ChangeEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return errFeedClosed
			}
			f.applyEvent(ev)
		}
	}
}

func (f *Facade) applyEvent(ev bids.ChangeEvent) {
	if !ev.Type.IsValid() {
		f.logger.Warn("Ignoring change with unknown type", "type", ev.Type, "item_id", ev.Bid.ItemID)
		return
	}
	f.catalog.appendHistory(ev.Bid)
	if h, changed := f.tracker.Apply(ev.Bid); changed {
		f.logger.Debug("Highest bid changed", "item_id", h.ItemID, "amount", h.Amount, "user_id", h.UserID)
	}
}

// runNotices forwards broadcast notices addressed to the current user.
// Notices never touch bidding state.
func (f *Facade) runNotices(ctx context.Context) error {
	retry := f.newBackOff(ctx)

	for {
		err := f.consumeNotices(ctx, retry.Reset)
		if ctx.Err() != nil {
			return nil
		}

		wait := retry.NextBackOff()
		if wait == backoff.Stop {
			return nil
		}
		f.logger.Warn("Notice subscription lost, reconnecting", "error", err, "retry_in", wait)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (f *Facade) consumeNotices(ctx context.Context, connected func()) error {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	notices, err := f.noticeFeed.Notices(subCtx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to notices: %w", err)
	}
	connected()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-notices:
			if !ok {
				return errFeedClosed
			}
			userID, _ := f.identity.CurrentUserID()
			if !n.IsAddressedTo(userID) {
				continue
			}
			n.Severity = n.Severity.Normalize()
			f.dispatch.publish(Change{Kind: ChangeNotice, Notice: &n})
		}
	}
}
