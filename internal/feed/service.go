package feed

import (
	"context"

	"main/internal/book"
	"main/internal/obs"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// BookStream is the market-data connection the service consumes.
type BookStream interface {
	StartWebsocket(ctx context.Context) error
	SubscribeBooks(ctx context.Context, instID string) error
	ObserveBooks(ctx context.Context, handler func(b OkxBooks)) (unsubscribe func())
}

// Service pipes books pushes into the engine and publishes each applied
// state. A desynchronized book triggers a resubscribe for a fresh snapshot.
type Service struct {
	pub    BookStream
	engine *book.Engine
	instID string
}

func NewService(pub BookStream, engine *book.Engine, instID string) *Service {
	return &Service{
		pub:    pub,
		engine: engine,
		instID: instID,
	}
}

// Start connects, subscribes and applies pushes until the context ends.
func (s *Service) Start(ctx context.Context) error {
	if err := s.pub.StartWebsocket(ctx); err != nil {
		return errors.Wrap(err, "start websocket")
	}
	if err := s.pub.SubscribeBooks(ctx, s.instID); err != nil {
		return errors.Wrap(err, "subscribe books")
	}

	unsubscribe := s.pub.ObserveBooks(ctx, func(b OkxBooks) {
		s.apply(ctx, b)
	})
	defer unsubscribe()

	<-ctx.Done()
	return nil
}

func (s *Service) apply(ctx context.Context, b OkxBooks) {
	for _, data := range b.Data {
		bids := ParseLevels(data.Bids)
		asks := ParseLevels(data.Asks)

		var err error
		switch b.Action {
		case "snapshot":
			err = s.engine.ApplySnapshot(bids, asks)
		case "update":
			err = s.engine.ApplyDelta(bids, asks)
		default:
			logs.Infof("books push with unknown action %q skipped", b.Action)
			continue
		}

		if err != nil {
			s.recover(ctx, err)
			continue
		}
		obs.IncBookUpdate(b.Action)

		if err := s.engine.Publish(ctx); err != nil {
			logs.Errorf("publish book state failed: %v", err)
			obs.IncPublishFailure()
			continue
		}
		obs.IncSnapshotPublished()
	}
}

// recover requests a fresh snapshot after a level-count violation. The
// engine refuses deltas until the snapshot lands.
func (s *Service) recover(ctx context.Context, err error) {
	obs.IncBookDesync()
	logs.Errorf("book desynchronized, resubscribing: %v", err)
	if subErr := s.pub.SubscribeBooks(ctx, s.instID); subErr != nil {
		logs.Errorf("resubscribe failed: %v", subErr)
	}
}
