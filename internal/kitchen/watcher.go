package kitchen

import (
	"context"

	"go.uber.org/zap"

	"github.com/scoopcreamy/ninjapos/internal/events"
)

type Broadcaster interface {
	Broadcast(ctx context.Context, msg BoardMessage) error
}

// Watcher turns the order change feed into board pushes. Each event only
// signals that something changed; the board is always re-read in full.
type Watcher struct {
	service *Service
	hub     Broadcaster
	logger  *zap.Logger
}

func NewWatcher(service *Service, hub Broadcaster, logger *zap.Logger) *Watcher {
	return &Watcher{service: service, hub: hub, logger: logger}
}

// Handle matches events.HandlerFunc.
func (w *Watcher) Handle(ctx context.Context, env events.EventEnvelope, payload events.OrderChanged) error {
	board, err := w.service.Board(ctx)
	if err != nil {
		return err
	}
	alert := payload.Change == events.ChangeCommitted
	if err := w.hub.Broadcast(ctx, NewBoardMessage(board, alert)); err != nil {
		return err
	}
	w.logger.Debug("board pushed",
		zap.String("event_id", env.EventID),
		zap.String("order_id", payload.OrderID),
		zap.String("change", string(payload.Change)),
		zap.Int("tickets", len(board.Tickets)))
	return nil
}
