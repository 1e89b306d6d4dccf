package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/scoopcreamy/ninjapos/internal/kitchen"
	"github.com/scoopcreamy/ninjapos/internal/order"
)

type KitchenBoard interface {
	Board(ctx context.Context) (kitchen.Board, error)
	Advance(ctx context.Context, orderID string, to order.KitchenState) (order.Order, error)
}

type KitchenHandler struct {
	board  KitchenBoard
	live   http.Handler
	logger *zap.Logger
}

// NewKitchenHandler serves the board over REST; live is the websocket
// endpoint that pushes board refreshes.
func NewKitchenHandler(board KitchenBoard, live http.Handler, logger *zap.Logger) *KitchenHandler {
	return &KitchenHandler{board: board, live: live, logger: logger}
}

func (h *KitchenHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "kitchen-service",
	})
}

func (h *KitchenHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	b, err := h.board.Board(ctx)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *KitchenHandler) Advance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		To order.KitchenState `json:"to"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	if !body.To.Valid() {
		writeError(w, r, http.StatusBadRequest, "unknown kitchen state")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	o, err := h.board.Advance(ctx, chi.URLParam(r, "orderId"), body.To)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *KitchenHandler) Live(w http.ResponseWriter, r *http.Request) {
	h.live.ServeHTTP(w, r)
}
