package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/cricket-match-service/internal/domain/match"
	"github.com/riskibarqy/cricket-match-service/internal/platform/logging"
	"github.com/riskibarqy/cricket-match-service/internal/usecase"
)

type matchReconciler interface {
	ReconcileWith(ctx context.Context, req usecase.ReconcileRequest) (usecase.ReconcileResult, error)
	Cached(ctx context.Context, matchID string) (match.Snapshot, bool, error)
}

type matchSyncer interface {
	Sync(ctx context.Context, input usecase.SyncInput) (usecase.SyncResult, error)
}

type Handler struct {
	reconciler matchReconciler
	syncer     matchSyncer
	logger     *logging.Logger
	validator  *validator.Validate
}

func NewHandler(reconciler matchReconciler, syncer matchSyncer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		reconciler: reconciler,
		syncer:     syncer,
		logger:     logger,
		validator:  validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}
