package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/riskibarqy/cricket-match-service/internal/usecase"
	"go.opentelemetry.io/otel/attribute"
)

func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetMatch")
	defer span.End()

	matchID := strings.TrimSpace(r.PathValue("matchID"))
	span.SetAttributes(attribute.String("match.id", matchID))

	includeRaw, err := parseBoolQuery(r, "include_raw")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	if h.reconciler == nil {
		writeError(ctx, w, fmt.Errorf("%w: match reconciler is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	result, err := h.reconciler.ReconcileWith(ctx, usecase.ReconcileRequest{MatchID: matchID})
	if err == nil {
		writeSuccess(ctx, w, http.StatusOK, snapshotToDTO(result.Snapshot, result.Outcome, includeRaw))
		return
	}

	if errors.Is(err, usecase.ErrConcurrencyExhausted) || errors.Is(err, usecase.ErrUpstreamUnavailable) {
		cached, exists, cacheErr := h.reconciler.Cached(ctx, matchID)
		if cacheErr == nil && exists {
			h.logger.WarnContext(ctx, "serving cached match after reconcile failure",
				"match_id", matchID,
				"version", cached.Version,
				"error", err,
			)
			writeSuccess(ctx, w, http.StatusOK, snapshotToDTO(cached, usecase.OutcomeStaleServed, includeRaw))
			return
		}
		if cacheErr != nil {
			h.logger.WarnContext(ctx, "read cached match failed", "match_id", matchID, "error", cacheErr)
		}
	}

	h.logger.WarnContext(ctx, "get match failed", "match_id", matchID, "error", err)
	writeError(ctx, w, err)
}

func parseBoolQuery(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", usecase.ErrInvalidInput, key)
	}
	return value, nil
}
