package controller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/dto"
)

type SweepUseCase interface {
	Sweep(ctx context.Context, req dto.SweepRequest, traceID string) (*dto.SweepResult, error)
}

type SweepController struct {
	responder
	useCase SweepUseCase
}

func NewSweepController(useCase SweepUseCase, logger *zap.Logger) *SweepController {
	return &SweepController{
		responder: responder{logger: logger},
		useCase:   useCase,
	}
}

// ReconcileHeld re-verifies held and stale pending orders. The body is
// optional.
func (c *SweepController) ReconcileHeld(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	var req dto.SweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logger.Warn("invalid JSON body", zap.Error(err))
		invalidBody(c.responder, w, traceID)
		return
	}

	result, err := c.useCase.Sweep(r.Context(), req, traceID)
	if err != nil {
		c.handleError(w, logger, traceID, "", err)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.SweepResponse{
		TraceID:   traceID,
		Examined:  result.Examined,
		Confirmed: result.Confirmed,
		Failed:    result.Failed,
		Pending:   result.Pending,
		Errors:    result.Errors,
		Timestamp: time.Now().UTC(),
	})
}
