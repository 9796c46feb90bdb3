// Package api exposes the pipeline over HTTP: signal and consensus
// queries, batch evaluation, tickers, signal history and alert rules.
package api

import (
	"errors"
	"net/http"

	"coinsight/internal/domain/models"
	domrepo "coinsight/internal/domain/repository"
	"coinsight/internal/orchestrator"
	xhttp "coinsight/pkg/http"
	xlogger "coinsight/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SignalsHandler serves the signal pipeline endpoints.
type SignalsHandler struct {
	logger *xlogger.Logger
	orch   *orchestrator.Orchestrator
}

func NewSignalsHandler(logger *xlogger.Logger, orch *orchestrator.Orchestrator) *SignalsHandler {
	return &SignalsHandler{logger: logger, orch: orch}
}

func (h *SignalsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signal", h.Signal)
	g.GET("/consensus", h.Consensus)
	g.POST("/batch", h.Batch)
}

// Signal runs the full pipeline for one symbol and timeframe. A symbol
// with no cached data yet yields a zero-signal success body.
func (h *SignalsHandler) Signal(c echo.Context) error {
	req := &models.SignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.Timeframe)

	res, err := h.orch.ProcessSignal(c.Request().Context(), req.Symbol, tf)
	if err != nil {
		h.logger.Error("process signal error",
			xlogger.String("symbol", req.Symbol),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapPipelineError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

// Consensus computes a multi-timeframe consensus for one symbol.
func (h *SignalsHandler) Consensus(c echo.Context) error {
	req := &models.ConsensusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var tfs []domrepo.Timeframe
	for _, tf := range req.Timeframes {
		tfs = append(tfs, domrepo.NormalizeTimeframe(tf))
	}

	consensus, notifications, err := h.orch.GenerateConsensus(c.Request().Context(), req.Symbol, tfs)
	if err != nil {
		h.logger.Error("consensus error",
			xlogger.String("symbol", req.Symbol),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapPipelineError(err))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"consensus":     consensus,
		"notifications": notifications,
	})
}

// Batch evaluates many symbols on one timeframe with bounded concurrency.
// Per-symbol failures are reported in the body, never as an HTTP error.
func (h *SignalsHandler) Batch(c echo.Context) error {
	req := &models.BatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.Timeframe)

	res := h.orch.ProcessBatch(c.Request().Context(), req.Symbols, tf)
	return xhttp.SuccessResponse(c, res)
}

// mapPipelineError translates domain errors into AppErrors with the
// right HTTP status. Gateway failures are retryable, so 503.
func mapPipelineError(err error) error {
	var gwErr *models.GatewayError
	switch {
	case errors.As(err, &gwErr):
		return xhttp.NewAppError("ERR_GATEWAY", "", gwErr.Error(), http.StatusServiceUnavailable).WithError(err)
	case errors.Is(err, models.ErrRateLimited):
		return xhttp.NewAppError("ERR_RATE_LIMITED", "", "upstream rate limited, retry later", http.StatusServiceUnavailable).WithError(err)
	case errors.Is(err, models.ErrAllTimeframesFailed):
		return xhttp.NewAppError("ERR_NO_CONSENSUS", "", "no timeframe produced a usable signal", http.StatusUnprocessableEntity).WithError(err)
	case errors.Is(err, models.ErrInsufficientData):
		return xhttp.NewAppError("ERR_INSUFFICIENT_DATA", "", "not enough candles yet, retry later", http.StatusUnprocessableEntity).WithError(err)
	default:
		return err
	}
}
