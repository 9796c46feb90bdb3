package api

import (
	"time"

	"coinsight/internal/domain/models"
	domrepo "coinsight/internal/domain/repository"
	"coinsight/internal/gateway"
	icache "coinsight/internal/service/cache"
	"coinsight/pkg/cache"
	xhttp "coinsight/pkg/http"
	xlogger "coinsight/pkg/logger"

	"github.com/labstack/echo/v4"
)

const historyCacheTTL = 10 * time.Second

// MarketHandler serves cached market data and persisted signal history.
type MarketHandler struct {
	logger    *xlogger.Logger
	gateway   *gateway.Gateway
	sink      domrepo.SignalSink
	respCache *icache.TTLCache
}

func NewMarketHandler(logger *xlogger.Logger, gw *gateway.Gateway, sink domrepo.SignalSink) *MarketHandler {
	return &MarketHandler{logger: logger, gateway: gw, sink: sink, respCache: icache.NewTTLCache()}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/ticker", h.Ticker)
	g.GET("/history", h.History)
}

// Ticker returns the cached 24h ticker for a symbol, starting a live
// ticker stream on first request.
func (h *MarketHandler) Ticker(c echo.Context) error {
	req := &models.TickerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if t, ok := h.gateway.ReadTicker(req.Symbol); ok {
		return xhttp.SuccessResponse(c, t)
	}
	if err := h.gateway.EnsureTicker(c.Request().Context(), req.Symbol); err != nil {
		h.logger.Error("ensure ticker error",
			xlogger.String("symbol", req.Symbol),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapPipelineError(err))
	}
	t, ok := h.gateway.ReadTicker(req.Symbol)
	if !ok {
		return xhttp.NotFoundResponse(c, "no ticker data for "+req.Symbol)
	}
	return xhttp.SuccessResponse(c, t)
}

// History returns the most recent persisted signals for a symbol.
func (h *MarketHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	key := cache.GenerateKeyWithParams("history", req.Symbol, req.Limit)
	if v, ok := h.respCache.Get(key); ok {
		rows := v.([]models.SignalRecord)
		return xhttp.ListResponse(c, rows, int64(len(rows)))
	}

	rows, err := h.sink.Recent(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		h.logger.Error("signal history error",
			xlogger.String("symbol", req.Symbol),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	h.respCache.Set(key, rows, historyCacheTTL)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}
