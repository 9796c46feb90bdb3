package api

import (
	"strconv"

	"coinsight/internal/domain/models"
	domrepo "coinsight/internal/domain/repository"
	xhttp "coinsight/pkg/http"
	xlogger "coinsight/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RulesHandler serves alert rule CRUD.
type RulesHandler struct {
	logger *xlogger.Logger
	store  domrepo.RuleStore
}

func NewRulesHandler(logger *xlogger.Logger, store domrepo.RuleStore) *RulesHandler {
	return &RulesHandler{logger: logger, store: store}
}

func (h *RulesHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/rules")
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("", h.Create)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

func (h *RulesHandler) List(c echo.Context) error {
	rules, err := h.store.List(c.Request().Context())
	if err != nil {
		h.logger.Error("list rules error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rules, int64(len(rules)))
}

func (h *RulesHandler) Get(c echo.Context) error {
	id, err := parseRuleID(c)
	if err != nil {
		return xhttp.BadRequestResponse(c, "invalid rule id")
	}
	rule, err := h.store.Get(c.Request().Context(), id)
	if err != nil {
		return xhttp.NotFoundResponse(c, err.Error())
	}
	return xhttp.SuccessResponse(c, rule)
}

func (h *RulesHandler) Create(c echo.Context) error {
	req := &models.RuleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rule, err := h.store.Put(c.Request().Context(), ruleFromRequest(0, req))
	if err != nil {
		h.logger.Error("create rule error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, rule)
}

func (h *RulesHandler) Update(c echo.Context) error {
	id, err := parseRuleID(c)
	if err != nil {
		return xhttp.BadRequestResponse(c, "invalid rule id")
	}
	if _, err := h.store.Get(c.Request().Context(), id); err != nil {
		return xhttp.NotFoundResponse(c, err.Error())
	}
	req := &models.RuleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rule, err := h.store.Put(c.Request().Context(), ruleFromRequest(id, req))
	if err != nil {
		h.logger.Error("update rule error", xlogger.Int64("id", id), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, rule)
}

func (h *RulesHandler) Delete(c echo.Context) error {
	id, err := parseRuleID(c)
	if err != nil {
		return xhttp.BadRequestResponse(c, "invalid rule id")
	}
	if err := h.store.Delete(c.Request().Context(), id); err != nil {
		return xhttp.NotFoundResponse(c, err.Error())
	}
	return xhttp.NoContentResponse(c)
}

func parseRuleID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

func ruleFromRequest(id int64, req *models.RuleRequest) models.AlertRule {
	return models.AlertRule{
		ID:                id,
		Name:              req.Name,
		IsActive:          req.IsActive,
		MinConfidence:     req.MinConfidence,
		MinStrength:       req.MinStrength,
		RequiredAgreement: req.RequiredAgreement,
		RequiredAction:    req.RequiredAction,
		Priority:          req.Priority,
	}
}
