package handlers

import (
	"fmt"
	"time"

	"github.com/arzan03/cloudvault/internal/apperrors"
	"github.com/arzan03/cloudvault/internal/middleware"
	"github.com/arzan03/cloudvault/internal/models"
	"github.com/arzan03/cloudvault/internal/services"
	"github.com/gofiber/fiber/v2"
)

const dateOnly = "2006-01-02"

type LogHandler struct {
	shares *services.ShareService
	logs   *services.ActivityLogService
}

func NewLogHandler(shares *services.ShareService, logs *services.ActivityLogService) *LogHandler {
	return &LogHandler{shares: shares, logs: logs}
}

// logQuery reads page, limit, action, startDate and endDate. Dates are
// RFC 3339 or YYYY-MM-DD; a bare endDate covers that whole day.
func logQuery(c *fiber.Ctx) (services.LogQuery, error) {
	q := services.LogQuery{
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", services.DefaultPageLimit),
		Action: models.Action(c.Query("action")),
	}
	var err error
	if q.From, err = parseDate(c.Query("startDate"), "startDate", false); err != nil {
		return q, err
	}
	if q.To, err = parseDate(c.Query("endDate"), "endDate", true); err != nil {
		return q, err
	}
	return q, nil
}

func parseDate(raw, field string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateOnly, raw)
	if err != nil {
		return nil, apperrors.Validation("invalid %s", field)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// ShareLogs pages through one grant's activity. Owner only.
func (h *LogHandler) ShareLogs(c *fiber.Ctx) error {
	userID, err := middleware.CallerID(c)
	if err != nil {
		return err
	}
	shareID, err := parseID(c.Params("shareId"), "share ID")
	if err != nil {
		return err
	}
	q, err := logQuery(c)
	if err != nil {
		return err
	}
	if _, err := h.shares.GetOwnedGrant(c.UserContext(), userID, shareID); err != nil {
		return err
	}
	page, err := h.logs.QueryByGrant(c.UserContext(), shareID, q)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", page)
}

// MyActivity pages through the caller's own accesses.
func (h *LogHandler) MyActivity(c *fiber.Ctx) error {
	userID, err := middleware.CallerID(c)
	if err != nil {
		return err
	}
	page, err := h.logs.QueryByUser(c.UserContext(), userID, c.QueryInt("page", 1), c.QueryInt("limit", services.DefaultPageLimit))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", page)
}

// MySharesActivity pages through the activity of every grant the caller created.
func (h *LogHandler) MySharesActivity(c *fiber.Ctx) error {
	userID, err := middleware.CallerID(c)
	if err != nil {
		return err
	}
	q, err := logQuery(c)
	if err != nil {
		return err
	}
	ids, err := h.shares.OwnedGrantIDs(c.UserContext(), userID)
	if err != nil {
		return err
	}
	page, err := h.logs.QueryByGrants(c.UserContext(), ids, q)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", page)
}

func (h *LogHandler) AnalyticsOverview(c *fiber.Ctx) error {
	userID, err := middleware.CallerID(c)
	if err != nil {
		return err
	}
	stats, err := h.shares.OverviewAnalytics(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", stats)
}

// ExportLogs sends a grant's activity as a CSV attachment. Owner only.
func (h *LogHandler) ExportLogs(c *fiber.Ctx) error {
	userID, err := middleware.CallerID(c)
	if err != nil {
		return err
	}
	shareID, err := parseID(c.Params("shareId"), "share ID")
	if err != nil {
		return err
	}
	if _, err := h.shares.GetOwnedGrant(c.UserContext(), userID, shareID); err != nil {
		return err
	}
	data, err := h.logs.ExportCSV(c.UserContext(), shareID)
	if err != nil {
		return err
	}
	c.Attachment(fmt.Sprintf("share-%s-logs.csv", shareID.Hex()))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.Send(data)
}
