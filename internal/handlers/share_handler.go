package handlers

import (
	"time"

	"github.com/arzan03/cloudvault/internal/apperrors"
	"github.com/arzan03/cloudvault/internal/middleware"
	"github.com/arzan03/cloudvault/internal/models"
	"github.com/arzan03/cloudvault/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ShareHandler struct {
	shares  *services.ShareService
	gateway *services.GatewayService
}

func NewShareHandler(shares *services.ShareService, gateway *services.GatewayService) *ShareHandler {
	return &ShareHandler{shares: shares, gateway: gateway}
}

// permissionsRequest overlays the supplied flags on the default permissions.
type permissionsRequest struct {
	Read     *bool `json:"read"`
	Download *bool `json:"download"`
}

type createShareRequest struct {
	ResourceID   string              `json:"resourceId" validate:"required"`
	ResourceType string              `json:"resourceType" validate:"required,oneof=file folder"`
	AllocatedTo  []string            `json:"allocatedTo" validate:"required,min=1"`
	Permissions  *permissionsRequest `json:"permissions"`
	ExpiresAt    *time.Time          `json:"expiresAt"`
	Days         int                 `json:"days" validate:"gte=0"`
	Hours        int                 `json:"hours" validate:"gte=0"`
	Minutes      int                 `json:"minutes" validate:"gte=0"`
}

func requestMeta(c *fiber.Ctx) services.RequestMeta {
	return services.RequestMeta{IP: c.IP(), UserAgent: c.Get(fiber.HeaderUserAgent)}
}

func (h *ShareHandler) CreateShare(c *fiber.Ctx) error {
	userID, err := middleware.CallerID(c)
	if err != nil {
		return err
	}
	var req createShareRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	resourceID, err := parseID(req.ResourceID, "resourceId")
	if err != nil {
		return err
	}
	allocatedTo := make([]primitive.ObjectID, len(req.AllocatedTo))
	for i, raw := range req.AllocatedTo {
		if allocatedTo[i], err = parseID(raw, "user ID in allocatedTo"); err != nil {
			return err
		}
	}
	var perms *models.Permissions
	if req.Permissions != nil {
		p := models.DefaultPermissions()
		if req.Permissions.Read != nil {
			p.Read = *req.Permissions.Read
		}
		if req.Permissions.Download != nil {
			p.Download = *req.Permissions.Download
		}
		perms = &p
	}

	summary, err := h.shares.CreateGrant(c.UserContext(), services.CreateGrantInput{
		OwnerID:      userID,
		ResourceID:   resourceID,
		ResourceType: models.ResourceType(req.ResourceType),
		AllocatedTo:  allocatedTo,
		Permissions:  perms,
		ExpiresAt:    req.ExpiresAt,
		Days:         req.Days,
		Hours:        req.Hours,
		Minutes:      req.Minutes,
		Meta:         requestMeta(c),
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, "Share created successfully", summary)
}

// gatewayShareID reads the grant id of an access route. An id that cannot
// name any grant is reported like an unknown one.
func gatewayShareID(c *fiber.Ctx) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Params("shareId"))
	if err != nil {
		return primitive.NilObjectID, apperrors.NotFound(services.ReasonNotFound)
	}
	return id, nil
}

func (h *ShareHandler) AccessShare(c *fiber.Ctx) error {
	userID, err := middleware.CallerID(c)
	if err != nil {
		return err
	}
	shareID, err := gatewayShareID(c)
	if err != nil {
		return err
	}
	res, err := h.gateway.AccessForView(c.UserContext(), shareID, userID, requestMeta(c))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", res)
}

func (h *ShareHandler) DownloadShare(c *fiber.Ctx) error {
	userID, err := middleware.CallerID(c)
	if err != nil {
		return err
	}
	shareID, err := gatewayShareID(c)
	if err != nil {
		return err
	}
	res, err := h.gateway.AccessForDownload(c.UserContext(), shareID, userID, requestMeta(c))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", res)
}

func (h *ShareHandler) MyShares(c *fiber.Ctx) error {
	userID, err := middleware.CallerID(c)
	if err != nil {
		return err
	}
	grants, err := h.shares.ListMyGrants(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", grants)
}

func (h *ShareHandler) SharedWithMe(c *fiber.Ctx) error {
	userID, err := middleware.CallerID(c)
	if err != nil {
		return err
	}
	grants, err := h.shares.ListSharedWithMe(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", grants)
}

// ValidateShare answers 200 for a valid grant and 403 otherwise, with the
// reason in the body. It never fails with another status.
func (h *ShareHandler) ValidateShare(c *fiber.Ctx) error {
	shareID, err := primitive.ObjectIDFromHex(c.Params("shareId"))
	result := services.GrantValidity{Reason: services.ReasonNotFound}
	if err == nil {
		result = h.shares.ValidateGrant(c.UserContext(), shareID)
	}
	if !result.Valid {
		return c.Status(fiber.StatusForbidden).JSON(envelope{Message: result.Reason, Data: result})
	}
	return ok(c, fiber.StatusOK, "", result)
}

func (h *ShareHandler) Analytics(c *fiber.Ctx) error {
	userID, err := middleware.CallerID(c)
	if err != nil {
		return err
	}
	shareID, err := parseID(c.Params("shareId"), "share ID")
	if err != nil {
		return err
	}
	stats, err := h.shares.Analytics(c.UserContext(), userID, shareID)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", stats)
}
