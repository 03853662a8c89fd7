package handlers

import (
	"github.com/arzan03/cloudvault/internal/services"
	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	auth      *services.AuthService
	resources *services.ResourceService
}

func NewAdminHandler(auth *services.AuthService, resources *services.ResourceService) *AdminHandler {
	return &AdminHandler{auth: auth, resources: resources}
}

// ListUsers lists every registered user.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.auth.ListUsers(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", users)
}

// ListAllFiles lists every uploaded file.
func (h *AdminHandler) ListAllFiles(c *fiber.Ctx) error {
	files, err := h.resources.ListAllFiles(c.UserContext())
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", files)
}

// GetUserByID returns one user's profile.
func (h *AdminHandler) GetUserByID(c *fiber.Ctx) error {
	id, err := parseID(c.Params("userid"), "user ID")
	if err != nil {
		return err
	}
	user, err := h.auth.GetProfile(c.UserContext(), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", user)
}

// DeleteFile force-deletes any user's file.
func (h *AdminHandler) DeleteFile(c *fiber.Ctx) error {
	id, err := parseID(c.Params("file_id"), "file ID")
	if err != nil {
		return err
	}
	if err := h.resources.AdminDeleteFile(c.UserContext(), id); err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "File deleted successfully", nil)
}
