package handlers

import (
	"github.com/arzan03/cloudvault/internal/services"
	"github.com/gofiber/fiber/v2"
)

// UserHandler is the directory any signed-in user can search to find grant
// recipients. It only ever exposes id, name and email.
type UserHandler struct {
	auth *services.AuthService
}

func NewUserHandler(auth *services.AuthService) *UserHandler {
	return &UserHandler{auth: auth}
}

// SearchUsers matches ?search= against names and emails.
func (h *UserHandler) SearchUsers(c *fiber.Ctx) error {
	users, err := h.auth.SearchUsers(c.UserContext(), c.Query("search"))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", users)
}

func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"), "user ID")
	if err != nil {
		return err
	}
	user, err := h.auth.LookupUser(c.UserContext(), id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", user)
}
