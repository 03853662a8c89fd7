package handlers

import (
	"github.com/arzan03/cloudvault/internal/middleware"
	"github.com/arzan03/cloudvault/internal/services"
	"github.com/gofiber/fiber/v2"
)

type FolderHandler struct {
	resources *services.ResourceService
}

func NewFolderHandler(resources *services.ResourceService) *FolderHandler {
	return &FolderHandler{resources: resources}
}

type createFolderRequest struct {
	Name     string `json:"name" validate:"required"`
	ParentID string `json:"parentId"`
	IsPublic bool   `json:"isPublic"`
}

func (h *FolderHandler) CreateFolder(c *fiber.Ctx) error {
	userID, err := middleware.CallerID(c)
	if err != nil {
		return err
	}
	var req createFolderRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	parentID, err := parseOptionalID(req.ParentID, "parent folder ID")
	if err != nil {
		return err
	}
	folder, err := h.resources.CreateFolder(c.UserContext(), userID, req.Name, parentID, req.IsPublic)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, "Folder created successfully", folder)
}

// ListFolders lists root folders, or the children of parentId.
func (h *FolderHandler) ListFolders(c *fiber.Ctx) error {
	userID, err := middleware.CallerID(c)
	if err != nil {
		return err
	}
	parentID, err := parseOptionalID(c.Query("parentId"), "parent folder ID")
	if err != nil {
		return err
	}
	folders, err := h.resources.ListFolders(c.UserContext(), userID, parentID)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", folders)
}

type updateFolderRequest struct {
	Name     *string `json:"name"`
	IsPublic *bool   `json:"isPublic"`
}

func (h *FolderHandler) UpdateFolder(c *fiber.Ctx) error {
	userID, err := middleware.CallerID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c.Params("id"), "folder ID")
	if err != nil {
		return err
	}
	var req updateFolderRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	folder, err := h.resources.UpdateFolder(c.UserContext(), userID, id, req.Name, req.IsPublic)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "Folder updated successfully", folder)
}

// DeleteFolder removes a folder. Anything inside it is only removed with
// ?deleteContents=true.
func (h *FolderHandler) DeleteFolder(c *fiber.Ctx) error {
	userID, err := middleware.CallerID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c.Params("id"), "folder ID")
	if err != nil {
		return err
	}
	res, err := h.resources.DeleteFolder(c.UserContext(), userID, id, c.QueryBool("deleteContents"))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "Folder deleted successfully", res)
}
