package handlers

import (
	"strconv"

	"github.com/arzan03/cloudvault/internal/apperrors"
	"github.com/arzan03/cloudvault/internal/middleware"
	"github.com/arzan03/cloudvault/internal/services"
	"github.com/gofiber/fiber/v2"
)

type FileHandler struct {
	resources *services.ResourceService
}

func NewFileHandler(resources *services.ResourceService) *FileHandler {
	return &FileHandler{resources: resources}
}

// UploadFile handles multipart uploads. The file travels in the "file" field;
// "folderId" and "isPublic" are optional.
func (h *FileHandler) UploadFile(c *fiber.Ctx) error {
	userID, err := middleware.CallerID(c)
	if err != nil {
		return err
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperrors.Validation("file is required")
	}
	folderID, err := parseOptionalID(c.FormValue("folderId"), "folder ID")
	if err != nil {
		return err
	}
	isPublic, _ := strconv.ParseBool(c.FormValue("isPublic"))

	body, err := fileHeader.Open()
	if err != nil {
		return apperrors.Service("failed to open uploaded file", err)
	}
	defer body.Close()

	file, err := h.resources.UploadFile(c.UserContext(), userID, services.UploadInput{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get(fiber.HeaderContentType),
		Size:        fileHeader.Size,
		Body:        body,
		FolderID:    folderID,
		IsPublic:    isPublic,
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, "File uploaded successfully", file)
}

// ListFiles lists the caller's files, optionally those of one folder.
func (h *FileHandler) ListFiles(c *fiber.Ctx) error {
	userID, err := middleware.CallerID(c)
	if err != nil {
		return err
	}
	folderID, err := parseOptionalID(c.Query("folderId"), "folder ID")
	if err != nil {
		return err
	}
	files, err := h.resources.ListFiles(c.UserContext(), userID, folderID)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", files)
}

func (h *FileHandler) GetFile(c *fiber.Ctx) error {
	userID, err := middleware.CallerID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c.Params("id"), "file ID")
	if err != nil {
		return err
	}
	file, err := h.resources.GetFile(c.UserContext(), userID, id)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", file)
}

type updateFileRequest struct {
	OriginalName *string `json:"originalName"`
	IsPublic     *bool   `json:"isPublic"`
}

func (h *FileHandler) UpdateFile(c *fiber.Ctx) error {
	userID, err := middleware.CallerID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c.Params("id"), "file ID")
	if err != nil {
		return err
	}
	var req updateFileRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	file, err := h.resources.UpdateFile(c.UserContext(), userID, id, req.OriginalName, req.IsPublic)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "File metadata updated successfully", file)
}

// FileStats reports the caller's storage usage.
func (h *FileHandler) FileStats(c *fiber.Ctx) error {
	userID, err := middleware.CallerID(c)
	if err != nil {
		return err
	}
	stats, err := h.resources.FileStats(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", stats)
}

func (h *FileHandler) DeleteFile(c *fiber.Ctx) error {
	userID, err := middleware.CallerID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c.Params("id"), "file ID")
	if err != nil {
		return err
	}
	if err := h.resources.DeleteFile(c.UserContext(), userID, id); err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "File deleted successfully", nil)
}
