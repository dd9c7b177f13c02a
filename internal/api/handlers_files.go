// handlers_files.go - Source file upload and management handlers
package api

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chainring/backend/internal/models"
	"github.com/chainring/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	store    storage.Store
	sessions SessionManager
}

// NewFileHandler creates a new file handler instance
func NewFileHandler(store storage.Store, sessions SessionManager) FileHandler {
	return &FileHandlerImpl{
		store:    store,
		sessions: sessions,
	}
}

// HandleUploadFile accepts a multipart upload in the "file" field
func (h *FileHandlerImpl) HandleUploadFile(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.save(file.Filename, src)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleUploadBase64 accepts a file as base64 JSON
func (h *FileHandlerImpl) HandleUploadBase64(c echo.Context) error {
	var req uploadFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	info, err := h.save(req.Name, bytes.NewReader(decoded))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, info)
}

// save stores an upload. Names ending in .gz are decompressed first and
// stored without the suffix.
func (h *FileHandlerImpl) save(name string, r io.Reader) (*models.FileInfo, error) {
	compressed := strings.EqualFold(filepath.Ext(name), ".gz")
	if compressed {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, NewBadRequestError("invalid gzip data", err)
		}
		defer zr.Close()
		name = strings.TrimSuffix(name, filepath.Ext(name))
		r = zr
	}

	info, err := h.store.Save(name, r)
	if err != nil {
		if compressed && (errors.Is(err, gzip.ErrChecksum) || errors.Is(err, gzip.ErrHeader) || errors.Is(err, io.ErrUnexpectedEOF)) {
			return nil, NewBadRequestError("invalid gzip data", err)
		}
		return nil, NewInternalError("failed to save file", err)
	}
	return info, nil
}

// HandleGetRecentFiles returns the most recently uploaded files
func (h *FileHandlerImpl) HandleGetRecentFiles(c echo.Context) error {
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return NewValidationError("limit")
		}
		limit = min(n, 200)
	}

	files, err := h.store.List(limit)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}
	return c.JSON(http.StatusOK, files)
}

// HandleGetFile returns metadata for a specific file
func (h *FileHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleDeleteFile deletes a file, its open drawings and its saved snapshot
func (h *FileHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.store.Delete(id); err != nil {
		return fromDomainError(err, "file", id)
	}
	if h.sessions != nil {
		h.sessions.CloseFile(id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleRenameFile updates the display name of a file
func (h *FileHandlerImpl) HandleRenameFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req renameFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Name == "" || filepath.Base(req.Name) != req.Name {
		return NewValidationError("name")
	}

	if _, err := h.store.Get(id); err != nil {
		return NewNotFoundError("file", id)
	}
	info, err := h.store.Rename(id, req.Name)
	if err != nil {
		return NewBadRequestError("rename failed", err)
	}
	return c.JSON(http.StatusOK, info)
}

// Request/Response types

type uploadFileRequest struct {
	Name string `json:"name"`
	Data string `json:"data"` // Base64-encoded content
}

func (r *uploadFileRequest) validate() error {
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type renameFileRequest struct {
	Name string `json:"name"`
}
