package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/streetfix/resolve-service/internal/api/dto"
	"github.com/streetfix/resolve-service/internal/media"
	apperrors "github.com/streetfix/resolve-service/pkg/util/errorutil"
)

// UploadSigner issues presigned uploads.
type UploadSigner interface {
	Presign(ctx context.Context, userID string, purpose media.Purpose, contentType string) (*media.Upload, error)
}

// MediaHandler hands out upload URLs for report media.
type MediaHandler struct {
	signer UploadSigner
}

// NewMediaHandler constructs handler. A nil signer disables uploads.
func NewMediaHandler(signer UploadSigner) *MediaHandler {
	return &MediaHandler{signer: signer}
}

// CreateUpload POST /media/uploads.
func (h *MediaHandler) CreateUpload(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return err
	}
	if h.signer == nil {
		return apperrors.NewDomainError("STORAGE_UNAVAILABLE", "media uploads are not configured", http.StatusServiceUnavailable, nil)
	}
	var req dto.UploadRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	upload, err := h.signer.Presign(c.UserContext(), principal.ID(), media.Purpose(req.Purpose), req.ContentType)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": upload})
}
