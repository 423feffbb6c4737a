package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/go-kit/log"

	"storefront/internal/models"
)

type CatalogService interface {
	Kind() models.RecordKind
	List(ctx context.Context) ([]models.CatalogRecord, error)
	Get(ctx context.Context, id string) (*models.CatalogRecord, error)
	Create(ctx context.Context, fields map[string]interface{}, file *models.FileUpload) (*models.CatalogRecord, error)
	Update(ctx context.Context, id string, fields map[string]interface{}, file *models.FileUpload) (*models.CatalogRecord, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status string) (*models.CatalogRecord, error)
	BulkUpdateStatus(ctx context.Context, ids []string, status string) (models.BulkResult, error)
}

// CatalogHandler serves products, categories and sliders alike; the record
// kind of the service decides collection, file field and required inputs.
type CatalogHandler struct {
	svc    CatalogService
	kind   models.RecordKind
	logger log.Logger
}

func NewCatalogHandler(svc CatalogService, logger log.Logger) *CatalogHandler {
	kind := svc.Kind()
	return &CatalogHandler{svc: svc, kind: kind, logger: log.With(logger, "kind", kind.Name)}
}

type statusRequest struct {
	Status string `json:"status"`
}

type bulkStatusRequest struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status"`
}

func (h *CatalogHandler) List(c *gin.Context) {
	records, err := h.svc.List(c.Request.Context())
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *CatalogHandler) Get(c *gin.Context) {
	record, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *CatalogHandler) Create(c *gin.Context) {
	fields, file, err := h.readInput(c)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	defer closeUpload(file)

	record, err := h.svc.Create(c.Request.Context(), fields, file)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *CatalogHandler) Update(c *gin.Context) {
	fields, file, err := h.readInput(c)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	defer closeUpload(file)

	record, err := h.svc.Update(c.Request.Context(), c.Param("id"), fields, file)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *CatalogHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": h.title() + " deleted successfully"})
}

func (h *CatalogHandler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "Invalid input")
		return
	}

	record, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *CatalogHandler) BulkUpdateStatus(c *gin.Context) {
	var req bulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "Invalid input")
		return
	}

	res, err := h.svc.BulkUpdateStatus(c.Request.Context(), req.IDs, req.Status)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *CatalogHandler) handleError(c *gin.Context, err error) {
	if errors.Is(err, models.ErrNotFound) {
		respondWithError(c, http.StatusNotFound, h.title()+" not found")
		return
	}
	handleServiceError(c, h.logger, err)
}

func (h *CatalogHandler) title() string {
	if h.kind.Name == "" {
		return "Record"
	}
	return strings.ToUpper(h.kind.Name[:1]) + h.kind.Name[1:]
}

func closeUpload(file *models.FileUpload) {
	if file == nil {
		return
	}
	if closer, ok := file.Body.(io.Closer); ok {
		_ = closer.Close()
	}
}

// readInput accepts multipart forms (the usual case), urlencoded forms and JSON bodies.
func (h *CatalogHandler) readInput(c *gin.Context) (map[string]interface{}, *models.FileUpload, error) {
	contentType := c.ContentType()
	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		return h.readMultipart(c)
	case contentType == "application/json":
		fields := map[string]interface{}{}
		if err := c.ShouldBindJSON(&fields); err != nil {
			if isTooLarge(err) {
				return nil, nil, models.ErrPayloadTooLarge
			}
			return nil, nil, fmt.Errorf("%w: invalid JSON body", models.ErrValidation)
		}
		return fields, nil, nil
	case contentType == "application/x-www-form-urlencoded":
		if err := c.Request.ParseForm(); err != nil {
			if isTooLarge(err) {
				return nil, nil, models.ErrPayloadTooLarge
			}
			return nil, nil, fmt.Errorf("%w: invalid form body", models.ErrValidation)
		}
		return firstValues(c.Request.PostForm), nil, nil
	default:
		return map[string]interface{}{}, nil, nil
	}
}

func (h *CatalogHandler) readMultipart(c *gin.Context) (map[string]interface{}, *models.FileUpload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if isTooLarge(err) {
			return nil, nil, models.ErrPayloadTooLarge
		}
		return nil, nil, fmt.Errorf("%w: invalid multipart body", models.ErrValidation)
	}

	fields := firstValues(form.Value)

	headers := form.File[h.kind.FileField]
	if len(headers) == 0 {
		return fields, nil, nil
	}
	header := headers[0]

	file, err := header.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: unreadable file part", models.ErrValidation)
	}

	contentType, err := detectContentType(file, header.Header.Get("Content-Type"))
	if err != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("%w: unreadable file part", models.ErrValidation)
	}

	return fields, &models.FileUpload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	}, nil
}

// detectContentType trusts the declared type unless it is missing or generic,
// in which case the first bytes decide. The file is rewound afterwards.
func detectContentType(file multipart.File, declared string) (string, error) {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}
	mt, err := mimetype.DetectReader(file)
	if err != nil {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mt.String(), nil
}

func firstValues(values map[string][]string) map[string]interface{} {
	fields := make(map[string]interface{}, len(values))
	for k, v := range values {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || errors.Is(err, multipart.ErrMessageTooLarge)
}
