package upload

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"

	"clinic-bff/internal/backend"
	"clinic-bff/internal/handler/http/proxy"
	"clinic-bff/internal/metrics"
	"clinic-bff/pkg/logger"
)

// FieldName is the multipart field carrying the identification document.
const FieldName = "file"

// multipartOverhead allows for boundaries and the other form fields around the file.
const multipartOverhead = 64 << 10

// DefaultAllowedTypes are accepted when no list is configured.
var DefaultAllowedTypes = []string{"image/jpeg", "image/png", "application/pdf"}

// Rejection reasons, used as the metric label.
const (
	reasonMalformed = "malformed"
	reasonMissing   = "missing_file"
	reasonEmpty     = "empty"
	reasonTooLarge  = "too_large"
	reasonType      = "type"
	reasonExtension = "extension"
)

type rejection struct {
	status int
	reason string
	msg    string
}

func (r *rejection) Error() string { return r.msg }

// UploadHandler checks identification document uploads and relays them to the backend.
type UploadHandler struct {
	backend *backend.Client
	maxSize int64
	allowed []string
}

// NewUploadHandler creates an UploadHandler. maxSize is the file size limit in bytes.
func NewUploadHandler(client *backend.Client, maxSize int64, allowed []string) *UploadHandler {
	if len(allowed) == 0 {
		allowed = DefaultAllowedTypes
	}
	return &UploadHandler{backend: client, maxSize: maxSize, allowed: allowed}
}

// HandleUpload handles POST /api/uploads
// The original multipart body is forwarded byte-for-byte once the file passes the checks.
func (h *UploadHandler) HandleUpload(c echo.Context) error {
	contentType := c.Request().Header.Get(echo.HeaderContentType)

	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, h.maxSize+multipartOverhead+1))
	if err != nil {
		logger.Warn("Failed to read upload body: %v", err)
		return h.reject(c, &rejection{http.StatusBadRequest, reasonMalformed, "could not read upload"})
	}
	if int64(len(raw)) > h.maxSize+multipartOverhead {
		return h.reject(c, &rejection{http.StatusRequestEntityTooLarge, reasonTooLarge, "file too large"})
	}

	detected, err := h.inspect(contentType, raw)
	if err != nil {
		var rej *rejection
		if errors.As(err, &rej) {
			return h.reject(c, rej)
		}
		return err
	}
	logger.Debug("Upload accepted: %s, %d bytes", detected, len(raw))

	header := proxy.Incoming(c)
	header.Set(echo.HeaderContentType, contentType)
	return proxy.Forward(c, h.backend, backend.Call{
		Method: http.MethodPost,
		Path:   backend.PathUploads,
		Header: header,
		Body:   raw,
	})
}

// inspect finds the file part in raw and returns its detected MIME type.
func (h *UploadHandler) inspect(contentType string, raw []byte) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "multipart/form-data" || params["boundary"] == "" {
		return "", &rejection{http.StatusBadRequest, reasonMalformed, "expected multipart/form-data"}
	}

	mr := multipart.NewReader(bytes.NewReader(raw), params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return "", &rejection{http.StatusBadRequest, reasonMissing, "missing file field"}
		}
		if err != nil {
			return "", &rejection{http.StatusBadRequest, reasonMalformed, "malformed multipart body"}
		}
		if part.FormName() != FieldName {
			continue
		}
		return h.check(part)
	}
}

func (h *UploadHandler) check(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, h.maxSize+1))
	if err != nil {
		return "", &rejection{http.StatusBadRequest, reasonMalformed, "malformed multipart body"}
	}
	switch {
	case len(data) == 0:
		return "", &rejection{http.StatusBadRequest, reasonEmpty, "file is empty"}
	case int64(len(data)) > h.maxSize:
		return "", &rejection{http.StatusRequestEntityTooLarge, reasonTooLarge, "file too large"}
	}

	detected := mimetype.Detect(data)
	if !allowedType(detected, h.allowed) {
		return "", &rejection{http.StatusBadRequest, reasonType, "unsupported file type " + detected.String()}
	}
	if !extensionMatches(part.FileName(), detected) {
		return "", &rejection{http.StatusBadRequest, reasonExtension, "file extension does not match its content"}
	}
	return detected.String(), nil
}

func (h *UploadHandler) reject(c echo.Context, rej *rejection) error {
	metrics.UploadRejectedCounter.WithLabelValues(rej.reason).Inc()
	return c.JSON(rej.status, proxy.ErrorResponse{Error: rej.msg})
}

func allowedType(detected *mimetype.MIME, allowed []string) bool {
	for _, a := range allowed {
		if detected.Is(a) {
			return true
		}
	}
	return false
}

// extensionMatches accepts the sniffed type's canonical extension or any
// extension the mime table maps to the same type.
func extensionMatches(filename string, detected *mimetype.MIME) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return false
	}
	if ext == detected.Extension() {
		return true
	}
	byExt, _, err := mime.ParseMediaType(mime.TypeByExtension(ext))
	if err != nil {
		return false
	}
	return mimetype.EqualsAny(byExt, detected.String())
}
