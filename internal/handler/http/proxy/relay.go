// Package proxy holds the helpers shared by the route handlers that relay
// browser calls to the backend.
package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"clinic-bff/internal/backend"
	"clinic-bff/internal/fetcher"
	"clinic-bff/internal/validation"
	"clinic-bff/pkg/logger"
)

// ErrorResponse is the JSON body of every error the gateway produces itself.
type ErrorResponse struct {
	Error  string                 `json:"error"`
	Fields validation.FieldErrors `json:"fields,omitempty"`
}

// Incoming returns the request headers to hand to backend.Call, with the
// request ID assigned by the RequestID middleware.
func Incoming(c echo.Context) http.Header {
	h := c.Request().Header.Clone()
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		h.Set(echo.HeaderXRequestID, id)
	}
	return h
}

// Relay copies an upstream response to the client and closes its body.
func Relay(c echo.Context, resp *http.Response) error {
	defer resp.Body.Close()

	if fetcher.IsFallback(resp) {
		logger.Warn("Relaying empty fallback for %s %s", c.Request().Method, c.Request().URL.Path)
	}

	// Copy response headers from upstream, but skip problematic headers
	for k, values := range resp.Header {
		lowerKey := strings.ToLower(k)
		switch {
		case strings.HasPrefix(lowerKey, "access-control-"): // CORS headers (Echo handles these)
			continue
		case lowerKey == "vary": // Can conflict with CORS Vary header
			continue
		case lowerKey == "content-length": // Let Echo calculate this
			continue
		case isHopByHop(lowerKey):
			continue
		case lowerKey == "set-cookie": // Backend cookies are not scoped to this origin
			continue
		}
		for _, v := range values {
			c.Response().Header().Add(k, v)
		}
	}
	c.Response().WriteHeader(resp.StatusCode)
	_, err := io.Copy(c.Response(), resp.Body)
	if err != nil {
		logger.Warn("Relay of %s %s interrupted: %v", c.Request().Method, c.Request().URL.Path, err)
	}
	return nil
}

// Decode binds the JSON body into form and validates it with the Echo
// validator. On failure it writes the 400 response and returns ok=false.
// On success it returns form re-encoded, so only declared fields reach the backend.
func Decode(c echo.Context, form interface{}) (body []byte, ok bool, err error) {
	if err := c.Bind(form); err != nil {
		return nil, false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	if err := c.Validate(form); err != nil {
		if fe, isFields := validation.Fields(err); isFields {
			return nil, false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: fe})
		}
		logger.Error("Validator failed for %T: %v", form, err)
		return nil, false, c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}

	body, err = json.Marshal(form)
	if err != nil {
		logger.Error("Failed to encode %T: %v", form, err)
		return nil, false, c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
	return body, true, nil
}

// PathID validates the :id route parameter. On failure it writes the 400
// response and returns ok=false.
func PathID(c echo.Context) (id string, ok bool, err error) {
	p := validation.IDParam{ID: c.Param("id")}
	if err := c.Validate(p); err != nil {
		fe, _ := validation.Fields(err)
		return "", false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id", Fields: fe})
	}
	return p.ID, true, nil
}

// Forward relays one backend call for c.
func Forward(c echo.Context, client *backend.Client, call backend.Call) error {
	if call.Header == nil {
		call.Header = Incoming(c)
	}
	return Relay(c, client.Forward(c.Request().Context(), call))
}

// BadRequest writes a 400 with msg.
func BadRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// isHopByHop reports headers that must not be forwarded per RFC 7230.
func isHopByHop(lowerName string) bool {
	switch lowerName {
	case "connection", "keep-alive", "proxy-authenticate", "proxy-authorization", "te", "trailer", "transfer-encoding", "upgrade", "proxy-connection":
		return true
	default:
		return false
	}
}
