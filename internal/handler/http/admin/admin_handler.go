package admin

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"clinic-bff/internal/backend"
	"clinic-bff/internal/handler/http/proxy"
	"clinic-bff/internal/lockout"
	"clinic-bff/internal/metrics"
	"clinic-bff/internal/validation"
	"clinic-bff/pkg/logger"
)

// listParams are the query keys relayed on admin list routes.
var listParams = []string{"page", "limit", "status", "search"}

// PasskeyResponse is the body of a passkey check that was not locked out.
type PasskeyResponse struct {
	Valid             bool `json:"valid"`
	RemainingAttempts *int `json:"remainingAttempts,omitempty"`
}

// AdminHandler serves the admin console routes.
// Constructor injection: backend client, lockout guard and configured passkey
type AdminHandler struct {
	backend *backend.Client
	guard   *lockout.Guard
	passkey string
}

// NewAdminHandler creates an AdminHandler. An empty passkey disables the passkey route.
func NewAdminHandler(client *backend.Client, guard *lockout.Guard, passkey string) *AdminHandler {
	return &AdminHandler{backend: client, guard: guard, passkey: passkey}
}

// HandlePasskey handles POST /api/admin/passkey
// Every comparison consumes an attempt first; once a client IP has used them
// all it gets 429 until the window expires.
func (h *AdminHandler) HandlePasskey(c echo.Context) error {
	if h.passkey == "" {
		return c.JSON(http.StatusServiceUnavailable, proxy.ErrorResponse{Error: "admin access is not configured"})
	}

	ctx := c.Request().Context()
	key := c.RealIP()

	st, err := h.guard.Check(ctx, key)
	if err != nil {
		logger.Error("Passkey check unavailable: %v", err)
		return c.JSON(http.StatusServiceUnavailable, proxy.ErrorResponse{Error: "try again later"})
	}
	if st.Locked {
		metrics.PasskeyLockoutsCounter.Inc()
		return tooManyAttempts(c, st.RetryAfter)
	}

	var form validation.PasskeyForm
	if _, ok, err := proxy.Decode(c, &form); !ok {
		return err
	}

	st, err = h.guard.Reserve(ctx, key)
	if err != nil {
		logger.Error("Failed to reserve passkey attempt for %s: %v", key, err)
		return c.JSON(http.StatusServiceUnavailable, proxy.ErrorResponse{Error: "try again later"})
	}
	if st.Locked {
		metrics.PasskeyLockoutsCounter.Inc()
		return tooManyAttempts(c, st.RetryAfter)
	}

	if subtle.ConstantTimeCompare([]byte(form.Passkey), []byte(h.passkey)) == 1 {
		if err := h.guard.Succeed(ctx, key); err != nil {
			logger.Warn("Failed to clear passkey failures for %s: %v", key, err)
		}
		return c.JSON(http.StatusOK, PasskeyResponse{Valid: true})
	}

	metrics.PasskeyFailuresCounter.Inc()
	if st.Remaining == 0 {
		metrics.PasskeyLockoutsCounter.Inc()
		logger.Warn("Admin passkey locked for %s after %d failures", key, h.guard.MaxAttempts())
		return tooManyAttempts(c, st.RetryAfter)
	}
	remaining := st.Remaining
	return c.JSON(http.StatusUnauthorized, PasskeyResponse{Valid: false, RemainingAttempts: &remaining})
}

// HandleListAppointments handles GET /api/admin/appointments
func (h *AdminHandler) HandleListAppointments(c echo.Context) error {
	return proxy.Forward(c, h.backend, backend.Call{
		Method: http.MethodGet,
		Path:   backend.PathAppointments,
		Query:  pickQuery(c.QueryParams()),
	})
}

// HandleUpdateAppointment handles PATCH /api/admin/appointments/:id
// Used to schedule or cancel an appointment.
func (h *AdminHandler) HandleUpdateAppointment(c echo.Context) error {
	id, ok, err := proxy.PathID(c)
	if !ok {
		return err
	}
	var form validation.UpdateAppointmentForm
	body, ok, err := proxy.Decode(c, &form)
	if !ok {
		return err
	}
	return proxy.Forward(c, h.backend, backend.Call{
		Method: http.MethodPatch,
		Path:   backend.PathAppointments + "/" + id,
		Body:   body,
	})
}

// HandleListUsers handles GET /api/admin/users
func (h *AdminHandler) HandleListUsers(c echo.Context) error {
	return proxy.Forward(c, h.backend, backend.Call{
		Method: http.MethodGet,
		Path:   backend.PathUsers,
		Query:  pickQuery(c.QueryParams()),
	})
}

// HandleDeleteUser handles DELETE /api/admin/users/:id
func (h *AdminHandler) HandleDeleteUser(c echo.Context) error {
	id, ok, err := proxy.PathID(c)
	if !ok {
		return err
	}
	return proxy.Forward(c, h.backend, backend.Call{
		Method: http.MethodDelete,
		Path:   backend.PathUsers + "/" + id,
	})
}

func tooManyAttempts(c echo.Context, retryAfter time.Duration) error {
	secs := int((retryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
	return c.JSON(http.StatusTooManyRequests, proxy.ErrorResponse{Error: "too many attempts"})
}

func pickQuery(in url.Values) url.Values {
	out := make(url.Values, len(listParams))
	for _, k := range listParams {
		if v := in.Get(k); v != "" {
			out.Set(k, v)
		}
	}
	return out
}
