package patient

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"clinic-bff/internal/backend"
	"clinic-bff/internal/handler/http/proxy"
	"clinic-bff/internal/validation"
)

// PatientHandler serves the public registration and booking routes.
type PatientHandler struct {
	backend *backend.Client
}

// NewPatientHandler creates a PatientHandler relaying to client.
func NewPatientHandler(client *backend.Client) *PatientHandler {
	return &PatientHandler{backend: client}
}

// HandleRegister handles POST /api/patients
func (h *PatientHandler) HandleRegister(c echo.Context) error {
	var form validation.RegisterPatientForm
	body, ok, err := proxy.Decode(c, &form)
	if !ok {
		return err
	}
	return proxy.Forward(c, h.backend, backend.Call{
		Method: http.MethodPost,
		Path:   backend.PathPatients,
		Body:   body,
	})
}

// HandleBook handles POST /api/appointments
func (h *PatientHandler) HandleBook(c echo.Context) error {
	var form validation.BookAppointmentForm
	body, ok, err := proxy.Decode(c, &form)
	if !ok {
		return err
	}
	return proxy.Forward(c, h.backend, backend.Call{
		Method: http.MethodPost,
		Path:   backend.PathAppointments,
		Body:   body,
	})
}

// HandleStatus handles GET /api/appointments/:id/status
// The success page polls this; while the backend is rate limiting it the
// fetcher's empty fallback is relayed so the page keeps rendering.
func (h *PatientHandler) HandleStatus(c echo.Context) error {
	id, ok, err := proxy.PathID(c)
	if !ok {
		return err
	}
	return proxy.Forward(c, h.backend, backend.Call{
		Method: http.MethodGet,
		Path:   backend.PathAppointments + "/" + id,
	})
}
