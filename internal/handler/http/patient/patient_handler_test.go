package patient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-bff/internal/backend"
	"clinic-bff/internal/fetcher"
	"clinic-bff/internal/validation"
)

type recorded struct {
	method string
	path   string
	auth   string
	body   string
}

// newServer wires the handler to a fake backend and returns the Echo instance
// plus a function reporting what the backend received.
func newServer(t *testing.T, backendFn http.HandlerFunc) (*echo.Echo, func() []recorded) {
	t.Helper()

	var mu sync.Mutex
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, recorded{r.Method, r.URL.Path, r.Header.Get("Authorization"), string(b)})
		mu.Unlock()
		backendFn(w, r)
	}))
	t.Cleanup(srv.Close)

	f := fetcher.New(
		fetcher.WithPolicy(fetcher.Policy{MaxRetries: 2, InitialDelay: time.Millisecond}),
		fetcher.WithSleeper(func(context.Context, time.Duration) bool { return true }),
	)
	client, err := backend.New(srv.URL, "", f)
	require.NoError(t, err)

	e := echo.New()
	e.Validator = validation.New()
	NewPatientHandler(client).SetupRoutes(e)

	return e, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), calls...)
	}
}

func postJSON(e *echo.Echo, path string, v interface{}) *httptest.ResponseRecorder {
	b, _ := json.Marshal(v)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(b)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func validPatient() validation.RegisterPatientForm {
	return validation.RegisterPatientForm{
		Name:                   "Ada Obi",
		Email:                  "ada@example.com",
		Phone:                  "+2348012345678",
		BirthDate:              "1990-04-12",
		Gender:                 "female",
		Address:                "12 Marina Road, Lagos",
		Occupation:             "Engineer",
		EmergencyContactName:   "Chidi Obi",
		EmergencyContactNumber: "+2348098765432",
		PrimaryPhysician:       "Dr. Green",
		InsuranceProvider:      "BlueCross",
		InsurancePolicyNumber:  "ABC123456",
		TreatmentConsent:       true,
		DisclosureConsent:      true,
		PrivacyConsent:         true,
	}
}

// TestHandleRegister_ForwardsValidForm verifies a valid registration reaches the backend
func TestHandleRegister_ForwardsValidForm(t *testing.T) {
	e, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"p1"}`))
	})

	rec := postJSON(e, "/api/patients", validPatient())

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":"p1"}`, rec.Body.String())
	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, http.MethodPost, got[0].method)
	assert.Equal(t, backend.PathPatients, got[0].path)
	assert.Contains(t, got[0].body, `"email":"ada@example.com"`)
}

// TestHandleRegister_InvalidFormNeverCallsBackend verifies validation short-circuits
func TestHandleRegister_InvalidFormNeverCallsBackend(t *testing.T) {
	e, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {})

	form := validPatient()
	form.Email = "nope"
	rec := postJSON(e, "/api/patients", form)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"validation failed","fields":{"email":"email"}}`, rec.Body.String())
	assert.Empty(t, calls())
}

// TestHandleBook_RelaysUpstreamError verifies non-429 errors are passed through unchanged
func TestHandleBook_RelaysUpstreamError(t *testing.T) {
	e, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"slot taken"}`))
	})

	rec := postJSON(e, "/api/appointments", validation.BookAppointmentForm{
		PatientID:        "64f0c2a9e1",
		PrimaryPhysician: "Dr. Green",
		Schedule:         time.Now().Add(48 * time.Hour).UTC().Format(validation.ScheduleLayout),
		Reason:           "Check-up",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"slot taken"}`, rec.Body.String())
	assert.Len(t, calls(), 1, "409 is not retried")
}

// TestHandleStatus_RateLimitedBackendYieldsFallback verifies the polling route keeps rendering
func TestHandleStatus_RateLimitedBackendYieldsFallback(t *testing.T) {
	e, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/appointments/64f0c2a9e1/status", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[],"stats":{}}`, rec.Body.String())
	assert.Equal(t, "exhausted", rec.Header().Get(fetcher.FallbackHeader))

	got := calls()
	require.Len(t, got, 2)
	assert.Equal(t, backend.PathAppointments+"/64f0c2a9e1", got[0].path)
}

// TestHandleStatus_RejectsBadID verifies path ids are validated
func TestHandleStatus_RejectsBadID(t *testing.T) {
	e, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/api/appointments/-x/status", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, calls())
}
