package admin

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"clinic-bff/internal/backend"
	"clinic-bff/internal/handler/http/proxy"
	"clinic-bff/pkg/logger"
)

var (
	emptyList   = json.RawMessage(`[]`)
	emptyObject = json.RawMessage(`{}`)
)

// listEnvelope is the backend list shape, which is also the fetcher fallback shape.
type listEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Stats json.RawMessage `json:"stats"`
}

// DashboardResponse merges the appointment and user lists for the admin home page.
type DashboardResponse struct {
	Appointments json.RawMessage `json:"appointments"`
	Users        json.RawMessage `json:"users"`
	Stats        json.RawMessage `json:"stats"`
	Partial      bool            `json:"partial,omitempty"`
}

type leg struct {
	path string
	env  listEnvelope
	res  backend.Result
}

// HandleDashboard handles GET /api/admin/dashboard
// Both lists are fetched concurrently; a leg that is rate limited past its
// budget degrades to an empty list instead of failing the page.
func (h *AdminHandler) HandleDashboard(c echo.Context) error {
	header := proxy.Incoming(c)
	legs := []*leg{{path: backend.PathAppointments}, {path: backend.PathUsers}}

	g, ctx := errgroup.WithContext(c.Request().Context())
	for _, l := range legs {
		l := l
		g.Go(func() error {
			res, err := h.backend.FetchJSON(ctx, backend.Call{
				Method: http.MethodGet,
				Path:   l.path,
				Header: header,
			}, &l.env)
			l.res = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, backend.ErrDecode) {
			logger.Error("Dashboard: %v", err)
			return c.JSON(http.StatusBadGateway, proxy.ErrorResponse{Error: "invalid backend response"})
		}
		return err
	}

	for _, l := range legs {
		if l.res.Status == http.StatusUnauthorized || l.res.Status == http.StatusForbidden {
			return c.JSON(l.res.Status, proxy.ErrorResponse{Error: http.StatusText(l.res.Status)})
		}
	}

	apps, users := legs[0], legs[1]
	return c.JSON(http.StatusOK, DashboardResponse{
		Appointments: orDefault(apps.env.Data, emptyList),
		Users:        orDefault(users.env.Data, emptyList),
		Stats:        orDefault(apps.env.Stats, emptyObject),
		Partial:      degraded(apps) || degraded(users),
	})
}

func degraded(l *leg) bool {
	return l.res.Fallback || l.res.Status < 200 || l.res.Status > 299
}

func orDefault(raw, def json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return def
	}
	return raw
}
