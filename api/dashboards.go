package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ilievs/pinhub/core"
	"github.com/ilievs/pinhub/ota"
	"github.com/ilievs/pinhub/store"
)

type deviceView struct {
	core.Device
	Online bool `json:"online"`
}

type dashboardView struct {
	core.Snapshot
	Devices []deviceView `json:"devices"`
}

type propertyRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type deviceRequest struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

type otaRequest struct {
	URL   string `json:"url"`
	Build string `json:"build"`
}

func (s *Server) user(c echo.Context) (core.UserKey, error) {
	user := core.UserKey(c.Param("user"))
	if !s.store.HasUser(user) {
		return "", echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return user, nil
}

func (s *Server) dashboard(c echo.Context) (core.UserKey, *core.Dashboard, error) {
	user := core.UserKey(c.Param("user"))
	id, err := strconv.Atoi(c.Param("dash"))
	if err != nil {
		return "", nil, echo.NewHTTPError(http.StatusBadRequest, "dashboard id must be a number")
	}
	dash, err := s.store.Dashboard(user, id)
	if err != nil {
		return "", nil, err
	}
	return user, dash, nil
}

func widgetID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "widget id must be a number")
	}
	return id, nil
}

func (s *Server) view(user core.UserKey, dash *core.Dashboard) dashboardView {
	snap := dash.Snapshot()
	sess, hasSession := s.sessions.Get(user)
	v := dashboardView{Snapshot: snap, Devices: make([]deviceView, 0, len(snap.Devices))}
	for _, d := range snap.Devices {
		v.Devices = append(v.Devices, deviceView{
			Device: d,
			Online: hasSession && sess.IsDeviceOnline(d.ID),
		})
	}
	return v
}

func (s *Server) handleListDashboards(c echo.Context) error {
	user := core.UserKey(c.Param("user"))
	dashes, err := s.store.Dashboards(user)
	if err != nil {
		return err
	}
	views := make([]dashboardView, 0, len(dashes))
	for _, d := range dashes {
		views = append(views, s.view(user, d))
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) handleGetDashboard(c echo.Context) error {
	user, dash, err := s.dashboard(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.view(user, dash))
}

func (s *Server) handleActivate(c echo.Context) error {
	_, dash, err := s.dashboard(c)
	if err != nil {
		return err
	}
	dash.Activate()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeactivate(c echo.Context) error {
	_, dash, err := s.dashboard(c)
	if err != nil {
		return err
	}
	dash.Deactivate()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleCreateWidget(c echo.Context) error {
	_, dash, err := s.dashboard(c)
	if err != nil {
		return err
	}
	var w core.Widget
	if err := c.Bind(&w); err != nil {
		return err
	}
	if err := dash.AddWidget(w); err != nil {
		return err
	}
	created, _ := dash.Widget(w.ID)
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) handleUpdateWidget(c echo.Context) error {
	_, dash, err := s.dashboard(c)
	if err != nil {
		return err
	}
	id, err := widgetID(c)
	if err != nil {
		return err
	}
	var w core.Widget
	if err := c.Bind(&w); err != nil {
		return err
	}
	w.ID = id
	if err := dash.UpdateWidget(w); err != nil {
		return err
	}
	updated, _ := dash.Widget(id)
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteWidget(c echo.Context) error {
	_, dash, err := s.dashboard(c)
	if err != nil {
		return err
	}
	id, err := widgetID(c)
	if err != nil {
		return err
	}
	if err := dash.DeleteWidget(id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSetWidgetProperty(c echo.Context) error {
	_, dash, err := s.dashboard(c)
	if err != nil {
		return err
	}
	id, err := widgetID(c)
	if err != nil {
		return err
	}
	req := new(propertyRequest)
	if err := c.Bind(req); err != nil {
		return err
	}
	p, err := core.LookupProperty(req.Name)
	if err != nil {
		return err
	}
	if err := dash.SetWidgetProperty(id, p, req.Value); err != nil {
		return err
	}
	updated, _ := dash.Widget(id)
	return c.JSON(http.StatusOK, updated)
}

func deviceID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("device"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "device id must be a number")
	}
	return id, nil
}

func (s *Server) handleAddDevice(c echo.Context) error {
	user, dash, err := s.dashboard(c)
	if err != nil {
		return err
	}
	req := new(deviceRequest)
	if err := c.Bind(req); err != nil {
		return err
	}
	if req.Token == "" || strings.ContainsAny(req.Token, "/+#") {
		return echo.NewHTTPError(http.StatusBadRequest, "token must be set and topic safe")
	}
	if _, ok := dash.Device(req.ID); ok {
		return echo.NewHTTPError(http.StatusConflict, "device already exists")
	}
	dev := &core.Device{ID: req.ID, Name: req.Name, Token: req.Token}
	if err := s.store.AddDevice(user, dash.ID, dev); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, deviceView{Device: *dev})
}

// handleRemoveDevice forgets the device and its token. A device that is
// connected right now keeps its link until it disconnects.
func (s *Server) handleRemoveDevice(c echo.Context) error {
	user, dash, err := s.dashboard(c)
	if err != nil {
		return err
	}
	id, err := deviceID(c)
	if err != nil {
		return err
	}
	if err := s.store.RemoveDevice(user, dash.ID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleInitiateOTA(c echo.Context) error {
	user, dash, err := s.dashboard(c)
	if err != nil {
		return err
	}
	id, err := deviceID(c)
	if err != nil {
		return err
	}
	req := new(otaRequest)
	if err := c.Bind(req); err != nil {
		return err
	}
	info, err := s.ota.Initiate(user, dash.ID, id, req.URL, req.Build)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, info)
}

// errorHandler maps domain errors onto HTTP status codes before handing
// them to echo's default handler.
func (s *Server) errorHandler(err error, c echo.Context) {
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		he = echo.NewHTTPError(statusFor(err), err.Error())
	}
	s.e.DefaultHTTPErrorHandler(he, c)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrDashboardNotFound),
		errors.Is(err, core.ErrWidgetNotFound),
		errors.Is(err, core.ErrDeviceNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrWidgetExists),
		errors.Is(err, store.ErrTokenInUse):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidWidget),
		errors.Is(err, core.ErrUnknownProperty),
		errors.Is(err, core.ErrUnsupportedProperty),
		errors.Is(err, core.ErrInvalidValue),
		errors.Is(err, ota.ErrInvalidRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
