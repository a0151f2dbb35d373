package server

import (
	"net/http"

	"github.com/go-chi/render"

	"parcelview/internal/colorscale"
	"parcelview/internal/errors"
	"parcelview/internal/export"
	"parcelview/internal/logging"
	"parcelview/internal/metrics"
	"parcelview/internal/style"
	"parcelview/internal/viewstate"
)

type errorResponse struct {
	Error   errors.Code `json:"error"`
	Message string      `json:"message"`
}

func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeAuth, errors.ErrCodeSessionNotFound:
		return http.StatusUnauthorized
	case errors.ErrCodeInvalidInput, errors.ErrCodeSelectionOutOfRange:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail reports err as an error page or a JSON body.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, page bool) {
	status := statusFor(err)
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "code", code, "err", err)
	}
	if page {
		s.renderPage(w, status, "error.html", errorPage{Status: status, Code: string(code), Message: err.Error()})
		return
	}
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: code, Message: err.Error()})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, "login.html", loginPage{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderPage(w, http.StatusBadRequest, "login.html", loginPage{Error: "Malformed form submission"})
		return
	}
	sess, err := s.deps.Sessions.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		if errors.Is(err, errors.ErrCodeAuth) {
			s.renderPage(w, http.StatusUnauthorized, "login.html", loginPage{
				Error:    "User not found or password incorrect",
				Username: r.PostFormValue("username"),
			})
			return
		}
		s.fail(w, r, err, true)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.deps.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		if err := s.deps.Sessions.Logout(r.Context(), c.Value); err != nil {
			s.fail(w, r, err, true)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.deps.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleMapPage(w http.ResponseWriter, r *http.Request) {
	ds, sc, err := s.load(r.Context())
	if err != nil {
		s.fail(w, r, err, true)
		return
	}
	v, err := s.deps.Sessions.View(r.Context(), sessionFrom(r.Context()), ds)
	if err != nil {
		s.fail(w, r, err, true)
		return
	}
	s.renderPage(w, http.StatusOK, "map.html", mapPage{
		Title:   "Parcel Size Variance Explorer",
		Count:   ds.Len(),
		Caption: sc.Caption(),
		Legend:  sc.Legend(legendStops),
		Tiles:   s.deps.Tiles,
		View:    newViewResponse(v),
		Columns: style.TableColumns,
	})
}

const legendStops = 9

func (s *Server) handleLayer(w http.ResponseWriter, r *http.Request) {
	ds, sc, err := s.load(r.Context())
	if err != nil {
		s.fail(w, r, err, false)
		return
	}
	raw, err := export.LayerJSON(ds, sc)
	if err != nil {
		s.fail(w, r, err, false)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(raw)
}

type tableColumn struct {
	Column string `json:"column"`
	Title  string `json:"title"`
}

type tableRow struct {
	Row    int      `json:"row"`
	Color  string   `json:"color"`
	Values []string `json:"values"`
}

type tableResponse struct {
	Columns []tableColumn `json:"columns"`
	Rows    []tableRow    `json:"rows"`
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	ds, sc, err := s.load(r.Context())
	if err != nil {
		s.fail(w, r, err, false)
		return
	}
	resp := tableResponse{
		Columns: make([]tableColumn, len(style.TableColumns)),
		Rows:    make([]tableRow, ds.Len()),
	}
	for i, f := range style.TableColumns {
		resp.Columns[i] = tableColumn{Column: f.Column, Title: f.Title()}
	}
	for i, p := range ds.Parcels {
		resp.Rows[i] = tableRow{Row: i, Color: style.For(p, sc).FillColor, Values: style.TableRow(p)}
	}
	render.JSON(w, r, resp)
}

type point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type viewResponse struct {
	Center   point `json:"center"`
	Zoom     int   `json:"zoom"`
	Selected *int  `json:"selected"`
}

func newViewResponse(v viewstate.State) viewResponse {
	return viewResponse{Center: point{Lat: v.Lat(), Lon: v.Lon()}, Zoom: v.Zoom, Selected: v.Selected}
}

type viewEnvelope struct {
	View    viewResponse      `json:"view"`
	Caption string            `json:"caption"`
	Legend  []colorscale.Stop `json:"legend"`
	Count   int               `json:"count"`
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	ds, sc, err := s.load(r.Context())
	if err != nil {
		s.fail(w, r, err, false)
		return
	}
	v, err := s.deps.Sessions.View(r.Context(), sessionFrom(r.Context()), ds)
	if err != nil {
		s.fail(w, r, err, false)
		return
	}
	render.JSON(w, r, viewEnvelope{View: newViewResponse(v), Caption: sc.Caption(), Legend: sc.Legend(legendStops), Count: ds.Len()})
}

type selectRequest struct {
	Row *int `json:"row"`
}

type selectResponse struct {
	Moved bool         `json:"moved"`
	View  viewResponse `json:"view"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.fail(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode selection"), false)
		return
	}
	if req.Row == nil {
		s.fail(w, r, errors.New(errors.ErrCodeInvalidInput, "row is required"), false)
		return
	}
	ds, _, err := s.load(r.Context())
	if err != nil {
		s.fail(w, r, err, false)
		return
	}
	// Rows outside the dataset never reach the view state.
	if *req.Row < 0 || *req.Row >= ds.Len() {
		s.fail(w, r, errors.New(errors.ErrCodeInvalidInput, "row %d outside dataset of %d records", *req.Row, ds.Len()), false)
		return
	}
	v, moved, err := s.deps.Sessions.Select(r.Context(), sessionFrom(r.Context()), ds, *req.Row)
	if err != nil {
		s.fail(w, r, err, false)
		return
	}
	render.JSON(w, r, selectResponse{Moved: moved, View: newViewResponse(v)})
}

func (s *Server) handleLeads(w http.ResponseWriter, r *http.Request) {
	ds, _, err := s.load(r.Context())
	if err != nil {
		s.fail(w, r, err, true)
		return
	}
	raw, err := export.CSV(ds)
	if err != nil {
		s.fail(w, r, err, true)
		return
	}
	metrics.ExportsTotal.WithLabelValues("csv").Inc()
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.LeadsFileName+`"`)
	w.Write(raw)
}
