// Package server provides the HTTP server and handlers.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/ArturZurawski/ecoharmonogram/internal/database"
	"github.com/ArturZurawski/ecoharmonogram/internal/model"
	"github.com/ArturZurawski/ecoharmonogram/internal/schedule"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const dateFormat = "2006-01-02"

// Server is the main HTTP server.
type Server struct {
	db     database.Store
	coord  *schedule.Coordinator
	tz     *time.Location
	router chi.Router
}

// New creates a new server. The timezone defines what "today" means for
// derived facts.
func New(db database.Store, coord *schedule.Coordinator, tz *time.Location) *Server {
	if tz == nil {
		tz = time.Local
	}
	s := &Server{db: db, coord: coord, tz: tz}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/schedule", s.handleSchedule)
		r.Get("/facts", s.handleFacts)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/status", s.handleStatus)
		r.Get("/calendar.ics", s.handleCalendar)
	})

	s.router = r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.router)
}

// --- API Handlers ---

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	snap := s.coord.Current()
	if snap == nil {
		writeError(w, http.StatusNotFound, "no schedule available yet")
		return
	}

	types := make([]map[string]interface{}, 0, len(snap.Types))
	for _, ws := range sortedTypes(snap) {
		dates := make([]string, len(ws.Dates))
		for i, d := range ws.Dates {
			dates[i] = d.Format(dateFormat)
		}
		types = append(types, map[string]interface{}{
			"id":           ws.ID,
			"name":         ws.Name,
			"display_name": DisplayName(ws.Name),
			"color":        ws.Color,
			"description":  ws.Description,
			"type_id":      ws.TypeID,
			"order":        ws.Order,
			"dates":        dates,
		})
	}

	writeJSON(w, map[string]interface{}{
		"retrieved_at":          snap.RetrievedAt,
		"schedule_last_changed": snap.ScheduleLastChanged,
		"types":                 types,
	})
}

func (s *Server) handleFacts(w http.ResponseWriter, r *http.Request) {
	snap := s.coord.Current()
	if snap == nil {
		writeError(w, http.StatusNotFound, "no schedule available yet")
		return
	}
	monitored, err := s.db.MonitoredTypes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load monitored types")
		return
	}

	facts := schedule.ComputeFacts(snap, time.Now().In(s.tz), monitored)

	names := make([]string, 0, len(facts.Types))
	for name := range facts.Types {
		names = append(names, name)
	}
	sort.Strings(names)

	types := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		tf := facts.Types[name]
		entry := map[string]interface{}{
			"id":             tf.ID,
			"name":           name,
			"display_name":   DisplayName(name),
			"next_date":      nil,
			"days_until":     nil,
			"is_today":       tf.IsToday,
			"is_tomorrow":    tf.IsTomorrow,
			"upcoming_dates": formatDates(tf.UpcomingDates),
		}
		if tf.NextDate != nil {
			entry["next_date"] = tf.NextDate.Format(dateFormat)
			entry["days_until"] = *tf.DaysUntil
		}
		types = append(types, entry)
	}

	resp := map[string]interface{}{
		"today":           facts.Today.Format(dateFormat),
		"types":           types,
		"any_today":       facts.AnyToday,
		"today_types":     displayNames(facts.TodayTypes),
		"any_tomorrow":    facts.AnyTomorrow,
		"tomorrow_types":  displayNames(facts.TomorrowTypes),
		"next_collection": nil,
	}
	if nc := facts.NextCollection; nc != nil {
		resp["next_collection"] = map[string]interface{}{
			"date":        nc.Date.Format(dateFormat),
			"types":       displayNames(nc.Types),
			"days_until":  nc.DaysUntil,
			"is_today":    nc.IsToday,
			"is_tomorrow": nc.IsTomorrow,
		}
	}
	writeJSON(w, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), schedule.RefreshTimeout)
	defer cancel()

	if err := s.coord.Refresh(ctx); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	snap := s.coord.Current()
	writeJSON(w, map[string]interface{}{
		"status":      "ok",
		"waste_types": len(snap.Types),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.coord.Status()
	resp := map[string]interface{}{
		"state":    st.State,
		"database": s.db.DatabaseType(),
	}
	if !st.RetrievedAt.IsZero() {
		resp["retrieved_at"] = st.RetrievedAt
	}
	if st.ScheduleLastChanged != "" {
		resp["schedule_last_changed"] = st.ScheduleLastChanged
	}
	if st.LastError != "" {
		resp["last_error"] = st.LastError
	} else if prev, err := s.db.GetSetting(model.SettingLastRefreshError); err == nil && prev != "" {
		// A failure recorded before the last restart.
		resp["last_error"] = prev
	}
	if loc, err := s.db.Location(); err == nil && loc != nil {
		resp["location"] = map[string]string{
			"town":   loc.TownName,
			"street": loc.StreetName,
			"number": loc.Number,
			"period": loc.PeriodID,
		}
	}
	writeJSON(w, resp)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	snap := s.coord.Current()
	if snap == nil {
		http.Error(w, "no schedule available yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=waste_collection.ics")
	writeICS(w, snap, time.Now())
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func formatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(dateFormat)
	}
	return out
}

func displayNames(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = DisplayName(n)
	}
	return out
}

// sortedTypes orders snapshot types by the source's display order, then
// name.
func sortedTypes(snap *model.ScheduleSnapshot) []*model.WasteTypeSchedule {
	types := make([]*model.WasteTypeSchedule, 0, len(snap.Types))
	for _, ws := range snap.Types {
		types = append(types, ws)
	}
	sort.Slice(types, func(i, j int) bool {
		if types[i].Order != types[j].Order {
			return types[i].Order < types[j].Order
		}
		return types[i].Name < types[j].Name
	})
	return types
}
