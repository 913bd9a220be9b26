package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/amolrairikar/spotify-listening-history-app/internal/dashboard"
	"github.com/amolrairikar/spotify-listening-history-app/internal/faults"
	"github.com/amolrairikar/spotify-listening-history-app/internal/logging"
	webassets "github.com/amolrairikar/spotify-listening-history-app/web"
)

// StatsProvider answers aggregate queries for the dashboard.
type StatsProvider interface {
	Stats(ctx context.Context, f dashboard.Filter) (dashboard.Stats, error)
}

// DashboardServer serves the listening-history dashboard and its JSON API.
type DashboardServer struct {
	*Server
	stats     StatsProvider
	templates *Templates
}

// NewDashboardServer creates the dashboard server.
func NewDashboardServer(addr string, stats StatsProvider) (*DashboardServer, error) {
	templates, err := NewTemplates(webassets.TemplatesFS)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	s := &DashboardServer{
		Server:    newServer(addr),
		stats:     stats,
		templates: templates,
	}

	s.router.Get("/dashboard", s.dashboardPage)
	s.router.Get("/api/stats", s.apiStats)
	return s, nil
}

type dashboardPageData struct {
	Year  string
	Month string
	Stats dashboard.Stats
}

func filterFromRequest(r *http.Request) dashboard.Filter {
	month := r.URL.Query().Get("month")
	// Partition months are zero padded; accept "3" as well as "03".
	if len(month) == 1 && month >= "1" && month <= "9" {
		month = "0" + month
	}
	return dashboard.Filter{
		Year:  r.URL.Query().Get("year"),
		Month: month,
	}
}

// statsStatus maps a stats query failure to a response status.
func statsStatus(err error) int {
	if faults.KindOf(err) == faults.KindValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *DashboardServer) dashboardPage(w http.ResponseWriter, r *http.Request) {
	filter := filterFromRequest(r)
	stats, err := s.stats.Stats(r.Context(), filter)
	if err != nil {
		logging.Error().Err(err).Msg("Dashboard stats query failed")
		http.Error(w, err.Error(), statsStatus(err))
		return
	}

	data := dashboardPageData{Year: filter.Year, Month: filter.Month, Stats: stats}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.Render(w, "dashboard", data); err != nil {
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
	}
}

func (s *DashboardServer) apiStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Stats(r.Context(), filterFromRequest(r))
	if err != nil {
		logging.Error().Err(err).Msg("Stats API query failed")
		writeJSON(w, statsStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
