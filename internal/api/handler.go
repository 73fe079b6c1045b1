// Package api provides the HTTP handlers for the dashboard REST API.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"sitelens/internal/domain"
	"sitelens/internal/middleware"
	"sitelens/internal/service/charts"
)

const defaultHistoryLimit = 50

// Handler serves the dashboard API endpoints.
type Handler struct {
	charts  *charts.ChartService
	dash    *domain.Dashboard
	history domain.HistoryRepository
	logger  *slog.Logger
}

// NewHandler creates a Handler. history may be nil when the history store
// is disabled.
func NewHandler(svc *charts.ChartService, dash *domain.Dashboard, history domain.HistoryRepository, logger *slog.Logger) *Handler {
	return &Handler{charts: svc, dash: dash, history: history, logger: logger}
}

// Dashboard executes every chart under the requested filter state and
// returns the assembled view.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	principal, _ := middleware.IdentityFromContext(r.Context())
	view, err := h.charts.BuildView(r.Context(), principal, f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// chartSummary is the list representation of a chart definition. Templates
// stay server-side; the rendered SQL has its own endpoint.
type chartSummary struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Kind      domain.ChartKind `json:"kind"`
	Dimension string           `json:"dimension,omitempty"`
}

// Charts lists the dashboard's chart definitions.
func (h *Handler) Charts(w http.ResponseWriter, _ *http.Request) {
	out := make([]chartSummary, 0, len(h.dash.Charts))
	for _, c := range h.dash.Charts {
		out = append(out, chartSummary{ID: c.ID, Title: c.Title, Kind: c.Kind, Dimension: c.Dimension})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"charts": out})
}

// ChartSQL renders the fully resolved, parameter-inlined SQL for one chart
// under the requested filter state.
func (h *Handler) ChartSQL(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	chartID := chi.URLParam(r, "chartID")
	sql, err := h.charts.RenderSQL(chartID, f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"chartId": chartID, "sql": sql})
}

// History returns the most recent query executions.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"records": []*domain.QueryRecord{}})
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			h.writeError(w, domain.ErrValidation("limit must be an integer between 1 and 500"))
			return
		}
		limit = n
	}

	records, err := h.history.ListRecent(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

// Health reports service liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// filterFromQuery builds the filter state from request query parameters:
// path (repeatable), pathOp, period or from/to, and metric.
func filterFromQuery(r *http.Request) (domain.FilterState, error) {
	q := r.URL.Query()
	f := domain.FilterState{
		URLFilters: q["path"],
		Metric:     domain.MetricType(q.Get("metric")),
		PathOp:     domain.PathOp(q.Get("pathOp")),
	}

	switch f.Metric {
	case "", domain.MetricVisitors, domain.MetricVisits, domain.MetricPageviews, domain.MetricProportion:
	default:
		return f, domain.ErrValidation("unknown metric %q", f.Metric)
	}
	switch f.PathOp {
	case "", domain.PathOpEquals, domain.PathOpStartsWith:
	default:
		return f, domain.ErrValidation("unknown pathOp %q", f.PathOp)
	}

	from, to := q.Get("from"), q.Get("to")
	if from != "" || to != "" {
		if from == "" || to == "" {
			return f, domain.ErrValidation("custom ranges need both from and to")
		}
		fromT, err := time.Parse("2006-01-02", from)
		if err != nil {
			return f, domain.ErrValidation("invalid from date %q", from)
		}
		toT, err := time.Parse("2006-01-02", to)
		if err != nil {
			return f, domain.ErrValidation("invalid to date %q", to)
		}
		if toT.Before(fromT) {
			return f, domain.ErrValidation("to date precedes from date")
		}
		// The to date is inclusive: bind the upper bound at the end of that day.
		toT = toT.AddDate(0, 0, 1).Add(-time.Second)
		f.Range = domain.DateRange{Preset: domain.RangeCustom, From: fromT, To: toT}
		return f, nil
	}

	f.Range = domain.DateRange{Preset: strings.TrimSpace(q.Get("period"))}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := httpStatusFromDomainError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]interface{}{
		"code":    status,
		"message": err.Error(),
	})
}
