package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fortuna/crease/internal/format"
	"github.com/fortuna/crease/internal/ingest/cricbuzz"
	"github.com/fortuna/crease/internal/match"
	"github.com/fortuna/crease/internal/scheduler"
)

const (
	serviceName    = "crease"
	serviceVersion = "1.0.0"
)

// Controller is the scheduler surface the API drives
type Controller interface {
	Select(detailURL string)
	Refresh()
	Target() string
	GetStatus() scheduler.Status
}

// State is the last-known-good data the API serves
type State interface {
	Listing() ([]match.MatchSummary, time.Time, bool)
	Detail(detailURL string) (match.MatchDetail, bool)
	LastFailure() (match.FetchFailure, bool)
}

// TooltipConfig bounds the tooltip text
type TooltipConfig struct {
	MaxItems  int
	MaxLength int
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	controller Controller
	state      State
	tooltip    TooltipConfig
	origin     string
}

// NewHandler creates a new handler. origin is the site whose match pages may
// be selected.
func NewHandler(controller Controller, state State, tooltip TooltipConfig, origin string) (*Handler, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, errors.New("origin has no host")
	}
	return &Handler{
		controller: controller,
		state:      state,
		tooltip:    tooltip,
		origin:     origin,
	}, nil
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// GetMatches returns the current listing
func (h *Handler) GetMatches(w http.ResponseWriter, r *http.Request) {
	summaries, updatedAt, ok := h.state.Listing()
	if !ok {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"ready":   false,
			"matches": []match.MatchSummary{},
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ready":      true,
		"matches":    summaries,
		"count":      len(summaries),
		"updated_at": updatedAt,
	})
}

// GetTooltip returns the tray tooltip text
func (h *Handler) GetTooltip(w http.ResponseWriter, r *http.Request) {
	summaries, _, _ := h.state.Listing()
	respondJSON(w, http.StatusOK, map[string]string{
		"text": format.FormatTooltip(summaries, h.tooltip.MaxItems, h.tooltip.MaxLength),
	})
}

// GetSelected returns the selected match. view=minimized or view=text return
// the widget strings instead of the full record.
func (h *Handler) GetSelected(w http.ResponseWriter, r *http.Request) {
	target := h.controller.Target()
	if target == "" {
		respondError(w, http.StatusNotFound, "No match selected", nil)
		return
	}

	detail, ok := h.state.Detail(target)
	if !ok {
		respondJSON(w, http.StatusAccepted, map[string]string{
			"status": "pending",
			"url":    target,
		})
		return
	}

	switch view := r.URL.Query().Get("view"); view {
	case "", "json":
		respondJSON(w, http.StatusOK, detail)
	case "minimized":
		respondJSON(w, http.StatusOK, map[string]string{
			"text": format.FormatMinimized(detail.Title, detail.PrimaryScore),
		})
	case "text":
		respondJSON(w, http.StatusOK, map[string]string{
			"text": format.FormatDetail(detail),
		})
	default:
		respondError(w, http.StatusBadRequest, "Unknown view: "+view, nil)
	}
}

type selectRequest struct {
	URL string `json:"url"`
}

// SelectMatch retargets the detail poll. An empty url clears the selection.
func (h *Handler) SelectMatch(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	detailURL := strings.TrimSpace(req.URL)
	if detailURL != "" && !cricbuzz.IsDetailURL(h.origin, detailURL) {
		respondError(w, http.StatusBadRequest, "Not a match page URL", nil)
		return
	}

	h.controller.Select(detailURL)
	respondJSON(w, http.StatusOK, map[string]string{"selected": detailURL})
}

// RefreshListing triggers an immediate listing poll
func (h *Handler) RefreshListing(w http.ResponseWriter, r *http.Request) {
	h.controller.Refresh()
	respondJSON(w, http.StatusAccepted, map[string]string{"message": "Refresh requested"})
}

// GetStatus returns scheduler loop states and the last failure
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"scheduler": h.controller.GetStatus(),
	}
	if failure, ok := h.state.LastFailure(); ok {
		resp["last_error"] = failure
	}
	respondJSON(w, http.StatusOK, resp)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	respondJSON(w, status, response)
}
