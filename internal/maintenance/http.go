package maintenance

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves /metrics, /health, the job list and manual job runs.
func (r *Runner) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "esdoc-maint"})
	})
	router.Get("/jobs", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, r.jobs)
	})
	router.Post("/jobs/{name}/run", r.handleRun)
	return router
}

func (r *Runner) handleRun(w http.ResponseWriter, req *http.Request) {
	name := chi.URLParam(req, "name")
	for _, job := range r.jobs {
		if job.Name != name {
			continue
		}
		if err := r.Run(req.Context(), job); err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "job": name})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown job " + name})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
