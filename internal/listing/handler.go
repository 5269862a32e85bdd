// HTTP adapter for the listing service.
//
// Routes:
//
//	GET    /jobs                       → filtered, sorted, paginated listing
//	POST   /jobs                       → create a job
//	GET    /jobs/count                 → number of active jobs
//	GET    /jobs/analytics             → today / yesterday counts + 30-day chart
//	GET    /jobs/scraper-metrics       → health-run metrics (?hours=N)
//	GET    /jobs/{id}                  → single job
//	PATCH  /jobs/{id}                  → partial update
//	DELETE /jobs/{id}                  → delete
//	PATCH  /jobs/{id}/status           → status change
//	GET    /jobs/{id}/related-jobs     → related jobs
package listing

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"jobmate/jobs-service/internal/logging"
	"jobmate/jobs-service/internal/model"
	"jobmate/jobs-service/internal/query"
	"jobmate/jobs-service/internal/store"
)

// maxBodyBytes caps request payloads.
const maxBodyBytes = 1 << 20

// ─── Handler ─────────────────────────────────────────────────────────────────

// Handler holds shared dependencies.
type Handler struct {
	svc *Service
	log *logging.Logger
}

// NewHandler returns a configured Handler.
func NewHandler(svc *Service, log *logging.Logger) *Handler {
	return &Handler{svc: svc, log: log.With("component", "http")}
}

// RegisterRoutes mounts all job routes on r. Fixed paths are registered
// before /jobs/{id} so they are not captured as ids.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/jobs", h.listJobs).Methods(http.MethodGet)
	r.HandleFunc("/jobs", h.createJob).Methods(http.MethodPost)
	r.HandleFunc("/jobs/count", h.countJobs).Methods(http.MethodGet)
	r.HandleFunc("/jobs/analytics", h.analytics).Methods(http.MethodGet)
	r.HandleFunc("/jobs/scraper-metrics", h.scraperMetrics).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}", h.getJob).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}", h.updateJob).Methods(http.MethodPatch)
	r.HandleFunc("/jobs/{id}", h.deleteJob).Methods(http.MethodDelete)
	r.HandleFunc("/jobs/{id}/status", h.updateStatus).Methods(http.MethodPatch)
	r.HandleFunc("/jobs/{id}/related-jobs", h.relatedJobs).Methods(http.MethodGet)
}

// ─── Individual handlers ──────────────────────────────────────────────────────

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	res, err := h.svc.List(r.Context(), params)
	if err != nil {
		h.fail(w, "listJobs", err)
		return
	}

	fields := query.ParseFields(params.Get(query.ParamFields))
	if len(fields) == 0 {
		jsonOK(w, res)
		return
	}
	projected := make([]map[string]any, len(res.Jobs))
	for i := range res.Jobs {
		projected[i] = query.Project(&res.Jobs[i], fields)
	}
	jsonOK(w, map[string]any{"jobs": projected, "totalJobs": res.TotalJobs})
}

func (h *Handler) createJob(w http.ResponseWriter, r *http.Request) {
	var in model.JobInput
	if err := decode(w, r, &in); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	j, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "createJob", err)
		return
	}
	jsonStatus(w, http.StatusCreated, j)
}

func (h *Handler) countJobs(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ActiveCount(r.Context())
	if err != nil {
		h.fail(w, "countJobs", err)
		return
	}
	jsonOK(w, map[string]int64{"count": n})
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Analytics(r.Context())
	if err != nil {
		h.fail(w, "analytics", err)
		return
	}
	jsonOK(w, a)
}

func (h *Handler) scraperMetrics(w http.ResponseWriter, r *http.Request) {
	hours := DefaultMetricsHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			jsonError(w, "hours must be a positive integer", http.StatusBadRequest)
			return
		}
		hours = n
	}
	m, err := h.svc.ScraperMetrics(r.Context(), hours)
	if err != nil {
		h.fail(w, "scraperMetrics", err)
		return
	}
	jsonOK(w, m)
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, "getJob", err)
		return
	}
	jsonOK(w, j)
}

func (h *Handler) updateJob(w http.ResponseWriter, r *http.Request) {
	var patch model.JobPatch
	if err := decode(w, r, &patch); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	j, err := h.svc.Update(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		h.fail(w, "updateJob", err)
		return
	}
	jsonOK(w, j)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		JobStatus string `json:"jobStatus"`
	}
	if err := decode(w, r, &body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	j, err := h.svc.UpdateStatus(r.Context(), mux.Vars(r)["id"], body.JobStatus)
	if err != nil {
		h.fail(w, "updateStatus", err)
		return
	}
	jsonOK(w, j)
}

func (h *Handler) deleteJob(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, "deleteJob", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) relatedJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.svc.Related(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, "relatedJobs", err)
		return
	}
	jsonOK(w, jobs)
}

// fail maps service errors onto status codes. Unexpected errors are logged
// and reported without detail.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		jsonError(w, verr.Msg, http.StatusBadRequest)
	case errors.Is(err, ErrInvalidID):
		jsonError(w, "invalid job id", http.StatusBadRequest)
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, "job not found", http.StatusNotFound)
	case errors.Is(err, store.ErrConflict):
		jsonError(w, "job already exists", http.StatusConflict)
	default:
		h.log.Error(op+" failed", "err", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

// ─── Middleware ──────────────────────────────────────────────────────────────

// RateLimit rejects requests beyond the limiter's budget with 429.
func RateLimit(l *rate.Limiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				jsonError(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccessLog logs one line per request.
func AccessLog(log *logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// ─── JSON helpers ─────────────────────────────────────────────────────────────

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func jsonOK(w http.ResponseWriter, v any) {
	jsonStatus(w, http.StatusOK, v)
}

func jsonStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	jsonStatus(w, code, map[string]string{"error": msg})
}
