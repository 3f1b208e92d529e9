package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/medreport/internal/application/dashboard"
	"github.com/bryanwahyu/medreport/internal/application/session"
	domai "github.com/bryanwahyu/medreport/internal/domain/ai"
	"github.com/bryanwahyu/medreport/internal/domain/analysis"
	"github.com/bryanwahyu/medreport/internal/domain/artifacts"
	"github.com/bryanwahyu/medreport/internal/domain/dataset"
	"github.com/bryanwahyu/medreport/internal/domain/reports"
	"github.com/bryanwahyu/medreport/internal/infra/charts"
	"github.com/bryanwahyu/medreport/internal/middleware"
)

// Options configures the HTTP surface.
type Options struct {
	Logger       zerolog.Logger
	MaxUpload    int64
	SessionTTL   time.Duration
	SecureCookie bool
	CORSOrigins  []string
	RatePerSec   float64
	RateBurst    int
	// Checkers are reported by /health; Readiness gates /ready.
	Checkers  map[string]middleware.HealthChecker
	Readiness middleware.HealthChecker
}

type Router struct {
	dash      *dashboard.Service
	maxUpload int64
}

func NewRouter(dash *dashboard.Service, sessions *session.Manager, opts Options) http.Handler {
	r := &Router{dash: dash, maxUpload: opts.MaxUpload}
	if r.maxUpload <= 0 {
		r.maxUpload = dashboard.DefaultMaxUpload
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 2
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 5
	}
	limiter := middleware.NewRateLimiter(opts.RatePerSec, opts.RateBurst)

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.RequestLogger(opts.Logger))
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.MetricsMiddleware)
	if len(opts.CORSOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	mux.Get("/health", middleware.HealthHandler(opts.Checkers))
	mux.Get("/ready", middleware.ReadinessHandler(opts.Readiness))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/api/v1", func(rt chi.Router) {
		rt.Use(middleware.Sessions(sessions, opts.SessionTTL, opts.SecureCookie))

		rt.Get("/datasets/current", r.wrap(r.handleOverview))
		rt.Get("/datasets/current/describe", r.wrap(r.handleDescribe))
		rt.Get("/analysis", r.wrap(r.handleResult))
		rt.Get("/charts/histogram", r.wrap(r.handleHistogram))
		rt.Get("/charts/correlation", r.wrap(r.handleCorrelation))
		rt.Get("/charts/confusion-matrix", r.wrap(r.handleConfusion))
		rt.Get("/reports", r.wrap(r.handleHistory))
		rt.Get("/reports/stats", r.wrap(r.handleStats))
		rt.Get("/reports/{id}", r.wrap(r.handleDetails))
		rt.Get("/reports/{id}/download", r.wrap(r.handleDownload))
		rt.Delete("/session", r.wrap(r.handleReset))

		rt.Group(func(heavy chi.Router) {
			heavy.Use(middleware.RateLimit(limiter))
			heavy.Post("/datasets", r.wrap(r.handleUpload))
			heavy.Post("/analysis", r.wrap(r.handleAnalyze))
			heavy.Post("/reports", r.wrap(r.handleGenerate))
			heavy.Post("/quick-summaries", r.wrap(r.handleQuickSummary))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks client input errors.
type badRequest struct{ error }

func badRequestf(format string, args ...any) error {
	return badRequest{fmt.Errorf(format, args...)}
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status, msg := statusFor(err)
		log := zerolog.Ctx(req.Context())
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Int("status", status).Msg("request failed")
		} else {
			log.Debug().Err(err).Int("status", status).Msg("request rejected")
		}
		if status == http.StatusNotFound {
			writeJSON(w, status, struct{}{})
			return
		}
		writeJSON(w, status, map[string]string{"error": msg})
	}
}

func statusFor(err error) (int, string) {
	var br badRequest
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domai.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "ai quota exceeded, try again later"
	case errors.Is(err, dataset.ErrFormat),
		errors.Is(err, analysis.ErrAnalysisFailure),
		errors.Is(err, reports.ErrAssembly),
		errors.Is(err, charts.ErrNoData):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, dashboard.ErrTooLarge), errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge, "upload too large"
	case errors.Is(err, reports.ErrNotFound):
		return http.StatusNotFound, ""
	case errors.Is(err, dashboard.ErrNoDataset), errors.Is(err, dashboard.ErrNoAnalysis):
		return http.StatusConflict, err.Error()
	case errors.Is(err, dataset.ErrColumnNotFound), errors.Is(err, dataset.ErrNotNumeric):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, reports.ErrStorage), errors.Is(err, artifacts.ErrUnavailable):
		return http.StatusServiceUnavailable, "storage unavailable, the operation was not completed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	}
	return http.StatusInternalServerError, "internal error"
}

// writeJSON encodes v before writing the status, so an encoding error still reaches wrap.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(append(body, '\n'))
	return err
}

func currentSession(req *http.Request) (*session.Session, error) {
	s := middleware.SessionFromContext(req.Context())
	if s == nil {
		return nil, errors.New("no session in request context")
	}
	return s, nil
}

// uploadedFile reads the multipart "file" field within the upload limit.
func (r *Router) uploadedFile(w http.ResponseWriter, req *http.Request) (multipart.File, string, error) {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload+1<<20)
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, "", err
		}
		return nil, "", badRequestf("invalid multipart form: %v", err)
	}
	f, hdr, err := req.FormFile("file")
	if err != nil {
		return nil, "", badRequestf("file is required")
	}
	if err := middleware.ValidateUploadName(hdr.Filename); err != nil {
		f.Close()
		return nil, "", badRequest{err}
	}
	return f, hdr.Filename, nil
}

// POST /api/v1/datasets (multipart file)
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	sess, err := currentSession(req)
	if err != nil {
		return err
	}
	f, name, err := r.uploadedFile(w, req)
	if err != nil {
		return err
	}
	defer f.Close()

	ov, err := r.dash.Upload(req.Context(), sess, name, f)
	if err != nil {
		return err
	}
	middleware.IncrementUploads()
	return writeJSON(w, http.StatusCreated, ov)
}

// GET /api/v1/datasets/current
func (r *Router) handleOverview(w http.ResponseWriter, req *http.Request) error {
	sess, err := currentSession(req)
	if err != nil {
		return err
	}
	ov, err := r.dash.Overview(sess)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, ov)
}

// GET /api/v1/datasets/current/describe
func (r *Router) handleDescribe(w http.ResponseWriter, req *http.Request) error {
	sess, err := currentSession(req)
	if err != nil {
		return err
	}
	sum, err := r.dash.Describe(sess)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, sum)
}

// POST /api/v1/analysis
// Body: {"mode": "basic" | "detailed"}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	sess, err := currentSession(req)
	if err != nil {
		return err
	}
	var body struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return badRequestf("invalid body: %v", err)
	}
	mode, err := analysis.ParseMode(body.Mode)
	if err != nil {
		return badRequest{err}
	}

	res, err := r.dash.Analyze(req.Context(), sess, mode)
	if errors.Is(err, dashboard.ErrNoDataset) {
		return err
	}
	middleware.RecordAnalysis(err != nil)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

// GET /api/v1/analysis
func (r *Router) handleResult(w http.ResponseWriter, req *http.Request) error {
	sess, err := currentSession(req)
	if err != nil {
		return err
	}
	res, err := r.dash.Result(sess)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

func writeArtifact(w http.ResponseWriter, a artifacts.Artifact) error {
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.Header().Set("Cache-Control", "no-store")
	_, err := w.Write(a.Data)
	return err
}

// GET /api/v1/charts/histogram?column=
func (r *Router) handleHistogram(w http.ResponseWriter, req *http.Request) error {
	sess, err := currentSession(req)
	if err != nil {
		return err
	}
	col := middleware.SanitizeString(req.URL.Query().Get("column"))
	a, err := r.dash.Histogram(sess, col)
	if err != nil {
		return err
	}
	return writeArtifact(w, a)
}

// GET /api/v1/charts/correlation
func (r *Router) handleCorrelation(w http.ResponseWriter, req *http.Request) error {
	sess, err := currentSession(req)
	if err != nil {
		return err
	}
	a, err := r.dash.CorrelationChart(sess)
	if err != nil {
		return err
	}
	return writeArtifact(w, a)
}

// GET /api/v1/charts/confusion-matrix
func (r *Router) handleConfusion(w http.ResponseWriter, req *http.Request) error {
	sess, err := currentSession(req)
	if err != nil {
		return err
	}
	a, err := r.dash.ConfusionChart(sess)
	if err != nil {
		return err
	}
	return writeArtifact(w, a)
}

// POST /api/v1/reports
// Body: {"format": "standard" | "detailed", "sections": ["Executive Summary", ...]}
func (r *Router) handleGenerate(w http.ResponseWriter, req *http.Request) error {
	sess, err := currentSession(req)
	if err != nil {
		return err
	}
	var body struct {
		Format   string   `json:"format"`
		Sections []string `json:"sections"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return badRequestf("invalid body: %v", err)
	}
	if body.Format == "" {
		body.Format = string(reports.TypeStandard)
	}
	format, err := reports.ParseType(body.Format)
	if err != nil || format == reports.TypeQuickSummary {
		return badRequestf("format must be standard or detailed")
	}
	sections, err := middleware.ParseSections(body.Sections)
	if err != nil {
		return badRequest{err}
	}

	gen, err := r.dash.GenerateReport(req.Context(), sess, dashboard.GenerateCommand{Format: format, Sections: sections})
	if err != nil {
		return err
	}
	middleware.IncrementReports()
	return writeJSON(w, http.StatusCreated, gen)
}

// GET /api/v1/reports?q=&limit=
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	q := middleware.SanitizeString(req.URL.Query().Get("q"))
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.dash.History(req.Context(), q, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /api/v1/reports/stats
func (r *Router) handleStats(w http.ResponseWriter, req *http.Request) error {
	st, err := r.dash.Stats(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, st)
}

// GET /api/v1/reports/{id}
func (r *Router) handleDetails(w http.ResponseWriter, req *http.Request) error {
	id, err := middleware.ParseReportID(chi.URLParam(req, "id"))
	if err != nil {
		return badRequest{err}
	}
	d, err := r.dash.Details(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, d)
}

// GET /api/v1/reports/{id}/download
func (r *Router) handleDownload(w http.ResponseWriter, req *http.Request) error {
	id, err := middleware.ParseReportID(chi.URLParam(req, "id"))
	if err != nil {
		return badRequest{err}
	}
	rc, name, err := r.dash.Download(req.Context(), id)
	if err != nil {
		return err
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if _, err := io.Copy(w, rc); err != nil {
		zerolog.Ctx(req.Context()).Error().Err(err).Int64("report_id", int64(id)).Msg("download interrupted")
	}
	return nil
}

// POST /api/v1/quick-summaries (multipart file)
func (r *Router) handleQuickSummary(w http.ResponseWriter, req *http.Request) error {
	f, name, err := r.uploadedFile(w, req)
	if err != nil {
		return err
	}
	defer f.Close()

	out, err := r.dash.QuickSummary(req.Context(), name, f)
	if err != nil {
		return err
	}
	middleware.IncrementQuickSummaries()
	return writeJSON(w, http.StatusCreated, out)
}

// DELETE /api/v1/session
func (r *Router) handleReset(w http.ResponseWriter, req *http.Request) error {
	sess, err := currentSession(req)
	if err != nil {
		return err
	}
	r.dash.Reset(sess)
	w.WriteHeader(http.StatusNoContent)
	return nil
}
