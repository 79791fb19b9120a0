package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"rechtsbron/internal/grounding"
	"rechtsbron/internal/legalcontext"
	"rechtsbron/internal/search"
	dErrors "rechtsbron/pkg/domain-errors"
	"rechtsbron/pkg/platform/httputil"
	"rechtsbron/pkg/requestcontext"
)

// Service defines the grounding operations exposed over HTTP.
type Service interface {
	Build(ctx context.Context, req grounding.Request) (*grounding.Result, error)
	Analyze(question string) legalcontext.Analysis
	Search(ctx context.Context, query string, extraTerms []string) (*search.AggregatedResults, string)
	Terms(text string) []string
}

// Classifier labels result URLs.
type Classifier interface {
	Classify(rawURL string) string
}

// Handler wires the grounding endpoints to the service.
type Handler struct {
	service    Service
	classifier Classifier
	logger     *slog.Logger
}

// New constructs a grounding handler with its dependencies.
func New(service Service, classifier Classifier, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:    service,
		classifier: classifier,
		logger:     logger,
	}
}

// Register mounts every grounding endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	h.RegisterSearch(r)
	h.RegisterRead(r)
}

// RegisterSearch mounts the endpoints that fan out to the search backends.
func (h *Handler) RegisterSearch(r chi.Router) {
	r.Post("/v1/grounding", h.HandleGrounding)
	r.Post("/v1/search", h.HandleSearch)
}

// RegisterRead mounts the endpoints served from local data only.
func (h *Handler) RegisterRead(r chi.Router) {
	r.Post("/v1/analyze", h.HandleAnalyze)
	r.Post("/v1/terms", h.HandleTerms)
	r.Get("/v1/sources/classify", h.HandleClassify)
}

// HandleGrounding handles POST /v1/grounding requests.
func (h *Handler) HandleGrounding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[GroundingRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Build(ctx, grounding.Request{
		Question:    req.Question,
		DraftAnswer: req.DraftAnswer,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "grounding build failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}

// HandleAnalyze handles POST /v1/analyze requests.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[AnalyzeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	analysis := h.service.Analyze(req.Question)
	h.logger.InfoContext(ctx, "question analyzed",
		"request_id", requestID,
		"domains", analysis.DomainIDs(),
	)
	httputil.WriteJSON(w, http.StatusOK, analysis)
}

// HandleSearch handles POST /v1/search requests.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[SearchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	results, text := h.service.Search(ctx, req.Query, req.ExtraTerms)
	if err := ctx.Err(); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeTimeout, "request cancelled"))
		return
	}

	h.logger.InfoContext(ctx, "sources searched",
		"request_id", requestID,
		"results", results.Total(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromResults(results, text))
}

// HandleTerms handles POST /v1/terms requests.
func (h *Handler) HandleTerms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[TermsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	httputil.WriteJSON(w, http.StatusOK, TermsResponse{Terms: h.service.Terms(req.Text)})
}

// HandleClassify handles GET /v1/sources/classify?url= requests.
func (h *Handler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "url is required"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ClassifyResponse{URL: raw, Source: h.classifier.Classify(raw)})
}
