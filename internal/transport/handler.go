package transport

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go-leaf-inspector/internal/config"
	apperrors "go-leaf-inspector/internal/errors"
	"go-leaf-inspector/internal/labels"
	"go-leaf-inspector/internal/observer"
	"go-leaf-inspector/internal/preprocess"
	"go-leaf-inspector/internal/repository"
	"go-leaf-inspector/internal/service"
	"go-leaf-inspector/pkg/models"
	"go-leaf-inspector/pkg/services"

	"github.com/gin-gonic/gin"
)

// Dependencies wires the HTTP API to the application.
type Dependencies struct {
	Service service.PredictionService
	Reports *services.ReportService
	Metrics *observer.MetricsObserver
	Repo    repository.PredictionRepository
}

func NewHandler(deps Dependencies, cfg *config.Config) http.Handler {
	r := gin.New()

	r.Use(
		gin.Recovery(),
		requestID(),
		requestLogger(),
		corsMiddleware(cfg.AllowedOrigins),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		requestTimeout(cfg.RequestTimeout),
		errorHandler(),
	)

	h := &handler{deps: deps}
	r.GET("/health", h.healthCheck)
	r.GET("/models", h.listModels)
	r.GET("/metrics", h.metrics)
	r.POST("/predict", h.predict)

	predictions := r.Group("/predictions")
	predictions.GET("", h.listPredictions)
	predictions.GET("/export", h.exportPredictions)
	predictions.GET("/export.pdf", h.exportPredictionsPDF)
	predictions.GET("/summary", h.summary)
	predictions.GET("/:id", h.getPrediction)
	predictions.DELETE("/:id", h.deletePrediction)

	return r
}

type handler struct {
	deps Dependencies
}

func (h *handler) healthCheck(c *gin.Context) {
	infos := h.deps.Service.Models()
	available := 0
	for _, info := range infos {
		if info.Loaded {
			available++
		}
	}

	resp := models.HealthResponse{
		Status:          "available",
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		ModelsLoaded:    len(infos),
		ModelsAvailable: available,
		Repository:      "none",
	}
	code := http.StatusOK
	if h.deps.Repo != nil {
		resp.Repository = h.deps.Repo.Name()
		if err := h.deps.Repo.Ping(c.Request.Context()); err != nil {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	if available == 0 {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

func (h *handler) listModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": h.deps.Service.Models()})
}

func (h *handler) metrics(c *gin.Context) {
	if h.deps.Metrics == nil {
		c.JSON(http.StatusOK, observer.Metrics{})
		return
	}
	c.JSON(http.StatusOK, h.deps.Metrics.GetMetrics())
}

// predict accepts either JSON {source, model} or a multipart form with an
// "image" file and a "model" field.
func (h *handler) predict(c *gin.Context) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		h.predictUpload(c)
		return
	}

	var req models.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "invalid request format", bindError("expected JSON {source, model}", err))
		return
	}
	result, err := h.deps.Service.Predict(c.Request.Context(), req)
	if err != nil {
		fail(c, "prediction failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) predictUpload(c *gin.Context) {
	model := c.PostForm("model")
	if strings.TrimSpace(model) == "" {
		fail(c, "invalid request format", apperrors.NewValidationError("model is required", nil))
		return
	}
	fh, err := c.FormFile("image")
	if err != nil {
		fail(c, "invalid request format", bindError("image file is required", err))
		return
	}

	f, err := fh.Open()
	if err != nil {
		fail(c, "failed to read upload", apperrors.NewInternalError("cannot open upload", err))
		return
	}
	defer f.Close()

	img, err := preprocess.Decode(f)
	if err != nil {
		fail(c, "prediction failed", err)
		return
	}
	result, err := h.deps.Service.PredictImage(c.Request.Context(), fh.Filename, img, model)
	if err != nil {
		fail(c, "prediction failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// bindError keeps body-limit errors intact so they map to 413.
func bindError(message string, err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return err
	}
	return apperrors.NewValidationError(message, err)
}

func bindFilter(c *gin.Context) (models.PredictionFilter, bool) {
	var filter models.PredictionFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		fail(c, "invalid query", apperrors.NewValidationError("invalid filter", err))
		return filter, false
	}
	if filter.Label != "" {
		if _, ok := labels.Parse(filter.Label); !ok {
			fail(c, "invalid query", apperrors.NewValidationError("unknown label "+strconv.Quote(filter.Label), nil))
			return filter, false
		}
	}
	return filter, true
}

func (h *handler) listPredictions(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}
	records, err := h.deps.Service.History(c.Request.Context(), filter)
	if err != nil {
		fail(c, "failed to list predictions", err)
		return
	}
	if records == nil {
		records = []*models.PredictionRecord{}
	}
	c.JSON(http.StatusOK, models.PredictionListResponse{Count: len(records), Predictions: records})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, "invalid id", apperrors.NewValidationError("id must be a positive integer", err))
		return 0, false
	}
	return id, true
}

func (h *handler) getPrediction(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rec, err := h.deps.Service.GetPrediction(c.Request.Context(), id)
	if err != nil {
		fail(c, "failed to get prediction", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *handler) deletePrediction(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.deps.Service.DeletePrediction(c.Request.Context(), id); err != nil {
		fail(c, "failed to delete prediction", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) exportPredictions(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.deps.Reports.ExportCSV(c.Request.Context(), &buf, filter); err != nil {
		fail(c, "export failed", apperrors.NewInternalError("cannot export predictions", err))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="predictions.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *handler) exportPredictionsPDF(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.deps.Reports.ExportPDF(c.Request.Context(), &buf, filter); err != nil {
		fail(c, "export failed", apperrors.NewInternalError("cannot render report", err))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="corn_detection_results.pdf"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (h *handler) summary(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}
	summary, err := h.deps.Reports.Summary(c.Request.Context(), filter)
	if err != nil {
		fail(c, "summary failed", apperrors.NewInternalError("cannot summarize predictions", err))
		return
	}
	c.JSON(http.StatusOK, summary)
}
