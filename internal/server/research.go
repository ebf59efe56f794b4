package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nithiin7/deep-research-app/utils"
)

var researchTracer trace.Tracer = otel.Tracer("deepresearch/internal/server")

// ResearchRunner is the slice of the research manager the handler needs.
type ResearchRunner interface {
	Run(ctx context.Context, query string) <-chan string
}

// ResearchHandler exposes research runs over HTTP.
type ResearchHandler struct {
	runner ResearchRunner
	logger *log.Logger
}

// NewResearchHandler creates a handler for the given runner.
func NewResearchHandler(runner ResearchRunner) *ResearchHandler {
	return &ResearchHandler{
		runner: runner,
		logger: log.New(log.Writer(), "[RESEARCH] ", log.LstdFlags),
	}
}

// Register mounts the research routes on a group.
func (h *ResearchHandler) Register(g *echo.Group) {
	g.GET("/research/stream", h.streamResearch)
}

type statusEvent struct {
	Message string `json:"message"`
}

// streamResearch runs one research pipeline and streams status lines via
// Server-Sent Events. Each status line is one "status" event; the last
// status event carries the report body (or a terminal error line), and a
// final "done" event marks the stream as exhausted.
func (h *ResearchHandler) streamResearch(c echo.Context) error {
	req := c.Request()
	ctx := req.Context()
	ctx, span := researchTracer.Start(ctx, "ResearchHandler.streamResearch")
	defer span.End()

	query := utils.SanitizeQuery(c.QueryParam("query"))
	if query == "" {
		span.SetStatus(codes.Error, "query required")
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	span.SetAttributes(attribute.String("research.query", query))

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		span.SetStatus(codes.Error, "streaming unsupported")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}

	sendEvent := func(event string, payload interface{}) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if _, err := resp.Write([]byte("event: " + event + "\n")); err != nil {
			return err
		}
		if _, err := resp.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	for msg := range h.runner.Run(ctx, query) {
		if err := sendEvent("status", statusEvent{Message: msg}); err != nil {
			span.RecordError(err)
			h.logger.Printf("research stream write failed: %v", err)
			return nil
		}
	}

	if err := sendEvent("done", struct{}{}); err != nil {
		span.RecordError(err)
		h.logger.Printf("research stream close failed: %v", err)
	}
	return nil
}
