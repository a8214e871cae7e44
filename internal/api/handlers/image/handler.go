package image

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/thumbnail-proxy/internal/api/respond"
	"github.com/aliskhannn/thumbnail-proxy/internal/model"
	"github.com/aliskhannn/thumbnail-proxy/internal/repository/render"
	"github.com/aliskhannn/thumbnail-proxy/internal/service/thumbnail"
)

const maxPrewarmURLs = 100

// service defines the interface for the thumbnail pipeline.
type service interface {
	Render(ctx context.Context, token, sourceURL string, format model.OutputFormat) (model.Rendition, error)
	Prewarm(ctx context.Context, sourceURL string) error
	GetRender(ctx context.Context, id uuid.UUID) (model.Render, error)
}

// producer defines the interface for enqueueing prewarm tasks (e.g., to Kafka).
type producer interface {
	Enqueue(ctx context.Context, task model.PrewarmTask) error
}

// Handler provides HTTP handlers for image-related endpoints.
type Handler struct {
	service       service
	producer      producer
	defaultFormat model.OutputFormat
}

// NewHandler creates a new Handler. A nil producer makes prewarm requests
// run synchronously in the handler.
func NewHandler(s service, p producer, defaultFormat model.OutputFormat) *Handler {
	if defaultFormat == "" {
		defaultFormat = model.PNG
	}
	return &Handler{service: s, producer: p, defaultFormat: defaultFormat}
}

// PrewarmRequest lists sources to fetch into the cache ahead of time.
type PrewarmRequest struct {
	URLs []string `json:"urls"`
}

// Get renders /image/:spec/*url and writes the transformed image.
func (h *Handler) Get(c *ginext.Context) {
	token := c.Param("spec")

	sourceURL, err := sourceFromPath(c.Request.URL, token, c.Param("url"))
	if err != nil || sourceURL == "" {
		zlog.Logger.Warn().Str("path", c.Request.URL.Path).Msg("invalid source url")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid source url"))
		return
	}

	format, err := model.ParseOutputFormat(c.Query("format"), h.defaultFormat)
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	out, err := h.service.Render(c.Request.Context(), token, sourceURL, format)
	if err != nil {
		switch thumbnail.Classify(err) {
		case thumbnail.OutcomeClientError:
			zlog.Logger.Warn().Err(err).Str("source_url", sourceURL).Msg("render rejected")
			respond.Fail(c, http.StatusBadRequest, err)
		default:
			zlog.Logger.Error().Err(err).Str("source_url", sourceURL).Str("render_id", out.ID.String()).Msg("failed to render image")
			respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to render image"))
		}
		return
	}

	zlog.Logger.Info().
		Str("render_id", out.ID.String()).
		Int("bytes", len(out.Data)).
		Bool("cache_hit", out.CacheHit).
		Msg("finished processing")

	cacheStatus := "MISS"
	if out.CacheHit {
		cacheStatus = "HIT"
	}
	c.Header("X-Cache", cacheStatus)
	c.Header("X-Render-Id", out.ID.String())

	respond.Image(c, out.ContentType, out.Data)
}

// Prewarm accepts a list of sources and warms the cache with them.
func (h *Handler) Prewarm(c *ginext.Context) {
	var req PrewarmRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Err(err).Msg("failed to unmarshal prewarm request")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("failed to unmarshal the request"))
		return
	}

	if len(req.URLs) == 0 || len(req.URLs) > maxPrewarmURLs {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("urls must contain between 1 and %d entries", maxPrewarmURLs))
		return
	}

	ids := make([]uuid.UUID, 0, len(req.URLs))

	for _, u := range req.URLs {
		task := model.PrewarmTask{ID: uuid.New(), SourceURL: u}

		if h.producer != nil {
			if err := h.producer.Enqueue(c.Request.Context(), task); err != nil {
				zlog.Logger.Err(err).Msg("failed to enqueue prewarm task")
				respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to enqueue prewarm task"))
				return
			}
		} else if err := h.service.Prewarm(c.Request.Context(), u); err != nil {
			zlog.Logger.Warn().Err(err).Str("source_url", u).Msg("failed to prewarm source")
			respond.Fail(c, http.StatusBadRequest, err)
			return
		}

		ids = append(ids, task.ID)
	}

	respond.Accepted(c, map[string]interface{}{
		"tasks": ids,
	})
}

// GetRender returns journal metadata about a previous render.
func (h *Handler) GetRender(c *ginext.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid id"))
		return
	}

	rec, err := h.service.GetRender(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, render.ErrRenderNotFound) || errors.Is(err, thumbnail.ErrJournalDisabled) {
			respond.Fail(c, http.StatusNotFound, fmt.Errorf("render not found"))
			return
		}

		zlog.Logger.Err(err).Msg("failed to get render")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to get render"))
		return
	}

	respond.OK(c, rec)
}

// Health reports that the server is up.
func (h *Handler) Health(c *ginext.Context) {
	respond.OK(c, "ok")
}

// sourceFromPath extracts the percent-encoded source URL following
// /image/{token}/ and decodes it. The escaped path is used so that encoded
// slashes and query characters in the source survive routing.
func sourceFromPath(u *url.URL, token, param string) (string, error) {
	prefix := "/image/" + token + "/"

	escaped := u.EscapedPath()
	if strings.HasPrefix(escaped, prefix) {
		return url.PathUnescape(strings.TrimPrefix(escaped, prefix))
	}

	// Fall back to the router's already-decoded wildcard.
	return strings.TrimPrefix(param, "/"), nil
}
