package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/thumbnail-proxy/internal/model"
	"github.com/aliskhannn/thumbnail-proxy/internal/opcodec"
	"github.com/aliskhannn/thumbnail-proxy/internal/processor"
)

// ErrJournalDisabled is returned by GetRender when no journal is configured.
var ErrJournalDisabled = errors.New("render journal is disabled")

const journalTimeout = 2 * time.Second

// sourceCache resolves source bytes, fetching them on a miss.
type sourceCache interface {
	GetOrFetch(ctx context.Context, url string) ([]byte, bool, error)
}

// engine applies operation lists to source bytes.
type engine interface {
	Apply(src []byte, ops model.OperationList, format model.OutputFormat) (processor.Result, error)
}

// journal records render outcomes (e.g., in PostgreSQL).
type journal interface {
	SaveRender(ctx context.Context, r model.Render) error
	GetRender(ctx context.Context, id uuid.UUID) (model.Render, error)
}

// observer receives per-render metrics.
type observer interface {
	ObserveRender(outcome string, d time.Duration, size int)
}

// Service is the request pipeline: decode spec token, resolve source bytes,
// apply operations and return the encoded image.
type Service struct {
	cache    sourceCache
	engine   engine
	journal  journal
	observer observer
}

// Option configures a Service.
type Option func(*Service)

// WithJournal records every render to j.
func WithJournal(j journal) Option {
	return func(s *Service) { s.journal = j }
}

// WithObserver reports render outcomes to o.
func WithObserver(o observer) Option {
	return func(s *Service) { s.observer = o }
}

// NewService creates a new Service with the given cache and engine.
func NewService(c sourceCache, e engine, opts ...Option) *Service {
	s := &Service{cache: c, engine: e}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Render runs the full pipeline for one request. It never returns partial results.
func (s *Service) Render(ctx context.Context, token, sourceURL string, format model.OutputFormat) (model.Rendition, error) {
	start := time.Now()
	id := uuid.New()

	rendition, err := s.render(ctx, token, sourceURL, format)
	rendition.ID = id

	outcome := Classify(err)
	s.record(ctx, model.Render{
		ID:         id,
		SpecToken:  token,
		SourceURL:  sourceURL,
		Format:     format,
		Status:     outcome.String(),
		Error:      errString(err),
		Bytes:      len(rendition.Data),
		CacheHit:   rendition.CacheHit,
		DurationMS: time.Since(start).Milliseconds(),
		CreatedAt:  start.UTC(),
	})
	if s.observer != nil {
		s.observer.ObserveRender(outcome.String(), time.Since(start), len(rendition.Data))
	}

	if err != nil {
		return model.Rendition{ID: id}, err
	}

	return rendition, nil
}

func (s *Service) render(ctx context.Context, token, sourceURL string, format model.OutputFormat) (model.Rendition, error) {
	ops, err := opcodec.Decode(token)
	if err != nil {
		return model.Rendition{}, fmt.Errorf("render: %w", err)
	}

	src, hit, err := s.cache.GetOrFetch(ctx, sourceURL)
	if err != nil {
		return model.Rendition{}, fmt.Errorf("render: resolve source: %w", err)
	}

	res, err := s.engine.Apply(src, ops, format)
	if err != nil {
		return model.Rendition{CacheHit: hit}, fmt.Errorf("render: %w", err)
	}

	return model.Rendition{
		Data:        res.Data,
		ContentType: res.ContentType,
		Width:       res.Width,
		Height:      res.Height,
		CacheHit:    hit,
	}, nil
}

// Prewarm fetches sourceURL into the cache without rendering it.
func (s *Service) Prewarm(ctx context.Context, sourceURL string) error {
	if _, _, err := s.cache.GetOrFetch(ctx, sourceURL); err != nil {
		return fmt.Errorf("prewarm: %w", err)
	}
	return nil
}

// GetRender returns the journal record of a previous render.
func (s *Service) GetRender(ctx context.Context, id uuid.UUID) (model.Render, error) {
	if s.journal == nil {
		return model.Render{}, ErrJournalDisabled
	}
	return s.journal.GetRender(ctx, id)
}

// record saves r to the journal. Journal failures never fail the request.
func (s *Service) record(ctx context.Context, r model.Render) {
	if s.journal == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()

	if err := s.journal.SaveRender(ctx, r); err != nil {
		zlog.Logger.Err(err).Str("render_id", r.ID.String()).Msg("failed to save render to journal")
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
