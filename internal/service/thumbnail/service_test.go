package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/thumbnail-proxy/internal/cache"
	"github.com/aliskhannn/thumbnail-proxy/internal/fetcher"
	"github.com/aliskhannn/thumbnail-proxy/internal/model"
	"github.com/aliskhannn/thumbnail-proxy/internal/opcodec"
	"github.com/aliskhannn/thumbnail-proxy/internal/processor"
)

const sourceURL = "https://images.example.com/photo.png"

type stubFetcher struct {
	calls atomic.Int64
	data  []byte
	err   error
}

func (f *stubFetcher) Fetch(context.Context, string) ([]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

type memJournal struct {
	mu      sync.Mutex
	renders map[uuid.UUID]model.Render
	err     error
}

func newMemJournal() *memJournal {
	return &memJournal{renders: make(map[uuid.UUID]model.Render)}
}

func (j *memJournal) SaveRender(_ context.Context, r model.Render) error {
	if j.err != nil {
		return j.err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.renders[r.ID] = r
	return nil
}

func (j *memJournal) GetRender(_ context.Context, id uuid.UUID) (model.Render, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	r, ok := j.renders[id]
	if !ok {
		return model.Render{}, errors.New("not found")
	}
	return r, nil
}

type recordingObserver struct {
	outcomes []string
}

func (o *recordingObserver) ObserveRender(outcome string, _ time.Duration, _ int) {
	o.outcomes = append(o.outcomes, outcome)
}

type failingEngine struct{ err error }

func (e failingEngine) Apply([]byte, model.OperationList, model.OutputFormat) (processor.Result, error) {
	return processor.Result{}, e.err
}

func sourcePNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 25), G: uint8(y * 25), B: 100, A: 255})
		}
	}

	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func newTestService(t *testing.T, f *stubFetcher, opts ...Option) *Service {
	t.Helper()

	c, err := cache.New(16, f)
	require.NoError(t, err)

	return NewService(c, processor.New(nil, processor.Options{}), opts...)
}

func TestRender_Identity(t *testing.T) {
	src := sourcePNG(t)
	f := &stubFetcher{data: src}
	s := newTestService(t, f)

	out, err := s.Render(context.Background(), opcodec.MustEncode(model.OperationList{}), sourceURL, model.PNG)
	require.NoError(t, err)
	assert.Equal(t, "image/png", out.ContentType)
	assert.NotEqual(t, uuid.Nil, out.ID)

	want, err := png.Decode(bytes.NewReader(src))
	require.NoError(t, err)
	got, err := png.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)

	require.Equal(t, image.Rect(0, 0, 10, 10), got.Bounds())
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			assert.Equal(t,
				color.NRGBAModel.Convert(want.At(x, y)),
				color.NRGBAModel.Convert(got.At(x, y)),
				"pixel (%d,%d)", x, y)
		}
	}
}

func TestRender_Resize(t *testing.T) {
	f := &stubFetcher{data: sourcePNG(t)}
	s := newTestService(t, f)

	token := opcodec.MustEncode(model.OperationList{model.Resize{Width: 5, Height: 5, Filter: model.Nearest}})
	out, err := s.Render(context.Background(), token, sourceURL, model.PNG)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 5), img.Bounds())
	assert.Equal(t, 5, out.Width)
	assert.Equal(t, 5, out.Height)
}

func TestRender_CacheHitFetchesOnce(t *testing.T) {
	f := &stubFetcher{data: sourcePNG(t)}
	s := newTestService(t, f)
	token := opcodec.MustEncode(model.OperationList{})

	first, err := s.Render(context.Background(), token, sourceURL, model.PNG)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := s.Render(context.Background(), token, sourceURL, model.PNG)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)

	assert.Equal(t, first.Data, second.Data)
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestRender_MalformedSpecShortCircuits(t *testing.T) {
	f := &stubFetcher{data: sourcePNG(t)}
	obs := &recordingObserver{}
	s := newTestService(t, f, WithObserver(obs))

	out, err := s.Render(context.Background(), "%%%not-a-token", sourceURL, model.PNG)
	require.ErrorIs(t, err, opcodec.ErrMalformedSpec)
	assert.Equal(t, OutcomeClientError, Classify(err))
	assert.Empty(t, out.Data)
	assert.EqualValues(t, 0, f.calls.Load())
	assert.Equal(t, []string{"client_error"}, obs.outcomes)
}

func TestRender_ErrorOutcomes(t *testing.T) {
	token := opcodec.MustEncode(model.OperationList{})

	t.Run("fetch failure", func(t *testing.T) {
		f := &stubFetcher{err: fmt.Errorf("%w: unexpected status 404", fetcher.ErrFetch)}
		_, err := newTestService(t, f).Render(context.Background(), token, sourceURL, model.PNG)
		assert.ErrorIs(t, err, fetcher.ErrFetch)
		assert.Equal(t, OutcomeClientError, Classify(err))
	})

	t.Run("not an image", func(t *testing.T) {
		f := &stubFetcher{data: []byte("<html>")}
		_, err := newTestService(t, f).Render(context.Background(), token, sourceURL, model.PNG)
		assert.ErrorIs(t, err, processor.ErrDecode)
		assert.Equal(t, OutcomeClientError, Classify(err))
	})

	t.Run("zero resize", func(t *testing.T) {
		f := &stubFetcher{data: sourcePNG(t)}
		zero := opcodec.MustEncode(model.OperationList{model.Resize{Width: 0, Height: 5}})
		_, err := newTestService(t, f).Render(context.Background(), zero, sourceURL, model.PNG)
		assert.ErrorIs(t, err, processor.ErrInvalidOperation)
		assert.Equal(t, OutcomeClientError, Classify(err))
	})

	t.Run("encode failure", func(t *testing.T) {
		f := &stubFetcher{data: sourcePNG(t)}
		c, err := cache.New(4, f)
		require.NoError(t, err)

		s := NewService(c, failingEngine{err: fmt.Errorf("%w: disk full", processor.ErrEncode)})
		out, err := s.Render(context.Background(), token, sourceURL, model.PNG)
		assert.ErrorIs(t, err, processor.ErrEncode)
		assert.Equal(t, OutcomeServerError, Classify(err))
		assert.Empty(t, out.Data)
	})
}

func TestRender_Journal(t *testing.T) {
	j := newMemJournal()
	s := newTestService(t, &stubFetcher{data: sourcePNG(t)}, WithJournal(j))
	token := opcodec.MustEncode(model.OperationList{model.ColorFilter{Name: model.Sepia}})

	out, err := s.Render(context.Background(), token, sourceURL, model.JPEG)
	require.NoError(t, err)

	r, err := s.GetRender(context.Background(), out.ID)
	require.NoError(t, err)
	assert.Equal(t, token, r.SpecToken)
	assert.Equal(t, sourceURL, r.SourceURL)
	assert.Equal(t, model.JPEG, r.Format)
	assert.Equal(t, "ok", r.Status)
	assert.Equal(t, len(out.Data), r.Bytes)

	failed, err := s.Render(context.Background(), "bad!", sourceURL, model.PNG)
	require.Error(t, err)
	r, err = s.GetRender(context.Background(), failed.ID)
	require.NoError(t, err)
	assert.Equal(t, "client_error", r.Status)
	assert.NotEmpty(t, r.Error)
}

func TestRender_JournalFailureDoesNotFailRequest(t *testing.T) {
	j := newMemJournal()
	j.err = errors.New("db down")
	s := newTestService(t, &stubFetcher{data: sourcePNG(t)}, WithJournal(j))

	_, err := s.Render(context.Background(), opcodec.MustEncode(model.OperationList{}), sourceURL, model.PNG)
	assert.NoError(t, err)
}

func TestGetRender_JournalDisabled(t *testing.T) {
	s := newTestService(t, &stubFetcher{})

	_, err := s.GetRender(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrJournalDisabled)
}

func TestPrewarm(t *testing.T) {
	f := &stubFetcher{data: sourcePNG(t)}
	s := newTestService(t, f)

	require.NoError(t, s.Prewarm(context.Background(), sourceURL))

	out, err := s.Render(context.Background(), opcodec.MustEncode(model.OperationList{}), sourceURL, model.PNG)
	require.NoError(t, err)
	assert.True(t, out.CacheHit)
	assert.EqualValues(t, 1, f.calls.Load())

	f.err = fmt.Errorf("%w: boom", fetcher.ErrFetch)
	assert.ErrorIs(t, s.Prewarm(context.Background(), "https://images.example.com/other.png"), fetcher.ErrFetch)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, OutcomeOK, Classify(nil))
	assert.Equal(t, OutcomeClientError, Classify(fmt.Errorf("wrapped: %w", context.Canceled)))
	assert.Equal(t, OutcomeServerError, Classify(errors.New("something else")))
	assert.Equal(t, "server_error", OutcomeServerError.String())
}
