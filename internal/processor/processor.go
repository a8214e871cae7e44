package processor

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder

	"github.com/aliskhannn/thumbnail-proxy/internal/model"
)

var (
	// ErrDecode is returned when the source bytes are not a recognizable image.
	ErrDecode = errors.New("decode source image")
	// ErrInvalidOperation is returned for operations with out-of-range parameters.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrEncode is returned when the output image cannot be produced.
	ErrEncode = errors.New("encode output image")
)

const (
	defaultMaxDimension    = 8192
	defaultMaxSourcePixels = 50_000_000
	defaultJPEGQuality     = 90
)

// Options configures a Processor. Zero values select defaults.
type Options struct {
	// MaxDimension bounds the width and height accepted by Resize.
	MaxDimension uint
	// MaxSourcePixels bounds width*height of a source before it is decoded.
	MaxSourcePixels int64
	JPEGQuality     int
}

// Result is an encoded output image.
type Result struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Processor applies operation lists to source images.
// It is stateless apart from the immutable watermark and safe for concurrent use.
type Processor struct {
	watermark       image.Image
	maxDimension    uint
	maxSourcePixels int64
	jpegQuality     int
}

// New creates a Processor that composites wm for Watermark operations.
func New(wm image.Image, opts Options) *Processor {
	p := &Processor{
		watermark:       wm,
		maxDimension:    opts.MaxDimension,
		maxSourcePixels: opts.MaxSourcePixels,
		jpegQuality:     opts.JPEGQuality,
	}
	if p.maxDimension == 0 {
		p.maxDimension = defaultMaxDimension
	}
	if p.maxSourcePixels <= 0 {
		p.maxSourcePixels = defaultMaxSourcePixels
	}
	if p.jpegQuality <= 0 || p.jpegQuality > 100 {
		p.jpegQuality = defaultJPEGQuality
	}
	return p
}

// Apply decodes src, runs ops in order and encodes the result as format.
func (p *Processor) Apply(src []byte, ops model.OperationList, format model.OutputFormat) (Result, error) {
	// Compressed size says nothing about decoded size; check the header first.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > p.maxSourcePixels {
		return Result{}, fmt.Errorf("%w: source is %dx%d, limit is %d pixels", ErrDecode, cfg.Width, cfg.Height, p.maxSourcePixels)
	}

	decoded, err := imaging.Decode(bytes.NewReader(src))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	img := imaging.Clone(decoded)

	for i, op := range ops {
		img, err = p.apply(img, op)
		if err != nil {
			return Result{}, fmt.Errorf("operation %d: %w", i, err)
		}
	}

	imgFormat, err := imagingFormat(format)
	if err != nil {
		return Result{}, err
	}

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imgFormat, imaging.JPEGQuality(p.jpegQuality)); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	bounds := img.Bounds()

	return Result{
		Data:        buf.Bytes(),
		ContentType: format.ContentType(),
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

func (p *Processor) apply(img *image.NRGBA, op model.Operation) (*image.NRGBA, error) {
	switch o := op.(type) {
	case model.Resize:
		return p.resize(img, o)
	case model.Watermark:
		return p.composite(img, o), nil
	case model.ColorFilter:
		return applyFilter(img, o.Name)
	default:
		return nil, fmt.Errorf("%w: unsupported operation %T", ErrInvalidOperation, op)
	}
}

// resize rescales the image to exactly the requested width and height.
func (p *Processor) resize(img *image.NRGBA, op model.Resize) (*image.NRGBA, error) {
	if op.Width == 0 || op.Height == 0 {
		return nil, fmt.Errorf("%w: resize to %dx%d", ErrInvalidOperation, op.Width, op.Height)
	}
	if op.Width > p.maxDimension || op.Height > p.maxDimension {
		return nil, fmt.Errorf("%w: resize to %dx%d exceeds %d", ErrInvalidOperation, op.Width, op.Height, p.maxDimension)
	}

	filter, ok := resampleFilters[op.Filter]
	if !ok {
		return nil, fmt.Errorf("%w: unknown resample filter %d", ErrInvalidOperation, op.Filter)
	}

	return imaging.Resize(img, int(op.Width), int(op.Height), filter), nil
}

// composite draws the watermark with its top-left corner at (X, Y).
// Offsets that place it fully outside the canvas leave the image unchanged;
// partial overlap is clipped at the canvas edge.
func (p *Processor) composite(img *image.NRGBA, op model.Watermark) *image.NRGBA {
	if p.watermark == nil {
		return img
	}

	bounds := img.Bounds()
	if uint64(op.X) >= uint64(bounds.Dx()) || uint64(op.Y) >= uint64(bounds.Dy()) {
		return img
	}
	return imaging.Overlay(img, p.watermark, image.Pt(int(op.X), int(op.Y)), 1.0)
}

var resampleFilters = map[model.ResampleFilter]imaging.ResampleFilter{
	model.Nearest:    imaging.NearestNeighbor,
	model.Triangle:   imaging.Linear,
	model.CatmullRom: imaging.CatmullRom,
	model.Gaussian:   imaging.Gaussian,
	model.Lanczos3:   imaging.Lanczos,
}

func imagingFormat(f model.OutputFormat) (imaging.Format, error) {
	switch f {
	case model.PNG, "":
		return imaging.PNG, nil
	case model.JPEG:
		return imaging.JPEG, nil
	case model.GIF:
		return imaging.GIF, nil
	default:
		return 0, fmt.Errorf("%w: unsupported output format %q", ErrEncode, f)
	}
}
