package model

import "fmt"

// Operation is a single transform step applied to an image.
// The set of implementations is closed: Resize, Watermark and ColorFilter.
type Operation interface {
	isOperation()
}

// OperationList is an ordered sequence of operations. An empty list is the identity transform.
type OperationList []Operation

// Resize rescales the image to exactly Width x Height using Filter.
type Resize struct {
	Width  uint
	Height uint
	Filter ResampleFilter
}

// Watermark composites the fixed watermark image with its top-left corner at (X, Y).
type Watermark struct {
	X uint
	Y uint
}

// ColorFilter applies a named, predefined color transform.
type ColorFilter struct {
	Name ColorFilterName
}

func (Resize) isOperation()      {}
func (Watermark) isOperation()   {}
func (ColorFilter) isOperation() {}

// ResampleFilter names the resampling kernel used by Resize.
type ResampleFilter uint8

const (
	Nearest ResampleFilter = iota
	Triangle
	CatmullRom
	Gaussian
	Lanczos3
)

var resampleFilterNames = [...]string{
	Nearest:    "nearest",
	Triangle:   "triangle",
	CatmullRom: "catmullrom",
	Gaussian:   "gaussian",
	Lanczos3:   "lanczos3",
}

// Valid reports whether f is one of the known resampling filters.
func (f ResampleFilter) Valid() bool {
	return int(f) < len(resampleFilterNames)
}

func (f ResampleFilter) String() string {
	if !f.Valid() {
		return fmt.Sprintf("ResampleFilter(%d)", uint8(f))
	}
	return resampleFilterNames[f]
}

// ParseResampleFilter returns the filter with the given name.
func ParseResampleFilter(name string) (ResampleFilter, error) {
	for i, n := range resampleFilterNames {
		if n == name {
			return ResampleFilter(i), nil
		}
	}
	return 0, fmt.Errorf("unknown resample filter %q", name)
}

// ColorFilterName identifies one of the predefined color filters.
type ColorFilterName string

const (
	Oceanic   ColorFilterName = "oceanic"
	Islands   ColorFilterName = "islands"
	Marine    ColorFilterName = "marine"
	Grayscale ColorFilterName = "grayscale"
	Sepia     ColorFilterName = "sepia"
	Invert    ColorFilterName = "invert"
)

// ColorFilterNames lists every supported color filter.
var ColorFilterNames = []ColorFilterName{Oceanic, Islands, Marine, Grayscale, Sepia, Invert}

// Valid reports whether n is a known color filter.
func (n ColorFilterName) Valid() bool {
	for _, known := range ColorFilterNames {
		if n == known {
			return true
		}
	}
	return false
}
