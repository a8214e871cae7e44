// Command spec-url prints a thumbnail proxy URL for a source image and a
// sequence of operations given on the command line.
//
//	spec-url --resize 200x200:lanczos3 --filter sepia --watermark 10,10 https://example.com/cat.png
package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/aliskhannn/thumbnail-proxy/internal/model"
	"github.com/aliskhannn/thumbnail-proxy/internal/opcodec"
)

var errBadOp = errors.New("invalid operation flag")

// opFlag collects operations in the order their flags appear.
type opFlag struct {
	kind string
	ops  *model.OperationList
}

func (f *opFlag) String() string { return "" }
func (f *opFlag) Type() string   { return "op" }

func (f *opFlag) Set(value string) error {
	op, err := parseOp(f.kind, value)
	if err != nil {
		return err
	}
	*f.ops = append(*f.ops, op)
	return nil
}

func parseOp(kind, value string) (model.Operation, error) {
	switch kind {
	case "resize":
		return parseResize(value)
	case "watermark":
		x, y, ok := strings.Cut(value, ",")
		if !ok {
			return nil, fmt.Errorf("%w: watermark wants X,Y, got %q", errBadOp, value)
		}
		xv, err := strconv.ParseUint(strings.TrimSpace(x), 10, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: watermark x: %v", errBadOp, err)
		}
		yv, err := strconv.ParseUint(strings.TrimSpace(y), 10, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: watermark y: %v", errBadOp, err)
		}
		return model.Watermark{X: uint(xv), Y: uint(yv)}, nil
	case "filter":
		name := model.ColorFilterName(strings.ToLower(value))
		if !name.Valid() {
			return nil, fmt.Errorf("%w: unknown filter %q", errBadOp, value)
		}
		return model.ColorFilter{Name: name}, nil
	default:
		return nil, fmt.Errorf("%w: %s", errBadOp, kind)
	}
}

// parseResize parses WxH with an optional :filter suffix.
func parseResize(value string) (model.Operation, error) {
	dims, filterName, hasFilter := strings.Cut(value, ":")

	w, h, ok := strings.Cut(strings.ToLower(dims), "x")
	if !ok {
		return nil, fmt.Errorf("%w: resize wants WxH[:filter], got %q", errBadOp, value)
	}

	width, err := strconv.ParseUint(w, 10, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: resize width: %v", errBadOp, err)
	}
	height, err := strconv.ParseUint(h, 10, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: resize height: %v", errBadOp, err)
	}

	filter := model.Lanczos3
	if hasFilter {
		filter, err = model.ParseResampleFilter(filterName)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadOp, err)
		}
	}

	return model.Resize{Width: uint(width), Height: uint(height), Filter: filter}, nil
}

// buildURL assembles base/image/{token}/{escaped source}[?format=...].
func buildURL(base string, ops model.OperationList, source, format string) (string, error) {
	token, err := opcodec.Encode(ops)
	if err != nil {
		return "", err
	}

	u := strings.TrimRight(base, "/") + "/image/" + token + "/" + url.PathEscape(source)
	if format != "" {
		u += "?format=" + url.QueryEscape(format)
	}
	return u, nil
}

func main() {
	var ops model.OperationList

	fs := pflag.NewFlagSet("spec-url", pflag.ExitOnError)
	fs.Var(&opFlag{kind: "resize", ops: &ops}, "resize", "resize to WxH[:filter] (nearest, triangle, catmullrom, gaussian, lanczos3)")
	fs.Var(&opFlag{kind: "watermark", ops: &ops}, "watermark", "overlay the watermark at X,Y")
	fs.Var(&opFlag{kind: "filter", ops: &ops}, "filter", "apply a color filter by name")
	base := fs.String("base", "http://localhost:3000", "proxy base URL")
	format := fs.String("format", "", "output format (png, jpeg, gif)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: spec-url [flags] SOURCE_URL")
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}

	u, err := buildURL(*base, ops, fs.Arg(0), *format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(u)
}
