// Package opcodec converts operation lists to and from spec tokens.
//
// A spec token is the base64url (unpadded) encoding of a CBOR record with
// small integer keys. The record is encoded with Core Deterministic Encoding
// (RFC 8949 §4.2), so the same list always yields the same token. Every field
// is optional and unknown keys are ignored on decode, which lets new fields
// be added without invalidating tokens already in circulation.
package opcodec

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/aliskhannn/thumbnail-proxy/internal/model"
)

// ErrMalformedSpec is returned when a token cannot be decoded into an operation list.
var ErrMalformedSpec = errors.New("malformed spec")

// Version is the schema version written into every token.
const Version = 1

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("opcodec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		IndefLength:      cbor.IndefLengthForbidden,
		MaxArrayElements: 1024,
		MaxMapPairs:      64,
		MaxNestedLevels:  8,
	}.DecMode()
	if err != nil {
		panic("opcodec: CBOR decoder initialization failed: " + err.Error())
	}
}

type wireSpec struct {
	Version uint     `cbor:"1,keyasint,omitempty"`
	Ops     []wireOp `cbor:"2,keyasint,omitempty"`
}

// wireOp holds exactly one non-nil variant.
type wireOp struct {
	Resize    *wireResize    `cbor:"1,keyasint,omitempty"`
	Watermark *wireWatermark `cbor:"2,keyasint,omitempty"`
	Filter    *wireFilter    `cbor:"3,keyasint,omitempty"`
}

type wireResize struct {
	Width  uint64 `cbor:"1,keyasint,omitempty"`
	Height uint64 `cbor:"2,keyasint,omitempty"`
	Filter uint8  `cbor:"3,keyasint,omitempty"`
}

type wireWatermark struct {
	X uint64 `cbor:"1,keyasint,omitempty"`
	Y uint64 `cbor:"2,keyasint,omitempty"`
}

type wireFilter struct {
	Name string `cbor:"1,keyasint,omitempty"`
}

// Encode serializes ops into a URL-path-safe token.
func Encode(ops model.OperationList) (string, error) {
	spec := wireSpec{Version: Version, Ops: make([]wireOp, 0, len(ops))}

	for i, op := range ops {
		var w wireOp

		switch o := op.(type) {
		case model.Resize:
			if !o.Filter.Valid() {
				return "", fmt.Errorf("operation %d: unknown resample filter %d", i, o.Filter)
			}
			w.Resize = &wireResize{Width: uint64(o.Width), Height: uint64(o.Height), Filter: uint8(o.Filter)}
		case model.Watermark:
			w.Watermark = &wireWatermark{X: uint64(o.X), Y: uint64(o.Y)}
		case model.ColorFilter:
			if !o.Name.Valid() {
				return "", fmt.Errorf("operation %d: unknown color filter %q", i, o.Name)
			}
			w.Filter = &wireFilter{Name: string(o.Name)}
		default:
			return "", fmt.Errorf("operation %d: unsupported operation type %T", i, op)
		}

		spec.Ops = append(spec.Ops, w)
	}

	data, err := encMode.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("encode spec: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(data), nil
}

// MustEncode is like Encode but panics on error.
func MustEncode(ops model.OperationList) string {
	token, err := Encode(ops)
	if err != nil {
		panic(err)
	}
	return token
}

// Decode parses a token produced by Encode.
// Any failure is reported as ErrMalformedSpec. A token with no operations
// decodes to a non-nil empty list, whether Encode was given nil or an empty list.
func Decode(token string) (model.OperationList, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrMalformedSpec, err)
	}

	var spec wireSpec
	if err := decMode.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: invalid record: %v", ErrMalformedSpec, err)
	}

	if spec.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedSpec, spec.Version)
	}

	ops := make(model.OperationList, 0, len(spec.Ops))
	for i, w := range spec.Ops {
		op, err := decodeOp(w)
		if err != nil {
			return nil, fmt.Errorf("%w: operation %d: %v", ErrMalformedSpec, i, err)
		}
		ops = append(ops, op)
	}

	return ops, nil
}

func decodeOp(w wireOp) (model.Operation, error) {
	set := 0
	if w.Resize != nil {
		set++
	}
	if w.Watermark != nil {
		set++
	}
	if w.Filter != nil {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("expected exactly one operation kind, got %d", set)
	}

	switch {
	case w.Resize != nil:
		filter := model.ResampleFilter(w.Resize.Filter)
		if !filter.Valid() {
			return nil, fmt.Errorf("unknown resample filter %d", w.Resize.Filter)
		}
		width, err := toUint(w.Resize.Width)
		if err != nil {
			return nil, fmt.Errorf("width: %w", err)
		}
		height, err := toUint(w.Resize.Height)
		if err != nil {
			return nil, fmt.Errorf("height: %w", err)
		}
		return model.Resize{Width: width, Height: height, Filter: filter}, nil
	case w.Watermark != nil:
		x, err := toUint(w.Watermark.X)
		if err != nil {
			return nil, fmt.Errorf("x: %w", err)
		}
		y, err := toUint(w.Watermark.Y)
		if err != nil {
			return nil, fmt.Errorf("y: %w", err)
		}
		return model.Watermark{X: x, Y: y}, nil
	default:
		name := model.ColorFilterName(w.Filter.Name)
		if !name.Valid() {
			return nil, fmt.Errorf("unknown color filter %q", w.Filter.Name)
		}
		return model.ColorFilter{Name: name}, nil
	}
}

// toUint guards against values that do not fit uint on 32-bit platforms.
func toUint(v uint64) (uint, error) {
	if uint64(uint(v)) != v {
		return 0, fmt.Errorf("value %d out of range", v)
	}
	return uint(v), nil
}
