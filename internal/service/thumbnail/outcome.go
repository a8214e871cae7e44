package thumbnail

import (
	"context"
	"errors"

	"github.com/aliskhannn/thumbnail-proxy/internal/fetcher"
	"github.com/aliskhannn/thumbnail-proxy/internal/opcodec"
	"github.com/aliskhannn/thumbnail-proxy/internal/processor"
)

// Outcome classifies the result of a render for the transport layer.
type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeClientError means the request or its source was at fault.
	OutcomeClientError
	// OutcomeServerError means the service failed to produce the output.
	OutcomeServerError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeClientError:
		return "client_error"
	default:
		return "server_error"
	}
}

// Classify maps a Render error to an Outcome.
// Unreachable sources and undecodable source images are the client's fault;
// failures to encode output, and anything unrecognized, are the server's.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, opcodec.ErrMalformedSpec),
		errors.Is(err, processor.ErrInvalidOperation),
		errors.Is(err, fetcher.ErrFetch),
		errors.Is(err, processor.ErrDecode),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return OutcomeClientError
	default:
		return OutcomeServerError
	}
}
