package model

import (
	"fmt"
	"strings"
)

// OutputFormat is the encoding of a rendered image.
type OutputFormat string

const (
	PNG  OutputFormat = "png"
	JPEG OutputFormat = "jpeg"
	GIF  OutputFormat = "gif"
)

// ContentType returns the MIME type sent with images of this format.
func (f OutputFormat) ContentType() string {
	switch f {
	case JPEG:
		return "image/jpeg"
	case GIF:
		return "image/gif"
	default:
		return "image/png"
	}
}

// ParseOutputFormat normalizes a user supplied format name.
// An empty name yields def.
func ParseOutputFormat(name string, def OutputFormat) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return def, nil
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "gif":
		return GIF, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", name)
	}
}
