package validation

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/openteam-dev/openteam-go/shared/domain"
)

var (
	ErrEmptyPayload = fmt.Errorf("attachment payload is empty")
	ErrTooLarge     = fmt.Errorf("attachment exceeds size limit")
)

// NormalizeSource validates a binary source against the size limit and
// fills in a usable content type when the declared one is missing or
// generic. The returned source is what enters the draft store.
func NormalizeSource(src domain.BinarySource, maxBytes int64) (domain.BinarySource, error) {
	if len(src.Bytes) == 0 {
		return src, ErrEmptyPayload
	}
	if maxBytes > 0 && src.Size() > maxBytes {
		return src, fmt.Errorf("%w: %s is %d bytes, max %d", ErrTooLarge, src.SuggestedName, src.Size(), maxBytes)
	}
	src.ContentType = DetectContentType(src)
	return src, nil
}

// DetectContentType resolves the effective content type: declared value
// first, then the filename extension, then content sniffing.
func DetectContentType(src domain.BinarySource) string {
	contentType := src.ContentType
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}

	if ext := filepath.Ext(src.SuggestedName); ext != "" {
		if detected := mime.TypeByExtension(ext); detected != "" {
			return detected
		}
	}

	return http.DetectContentType(src.Bytes)
}

// ImageDimensions decodes the pixel size of an image payload. Returns
// zeros for non-images and undecodable data; never an error, dimensions
// are presentation metadata only.
func ImageDimensions(src domain.BinarySource) (width, height int) {
	if !strings.HasPrefix(src.ContentType, "image/") {
		return 0, 0
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(src.Bytes))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
