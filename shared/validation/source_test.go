package validation

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openteam-dev/openteam-go/shared/domain"
)

func pngPayload(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

func TestNormalizeSource(t *testing.T) {
	t.Run("empty payload rejected", func(t *testing.T) {
		_, err := NormalizeSource(domain.BinarySource{SuggestedName: "empty.txt"}, 0)
		assert.ErrorIs(t, err, ErrEmptyPayload)
	})

	t.Run("oversized payload rejected", func(t *testing.T) {
		src := domain.BinarySource{Bytes: make([]byte, 11), SuggestedName: "big.bin"}
		_, err := NormalizeSource(src, 10)
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("no limit when maxBytes is zero", func(t *testing.T) {
		src := domain.BinarySource{Bytes: make([]byte, 1024), SuggestedName: "any.bin"}
		_, err := NormalizeSource(src, 0)
		assert.NoError(t, err)
	})

	t.Run("declared content type wins", func(t *testing.T) {
		src := domain.BinarySource{Bytes: []byte("x"), ContentType: "text/markdown", SuggestedName: "a.bin"}
		out, err := NormalizeSource(src, 0)
		require.NoError(t, err)
		assert.Equal(t, "text/markdown", out.ContentType)
	})
}

func TestDetectContentType(t *testing.T) {
	t.Run("extension fallback", func(t *testing.T) {
		src := domain.BinarySource{Bytes: []byte("{}"), SuggestedName: "data.json"}
		assert.Equal(t, "application/json", DetectContentType(src))
	})

	t.Run("octet-stream is treated as undeclared", func(t *testing.T) {
		src := domain.BinarySource{
			Bytes:         []byte("{}"),
			ContentType:   "application/octet-stream",
			SuggestedName: "data.json",
		}
		assert.Equal(t, "application/json", DetectContentType(src))
	})

	t.Run("content sniffing as last resort", func(t *testing.T) {
		src := domain.BinarySource{Bytes: pngPayload(t, 2, 2), SuggestedName: "noext"}
		assert.Equal(t, "image/png", DetectContentType(src))
	})
}

func TestImageDimensions(t *testing.T) {
	t.Run("decodable image", func(t *testing.T) {
		src := domain.BinarySource{Bytes: pngPayload(t, 12, 7), ContentType: "image/png"}
		w, h := ImageDimensions(src)
		assert.Equal(t, 12, w)
		assert.Equal(t, 7, h)
	})

	t.Run("non-image returns zeros", func(t *testing.T) {
		src := domain.BinarySource{Bytes: []byte("plain text"), ContentType: "text/plain"}
		w, h := ImageDimensions(src)
		assert.Zero(t, w)
		assert.Zero(t, h)
	})

	t.Run("corrupt image returns zeros", func(t *testing.T) {
		src := domain.BinarySource{Bytes: []byte("not a png"), ContentType: "image/png"}
		w, h := ImageDimensions(src)
		assert.Zero(t, w)
		assert.Zero(t, h)
	})
}
