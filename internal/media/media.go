// Package media turns a picked photo into the string stored in a record:
// inline base64 JPEG, or the URL of an uploaded object.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/travelog/travelog/internal/storage"
	"github.com/travelog/travelog/internal/validation"
	"golang.org/x/image/draw"
)

var ErrUnsupportedImage = errors.New("unsupported image")

// Encoder converts the image file at path into an image reference.
type Encoder interface {
	Encode(ctx context.Context, path string) (string, error)
	// Release discards a reference no record points to anymore.
	Release(ctx context.Context, ref string)
}

// step is one rung of the compression ladder. A result whose base64 form is
// within limit bytes is accepted; limit 0 accepts anything.
type step struct {
	maxEdge int
	quality int
	limit   int
}

var ladder = []step{
	{maxEdge: 800, quality: 60, limit: 500 << 10},
	{maxEdge: 600, quality: 50, limit: 300 << 10},
	{maxEdge: 400, quality: 40},
}

// Load validates and decodes the image file at path.
func Load(path string) (image.Image, error) {
	_, err := validation.ValidateFile(path, validation.ImageConstraints)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, nil
}

// Compress re-encodes img as JPEG, shrinking until the base64 form fits.
func Compress(img image.Image) ([]byte, error) {
	return compress(img, ladder)
}

func compress(img image.Image, steps []step) ([]byte, error) {
	var out []byte
	for _, s := range steps {
		var buf bytes.Buffer
		err := jpeg.Encode(&buf, resize(img, s.maxEdge), &jpeg.Options{Quality: s.quality})
		if err != nil {
			return nil, fmt.Errorf("failed to encode jpeg: %w", err)
		}

		out = buf.Bytes()
		size := base64.StdEncoding.EncodedLen(len(out))
		if s.limit == 0 || size <= s.limit {
			break
		}
		slog.Debug("image still too large", "bytes", size, "max_edge", s.maxEdge)
	}
	return out, nil
}

// resize scales img so its longer edge is at most maxEdge. Smaller images are
// left alone.
func resize(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxEdge && h <= maxEdge {
		return img
	}

	if w >= h {
		h = max(1, h*maxEdge/w)
		w = maxEdge
	} else {
		w = max(1, w*maxEdge/h)
		h = maxEdge
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// InlineEncoder embeds the compressed image in the record.
type InlineEncoder struct{}

func (InlineEncoder) Encode(_ context.Context, path string) (string, error) {
	img, err := Load(path)
	if err != nil {
		return "", err
	}

	data, err := Compress(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Release is a no-op: inline images live and die with their record.
func (InlineEncoder) Release(context.Context, string) {}

// S3Encoder uploads the compressed image and stores its URL in the record.
type S3Encoder struct {
	storage storage.Storage
}

func NewS3Encoder(s storage.Storage) *S3Encoder {
	return &S3Encoder{storage: s}
}

func (e *S3Encoder) Encode(ctx context.Context, path string) (string, error) {
	img, err := Load(path)
	if err != nil {
		return "", err
	}

	data, err := Compress(img)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("public/images/%s.jpg", uuid.New().String())
	err = e.storage.Save(ctx, key, bytes.NewReader(data), "image/jpeg")
	if err != nil {
		return "", err
	}

	slog.Info("image uploaded", "key", key, "bytes", len(data))
	return e.storage.URL(key), nil
}

// Release deletes the uploaded object behind ref. References to other hosts
// and inline images are left alone. Failures only leave an orphaned object.
func (e *S3Encoder) Release(ctx context.Context, ref string) {
	key, ok := e.storage.KeyFromURL(ref)
	if !ok {
		return
	}

	err := e.storage.Delete(ctx, key)
	if err != nil {
		slog.Warn("failed to delete image", "key", key, "error", err)
		return
	}
	slog.Info("image deleted", "key", key)
}

// IsURL reports whether ref points to a remote image.
func IsURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// IsInline reports whether ref holds the image bytes themselves.
func IsInline(ref string) bool {
	return ref != "" && !IsURL(ref)
}

// DecodeInline returns the image bytes of an inline reference.
func DecodeInline(ref string) ([]byte, error) {
	if !IsInline(ref) {
		return nil, fmt.Errorf("%w: not an inline image", ErrUnsupportedImage)
	}

	data, err := base64.StdEncoding.DecodeString(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return data, nil
}
