// Package imagex validates uploaded pet photos and derives their object
// storage keys.
package imagex

import (
	"bytes"
	"encoding/hex"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path"

	"github.com/dmitrijs2005/petmatch/internal/common"
	"golang.org/x/crypto/blake2b"
	_ "golang.org/x/image/webp"
)

// Accepted formats, keyed by the name image.DecodeConfig reports.
var accepted = map[string]Format{
	"jpeg": {ContentType: "image/jpeg", Extension: ".jpg"},
	"png":  {ContentType: "image/png", Extension: ".png"},
	"webp": {ContentType: "image/webp", Extension: ".webp"},
}

type Format struct {
	ContentType string
	Extension   string
}

// Info describes an accepted image.
type Info struct {
	Format
	Width  int
	Height int
}

// Inspect decodes only the image header and rejects empty payloads, unknown
// formats and zero-sized images.
func Inspect(data []byte) (*Info, error) {
	if len(data) == 0 {
		return nil, common.Validationf("image is required")
	}
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, common.Validationf("unsupported image: %v", err)
	}
	f, ok := accepted[name]
	if !ok {
		return nil, common.Validationf("unsupported image type %q", name)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, common.Validationf("image has no pixels")
	}
	return &Info{Format: f, Width: cfg.Width, Height: cfg.Height}, nil
}

// Digest returns a hex BLAKE2b-256 digest of data, truncated to 32 chars.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

// ObjectKey builds "<prefix>/<ownerID>/<digest><ext>".
func ObjectKey(prefix, ownerID string, data []byte, f Format) string {
	return path.Join(prefix, ownerID, Digest(data)+f.Extension)
}
