package zarr

import (
	"io"

	"github.com/qri-io/dataset/compression"
)

// CompressionMeta defines compression settings zarr-go understands
type CompressionMeta struct {
	ID      string `json:"id"`
	Cname   string `json:"cname,omitempty"`
	Clevel  int    `json:"clevel,omitempty"`
	Shuffle int    `json:"shuffle,omitempty"`
}

// Decompressor wraps r with the codec named by m. A nil m (a null
// "compressor" in array metadata) means chunks are stored raw.
func (m *CompressionMeta) Decompressor(r io.ReadCloser) (io.ReadCloser, error) {
	if !m.compressed() {
		return r, nil
	}
	return compression.Decompressor(m.ID, r)
}

func (m *CompressionMeta) compressed() bool {
	return m != nil && m.ID != ""
}
