package backup

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// compressGzip compresses data with gzip. Compression codecs are an
// explicit external collaborator (spec §1 scope) and no third-party codec
// library appears anywhere in the retrieved example pack, so stdlib gzip is
// the ecosystem default here.
func compressGzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("%w: gzip write: %v", ErrDumpFailed, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: gzip close: %v", ErrDumpFailed, err)
	}
	return buf.Bytes(), nil
}

// decompressGzip reverses compressGzip.
func decompressGzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip reader: %v", ErrRestorationSelfTestFailed, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: gzip read: %v", ErrRestorationSelfTestFailed, err)
	}
	return out, nil
}
