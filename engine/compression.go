package engine

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/nao1215/tabsh/domain/model"
)

// openDecoder wraps r with the reader of one codec.
type openDecoder func(r io.Reader) (io.ReadCloser, error)

var decoders = map[model.CompressionType]openDecoder{
	model.CompressionNone: func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(r), nil
	},
	model.CompressionGZ: func(r io.Reader) (io.ReadCloser, error) {
		return gzip.NewReader(r)
	},
	model.CompressionBZ2: func(r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(bzip2.NewReader(r)), nil
	},
	model.CompressionXZ: func(r io.Reader) (io.ReadCloser, error) {
		zr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(zr), nil
	},
	model.CompressionZSTD: func(r io.Reader) (io.ReadCloser, error) {
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	},
}

// decompress returns a reader over the decoded contents of r. Closing it
// releases the codec but not r.
func decompress(r io.Reader, ct model.CompressionType) (io.ReadCloser, error) {
	open, ok := decoders[ct]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, ct)
	}
	rc, err := open(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s reader: %w", ct, err)
	}
	return rc, nil
}
