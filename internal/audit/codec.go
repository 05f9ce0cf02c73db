package audit

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec compresses jsonl objects.
type Codec string

const (
	CodecNone   Codec = "none"
	CodecGzip   Codec = "gzip"
	CodecSnappy Codec = "snappy"
	CodecLz4    Codec = "lz4"
	CodecZstd   Codec = "zstd"
)

// ParseCodec accepts the config spelling of a codec. Empty means none.
func ParseCodec(s string) (Codec, error) {
	switch c := Codec(s); c {
	case "":
		return CodecNone, nil
	case CodecNone, CodecGzip, CodecSnappy, CodecLz4, CodecZstd:
		return c, nil
	default:
		return "", fmt.Errorf("audit: unknown codec %q", s)
	}
}

// Extension is the file suffix added after ".jsonl", empty for none.
func (c Codec) Extension() string {
	switch c {
	case CodecGzip:
		return ".gz"
	case CodecSnappy:
		return ".snappy"
	case CodecLz4:
		return ".lz4"
	case CodecZstd:
		return ".zst"
	default:
		return ""
	}
}

func codecFromExtension(ext string) (Codec, bool) {
	for _, c := range []Codec{CodecNone, CodecGzip, CodecSnappy, CodecLz4, CodecZstd} {
		if c.Extension() == ext {
			return c, true
		}
	}
	return "", false
}

func compress(c Codec, data []byte) ([]byte, error) {
	switch c {
	case CodecNone:
		return data, nil
	case CodecSnappy:
		return snappy.Encode(nil, data), nil
	case CodecZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	}

	var buf bytes.Buffer
	var w io.WriteCloser
	switch c {
	case CodecGzip:
		w = gzip.NewWriter(&buf)
	case CodecLz4:
		w = lz4.NewWriter(&buf)
	default:
		return nil, fmt.Errorf("audit: unknown codec %q", c)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("%s write: %w", c, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%s close: %w", c, err)
	}
	return buf.Bytes(), nil
}

func decompress(c Codec, data []byte) ([]byte, error) {
	switch c {
	case CodecNone:
		return data, nil
	case CodecSnappy:
		return snappy.Decode(nil, data)
	case CodecGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case CodecLz4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	case CodecZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	default:
		return nil, fmt.Errorf("audit: unknown codec %q", c)
	}
}
