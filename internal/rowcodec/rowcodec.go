// Package rowcodec encodes row buffers for storage as key-value entries.
//
// Stored values carry a 1-byte codec tag followed by the payload.
// Compression is best-effort: when the compressed form is not smaller
// than the original (or the compressor fails), the row is stored raw
// under the Raw tag. Decoding dispatches on the tag, so a value written
// with any codec setting can always be read back.
package rowcodec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type identifies the compression algorithm a stored value was written with.
type Type uint8

const (
	// Raw indicates no compression.
	Raw Type = 0x0

	// Snappy uses Google Snappy compression.
	Snappy Type = 0x1

	// Zstd uses Zstandard compression.
	Zstd Type = 0x2

	// LZ4 uses LZ4 frame compression.
	LZ4 Type = 0x3
)

// String returns the human-readable name of the codec type.
func (t Type) String() string {
	switch t {
	case Raw:
		return "raw"
	case Snappy:
		return "snappy"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Parse maps a codec name (as found in configuration) to its Type.
func Parse(name string) (Type, error) {
	switch name {
	case "raw", "none", "":
		return Raw, nil
	case "snappy":
		return Snappy, nil
	case "zstd":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	default:
		return Raw, fmt.Errorf("rowcodec: unknown codec %q", name)
	}
}

// ErrTruncated is returned when a stored value is too short to carry
// the codec tag.
var ErrTruncated = errors.New("rowcodec: value truncated")

// Codec encodes and decodes row values with a preferred compression type.
// The zero value uses Raw. Codec is safe for concurrent use.
type Codec struct {
	preferred Type
}

// New returns a Codec that prefers the given compression type on encode.
func New(t Type) *Codec {
	return &Codec{preferred: t}
}

// Preferred returns the codec's preferred compression type.
func (c *Codec) Preferred() Type { return c.preferred }

// Encode returns the storage form of row: tag byte plus payload.
// Compression is skipped when it does not shrink the row, so the result
// is never larger than len(row)+1.
func (c *Codec) Encode(row []byte) []byte {
	if c.preferred != Raw {
		if compressed, err := compress(c.preferred, row); err == nil && len(compressed) < len(row) {
			out := make([]byte, 1+len(compressed))
			out[0] = byte(c.preferred)
			copy(out[1:], compressed)
			return out
		}
	}

	out := make([]byte, 1+len(row))
	out[0] = byte(Raw)
	copy(out[1:], row)
	return out
}

// Decode recovers the original row buffer from a stored value.
func (c *Codec) Decode(value []byte) ([]byte, error) {
	if len(value) < 1 {
		return nil, ErrTruncated
	}

	t, payload := Type(value[0]), value[1:]
	switch t {
	case Raw:
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil

	case Snappy:
		row, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, fmt.Errorf("rowcodec: snappy decode: %w", err)
		}
		return row, nil

	case Zstd:
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("rowcodec: zstd decoder: %w", err)
		}
		defer decoder.Close()
		row, err := decoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("rowcodec: zstd decode: %w", err)
		}
		return row, nil

	case LZ4:
		r := lz4.NewReader(bytes.NewReader(payload))
		row, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("rowcodec: lz4 decode: %w", err)
		}
		return row, nil

	default:
		return nil, fmt.Errorf("rowcodec: unsupported codec tag %d", uint8(t))
	}
}

// compress applies the given algorithm to data.
func compress(t Type, data []byte) ([]byte, error) {
	switch t {
	case Snappy:
		return snappy.Encode(nil, data), nil

	case Zstd:
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("rowcodec: zstd encoder: %w", err)
		}
		defer encoder.Close()
		return encoder.EncodeAll(data, nil), nil

	case LZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("rowcodec: lz4 write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("rowcodec: lz4 close: %w", err)
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("rowcodec: unsupported codec %s", t)
	}
}
