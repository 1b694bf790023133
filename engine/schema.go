package engine

import "fmt"

// KeyPart describes how to locate the key of a row inside its buffer.
type KeyPart struct {
	// Offset is the byte position of the key part within the row buffer.
	Offset int

	// Length is the number of key bytes, excluding any length prefix.
	Length int

	// PrefixWidth is the width of the length prefix stored ahead of a
	// variable-length key part: 0 (fixed), 1, or 2 bytes. The prefix is
	// skipped when extracting the key.
	PrefixWidth int
}

// Schema is the table metadata the host supplies at create and open
// time. The engine requires exactly one key part, declared unique; the
// key bytes identify the row in the store.
type Schema struct {
	// KeyParts lists the key parts of the table's index.
	KeyParts []KeyPart

	// Unique reports whether the key is declared unique.
	Unique bool

	// RowLength is the fixed row-buffer length in bytes. Zero means
	// unknown; when set, the key part must fit within it.
	RowLength int
}

// Validate checks the schema against the engine's requirements.
// All violations are reported as [ErrInvalidSchema].
func (s Schema) Validate() error {
	if len(s.KeyParts) != 1 {
		return fmt.Errorf("%w: want exactly 1 key part, got %d", ErrInvalidSchema, len(s.KeyParts))
	}
	if !s.Unique {
		return fmt.Errorf("%w: key is not declared unique", ErrInvalidSchema)
	}

	kp := s.KeyParts[0]
	if kp.Offset < 0 || kp.Length <= 0 {
		return fmt.Errorf("%w: key part offset=%d length=%d", ErrInvalidSchema, kp.Offset, kp.Length)
	}
	switch kp.PrefixWidth {
	case 0, 1, 2:
	default:
		return fmt.Errorf("%w: key part prefix width %d not in {0,1,2}", ErrInvalidSchema, kp.PrefixWidth)
	}
	if s.RowLength > 0 && kp.Offset+kp.PrefixWidth+kp.Length > s.RowLength {
		return fmt.Errorf("%w: key part [%d:%d] exceeds row length %d",
			ErrInvalidSchema, kp.Offset, kp.Offset+kp.PrefixWidth+kp.Length, s.RowLength)
	}
	return nil
}

// keyPart returns the single validated key part.
func (s Schema) keyPart() KeyPart {
	return s.KeyParts[0]
}
