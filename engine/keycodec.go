package engine

// ExtractKey returns the store key of a row: Length bytes starting at
// Offset, after skipping the variable-length prefix when the key part
// declares one. The returned slice aliases row; callers that retain the
// key beyond the row buffer's lifetime must copy it.
//
// ExtractKey is pure and is used identically by writes, updates, deletes
// and point lookups. The descriptor is a caller contract: schemas are
// validated at create and open time, so a malformed key part never
// reaches this function.
func ExtractKey(row []byte, kp KeyPart) []byte {
	start := kp.Offset + kp.PrefixWidth
	return row[start : start+kp.Length]
}
