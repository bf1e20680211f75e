package dataset

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode converts uploaded bytes to text. A UTF-8 byte-order mark is dropped;
// input that is not valid UTF-8 is read as ISO-8859-1, which accepts every byte.
func Decode(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("dataset: failed to decode latin-1 input: %w", err)
	}
	return string(out), nil
}
