// Package textconv converts between the byte buffers a store transports and
// the text the kv facade exposes. Conversions are pure and never fail:
// malformed UTF-8 is replaced with U+FFFD.
package textconv

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

const replacement = "�"

// Decode returns b as UTF-8 text
func Decode(b []byte) string {
	if b == nil {
		return ""
	}
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), replacement)
	}
	return string(out)
}

// Encode returns the UTF-8 bytes of s
func Encode(s string) []byte {
	out, err := unicode.UTF8.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return []byte(strings.ToValidUTF8(s, replacement))
	}
	return out
}

// Repair returns s with malformed UTF-8 replaced, matching what Decode would
// produce for the same bytes
func Repair(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return Decode([]byte(s))
}

// RepairAll repairs every element of ss in place and returns it
func RepairAll(ss []string) []string {
	for i, s := range ss {
		ss[i] = Repair(s)
	}
	return ss
}

// RepairMap repairs the values of m in place and returns it
func RepairMap(m map[string]string) map[string]string {
	for k, v := range m {
		m[k] = Repair(v)
	}
	return m
}

// DecodeAll decodes every element of bs, preserving order
func DecodeAll(bs [][]byte) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = Decode(b)
	}
	return out
}

// EncodeAll encodes every element of ss, preserving order
func EncodeAll(ss []string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = Encode(s)
	}
	return out
}

// DecodeMap decodes the values of m. A nil or empty map yields an empty map.
func DecodeMap(m map[string][]byte) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = Decode(v)
	}
	return out
}

// EncodeMap encodes the values of m
func EncodeMap(m map[string]string) map[string][]byte {
	out := make(map[string][]byte, len(m))
	for k, v := range m {
		out[k] = Encode(v)
	}
	return out
}
