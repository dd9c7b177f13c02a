package parser

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// DefaultEncodings are probed in order when importing interchange files.
var DefaultEncodings = []string{"utf-8", "windows-1250", "windows-1252"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var charmaps = map[string]encoding.Encoding{
	"windows-1250": charmap.Windows1250,
	"windows-1251": charmap.Windows1251,
	"windows-1252": charmap.Windows1252,
	"iso-8859-1":   charmap.ISO8859_1,
	"iso-8859-2":   charmap.ISO8859_2,
	"cp852":        charmap.CodePage852,
}

// SupportedEncoding reports whether name can be used as a candidate.
func SupportedEncoding(name string) bool {
	name = strings.ToLower(name)
	if name == "utf-8" || name == "utf8" {
		return true
	}
	_, ok := charmaps[name]
	return ok
}

// DetectEncoding returns the first candidate under which all of data
// decodes cleanly, together with the decoded text.
func DetectEncoding(data []byte, candidates []string) (string, string, error) {
	for _, name := range candidates {
		text, ok := decodeStrict(data, name)
		if ok {
			return name, text, nil
		}
	}
	return "", "", fmt.Errorf("%w: tried %s", ErrNoEncoding, strings.Join(candidates, ", "))
}

// decodeStrict fails on invalid UTF-8 and on bytes a code page leaves undefined.
func decodeStrict(data []byte, name string) (string, bool) {
	name = strings.ToLower(name)
	if name == "utf-8" || name == "utf8" {
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return "", false
		}
		return string(data), true
	}
	enc, ok := charmaps[name]
	if !ok {
		return "", false
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil || bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}
