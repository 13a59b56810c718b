package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// MarshalNoEscape encodes v into JSON without escaping <, >, & into <, etc.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Remove trailing newline from json.Encoder.Encode
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ExtractObject returns the first complete top-level JSON object found in s.
// Model responses often wrap JSON in prose or code fences; this strips both.
func ExtractObject(s string) (json.RawMessage, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			s = rest[:j]
		} else {
			s = rest
		}
		s = strings.TrimSpace(s)
	}
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, errors.New("jsonutil: no JSON object found")
	}
	depth := 0
	inStr := false
	esc := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return json.RawMessage(s[start : i+1]), nil
			}
		}
	}
	return nil, errors.New("jsonutil: unterminated JSON object")
}

// UnmarshalFlex decodes JSON into v with best effort:
// direct unmarshal first, then after extracting the first object
// from surrounding prose or code fences.
func UnmarshalFlex(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err == nil {
		return nil
	}
	raw, err := ExtractObject(string(data))
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
