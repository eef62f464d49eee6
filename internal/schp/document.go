// Package schp reads Status Capability Health Protocol documents: a JSON
// endpoint reporting per-capability health under /health/capabilities.
package schp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	Version      = "1.0"
	EndpointPath = "/health/capabilities"
)

type Capability struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Document is a validated capability report. Capabilities keep document order.
type Document struct {
	Status       string       `json:"status,omitempty"`
	HasStatus    bool         `json:"-"`
	Capabilities []Capability `json:"capabilities"`
}

var ErrInvalidJSON = errors.New("Invalid JSON response")

// ErrTooLarge is reported when a document exceeds the 1 MiB read limit.
var ErrTooLarge = errors.New("Response too large")

// ValidationError names the schema rule a document broke.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "Invalid SCHP: " + e.Reason }

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Parse decodes and validates body.
func Parse(body []byte) (*Document, error) {
	if !json.Valid(body) {
		return nil, ErrInvalidJSON
	}
	if !isObject(body) {
		return nil, invalid("Response must be object")
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, ErrInvalidJSON
	}

	raw, ok := top["capabilities"]
	if !ok {
		return nil, invalid("Missing 'capabilities' field")
	}
	if !isObject(raw) {
		return nil, invalid("'capabilities' must be object")
	}
	caps, err := parseCapabilities(raw)
	if err != nil {
		return nil, err
	}

	doc := &Document{Capabilities: caps}
	if s, ok := top["status"]; ok && !isNull(s) {
		if err := json.Unmarshal(s, &doc.Status); err != nil {
			return nil, invalid("'status' must be string")
		}
		doc.HasStatus = true
	}
	return doc, nil
}

// parseCapabilities walks the object token by token so the result keeps
// the order capabilities appear in the document.
func parseCapabilities(raw json.RawMessage) ([]Capability, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, ErrInvalidJSON
	}

	var out []Capability
	index := map[string]int{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, ErrInvalidJSON
		}
		name, _ := tok.(string)

		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, ErrInvalidJSON
		}
		if !isObject(val) {
			return nil, invalid("Capability '%s' must be object", name)
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(val, &fields); err != nil {
			return nil, invalid("Capability '%s' must be object", name)
		}
		okRaw, present := fields["ok"]
		if !present {
			return nil, invalid("Capability '%s' missing 'ok' field", name)
		}
		c := Capability{Name: name}
		switch string(bytes.TrimSpace(okRaw)) {
		case "true":
			c.OK = true
		case "false":
		default:
			return nil, invalid("Capability '%s' 'ok' must be boolean", name)
		}
		if r, ok := fields["reason"]; ok {
			_ = json.Unmarshal(r, &c.Reason)
		}

		if i, dup := index[name]; dup {
			out[i] = c
			continue
		}
		index[name] = len(out)
		out = append(out, c)
	}
	return out, nil
}

func isObject(raw []byte) bool {
	b := bytes.TrimSpace(raw)
	return len(b) > 0 && b[0] == '{'
}

func isNull(raw []byte) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
