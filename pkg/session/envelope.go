package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
)

// responseKind tags a decoded response body.
type responseKind int

const (
	// kindRaw is any JSON that is not a continuation envelope.
	kindRaw responseKind = iota
	// kindContinuation is a JSON object carrying an absolute resumeUrl.
	kindContinuation
	// kindText is a non-JSON body.
	kindText
)

// response is the tagged-union view of an engine reply.
type response struct {
	kind      responseKind
	resumeURL string
	// payload is the data field of a continuation when present, otherwise
	// the whole body.
	payload json.RawMessage
	// object holds the top-level members when the body is a JSON object.
	object map[string]json.RawMessage
	text   string
}

// decodeResponse classifies body by an explicit schema check.
func decodeResponse(body []byte) response {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return response{kind: kindText, text: string(body)}
	}

	resp := response{kind: kindRaw, payload: trimmed}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return resp
	}
	resp.object = obj

	var token string
	if raw, ok := obj["resumeUrl"]; ok && json.Unmarshal(raw, &token) == nil && isAbsoluteURL(token) {
		resp.kind = kindContinuation
		resp.resumeURL = token
		if data, ok := obj["data"]; ok {
			resp.payload = data
		}
	}
	return resp
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// field looks name up in the payload object, then in the top-level object.
func (r response) field(name string) (json.RawMessage, bool) {
	if len(r.payload) > 0 && r.payload[0] == '{' {
		var inner map[string]json.RawMessage
		if json.Unmarshal(r.payload, &inner) == nil {
			if v, ok := inner[name]; ok && !isNull(v) {
				return v, true
			}
		}
	}
	if v, ok := r.object[name]; ok && !isNull(v) {
		return v, true
	}
	return nil, false
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// decodeList decodes a bare JSON array payload, or the named member of an
// object payload.
func decodeList[T any](r response, member string) ([]T, error) {
	if r.kind == kindText {
		return nil, fmt.Errorf("%w: expected %s list, got text", ErrMalformedResponse, member)
	}
	raw := r.payload
	if len(raw) == 0 || raw[0] != '[' {
		v, ok := r.field(member)
		if !ok {
			return nil, fmt.Errorf("%w: no %s list", ErrMalformedResponse, member)
		}
		raw = v
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, member, err)
	}
	return out, nil
}

// decodePlan accepts a text body, a JSON string, or an object with a plan
// (then text) string member.
func decodePlan(r response) (string, error) {
	if r.kind == kindText {
		return r.text, nil
	}
	var s string
	if json.Unmarshal(r.payload, &s) == nil {
		return s, nil
	}
	for _, name := range []string{"plan", "text"} {
		if raw, ok := r.field(name); ok && json.Unmarshal(raw, &s) == nil {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: no plan text", ErrMalformedResponse)
}

// decodeAck reads an ok member when present. A success response without
// one counts as acknowledged.
func decodeAck(r response) Ack {
	var ok bool
	if raw, found := r.field("ok"); found && json.Unmarshal(raw, &ok) == nil {
		return Ack{OK: ok}
	}
	return fallbackAck()
}

func decodeDownloads(r response) (Downloads, error) {
	var d Downloads
	if r.kind == kindText {
		return d, fmt.Errorf("%w: expected downloads object, got text", ErrMalformedResponse)
	}
	if err := json.Unmarshal(r.payload, &d); err != nil {
		return d, fmt.Errorf("%w: downloads: %v", ErrMalformedResponse, err)
	}
	if d.Status == "" {
		return d, fmt.Errorf("%w: downloads without status", ErrMalformedResponse)
	}
	return d, nil
}
