package xui

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Envelope is the response wrapper used by the panel API
type Envelope struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Obj     json.RawMessage `json:"obj"`
}

// Inbound is the subset of a panel inbound needed to build share links.
// Settings, StreamSettings and Sniffing arrive either as JSON strings or as objects.
type Inbound struct {
	ID             int        `json:"id"`
	Remark         string     `json:"remark"`
	Protocol       string     `json:"protocol"`
	Listen         string     `json:"listen"`
	Port           int        `json:"port"`
	Enable         bool       `json:"enable"`
	Up             int64      `json:"up"`
	Down           int64      `json:"down"`
	Total          int64      `json:"total"`
	ExpiryTime     int64      `json:"expiryTime"`
	Settings       JSONString `json:"settings"`
	StreamSettings JSONString `json:"streamSettings"`
	Sniffing       JSONString `json:"sniffing"`
}

// JSONString holds a nested JSON document that may be encoded as a string
type JSONString json.RawMessage

// UnmarshalJSON accepts a JSON object, or a string containing one
func (j *JSONString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*j = nil
			return nil
		}
		data = []byte(s)
	}
	if string(data) == "null" {
		*j = nil
		return nil
	}
	if !json.Valid(data) {
		return fmt.Errorf("invalid nested json")
	}
	*j = append((*j)[:0], data...)
	return nil
}

// MarshalJSON emits the nested document as an object
func (j JSONString) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

// Decode unmarshals the nested document into v. Empty documents leave v untouched.
func (j JSONString) Decode(v any) error {
	if len(j) == 0 {
		return nil
	}
	return json.Unmarshal(j, v)
}

// DecodeInbounds extracts the inbound list from a list-inbounds response
func DecodeInbounds(raw json.RawMessage) ([]Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode panel response: %w", err)
	}
	if !env.Success && env.Msg != "" {
		return nil, fmt.Errorf("panel error: %s", env.Msg)
	}

	var inbounds []Inbound
	if len(env.Obj) == 0 || string(env.Obj) == "null" {
		return inbounds, nil
	}
	if err := json.Unmarshal(env.Obj, &inbounds); err != nil {
		return nil, fmt.Errorf("failed to decode inbounds: %w", err)
	}
	return inbounds, nil
}

// ValidateInboundPayload checks that an add/update payload is a JSON object
// carrying a non-empty remark and a positive port. The payload itself is
// forwarded unchanged.
func ValidateInboundPayload(payload []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return fmt.Errorf("inbound payload must be a JSON object")
	}

	var remark string
	if raw, ok := fields["remark"]; !ok || json.Unmarshal(raw, &remark) != nil || remark == "" {
		return fmt.Errorf("remark is required")
	}

	raw, ok := fields["port"]
	if !ok {
		return fmt.Errorf("port is required")
	}
	port, err := parsePort(raw)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

func parsePort(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}
