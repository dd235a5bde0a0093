package api

import "time"

// Map is a convenience type for map[string]any
type Map map[string]any

// ApiResponseMeta contains metadata about the API response
type ApiResponseMeta struct {
	RequestID string     `json:"requestId,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Total     int        `json:"total,omitempty"`
	Failed    int        `json:"failed,omitempty"`
}

// ApiResponse is the standard API response structure.
// Failures carry Msg and never Data.
type ApiResponse struct {
	Success bool             `json:"success"`
	Msg     string           `json:"msg,omitempty"`
	Data    any              `json:"data,omitempty"`
	Meta    *ApiResponseMeta `json:"meta,omitempty"`
}
