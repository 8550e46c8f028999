package ipc

import (
	"encoding/json"
	"fmt"
	"time"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReload           CommandType = "RELOAD"
	CommandGetStatus        CommandType = "GET_STATUS"
	CommandGetDisplays      CommandType = "GET_DISPLAYS"
	CommandRefresh          CommandType = "REFRESH"
	CommandPresentBegin     CommandType = "PRESENT_BEGIN"
	CommandPresentDataReady CommandType = "PRESENT_DATA_READY"
	CommandPresentRelease   CommandType = "PRESENT_RELEASE"
	CommandPresentList      CommandType = "PRESENT_LIST"
	CommandAccurateStart    CommandType = "ACCURATE_START"
	CommandAccurateStop     CommandType = "ACCURATE_STOP"
	CommandWatch            CommandType = "WATCH"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	DaemonRunning     bool  `json:"daemon_running"`
	UptimeSeconds     int64 `json:"uptime_seconds"`
	DisplayCount      int   `json:"display_count"`
	Accurate          bool  `json:"accurate"`
	AccurateListeners int   `json:"accurate_listeners"`
	Suppressed        bool  `json:"suppressed"`
	OutstandingTokens int   `json:"outstanding_tokens"`
	ArmedSessions     int   `json:"armed_sessions"`
	Sessions          int   `json:"sessions"`
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DisplayInfo represents the cached state of a single display
type DisplayInfo struct {
	ID        int    `json:"id"`
	Name      string `json:"name,omitempty"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Logical   Size   `json:"logical"`
	Physical  Size   `json:"physical"`
	Rotation  int    `json:"rotation"`
	Observers int    `json:"observers"`
}

// DisplaysData represents the data returned by GET_DISPLAYS and REFRESH
type DisplaysData struct {
	Displays []DisplayInfo `json:"displays"`
}

// RefreshPayload represents the payload for REFRESH. A nil DisplayID
// refreshes every display.
type RefreshPayload struct {
	DisplayID *int `json:"display_id,omitempty"`
}

// SessionInfo describes one presentation session.
type SessionInfo struct {
	ID         string     `json:"id"`
	Source     string     `json:"source,omitempty"`
	Phase      string     `json:"phase"`
	Token      string     `json:"token"`
	CreatedAt  time.Time  `json:"created_at"`
	ArmedAt    *time.Time `json:"armed_at,omitempty"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}

// SessionsData represents the data returned by PRESENT_LIST
type SessionsData struct {
	Sessions []SessionInfo `json:"sessions"`
}

// PresentBeginPayload represents the payload for PRESENT_BEGIN. An empty
// Session creates a new session.
type PresentBeginPayload struct {
	Session string `json:"session,omitempty"`
	Source  string `json:"source,omitempty"`
}

// PresentDataReadyPayload represents the payload for PRESENT_DATA_READY
type PresentDataReadyPayload struct {
	Session      string `json:"session"`
	Suppressible bool   `json:"suppressible"`
}

// PresentReleasePayload represents the payload for PRESENT_RELEASE
type PresentReleasePayload struct {
	Session string `json:"session"`
}

// AccurateData represents the data returned by ACCURATE_START/ACCURATE_STOP
type AccurateData struct {
	Accurate  bool `json:"accurate"`
	Listeners int  `json:"listeners"`
}

// WatchPayload represents the payload for WATCH. A nil DisplayID watches
// every display known when the watch starts.
type WatchPayload struct {
	DisplayID *int `json:"display_id,omitempty"`
}

// RotationEvent is streamed to WATCH clients, one JSON line per change.
type RotationEvent struct {
	DisplayID int       `json:"display_id"`
	Rotation  int       `json:"rotation"`
	Logical   Size      `json:"logical"`
	Physical  Size      `json:"physical"`
	Time      time.Time `json:"time"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	if req.Command == "" {
		return nil, fmt.Errorf("failed to parse request: missing command")
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
