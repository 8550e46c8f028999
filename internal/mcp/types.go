package mcp

import (
	"time"

	"github.com/1broseidon/displayd/internal/ipc"
)

// ListDisplaysInput is the input for the list_displays tool.
type ListDisplaysInput struct{}

// DisplaysOutput is the output for list_displays and refresh_displays.
type DisplaysOutput struct {
	Displays []ipc.DisplayInfo `json:"displays"`
}

// RefreshDisplaysInput is the input for the refresh_displays tool.
type RefreshDisplaysInput struct {
	DisplayID *int `json:"display_id,omitempty" jsonschema:"Display to refresh (default: all displays)"`
}

// PresentBeginInput is the input for the present_begin tool.
type PresentBeginInput struct {
	Session string `json:"session,omitempty" jsonschema:"Existing session id to re-arm (default: create a new session)"`
	Source  string `json:"source,omitempty" jsonschema:"Free-form label for who owns the session"`
}

// PresentDataReadyInput is the input for the present_data_ready tool.
type PresentDataReadyInput struct {
	Session      string `json:"session" jsonschema:"required,Session id returned by present_begin"`
	Suppressible bool   `json:"suppressible" jsonschema:"True when the data needs the surface to stay hidden; false releases immediately"`
}

// PresentReleaseInput is the input for the present_release tool.
type PresentReleaseInput struct {
	Session string `json:"session" jsonschema:"required,Session id returned by present_begin"`
}

// Session describes a presentation session. Times are RFC 3339.
type Session struct {
	ID         string `json:"id"`
	Source     string `json:"source,omitempty"`
	Phase      string `json:"phase"`
	Token      string `json:"token"`
	CreatedAt  string `json:"created_at"`
	ArmedAt    string `json:"armed_at,omitempty"`
	ReleasedAt string `json:"released_at,omitempty"`
}

func sessionFromInfo(info ipc.SessionInfo) Session {
	out := Session{
		ID:        info.ID,
		Source:    info.Source,
		Phase:     info.Phase,
		Token:     info.Token,
		CreatedAt: info.CreatedAt.Format(time.RFC3339),
	}
	if info.ArmedAt != nil {
		out.ArmedAt = info.ArmedAt.Format(time.RFC3339)
	}
	if info.ReleasedAt != nil {
		out.ReleasedAt = info.ReleasedAt.Format(time.RFC3339)
	}
	return out
}

// SessionOutput wraps a single session.
type SessionOutput struct {
	Session Session `json:"session"`
}

// ListSessionsInput is the input for the list_sessions tool.
type ListSessionsInput struct{}

// SessionsOutput is the output for the list_sessions tool.
type SessionsOutput struct {
	Sessions []Session `json:"sessions"`
}
