package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/displayd/internal/ipc"
)

const (
	ServerName    = "displayd"
	ServerVersion = "0.1.0"
)

// Daemon is the subset of the IPC client the tools call.
type Daemon interface {
	GetDisplays() (*ipc.DisplaysData, error)
	Refresh(displayID *int) (*ipc.DisplaysData, error)
	PresentBegin(session, source string) (*ipc.SessionInfo, error)
	PresentDataReady(session string, suppressible bool) (*ipc.SessionInfo, error)
	PresentRelease(session string) (*ipc.SessionInfo, error)
	PresentList() (*ipc.SessionsData, error)
}

var _ Daemon = (*ipc.Client)(nil)

// Server is the MCP server exposing displayd over stdio.
type Server struct {
	mcpServer *mcpsdk.Server
	daemon    Daemon
	logger    *slog.Logger
}

// NewServer creates a new MCP server that forwards to daemon.
func NewServer(daemon Daemon, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		daemon: daemon,
		logger: logger,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_displays",
		Description: "List the displays the daemon tracks with their logical (usable) size, physical (native) size and rotation in degrees.",
	}, s.handleListDisplays)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "refresh_displays",
		Description: "Re-read display geometry from the X server. Refreshes one display when display_id is given, otherwise all of them. Rotation observers fire if the rotation changed.",
	}, s.handleRefreshDisplays)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "present_begin",
		Description: "Start (or re-arm) a presentation session. Dock/panel windows are hidden until every session has been released. Returns the session id.",
	}, s.handlePresentBegin)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "present_data_ready",
		Description: "Report that a session's data is ready. When suppressible is false the session releases immediately; otherwise it stays armed until present_release.",
	}, s.handlePresentDataReady)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "present_release",
		Description: "Release a presentation session. Releasing twice is harmless.",
	}, s.handlePresentRelease)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_sessions",
		Description: "List presentation sessions with their phase and token.",
	}, s.handleListSessions)
}

func (s *Server) handleListDisplays(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListDisplaysInput) (*mcpsdk.CallToolResult, DisplaysOutput, error) {
	data, err := s.daemon.GetDisplays()
	if err != nil {
		return nil, DisplaysOutput{}, fmt.Errorf("list_displays: %w", err)
	}
	return nil, displaysOutput(data), nil
}

func (s *Server) handleRefreshDisplays(_ context.Context, _ *mcpsdk.CallToolRequest, args RefreshDisplaysInput) (*mcpsdk.CallToolResult, DisplaysOutput, error) {
	data, err := s.daemon.Refresh(args.DisplayID)
	if err != nil {
		return nil, DisplaysOutput{}, fmt.Errorf("refresh_displays: %w", err)
	}
	return nil, displaysOutput(data), nil
}

func (s *Server) handlePresentBegin(_ context.Context, _ *mcpsdk.CallToolRequest, args PresentBeginInput) (*mcpsdk.CallToolResult, SessionOutput, error) {
	source := args.Source
	if source == "" {
		source = "mcp"
	}
	info, err := s.daemon.PresentBegin(args.Session, source)
	if err != nil {
		return nil, SessionOutput{}, fmt.Errorf("present_begin: %w", err)
	}
	s.logger.Debug("present_begin", "session", info.ID)
	return nil, SessionOutput{Session: sessionFromInfo(*info)}, nil
}

func (s *Server) handlePresentDataReady(_ context.Context, _ *mcpsdk.CallToolRequest, args PresentDataReadyInput) (*mcpsdk.CallToolResult, SessionOutput, error) {
	if args.Session == "" {
		return nil, SessionOutput{}, fmt.Errorf("present_data_ready: session is required")
	}
	info, err := s.daemon.PresentDataReady(args.Session, args.Suppressible)
	if err != nil {
		return nil, SessionOutput{}, fmt.Errorf("present_data_ready: %w", err)
	}
	return nil, SessionOutput{Session: sessionFromInfo(*info)}, nil
}

func (s *Server) handlePresentRelease(_ context.Context, _ *mcpsdk.CallToolRequest, args PresentReleaseInput) (*mcpsdk.CallToolResult, SessionOutput, error) {
	if args.Session == "" {
		return nil, SessionOutput{}, fmt.Errorf("present_release: session is required")
	}
	info, err := s.daemon.PresentRelease(args.Session)
	if err != nil {
		return nil, SessionOutput{}, fmt.Errorf("present_release: %w", err)
	}
	return nil, SessionOutput{Session: sessionFromInfo(*info)}, nil
}

func (s *Server) handleListSessions(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListSessionsInput) (*mcpsdk.CallToolResult, SessionsOutput, error) {
	data, err := s.daemon.PresentList()
	if err != nil {
		return nil, SessionsOutput{}, fmt.Errorf("list_sessions: %w", err)
	}
	out := SessionsOutput{Sessions: make([]Session, 0, len(data.Sessions))}
	for _, info := range data.Sessions {
		out.Sessions = append(out.Sessions, sessionFromInfo(info))
	}
	return nil, out, nil
}

func displaysOutput(data *ipc.DisplaysData) DisplaysOutput {
	if data.Displays == nil {
		return DisplaysOutput{Displays: []ipc.DisplayInfo{}}
	}
	return DisplaysOutput{Displays: data.Displays}
}
