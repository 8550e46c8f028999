package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/1broseidon/displayd/internal/runtimepath"
)

const (
	readTimeout  = 5 * time.Second
	writeTimeout = 5 * time.Second
)

// Host is the daemon side of the control plane.
type Host interface {
	Status() (StatusData, error)
	Displays() (DisplaysData, error)
	Refresh(displayID *int) (DisplaysData, error)
	PresentBegin(session, source string) (SessionInfo, error)
	PresentDataReady(session string, suppressible bool) (SessionInfo, error)
	PresentRelease(session string) (SessionInfo, error)
	PresentList() (SessionsData, error)
	AccurateStart() (AccurateData, error)
	AccurateStop() (AccurateData, error)
	Reload() error
	// Watch streams rotation events until cancel is called.
	Watch(displayID *int) (events <-chan RotationEvent, cancel func(), err error)
}

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	host         Host
	logger       *slog.Logger
	done         chan struct{}
	wg           sync.WaitGroup
	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a new IPC server on the default socket path.
func NewServer(host Host, logger *slog.Logger) (*Server, error) {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
	}
	return NewServerAt(socketPath, host, logger), nil
}

// NewServerAt creates a new IPC server listening on socketPath.
func NewServerAt(socketPath string, host Host, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		socketPath: socketPath,
		host:       host,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// SocketPath returns the socket the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	// Remove existing socket if present
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("ipc server listening", "socket", s.socketPath)

	// Accept connections
	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.stopping() {
				return
			}
			s.logger.Warn("ipc accept error", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) stopping() bool {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	return s.shuttingDown
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	conn.SetReadDeadline(time.Now().Add(readTimeout))

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Warn("ipc read error", "error", err)
		return
	}

	// Parse request
	req, err := ParseRequest(data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	if req.Command == CommandWatch {
		conn.SetReadDeadline(time.Time{})
		s.handleWatch(conn, reader, req.Payload)
		return
	}

	// Handle command
	resp := s.handleCommand(req)
	if err := writeLine(conn, resp); err != nil {
		s.logger.Warn("failed to send response", "command", req.Command, "error", err)
	}
}

func writeLine(conn net.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}
	data = append(data, '\n')
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err = conn.Write(data)
	return err
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(req *Request) *Response {
	s.logger.Debug("ipc command", "command", req.Command)
	switch req.Command {
	case CommandReload:
		if err := s.host.Reload(); err != nil {
			return NewErrorResponse(err.Error())
		}
		return okResponse(nil)
	case CommandGetStatus:
		return respond(s.host.Status())
	case CommandGetDisplays:
		return respond(s.host.Displays())
	case CommandRefresh:
		var p RefreshPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid refresh payload: %v", err))
		}
		return respond(s.host.Refresh(p.DisplayID))
	case CommandPresentBegin:
		var p PresentBeginPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid present payload: %v", err))
		}
		return respond(s.host.PresentBegin(p.Session, p.Source))
	case CommandPresentDataReady:
		var p PresentDataReadyPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid data-ready payload: %v", err))
		}
		if p.Session == "" {
			return NewErrorResponse("session is required")
		}
		return respond(s.host.PresentDataReady(p.Session, p.Suppressible))
	case CommandPresentRelease:
		var p PresentReleasePayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid release payload: %v", err))
		}
		if p.Session == "" {
			return NewErrorResponse("session is required")
		}
		return respond(s.host.PresentRelease(p.Session))
	case CommandPresentList:
		return respond(s.host.PresentList())
	case CommandAccurateStart:
		return respond(s.host.AccurateStart())
	case CommandAccurateStop:
		return respond(s.host.AccurateStop())
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

// handleWatch keeps the connection open and streams rotation events until
// the client goes away or the server stops.
func (s *Server) handleWatch(conn net.Conn, reader *bufio.Reader, payload json.RawMessage) {
	var p WatchPayload
	if err := decodePayload(payload, &p); err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid watch payload: %v", err))
		return
	}

	events, cancel, err := s.host.Watch(p.DisplayID)
	if err != nil {
		s.sendError(conn, err.Error())
		return
	}
	defer cancel()

	if err := writeLine(conn, okResponse(nil)); err != nil {
		return
	}
	s.logger.Debug("watch started", "display", p.DisplayID)

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		io.Copy(io.Discard, reader)
	}()

	for {
		select {
		case <-gone:
			s.logger.Debug("watch client disconnected")
			return
		case <-s.done:
			return
		case ev := <-events:
			if err := writeLine(conn, ev); err != nil {
				s.logger.Debug("watch write failed", "error", err)
				return
			}
		}
	}
}

func decodePayload(payload json.RawMessage, out any) error {
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, out)
}

func respond[T any](data T, err error) *Response {
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return okResponse(data)
}

func okResponse(data any) *Response {
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

// sendError sends an error response
func (s *Server) sendError(conn net.Conn, errMsg string) {
	writeLine(conn, NewErrorResponse(errMsg))
}

// Stop gracefully shuts down the IPC server
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	if s.shuttingDown {
		s.shutdownMu.Unlock()
		return
	}
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
	s.wg.Wait()
}
