package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/1broseidon/displayd/internal/runtimepath"
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientAt(socketPath)
}

// NewClientAt creates a client for the daemon listening on socketPath.
func NewClientAt(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

func (c *Client) dial() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	return conn, nil
}

func newRequest(cmd CommandType, payload any) (*Request, error) {
	req := &Request{Command: cmd}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", cmd, err)
		}
		req.Payload = data
	}
	return req, nil
}

func writeRequest(conn net.Conn, req *Request) error {
	reqData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return nil
}

func readResponse(reader *bufio.Reader) (*Response, error) {
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Check for error response
	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return &resp, nil
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	conn, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	if err := writeRequest(conn, req); err != nil {
		return nil, err
	}
	return readResponse(bufio.NewReader(conn))
}

// call sends cmd with payload and decodes the response data into out.
func (c *Client) call(cmd CommandType, payload any, out any) error {
	req, err := newRequest(cmd, payload)
	if err != nil {
		return err
	}
	resp, err := c.sendRequest(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", cmd, err)
	}
	return nil
}

// Reload sends a RELOAD command to the daemon
func (c *Client) Reload() error {
	return c.call(CommandReload, nil, nil)
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.call(CommandGetStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetDisplays retrieves the cached display states
func (c *Client) GetDisplays() (*DisplaysData, error) {
	var data DisplaysData
	if err := c.call(CommandGetDisplays, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Refresh re-reads one display, or all of them when displayID is nil.
func (c *Client) Refresh(displayID *int) (*DisplaysData, error) {
	var data DisplaysData
	if err := c.call(CommandRefresh, RefreshPayload{DisplayID: displayID}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// PresentBegin signals activation for a session. An empty session creates
// a new one.
func (c *Client) PresentBegin(session, source string) (*SessionInfo, error) {
	var info SessionInfo
	if err := c.call(CommandPresentBegin, PresentBeginPayload{Session: session, Source: source}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// PresentDataReady signals that the session's data is ready.
func (c *Client) PresentDataReady(session string, suppressible bool) (*SessionInfo, error) {
	var info SessionInfo
	payload := PresentDataReadyPayload{Session: session, Suppressible: suppressible}
	if err := c.call(CommandPresentDataReady, payload, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// PresentRelease ends suppression for a session.
func (c *Client) PresentRelease(session string) (*SessionInfo, error) {
	var info SessionInfo
	if err := c.call(CommandPresentRelease, PresentReleasePayload{Session: session}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// PresentList lists presentation sessions.
func (c *Client) PresentList() (*SessionsData, error) {
	var data SessionsData
	if err := c.call(CommandPresentList, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// AccurateStart registers an accurate-mode listener.
func (c *Client) AccurateStart() (*AccurateData, error) {
	var data AccurateData
	if err := c.call(CommandAccurateStart, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// AccurateStop unregisters an accurate-mode listener.
func (c *Client) AccurateStop() (*AccurateData, error) {
	var data AccurateData
	if err := c.call(CommandAccurateStop, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Watch streams rotation events to fn until ctx is cancelled, the daemon
// closes the stream, or fn returns an error. Cancellation returns nil.
func (c *Client) Watch(ctx context.Context, displayID *int, fn func(RotationEvent) error) error {
	req, err := newRequest(CommandWatch, WatchPayload{DisplayID: displayID})
	if err != nil {
		return err
	}
	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	conn.SetDeadline(time.Now().Add(c.timeout))
	if err := writeRequest(conn, req); err != nil {
		return err
	}
	reader := bufio.NewReader(conn)
	if _, err := readResponse(reader); err != nil {
		return err
	}
	conn.SetDeadline(time.Time{})

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("watch stream failed: %w", err)
		}
		var ev RotationEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return fmt.Errorf("failed to parse rotation event: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
