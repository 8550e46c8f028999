package ipc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeHost struct {
	mu        sync.Mutex
	sessions  map[string]SessionInfo
	listeners int
	reloadErr error
	reloads   int
	refreshed []*int
	watchCh   chan RotationEvent
	cancelled chan struct{}
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		sessions:  make(map[string]SessionInfo),
		watchCh:   make(chan RotationEvent, 4),
		cancelled: make(chan struct{}),
	}
}

func (h *fakeHost) Status() (StatusData, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return StatusData{DaemonRunning: true, DisplayCount: 1, Sessions: len(h.sessions)}, nil
}

func (h *fakeHost) Displays() (DisplaysData, error) {
	return DisplaysData{Displays: []DisplayInfo{{ID: 1, Name: "HDMI-1", Rotation: 90}}}, nil
}

func (h *fakeHost) Refresh(displayID *int) (DisplaysData, error) {
	h.mu.Lock()
	h.refreshed = append(h.refreshed, displayID)
	h.mu.Unlock()
	if displayID != nil && *displayID != 1 {
		return DisplaysData{}, errors.New("unknown display 7")
	}
	return h.Displays()
}

func (h *fakeHost) PresentBegin(session, source string) (SessionInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if session == "" {
		session = "generated"
	}
	info := SessionInfo{ID: session, Source: source, Phase: "armed", Token: "0"}
	h.sessions[session] = info
	return info, nil
}

func (h *fakeHost) PresentDataReady(session string, suppressible bool) (SessionInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	info, ok := h.sessions[session]
	if !ok {
		return SessionInfo{}, errors.New("unknown session")
	}
	if !suppressible {
		info.Phase = "released"
		h.sessions[session] = info
	}
	return info, nil
}

func (h *fakeHost) PresentRelease(session string) (SessionInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	info, ok := h.sessions[session]
	if !ok {
		return SessionInfo{}, errors.New("unknown session")
	}
	info.Phase = "released"
	h.sessions[session] = info
	return info, nil
}

func (h *fakeHost) PresentList() (SessionsData, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out SessionsData
	for _, s := range h.sessions {
		out.Sessions = append(out.Sessions, s)
	}
	return out, nil
}

func (h *fakeHost) AccurateStart() (AccurateData, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners++
	return AccurateData{Accurate: true, Listeners: h.listeners}, nil
}

func (h *fakeHost) AccurateStop() (AccurateData, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listeners > 0 {
		h.listeners--
	}
	return AccurateData{Accurate: h.listeners > 0, Listeners: h.listeners}, nil
}

func (h *fakeHost) Reload() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reloads++
	return h.reloadErr
}

func (h *fakeHost) Watch(displayID *int) (<-chan RotationEvent, func(), error) {
	if displayID != nil && *displayID != 1 {
		return nil, nil, errors.New("unknown display")
	}
	var once sync.Once
	return h.watchCh, func() { once.Do(func() { close(h.cancelled) }) }, nil
}

func startServer(t *testing.T, host Host) *Client {
	t.Helper()
	dir, err := os.MkdirTemp("", "displayd-ipc")
	if err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	socket := filepath.Join(dir, "d.sock")
	srv := NewServerAt(socket, host, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Stop)
	return NewClientAt(socket)
}

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest([]byte(`{"command":"REFRESH","payload":{"display_id":3}}`))
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if req.Command != CommandRefresh || !strings.Contains(string(req.Payload), "3") {
		t.Fatalf("unexpected request: %+v", req)
	}

	for _, bad := range []string{`not json`, `{}`} {
		if _, err := ParseRequest([]byte(bad)); err == nil {
			t.Errorf("ParseRequest(%q) succeeded", bad)
		}
	}
}

func TestResponses(t *testing.T) {
	ok, err := NewOKResponse(AccurateData{Accurate: true, Listeners: 1})
	if err != nil {
		t.Fatalf("NewOKResponse: %v", err)
	}
	if ok.Status != "OK" || !strings.Contains(string(ok.Data), `"listeners":1`) {
		t.Fatalf("unexpected OK response: %+v", ok)
	}
	empty, _ := NewOKResponse(nil)
	if empty.Data != nil {
		t.Fatalf("expected no data, got %s", empty.Data)
	}
	e := NewErrorResponse("nope")
	if e.Status != "ERROR" || e.Error != "nope" {
		t.Fatalf("unexpected error response: %+v", e)
	}
}

func TestClientServerRoundTrip(t *testing.T) {
	host := newFakeHost()
	c := startServer(t, host)

	status, err := c.GetStatus()
	if err != nil || !status.DaemonRunning {
		t.Fatalf("GetStatus = %+v, %v", status, err)
	}

	displays, err := c.GetDisplays()
	if err != nil || len(displays.Displays) != 1 || displays.Displays[0].Rotation != 90 {
		t.Fatalf("GetDisplays = %+v, %v", displays, err)
	}

	id := 1
	if _, err := c.Refresh(&id); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := c.Refresh(nil); err != nil {
		t.Fatalf("Refresh all: %v", err)
	}
	host.mu.Lock()
	if len(host.refreshed) != 2 || host.refreshed[0] == nil || *host.refreshed[0] != 1 || host.refreshed[1] != nil {
		t.Fatalf("unexpected refresh calls: %v", host.refreshed)
	}
	host.mu.Unlock()

	info, err := c.PresentBegin("", "test")
	if err != nil || info.ID != "generated" || info.Source != "test" {
		t.Fatalf("PresentBegin = %+v, %v", info, err)
	}
	if _, err := c.PresentDataReady(info.ID, true); err != nil {
		t.Fatalf("PresentDataReady: %v", err)
	}
	released, err := c.PresentRelease(info.ID)
	if err != nil || released.Phase != "released" {
		t.Fatalf("PresentRelease = %+v, %v", released, err)
	}
	list, err := c.PresentList()
	if err != nil || len(list.Sessions) != 1 {
		t.Fatalf("PresentList = %+v, %v", list, err)
	}

	acc, err := c.AccurateStart()
	if err != nil || !acc.Accurate || acc.Listeners != 1 {
		t.Fatalf("AccurateStart = %+v, %v", acc, err)
	}
	acc, err = c.AccurateStop()
	if err != nil || acc.Accurate {
		t.Fatalf("AccurateStop = %+v, %v", acc, err)
	}

	if err := c.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if err := c.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestClientSurfacesErrors(t *testing.T) {
	host := newFakeHost()
	host.reloadErr = errors.New("bad config")
	c := startServer(t, host)

	if err := c.Reload(); err == nil || !strings.Contains(err.Error(), "bad config") {
		t.Fatalf("Reload error = %v", err)
	}
	id := 7
	if _, err := c.Refresh(&id); err == nil || !strings.Contains(err.Error(), "unknown display") {
		t.Fatalf("Refresh error = %v", err)
	}
	if _, err := c.PresentRelease(""); err == nil || !strings.Contains(err.Error(), "session is required") {
		t.Fatalf("PresentRelease error = %v", err)
	}
	if _, err := c.PresentDataReady("missing", true); err == nil {
		t.Fatal("expected error for unknown session")
	}
	if err := c.call("BOGUS", nil, nil); err == nil || !strings.Contains(err.Error(), "Unknown command") {
		t.Fatalf("unknown command error = %v", err)
	}
}

func TestClientWithoutDaemon(t *testing.T) {
	c := NewClientAt(filepath.Join(t.TempDir(), "missing.sock"))
	if err := c.Ping(); err == nil || !strings.Contains(err.Error(), "is the daemon running") {
		t.Fatalf("Ping error = %v", err)
	}
}

func TestWatchStreamsUntilCancelled(t *testing.T) {
	host := newFakeHost()
	c := startServer(t, host)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan RotationEvent, 2)
	done := make(chan error, 1)
	go func() {
		id := 1
		done <- c.Watch(ctx, &id, func(ev RotationEvent) error {
			got <- ev
			return nil
		})
	}()

	host.watchCh <- RotationEvent{DisplayID: 1, Rotation: 90}
	select {
	case ev := <-got:
		if ev.Rotation != 90 {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}

	select {
	case <-host.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not cancel the host watch after disconnect")
	}
}

func TestWatchUnknownDisplay(t *testing.T) {
	c := startServer(t, newFakeHost())
	id := 4
	err := c.Watch(context.Background(), &id, func(RotationEvent) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "unknown display") {
		t.Fatalf("Watch error = %v", err)
	}
}
