package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/1broseidon/displayd/internal/ipc"
)

type fakeDaemon struct {
	begins    []ipc.PresentBeginPayload
	refreshed []*int
	err       error
}

func (f *fakeDaemon) GetDisplays() (*ipc.DisplaysData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ipc.DisplaysData{Displays: []ipc.DisplayInfo{{ID: 3, Rotation: 270}}}, nil
}

func (f *fakeDaemon) Refresh(displayID *int) (*ipc.DisplaysData, error) {
	f.refreshed = append(f.refreshed, displayID)
	return f.GetDisplays()
}

func (f *fakeDaemon) PresentBegin(session, source string) (*ipc.SessionInfo, error) {
	f.begins = append(f.begins, ipc.PresentBeginPayload{Session: session, Source: source})
	if session == "" {
		session = "new"
	}
	return &ipc.SessionInfo{ID: session, Source: source, Phase: "armed"}, nil
}

func (f *fakeDaemon) PresentDataReady(session string, suppressible bool) (*ipc.SessionInfo, error) {
	phase := "armed"
	if !suppressible {
		phase = "released"
	}
	return &ipc.SessionInfo{ID: session, Phase: phase}, nil
}

func (f *fakeDaemon) PresentRelease(session string) (*ipc.SessionInfo, error) {
	if session == "gone" {
		return nil, errors.New("daemon error: unknown session")
	}
	return &ipc.SessionInfo{ID: session, Phase: "released"}, nil
}

func (f *fakeDaemon) PresentList() (*ipc.SessionsData, error) {
	return &ipc.SessionsData{Sessions: []ipc.SessionInfo{{ID: "a"}, {ID: "b"}}}, nil
}

func TestListAndRefreshDisplays(t *testing.T) {
	d := &fakeDaemon{}
	s := NewServer(d, nil)
	ctx := context.Background()

	_, out, err := s.handleListDisplays(ctx, nil, ListDisplaysInput{})
	if err != nil || len(out.Displays) != 1 || out.Displays[0].Rotation != 270 {
		t.Fatalf("list_displays = %+v, %v", out, err)
	}

	id := 3
	if _, _, err := s.handleRefreshDisplays(ctx, nil, RefreshDisplaysInput{DisplayID: &id}); err != nil {
		t.Fatalf("refresh_displays: %v", err)
	}
	if len(d.refreshed) != 1 || *d.refreshed[0] != 3 {
		t.Fatalf("unexpected refresh calls: %v", d.refreshed)
	}

	d.err = errors.New("daemon down")
	if _, _, err := s.handleListDisplays(ctx, nil, ListDisplaysInput{}); err == nil || !strings.Contains(err.Error(), "list_displays") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestPresentTools(t *testing.T) {
	d := &fakeDaemon{}
	s := NewServer(d, nil)
	ctx := context.Background()

	_, begun, err := s.handlePresentBegin(ctx, nil, PresentBeginInput{})
	if err != nil || begun.Session.ID != "new" {
		t.Fatalf("present_begin = %+v, %v", begun, err)
	}
	if d.begins[0].Source != "mcp" {
		t.Fatalf("expected default source mcp, got %q", d.begins[0].Source)
	}

	_, ready, err := s.handlePresentDataReady(ctx, nil, PresentDataReadyInput{Session: "new", Suppressible: false})
	if err != nil || ready.Session.Phase != "released" {
		t.Fatalf("present_data_ready = %+v, %v", ready, err)
	}

	if _, _, err := s.handlePresentDataReady(ctx, nil, PresentDataReadyInput{}); err == nil {
		t.Fatal("expected error without a session")
	}
	if _, _, err := s.handlePresentRelease(ctx, nil, PresentReleaseInput{Session: "gone"}); err == nil {
		t.Fatal("expected error for unknown session")
	}

	_, list, err := s.handleListSessions(ctx, nil, ListSessionsInput{})
	if err != nil || len(list.Sessions) != 2 {
		t.Fatalf("list_sessions = %+v, %v", list, err)
	}
}

func TestSessionFromInfoFormatsTimes(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	released := created.Add(time.Minute)
	s := sessionFromInfo(ipc.SessionInfo{ID: "a", Phase: "released", Token: "invalid", CreatedAt: created, ReleasedAt: &released})
	if s.CreatedAt != "2026-03-01T10:00:00Z" || s.ReleasedAt != "2026-03-01T10:01:00Z" || s.ArmedAt != "" {
		t.Fatalf("unexpected session: %+v", s)
	}
}
