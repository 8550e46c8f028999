package daemon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"
	"weak"

	"github.com/1broseidon/displayd/internal/config"
	"github.com/1broseidon/displayd/internal/display"
	"github.com/1broseidon/displayd/internal/ipc"
	"github.com/1broseidon/displayd/internal/platform"
	"github.com/1broseidon/displayd/internal/suppress"
	"github.com/1broseidon/displayd/internal/visibility"
)

// HotkeySessionID is the session toggled by the present hotkey.
const HotkeySessionID = "hotkey"

const watchBuffer = 16

// Options configures a Daemon.
type Options struct {
	Config     *config.Config
	ConfigPath string
	Backend    platform.Backend
	Logger     *slog.Logger
	// Level, when set, is adjusted on reload.
	Level *slog.LevelVar
	// LoadConfig reads the config on RELOAD. Defaults to config.LoadFromPath.
	LoadConfig func(path string) (*config.Config, error)
}

// Daemon owns the display registry, suppression service and session table.
// All of them are touched only from its Loop.
type Daemon struct {
	cfg        *config.Config
	configPath string
	backend    platform.Backend
	source     *platform.Source
	manager    *display.Manager
	surface    *gatedSurface
	suppressor *suppress.Service
	sessions   *Sessions
	loop       *Loop
	reconciler *Reconciler
	logs       map[int]*RotationLog
	watchAll   map[weak.Pointer[watchSub]]struct{}
	logger     *slog.Logger
	level      *slog.LevelVar
	loadConfig func(path string) (*config.Config, error)
	started    time.Time
	now        func() time.Time

	reloadMu  sync.Mutex
	onReload  []func(*config.Config)
	cancelRun context.CancelFunc
}

var (
	_ ipc.Host        = (*Daemon)(nil)
	_ ReconcileTarget = (*Daemon)(nil)
)

// New wires a daemon over opts.Backend. Call Start to begin processing.
func New(opts Options) (*Daemon, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("daemon requires a platform backend")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	loadConfig := opts.LoadConfig
	if loadConfig == nil {
		loadConfig = func(path string) (*config.Config, error) {
			res, err := config.LoadFromPath(path)
			if err != nil {
				return nil, err
			}
			return res.Config, nil
		}
	}

	source := platform.NewSource(opts.Backend, logger.With("component", "display"))
	surface := &gatedSurface{
		enabled: cfg.Suppression.Enabled,
		current: opts.Backend.Surface(cfg.Suppression.WindowTypes),
	}
	suppressor := suppress.NewService(surface, logger.With("component", "suppress"))

	d := &Daemon{
		cfg:        cfg,
		configPath: opts.ConfigPath,
		backend:    opts.Backend,
		source:     source,
		manager:    display.NewManager(source, logger.With("component", "display")),
		surface:    surface,
		suppressor: suppressor,
		sessions:   NewSessions(suppressor, logger.With("component", "sessions")),
		loop:       NewLoop(0, logger.With("component", "loop")),
		logs:       make(map[int]*RotationLog),
		watchAll:   make(map[weak.Pointer[watchSub]]struct{}),
		logger:     logger,
		level:      opts.Level,
		loadConfig: loadConfig,
		now:        time.Now,
	}
	d.reconciler = NewReconciler(ReconcilerConfig{
		Interval: cfg.RefreshInterval(),
		Logger:   logger.With("component", "reconciler"),
	}, d.loop, d)
	return d, nil
}

// Loop returns the daemon's event loop.
func (d *Daemon) Loop() *Loop {
	return d.loop
}

// Start runs the loop and the reconciler in the background, loads the
// initial display state and subscribes to display change events.
func (d *Daemon) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancelRun = cancel
	d.started = d.now()

	go d.loop.Run(ctx)

	err := d.loop.Do(func() {
		d.refreshAll()
		if d.cfg.AccurateOnStart {
			d.manager.StartAccurateListening()
		}
	})
	if err != nil {
		cancel()
		return err
	}

	d.backend.OnDisplayChange(func() {
		d.loop.Post(func() { d.refreshAll() })
	})

	go d.reconciler.Run(ctx)

	d.logger.Info("daemon started",
		"displays", len(d.manager.IDs()),
		"accurate", d.cfg.AccurateOnStart,
		"suppression", d.cfg.Suppression.Enabled)
	return nil
}

// Shutdown releases every session so no window stays hidden, drops the
// accurate-mode subscription and stops the loop.
func (d *Daemon) Shutdown() {
	_ = d.loop.Do(func() {
		d.sessions.ReleaseAll()
		for d.manager.AccurateListeners() > 0 {
			d.manager.StopAccurateListening()
		}
	})
	d.loop.Stop()
	if d.cancelRun != nil {
		d.cancelRun()
	}
	d.logger.Info("daemon stopped")
}

// OnReload registers fn to run after a successful RELOAD, outside the loop.
func (d *Daemon) OnReload(fn func(*config.Config)) {
	d.reloadMu.Lock()
	defer d.reloadMu.Unlock()
	d.onReload = append(d.onReload, fn)
}

// refreshAll re-reads every display and forgets the ones that disappeared.
// Runs on the loop.
func (d *Daemon) refreshAll() int {
	snap := d.source.Load()
	for _, id := range snap.IDs() {
		d.track(d.manager.Refresh(id, snap))
	}
	d.forgetMissing(snap)
	return snap.Len()
}

func (d *Daemon) track(st *display.State) {
	if _, ok := d.logs[st.ID()]; ok {
		return
	}
	rl := newRotationLog(st, d.logger.With("component", "rotation"))
	d.logs[st.ID()] = rl
	display.AddObserver(st, rl)
	for wp := range d.watchAll {
		sub := wp.Value()
		if sub == nil {
			delete(d.watchAll, wp)
			continue
		}
		sub.attach(st, d)
	}
}

func (d *Daemon) forgetMissing(snap platform.Snapshot) []int {
	var forgotten []int
	for _, id := range d.manager.IDs() {
		if _, ok := snap.Geometry(id); ok {
			continue
		}
		d.manager.Forget(id)
		delete(d.logs, id)
		forgotten = append(forgotten, id)
		d.logger.Info("display disappeared", "display", id)
	}
	return forgotten
}

// Reconcile implements ReconcileTarget.
func (d *Daemon) Reconcile(now time.Time) ReconcileResult {
	var res ReconcileResult
	if d.manager.Accurate() {
		res.Forgotten = d.forgetMissing(d.source.Current())
	} else {
		before := d.manager.IDs()
		res.Refreshed = d.refreshAll()
		res.Forgotten = missing(before, d.manager.IDs())
	}
	res.Expired = d.sessions.ExpireHeld(now, d.cfg.MaxHold())
	res.Pruned = d.sessions.Prune(now, d.cfg.SessionTTL())
	return res
}

func missing(before, after []int) []int {
	present := make(map[int]struct{}, len(after))
	for _, id := range after {
		present[id] = struct{}{}
	}
	var out []int
	for _, id := range before {
		if _, ok := present[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// RefreshAll queues a refresh of every display.
func (d *Daemon) RefreshAll() {
	d.loop.Post(func() { d.refreshAll() })
}

// TogglePresent arms the hotkey session when it is not armed and releases it
// otherwise.
func (d *Daemon) TogglePresent() {
	d.loop.Post(func() {
		if sess, ok := d.sessions.Get(HotkeySessionID); ok && sess.Phase() == visibility.PhaseArmed {
			d.sessions.Release(HotkeySessionID)
			d.logger.Info("hotkey presentation released")
			return
		}
		d.sessions.Begin(HotkeySessionID, "hotkey")
		d.sessions.DataReady(HotkeySessionID, true)
		d.logger.Info("hotkey presentation armed")
	})
}

// Status implements ipc.Host.
func (d *Daemon) Status() (ipc.StatusData, error) {
	var st ipc.StatusData
	err := d.loop.Do(func() {
		st = ipc.StatusData{
			DaemonRunning:     true,
			UptimeSeconds:     int64(d.now().Sub(d.started).Seconds()),
			DisplayCount:      len(d.manager.IDs()),
			Accurate:          d.manager.Accurate(),
			AccurateListeners: d.manager.AccurateListeners(),
			Suppressed:        d.suppressor.Suppressed(),
			OutstandingTokens: d.suppressor.Outstanding(),
			ArmedSessions:     d.sessions.Armed(),
			Sessions:          d.sessions.Len(),
		}
	})
	return st, err
}

// Displays implements ipc.Host.
func (d *Daemon) Displays() (ipc.DisplaysData, error) {
	var data ipc.DisplaysData
	err := d.loop.Do(func() {
		data = d.displaysLocked()
	})
	return data, err
}

func (d *Daemon) displaysLocked() ipc.DisplaysData {
	snap := d.source.Current()
	ids := d.manager.IDs()
	out := make([]ipc.DisplayInfo, 0, len(ids))
	for _, id := range ids {
		st, _ := d.manager.Lookup(id)
		out = append(out, displayInfo(st, snap))
	}
	return ipc.DisplaysData{Displays: out}
}

func displayInfo(st *display.State, snap platform.Snapshot) ipc.DisplayInfo {
	info := st.Info()
	out := ipc.DisplayInfo{
		ID:        info.ID,
		Logical:   ipc.Size(info.Logical),
		Physical:  ipc.Size(info.Physical),
		Rotation:  int(info.Rotation),
		Observers: st.ObserverCount(),
	}
	if g, ok := snap.Geometry(info.ID); ok {
		out.Name = g.Name
		out.X = g.Bounds.X
		out.Y = g.Bounds.Y
	}
	return out
}

// Refresh implements ipc.Host.
func (d *Daemon) Refresh(displayID *int) (ipc.DisplaysData, error) {
	var data ipc.DisplaysData
	var refreshErr error
	err := d.loop.Do(func() {
		if displayID == nil {
			d.refreshAll()
			data = d.displaysLocked()
			return
		}
		snap := d.source.Load()
		if _, ok := snap.Geometry(*displayID); !ok {
			refreshErr = fmt.Errorf("unknown display %d", *displayID)
			return
		}
		st := d.manager.Refresh(*displayID, snap)
		d.track(st)
		data = ipc.DisplaysData{Displays: []ipc.DisplayInfo{displayInfo(st, snap)}}
	})
	if err != nil {
		return data, err
	}
	return data, refreshErr
}

// PresentBegin implements ipc.Host.
func (d *Daemon) PresentBegin(session, source string) (ipc.SessionInfo, error) {
	var info ipc.SessionInfo
	err := d.loop.Do(func() {
		info = sessionInfo(d.sessions.Begin(session, source))
	})
	return info, err
}

// PresentDataReady implements ipc.Host.
func (d *Daemon) PresentDataReady(session string, suppressible bool) (ipc.SessionInfo, error) {
	return d.sessionOp(func() (*Session, error) {
		return d.sessions.DataReady(session, suppressible)
	})
}

// PresentRelease implements ipc.Host.
func (d *Daemon) PresentRelease(session string) (ipc.SessionInfo, error) {
	return d.sessionOp(func() (*Session, error) {
		return d.sessions.Release(session)
	})
}

func (d *Daemon) sessionOp(op func() (*Session, error)) (ipc.SessionInfo, error) {
	var info ipc.SessionInfo
	var opErr error
	err := d.loop.Do(func() {
		sess, err := op()
		if err != nil {
			opErr = err
			return
		}
		info = sessionInfo(sess)
	})
	if err != nil {
		return info, err
	}
	return info, opErr
}

// PresentList implements ipc.Host.
func (d *Daemon) PresentList() (ipc.SessionsData, error) {
	var data ipc.SessionsData
	err := d.loop.Do(func() {
		list := d.sessions.List()
		data.Sessions = make([]ipc.SessionInfo, 0, len(list))
		for _, sess := range list {
			data.Sessions = append(data.Sessions, sessionInfo(sess))
		}
	})
	return data, err
}

func sessionInfo(sess *Session) ipc.SessionInfo {
	info := ipc.SessionInfo{
		ID:        sess.ID,
		Source:    sess.Source,
		Phase:     sess.Phase().String(),
		Token:     sess.coord.Token().String(),
		CreatedAt: sess.CreatedAt,
	}
	if !sess.ArmedAt.IsZero() {
		t := sess.ArmedAt
		info.ArmedAt = &t
	}
	if !sess.ReleasedAt.IsZero() {
		t := sess.ReleasedAt
		info.ReleasedAt = &t
	}
	return info
}

// AccurateStart implements ipc.Host.
func (d *Daemon) AccurateStart() (ipc.AccurateData, error) {
	return d.accurate(d.manager.StartAccurateListening)
}

// AccurateStop implements ipc.Host.
func (d *Daemon) AccurateStop() (ipc.AccurateData, error) {
	return d.accurate(d.manager.StopAccurateListening)
}

func (d *Daemon) accurate(op func()) (ipc.AccurateData, error) {
	var data ipc.AccurateData
	err := d.loop.Do(func() {
		op()
		data = ipc.AccurateData{
			Accurate:  d.manager.Accurate(),
			Listeners: d.manager.AccurateListeners(),
		}
	})
	return data, err
}

// Reload implements ipc.Host. The refresh interval and accurate_on_start
// only take effect on restart.
func (d *Daemon) Reload() error {
	cfg, err := d.loadConfig(d.configPath)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	err = d.loop.Do(func() {
		d.cfg = cfg
		d.surface.reconfigure(cfg.Suppression.Enabled, d.backend.Surface(cfg.Suppression.WindowTypes))
		if d.level != nil {
			d.level.Set(cfg.SlogLevel())
		}
	})
	if err != nil {
		return err
	}

	d.reloadMu.Lock()
	hooks := slices.Clone(d.onReload)
	d.reloadMu.Unlock()
	for _, fn := range hooks {
		fn(cfg)
	}
	d.logger.Info("config reloaded", "path", d.configPath)
	return nil
}

// Watch implements ipc.Host. Events for the selected displays are delivered
// on the returned channel until cancel is called. Watching all displays also
// covers displays that appear later. The subscription and its observers are
// held weakly; the returned cancel func keeps them alive.
func (d *Daemon) Watch(displayID *int) (<-chan ipc.RotationEvent, func(), error) {
	sub := &watchSub{events: make(chan ipc.RotationEvent, watchBuffer)}
	var watchErr error

	err := d.loop.Do(func() {
		if displayID == nil {
			for _, id := range d.manager.IDs() {
				st, _ := d.manager.Lookup(id)
				sub.attach(st, d)
			}
			d.watchAll[weak.Make(sub)] = struct{}{}
			return
		}
		if _, ok := d.source.Current().Geometry(*displayID); !ok {
			watchErr = fmt.Errorf("unknown display %d", *displayID)
			return
		}
		st := d.manager.Get(*displayID)
		d.track(st)
		sub.attach(st, d)
	})
	if err != nil {
		return nil, nil, err
	}
	if watchErr != nil {
		return nil, nil, watchErr
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			d.loop.Post(func() {
				delete(d.watchAll, weak.Make(sub))
				for _, w := range sub.watchers {
					display.RemoveObserver(w.state, w)
				}
				sub.watchers = nil
			})
		})
	}
	return sub.events, cancel, nil
}

// watchSub is one WATCH connection. Its watchers are touched only on the
// loop.
type watchSub struct {
	events   chan ipc.RotationEvent
	watchers []*rotationWatcher
}

func (s *watchSub) attach(st *display.State, d *Daemon) {
	w := &rotationWatcher{state: st, events: s.events, now: d.now, logger: d.logger}
	display.AddObserver(st, w)
	s.watchers = append(s.watchers, w)
}

// rotationWatcher forwards rotation changes of one display to a WATCH
// connection. A full channel drops the event rather than stalling the loop.
type rotationWatcher struct {
	state   *display.State
	events  chan<- ipc.RotationEvent
	now     func() time.Time
	dropped int
	logger  *slog.Logger
}

func (w *rotationWatcher) OnRotationChanged(rot display.Rotation) {
	info := w.state.Info()
	ev := ipc.RotationEvent{
		DisplayID: info.ID,
		Rotation:  int(rot),
		Logical:   ipc.Size(info.Logical),
		Physical:  ipc.Size(info.Physical),
		Time:      w.now(),
	}
	select {
	case w.events <- ev:
	default:
		w.dropped++
		w.logger.Warn("watch client too slow, event dropped", "display", info.ID, "dropped", w.dropped)
	}
}

// gatedSurface lets config reloads switch suppression on/off and change the
// window types without disturbing windows that are currently hidden.
type gatedSurface struct {
	enabled bool
	current suppress.Surface
	next    suppress.Surface
	hiding  bool
}

func (g *gatedSurface) Hide() error {
	if g.next != nil {
		g.current, g.next = g.next, nil
	}
	if !g.enabled || g.current == nil {
		return nil
	}
	g.hiding = true
	return g.current.Hide()
}

func (g *gatedSurface) Show() error {
	if !g.hiding {
		return nil
	}
	g.hiding = false
	return g.current.Show()
}

func (g *gatedSurface) reconfigure(enabled bool, next suppress.Surface) {
	g.enabled = enabled
	if g.hiding {
		g.next = next
		return
	}
	g.current, g.next = next, nil
}
