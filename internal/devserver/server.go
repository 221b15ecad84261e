// Package devserver serves the export directory while rebuilding the addon
// on every source change.
//
// Pieces:
//   - Watcher: fsnotify over the source tree, debounced
//   - pipeline.Scheduler: one build at a time, bursts coalesced
//   - static file server over the export directory with permissive CORS
//   - Hub: /livereload websocket pushing an Event after every build
//
// The editor imports the addon from <base>/addon.json; the banner prints it.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"c3addon-builder/internal/config"
	"c3addon-builder/internal/logging"
	"c3addon-builder/internal/pipeline"
)

// LiveReloadPath is where clients subscribe to build events.
const LiveReloadPath = "/livereload"

// DefaultPortTries bounds the port fallback.
const DefaultPortTries = 20

// Builder runs one build.
type Builder interface {
	Build(ctx context.Context) (*pipeline.Result, error)
}

// Options configure a Server.
type Options struct {
	Config  *config.Config
	Builder Builder
	Logger  *zap.Logger
	// Out receives the banner. Nil disables it.
	Out      io.Writer
	Debounce time.Duration
	// PortTries is how many consecutive ports are tried. 0 means DefaultPortTries.
	PortTries int
	// OnListen is called with the base URL once the listener is bound.
	OnListen func(baseURL string)
}

// Server is the development server.
type Server struct {
	opts Options
	log  *zap.Logger
	hub  *Hub

	mu      sync.Mutex
	baseURL string
	last    *pipeline.Result
}

func New(opts Options) (*Server, error) {
	if opts.Config == nil || opts.Builder == nil {
		return nil, errors.New("devserver: config and builder are required")
	}
	if opts.PortTries <= 0 {
		opts.PortTries = DefaultPortTries
	}
	log := logging.OrNop(opts.Logger)
	return &Server{opts: opts, log: log, hub: NewHub(log)}, nil
}

// Hub returns the live-reload hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler serves the export directory and the live-reload endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(LiveReloadPath, s.hub)
	mux.Handle("/", withCORS(http.FileServer(http.Dir(s.opts.Config.Path(s.opts.Config.ExportPath)))))
	return mux
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		h.Set("Cache-Control", "no-store")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Listen binds host:port, moving to the next port while the current one is
// in use. It returns the listener and the bound port.
func Listen(host string, port, tries int) (net.Listener, int, error) {
	if tries <= 0 {
		tries = 1
	}
	var lastErr error
	for i := 0; i < tries; i++ {
		p := port + i
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err == nil {
			return ln, ln.Addr().(*net.TCPAddr).Port, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, 0, err
		}
		lastErr = err
	}
	return nil, 0, fmt.Errorf("no free port in %d..%d: %w", port, port+tries-1, lastErr)
}

// hostOf returns the host name of the configured base URL ("http://localhost").
func hostOf(base string) (scheme, host string) {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return "http", base
	}
	return u.Scheme, u.Hostname()
}

// Run builds once, then serves and rebuilds on changes until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	cfg := s.opts.Config
	scheme, host := hostOf(cfg.Host)
	ln, port, err := Listen(host, cfg.Port, s.opts.PortTries)
	if err != nil {
		return err
	}
	if port != cfg.Port {
		s.log.Warn("port in use, using another", zap.Int("wanted", cfg.Port), zap.Int("port", port))
	}
	base := fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, strconv.Itoa(port)))
	s.mu.Lock()
	s.baseURL = base
	s.mu.Unlock()

	watcher, err := NewWatcher(cfg.Path(cfg.SourcePath), s.opts.Debounce, s.log)
	if err != nil {
		ln.Close()
		return fmt.Errorf("watch %s: %w", cfg.SourcePath, err)
	}

	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	sched := pipeline.NewScheduler(s.rebuild)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error {
		return watcher.Run(gctx, func(path string) {
			s.log.Info("change detected, rebuilding", zap.String("path", path))
			sched.Trigger()
		})
	})
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	s.log.Info("dev server listening", zap.String("url", base))
	if s.opts.OnListen != nil {
		s.opts.OnListen(base)
	}
	sched.Trigger()

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Server) rebuild(ctx context.Context) {
	res, err := s.opts.Builder.Build(ctx)
	if ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	if err == nil && !res.Skipped {
		s.last = res
	}
	base := s.baseURL
	s.mu.Unlock()

	ev := eventFor(res, err)
	if err != nil {
		s.log.Error("build failed", zap.Error(err))
	} else {
		s.log.Info("build finished",
			zap.String("build", res.ID),
			zap.Bool("skipped", res.Skipped),
			zap.Duration("took", res.Duration))
	}
	s.hub.Broadcast(ev)

	if s.opts.Out != nil {
		info := BannerInfo{BaseURL: base, LastErr: err, Watching: s.opts.Config.SourcePath}
		if last := s.Last(); last != nil && last.Addon != nil {
			info.Addon, info.Version = last.Addon.Name, last.Addon.Version
			if last.Model != nil {
				info.Records = last.Model.Len()
			}
		}
		fmt.Fprintln(s.opts.Out, Banner(info))
	}
}

// Last returns the result of the last successful build.
func (s *Server) Last() *pipeline.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func eventFor(res *pipeline.Result, err error) Event {
	if err != nil {
		return Event{Type: "error", Message: err.Error()}
	}
	ev := Event{Type: "build", Build: res.ID, Skipped: res.Skipped, Duration: res.Duration.String()}
	if res.Addon != nil {
		ev.Addon, ev.Version = res.Addon.ID, res.Addon.Version
	}
	if res.Model != nil {
		ev.Records = res.Model.Len()
	}
	ev.Changed = append(ev.Changed, res.Changes.Added...)
	ev.Changed = append(ev.Changed, res.Changes.Changed...)
	ev.Changed = append(ev.Changed, res.Changes.Removed...)
	return ev
}
