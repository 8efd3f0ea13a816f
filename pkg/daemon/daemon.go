package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/battos/battdiag/pkg/apikey"
	"github.com/battos/battdiag/pkg/chemistry"
	"github.com/battos/battdiag/pkg/config"
	"github.com/battos/battdiag/pkg/diagnostics"
	"github.com/battos/battdiag/pkg/events"
	"github.com/battos/battdiag/pkg/history"
	"github.com/battos/battdiag/pkg/metrics"
	"github.com/battos/battdiag/pkg/notify"
)

const (
	shutdownTimeout   = 5 * time.Second
	connectTimeout    = 10 * time.Second
	heartbeatInterval = 30 * time.Second
)

// Options carries the dependencies of a Server. Zero values fall back to
// in-process defaults.
type Options struct {
	Engine   *diagnostics.Engine
	History  history.Store
	Notifier notify.Publisher
	Hub      *events.Hub
	// Registry receives the metrics and is served on /metrics. Nil disables
	// both.
	Registry *prometheus.Registry
}

// Server is the diagnostics HTTP API.
type Server struct {
	conf     config.Config
	engine   *diagnostics.Engine
	keys     *apikey.Manager
	history  history.Store
	notifier notify.Publisher
	hub      *events.Hub
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	limiter  *keyLimiter

	scheduler *Scheduler
	heartbeat time.Duration

	// saveMu serializes writes of key usage to the config file.
	saveMu sync.Mutex
	// notifying tracks broker publishes still in flight.
	notifying sync.WaitGroup

	quit     chan struct{}
	quitOnce sync.Once
}

func NewServer(conf config.Config, opts Options) *Server {
	s := &Server{
		conf:      conf,
		engine:    opts.Engine,
		keys:      apikey.NewManager(conf.APIKeys(), conf.MaxKeyUsage()),
		history:   opts.History,
		notifier:  opts.Notifier,
		hub:       opts.Hub,
		registry:  opts.Registry,
		limiter:   newKeyLimiter(conf.RateLimitRPS(), conf.RateLimitBurst()),
		heartbeat: heartbeatInterval,
		quit:      make(chan struct{}),
	}
	if s.engine == nil {
		s.engine = diagnostics.New(nil)
	}
	if s.history == nil {
		s.history = history.NewMemory(history.DefaultRetention)
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	if s.hub == nil {
		s.hub = events.NewHub()
	}
	if s.registry != nil {
		s.metrics = metrics.New(s.registry)
	}

	s.scheduler = NewScheduler(s.resetUsage, func(data any) {
		logrus.WithField("scheduledAt", data).Info("API key usage reset")
	}, func(data any) {
		logrus.WithField("error", data).Error("scheduled API key usage reset failed")
	})
	if err := s.scheduler.Schedule(conf.UsageResetSchedule()); err != nil {
		logrus.WithError(err).Error("usage reset schedule disabled")
	}

	return s
}

func (s *Server) Handler() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.Use(cors(s.conf.AllowedOrigins))

	router.GET("/health", s.getHealth)
	router.GET("/version", getVersion)
	router.GET("/api-list", getAPIList)
	router.GET("/api-detail/:parameter", getAPIDetail)
	if s.registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}

	battery := router.Group("/battery")
	battery.GET("/chemistries", s.getChemistries)
	battery.GET("/events", s.streamEvents)

	diagnose := battery.Group("/diagnose", s.requireAPIKey)
	for _, doc := range catalog {
		diagnose.POST("/"+doc.ID, s.diagnose(doc.ID, doc.newRequest))
	}
	battery.GET("/logs", s.requireAPIKey, s.getLogs)

	admin := router.Group("/admin", s.requireAdmin)
	admin.GET("/keys", s.listKeys)
	admin.POST("/keys", s.addKey)
	admin.DELETE("/keys/:key", s.removeKey)
	admin.POST("/keys/:key/reset", s.resetKey)
	admin.POST("/usage/reset", s.resetAllKeys)
	admin.GET("/usage/schedule", s.getResetSchedule)
	admin.POST("/usage/schedule/skip", s.skipReset)

	router.NoRoute(notFound(router))

	return router
}

// Start starts background jobs.
func (s *Server) Start() {
	s.scheduler.Start()
}

// Reload applies a freshly loaded config. The listen address only changes
// on restart.
func (s *Server) Reload() {
	s.keys.Sync(s.conf.APIKeys())
	s.keys.SetMaxUsage(s.conf.MaxKeyUsage())
	s.limiter.setLimit(s.conf.RateLimitRPS(), s.conf.RateLimitBurst())
	if err := s.scheduler.Schedule(s.conf.UsageResetSchedule()); err != nil {
		logrus.WithError(err).Error("failed to apply usage reset schedule")
	}
}

// Close stops background jobs, persists key usage and releases the stores.
// Open event streams end.
func (s *Server) Close() error {
	s.closeStreams()
	s.scheduler.Stop()

	var errs []error
	if err := s.persistKeys(); err != nil {
		errs = append(errs, err)
	}
	s.notifying.Wait()
	if err := s.notifier.Close(); err != nil {
		errs = append(errs, pkgerrors.Wrap(err, "failed to close notifier"))
	}
	if err := s.history.Close(); err != nil {
		errs = append(errs, pkgerrors.Wrap(err, "failed to close history store"))
	}
	return errors.Join(errs...)
}

func (s *Server) closeStreams() {
	s.quitOnce.Do(func() { close(s.quit) })
}

func (s *Server) resetUsage() error {
	n := s.keys.ResetAll()
	s.hub.Publish(events.UsageReset, events.KeyEvent{Ts: time.Now().Unix()})
	logrus.WithField("keys", n).Debug("reset usage of all API keys")
	return s.persistKeys()
}

// persistKeys writes the key registry and its usage back to the config file.
func (s *Server) persistKeys() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.conf.SetAPIKeys(s.keys.Snapshot())
	if err := s.conf.Save(); err != nil {
		return pkgerrors.Wrap(err, "failed to save API key usage")
	}
	return nil
}

func loadRegistry(path string) (*chemistry.Registry, error) {
	if path == "" {
		return chemistry.Default(), nil
	}
	t, err := chemistry.LoadTable(path)
	if err != nil {
		return nil, err
	}
	logrus.WithField("path", path).Info("loaded chemistry table")
	return chemistry.NewRegistry(t)
}

func Run(configPath string) error {
	conf, err := config.NewFile(configPath)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to parse config during startup")
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	registry, err := loadRegistry(conf.RegistryTable())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	store, err := history.Open(ctx, conf)
	cancel()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to open history store")
	}

	var promReg *prometheus.Registry
	if conf.MetricsEnabled() {
		promReg = prometheus.NewRegistry()
		promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	s := NewServer(conf, Options{
		Engine:   diagnostics.New(registry),
		History:  store,
		Notifier: notify.FromConfig(conf),
		Registry: promReg,
	})
	s.Start()

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			err := conf.Load()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			s.Reload()
			logrus.WithFields(conf.LogrusFields()).Infof("config reloaded")
		}
	}()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(s.closeStreams)

	l, err := net.Listen("tcp", conf.Listen())
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to listen on %s", conf.Listen())
	}

	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	ctx, cancel = context.WithTimeout(context.Background(), shutdownTimeout)
	err = srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	if err := s.Close(); err != nil {
		logrus.Errorf("failed to clean up: %v", err)
	}

	logrus.Info("exiting")
	return nil
}
