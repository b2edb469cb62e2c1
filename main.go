package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/debemdeboas/quill/internal/app"
	"github.com/debemdeboas/quill/internal/config"
	"github.com/debemdeboas/quill/internal/content"
	"github.com/debemdeboas/quill/internal/logger"
	"github.com/debemdeboas/quill/internal/metrics"
	"github.com/debemdeboas/quill/internal/model"
	"github.com/debemdeboas/quill/internal/render"
	"github.com/debemdeboas/quill/internal/server"
	"github.com/debemdeboas/quill/internal/session"
	"github.com/debemdeboas/quill/internal/sse"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	flag.Parse()

	config.LoadEnv()
	if err := config.LoadConfig(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, config.ErrLoadConfigFmt+"\n", err)
		os.Exit(1)
	}

	l := logger.New(config.AppConfig.Logging.Level)
	setLoggers(l)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config.AppConfig, l); err != nil {
		l.Fatal().Err(err).Msg("Server stopped")
	}
}

func setLoggers(l zerolog.Logger) {
	app.SetLoggers(l)
	session.SetLogger(l.With().Str("component", "session").Logger())
	content.SetLogger(l.With().Str("component", "content").Logger())
	sse.SetLogger(l.With().Str("component", "sse").Logger())
	server.SetLogger(l.With().Str("component", "server").Logger())
	render.SetLogger(l.With().Str("component", "render").Logger())
}

// service is everything run needs to serve requests.
type service struct {
	backends *app.Backends
	handler  http.Handler
	events   *sse.SSEClients
}

func newService(ctx context.Context, cfg *config.Config, l zerolog.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*service, error) {
	backends, err := app.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	events := sse.NewSSEClients()
	reload := func(id model.DocumentID) {
		go events.Broadcast(id, sse.MsgReload)
	}
	backends.Documents.SetReloadNotifier(reload)

	factory := backends.Factory(l.With().Str("component", "workspace").Logger())
	factory.OnChange = reload

	metrics.RegisterCollectors(reg)

	s := &server.Server{
		Registry:       server.NewRegistry(factory, cfg.Server.ClientTTL),
		Events:         events,
		Metrics:        promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		SecureCookies:  cfg.Server.SecureCookies,
		MaxUploadBytes: int64(cfg.Server.MaxUploadBytes),
	}
	if backends.FSAssets != nil {
		s.Assets = backends.FSAssets.Handler()
	}

	return &service{backends: backends, handler: s.Handler(), events: events}, nil
}

func run(ctx context.Context, cfg *config.Config, l zerolog.Logger) error {
	svc, err := newService(ctx, cfg, l, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		return err
	}
	defer svc.backends.Close()

	// Picks up writes made outside this process, such as quillctl.
	go svc.backends.Documents.Watch(ctx, cfg.Database.WatchInterval)

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           svc.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info().Str("addr", httpServer.Addr).Str("site", cfg.Site.Name).Msg("Listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	l.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
