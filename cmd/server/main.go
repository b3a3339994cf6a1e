package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/backend"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/fileserve"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/health"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/httpserver"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/log"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/metrics"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/opshttp"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/otelx"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/prof"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/ratelimit"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/scormhttp"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/sitehandler"
	v "github.com/keithlinneman/linnemanlabs-scorm/internal/version"
)

const component = "server"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func stderrf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// loadConfig applies cli > env > file > default and validates.
func loadConfig(args []string) (cfg.App, bool, error) {
	fs := flag.NewFlagSet(v.AppName, flag.ContinueOnError)
	var conf cfg.App
	var showVersion bool
	cfg.Register(fs, &conf)
	fs.BoolVar(&showVersion, "V", false, "print version and build information and exit")
	if err := fs.Parse(args); err != nil {
		return cfg.App{}, false, err
	}
	if showVersion {
		return conf, true, nil
	}
	cfg.FillFromEnv(fs, cfg.EnvPrefix, stderrf)
	if conf.ConfigFile != "" {
		if err := cfg.FillFromFile(fs, conf.ConfigFile, stderrf); err != nil {
			return cfg.App{}, false, err
		}
	}
	if err := cfg.Validate(conf); err != nil {
		return cfg.App{}, false, fmt.Errorf("config: %w", err)
	}
	return conf, false, nil
}

func newLogger(conf cfg.App) (log.Logger, error) {
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		return nil, err
	}
	stackLvl, err := log.ParseLevel(conf.StacktraceLevel)
	if err != nil {
		return nil, err
	}
	return log.New(log.Options{
		App:               v.AppName,
		Component:         component,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JSON:              conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
}

func run() error {
	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	vi := v.Get()
	conf, showVersion, err := loadConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if showVersion {
		fmt.Printf("%s %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.App, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		return nil
	}

	lg, err := newLogger(conf)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = lg.Sync() }()
	L := lg.With("component", component)
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"storage_backend", conf.StorageBackend,
		"metadata_backend", conf.MetadataBackend,
		"public_host", conf.PublicHost,
		"media_url", conf.MediaURL,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"trace_sample", conf.TraceSample,
		"rate_limit", conf.RateLimit,
	)

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, component, vi)

	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName + "." + component,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       v.AppName,
			"component": component,
			"version":   vi.Version,
			"commit":    vi.Commit,
		},
	})
	if err != nil {
		// profiling is optional; keep serving without it
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	m.SetProfilingActive(conf.EnablePyroscope && err == nil)

	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  conf.OTLPInsecure,
		Sample:    conf.TraceSample,
		Service:   v.AppName,
		Component: component,
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed, tracing disabled")
		shutdownOTEL = func(context.Context) error { return nil }
	}

	b, err := backend.Open(ctx, conf, backend.Options{Logger: L, Observer: m})
	if err != nil {
		return fmt.Errorf("open backends: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			L.Error(context.Background(), err, "close metadata store")
		}
	}()

	files, err := fileserve.NewResponder(fileserve.Options{
		Store:   b.Storage,
		Logger:  L,
		OnServe: m.ArchiveServed,
	})
	if err != nil {
		return err
	}
	api, err := scormhttp.New(scormhttp.Options{
		Service:        b.Pipeline,
		Files:          files,
		Logger:         L,
		MaxUploadBytes: conf.MaxUploadBytes,
	})
	if err != nil {
		return err
	}

	contentPrefix := path.Join("/", conf.MediaURL, "scorm")
	site, err := sitehandler.New(&sitehandler.Options{
		Logger:    L,
		Root:      os.DirFS(b.Pipeline.Root()),
		Prefix:    contentPrefix,
		IndexFile: conf.EntryFile,
	})
	if err != nil {
		return err
	}

	var gate health.ShutdownGate
	readiness := health.All(
		gate.Probe(),
		health.Named("backends", health.WithTimeout(2*time.Second, health.CheckFunc(b.Check))),
	)

	var rateLimitMW func(http.Handler) http.Handler
	if conf.RateLimit > 0 {
		limiter := ratelimit.New(ctx,
			ratelimit.WithRate(conf.RateLimit, conf.RateBurst),
			ratelimit.WithOnDenied(func(string) { m.IncRateLimitDenied() }),
			// logged once per visitor lifetime in the limiter
			ratelimit.WithOnFirstDenied(func(ip string) {
				L.Warn(ctx, "rate limit triggered", "ip", ip)
			}),
			ratelimit.WithOnCapacity(func() {
				m.IncRateLimitCapacity()
				L.Warn(ctx, "rate limit capacity reached, rejecting new visitors until some are evicted")
			}),
		)
		rateLimitMW = limiter.Middleware
	}

	siteStop, err := httpserver.Start(ctx, &httpserver.Options{
		Logger:         L,
		Port:           conf.HTTPPort,
		UseRecoverMW:   true,
		OnPanic:        m.IncHttpPanic,
		MetricsMW:      m.Middleware,
		RateLimitMW:    rateLimitMW,
		Health:         health.Fixed(true, ""),
		Readiness:      readiness,
		APIRoutes:      api.RegisterRoutes,
		ContentPrefix:  contentPrefix,
		ContentHandler: site,
		ClientIPOpts:   httpmw.ClientIPOptions{TrustedHops: conf.TrustedProxyHops},
		Security: httpmw.SecurityOptions{
			FrameAncestors: conf.FrameAncestorList(),
			HSTS:           conf.PublicScheme == "https",
		},
	})
	if err != nil {
		return fmt.Errorf("start public listener: %w", err)
	}

	// the ops listener refuses public source addresses itself
	opsStop, err := opshttp.Start(ctx, L, &opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
		OnPanic:     m.IncHttpPanic,
	})
	if err != nil {
		_ = siteStop(context.Background())
		return fmt.Errorf("start ops listener: %w", err)
	}

	if err := notifySystemd(); err != nil {
		L.Debug(ctx, "systemd notify skipped", "reason", err.Error())
	}

	<-ctx.Done()
	stopSignals()
	bg := context.Background()
	L.Info(bg, "shutdown signal received")

	gate.Set("draining")
	drain(bg, L, conf.ShutdownDrain)

	shutdownCtx, cancel := context.WithTimeout(bg, 15*time.Second)
	defer cancel()
	if err := siteStop(shutdownCtx); err != nil {
		L.Error(bg, err, "public http server shutdown")
	}
	if err := opsStop(shutdownCtx); err != nil {
		L.Error(bg, err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(bg, err, "otel shutdown")
	}
	stopProf()

	L.Info(bg, "shutdown complete")
	return nil
}

// drain keeps readiness failing for d so load balancers stop routing
// before listeners close. A second signal cuts it short.
func drain(ctx context.Context, L log.Logger, d time.Duration) {
	if d <= 0 {
		return
	}
	L.Info(ctx, "draining before shutdown", "duration", d.String())
	force := make(chan os.Signal, 1)
	signal.Notify(force, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(force)

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		L.Info(ctx, "drain period complete")
	case <-force:
		L.Warn(ctx, "second signal received, skipping drain")
	}
}
