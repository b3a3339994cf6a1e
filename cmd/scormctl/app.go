package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/backend"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/log"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/scorm"
	v "github.com/keithlinneman/linnemanlabs-scorm/internal/version"
)

func newApp() *cli.App {
	vi := v.Get()
	return &cli.App{
		Name:    "scormctl",
		Usage:   "ingest, inspect and remove SCORM packages",
		Version: fmt.Sprintf("%s (commit=%s)", vi.Version, vi.Commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				EnvVars: []string{cfg.EnvKey(cfg.EnvPrefix, "config")},
				Usage:   "YAML config file shared with the server",
			},
			&cli.StringSliceFlag{
				Name:  "set",
				Usage: "override a server setting, e.g. --set storage-backend=s3",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
				Usage: "debug|info|warn|error",
			},
		},
		Commands: []*cli.Command{
			ingestCmd,
			showCmd,
			purgeCmd,
			fetchCmd,
			listCmd,
		},
	}
}

// serverArgs turns --config and --set into flags for cfg.Load so the CLI
// resolves settings exactly like the server.
func serverArgs(c *cli.Context) []string {
	var args []string
	if p := c.String("config"); p != "" {
		args = append(args, "-config", p)
	}
	for _, kv := range c.StringSlice("set") {
		args = append(args, "-"+strings.TrimLeft(kv, "-"))
	}
	return args
}

// openBackends loads configuration and opens storage, records and the
// pipeline. The caller closes the result.
func openBackends(c *cli.Context) (*backend.Backends, error) {
	lvl, err := log.ParseLevel(c.String("log-level"))
	if err != nil {
		return nil, err
	}
	L, err := log.New(log.Options{
		App:             v.AppName,
		Component:       "scormctl",
		Level:           lvl,
		StacktraceLevel: slog.LevelError,
		Writer:          c.App.ErrWriter,
	})
	if err != nil {
		return nil, err
	}

	conf, err := cfg.Load("scormctl", serverArgs(c), func(format string, args ...any) {
		L.Debug(c.Context, fmt.Sprintf(format, args...))
	})
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return backend.Open(c.Context, conf, backend.Options{Logger: L})
}

func scopeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "scope",
		Required: true,
		Usage:    "org/course/block_type/block_id",
	}
}

func parseScope(c *cli.Context) (scorm.Scope, error) {
	return scorm.ParseScope(c.String("scope"))
}
