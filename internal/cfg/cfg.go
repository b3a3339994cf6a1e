// Package cfg holds process configuration. Every field is a flag; values
// not given on the command line come from LMSCORM_* environment variables,
// then from an optional YAML file, then from the inline defaults.
package cfg

import (
	"flag"
	"time"
)

// EnvPrefix maps flag "foo-bar" to LMSCORM_FOO_BAR.
const EnvPrefix = "LMSCORM_"

type App struct {
	ConfigFile string

	LogJSON           bool
	LogLevel          string
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int

	HTTPPort      int
	AdminPort     int
	ShutdownDrain time.Duration

	EnablePprof     bool
	EnablePyroscope bool
	PyroServer      string
	PyroTenantID    string
	EnableTracing   bool
	OTLPEndpoint    string
	OTLPInsecure    bool
	TraceSample     float64

	StorageBackend string
	StorageRoot    string
	S3Bucket       string
	S3Prefix       string
	S3PresignTTL   time.Duration

	ScormRoot    string
	PublicScheme string
	PublicHost   string
	MediaURL     string
	EntryFile    string

	MetadataBackend string
	LevelDBPath     string
	DynamoDBTable   string

	MaxUploadBytes   int64
	RateLimit        float64
	RateBurst        int
	TrustedProxyHops int
	FrameAncestors   string
}

// Register binds all config fields to fs with defaults inline.
func Register(fs *flag.FlagSet, c *App) {
	fs.StringVar(&c.ConfigFile, "config", "", "optional YAML file keyed by flag name")

	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or text (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "include error chain links in log records")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")

	fs.IntVar(&c.HTTPPort, "http-port", 8080, "public listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "ops listen TCP port (1..65535)")
	fs.DurationVar(&c.ShutdownDrain, "shutdown-drain", 15*time.Second, "time readiness fails before listeners close")

	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "serve pprof on the ops port")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "push profiles to -pyro-server")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "pyroscope tenant (x-scope-orgid)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "export OTLP traces to -otlp-endpoint")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP gRPC endpoint (host:port)")
	fs.BoolVar(&c.OTLPInsecure, "otlp-insecure", true, "plaintext gRPC to the collector")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")

	fs.StringVar(&c.StorageBackend, "storage-backend", "fs", "archive storage: fs|s3")
	fs.StringVar(&c.StorageRoot, "storage-root", "/var/lib/linnemanlabs-scorm/archives", "archive directory for the fs backend")
	fs.StringVar(&c.S3Bucket, "s3-bucket", "", "archive bucket for the s3 backend")
	fs.StringVar(&c.S3Prefix, "s3-prefix", "scorm", "key prefix inside -s3-bucket")
	fs.DurationVar(&c.S3PresignTTL, "s3-presign-ttl", 15*time.Minute, "lifetime of direct download URLs")

	fs.StringVar(&c.ScormRoot, "scorm-root", "/var/lib/linnemanlabs-scorm/scorm", "directory holding unpacked packages")
	fs.StringVar(&c.PublicScheme, "public-scheme", "https", "scheme of public URLs; empty for protocol-relative")
	fs.StringVar(&c.PublicHost, "public-host", "", "host of public URLs")
	fs.StringVar(&c.MediaURL, "media-url", "/media", "path prefix unpacked content is served under")
	fs.StringVar(&c.EntryFile, "entry-file", "index.html", "page launched inside a package")

	fs.StringVar(&c.MetadataBackend, "metadata-backend", "leveldb", "package records: leveldb|dynamodb|memory")
	fs.StringVar(&c.LevelDBPath, "leveldb-path", "/var/lib/linnemanlabs-scorm/records", "leveldb directory")
	fs.StringVar(&c.DynamoDBTable, "dynamodb-table", "", "dynamodb table with string key \"scope\"")

	fs.Int64Var(&c.MaxUploadBytes, "max-upload-bytes", 1<<30, "largest accepted submit body")
	fs.Float64Var(&c.RateLimit, "rate-limit", 10, "API requests per second per client IP (0 disables)")
	fs.IntVar(&c.RateBurst, "rate-burst", 20, "API burst per client IP")
	fs.IntVar(&c.TrustedProxyHops, "trusted-proxy-hops", 0, "X-Forwarded-For entries added by our own proxies")
	fs.StringVar(&c.FrameAncestors, "frame-ancestors", "", "comma separated origins allowed to frame content")
}

// Load registers, parses and fills a fresh App from args, the environment
// and the config file, then validates it.
func Load(name string, args []string, logf func(string, ...any)) (App, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	var c App
	Register(fs, &c)
	if err := fs.Parse(args); err != nil {
		return App{}, err
	}
	FillFromEnv(fs, EnvPrefix, logf)
	if c.ConfigFile != "" {
		if err := FillFromFile(fs, c.ConfigFile, logf); err != nil {
			return App{}, err
		}
	}
	if err := Validate(c); err != nil {
		return App{}, err
	}
	return c, nil
}
