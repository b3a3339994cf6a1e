package cfg

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/log"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/pathutil"
)

// maxPresignTTL is the longest lifetime SigV4 accepts for a presigned URL.
const maxPresignTTL = 7 * 24 * time.Hour

// Validate checks ranges and cross-field requirements and reports every
// problem at once.
func Validate(c App) error {
	var errs []error
	bad := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		bad("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort)
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		bad("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort)
	}
	if c.AdminPort == c.HTTPPort {
		bad("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort)
	}

	if c.ShutdownDrain < 0 || c.ShutdownDrain > 5*time.Minute {
		bad("SHUTDOWN_DRAIN must be 0..5m (got %s)", c.ShutdownDrain)
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		bad("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			bad("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err)
		}
	}
	if c.IncludeErrorLinks && (c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64) {
		bad("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks)
	}

	if c.TraceSample < 0 || c.TraceSample > 1 {
		bad("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample)
	}
	if c.EnablePyroscope {
		if c.PyroServer == "" {
			bad("PYRO_SERVER required when ENABLE_PYROSCOPE=true")
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			bad("PYRO_SERVER must be a URL (got %q)", c.PyroServer)
		}
	}
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			bad("OTLP_ENDPOINT required when ENABLE_TRACING=true")
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			bad("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err)
		}
	}

	switch c.StorageBackend {
	case "fs":
		if c.StorageRoot == "" {
			bad("STORAGE_ROOT required when STORAGE_BACKEND=fs")
		}
	case "s3":
		if c.S3Bucket == "" {
			bad("S3_BUCKET required when STORAGE_BACKEND=s3")
		}
		if c.S3PresignTTL <= 0 || c.S3PresignTTL > maxPresignTTL {
			bad("S3_PRESIGN_TTL must be within (0, %s] (got %s)", maxPresignTTL, c.S3PresignTTL)
		}
	default:
		bad("invalid STORAGE_BACKEND %q (must be fs|s3)", c.StorageBackend)
	}

	if c.ScormRoot == "" {
		bad("SCORM_ROOT is required")
	}
	switch c.PublicScheme {
	case "", "http", "https":
	default:
		bad("invalid PUBLIC_SCHEME %q (must be http|https or empty)", c.PublicScheme)
	}
	if c.PublicHost == "" {
		bad("PUBLIC_HOST is required")
	} else if strings.ContainsAny(c.PublicHost, "/?#@ ") {
		bad("PUBLIC_HOST must be a bare host[:port] (got %q)", c.PublicHost)
	}
	if pathutil.HasDotSegments(c.MediaURL) {
		bad("MEDIA_URL must not contain dot segments (got %q)", c.MediaURL)
	}
	if _, err := pathutil.CleanRelative(c.EntryFile); err != nil {
		bad("invalid ENTRY_FILE %q: %v", c.EntryFile, err)
	}

	switch c.MetadataBackend {
	case "leveldb":
		if c.LevelDBPath == "" {
			bad("LEVELDB_PATH required when METADATA_BACKEND=leveldb")
		}
	case "dynamodb":
		if c.DynamoDBTable == "" {
			bad("DYNAMODB_TABLE required when METADATA_BACKEND=dynamodb")
		}
	case "memory":
	default:
		bad("invalid METADATA_BACKEND %q (must be leveldb|dynamodb|memory)", c.MetadataBackend)
	}

	if c.MaxUploadBytes < 1 {
		bad("MAX_UPLOAD_BYTES must be positive (got %d)", c.MaxUploadBytes)
	}
	if c.RateLimit < 0 {
		bad("RATE_LIMIT must be >= 0 (got %v)", c.RateLimit)
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		bad("RATE_BURST must be >= 1 when RATE_LIMIT is set (got %d)", c.RateBurst)
	}
	if c.TrustedProxyHops < 0 || c.TrustedProxyHops > 16 {
		bad("TRUSTED_PROXY_HOPS must be 0..16 (got %d)", c.TrustedProxyHops)
	}

	return errors.Join(errs...)
}

// FrameAncestorList splits the comma separated FrameAncestors value.
func (c App) FrameAncestorList() []string {
	var out []string
	for _, s := range strings.Split(c.FrameAncestors, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
