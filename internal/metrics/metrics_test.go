package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/version"
)

func gather(t *testing.T, m *ServerMetrics, name string) []*dto.Metric {
	t.Helper()
	mfs, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf.GetMetric()
		}
	}
	return nil
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func counterWith(t *testing.T, m *ServerMetrics, name, lname, lvalue string) float64 {
	t.Helper()
	for _, mt := range gather(t, m, name) {
		if lname == "" || label(mt, lname) == lvalue {
			return mt.GetCounter().GetValue()
		}
	}
	return 0
}

func TestNew_RegistersAndServes(t *testing.T) {
	m := New()
	m.IncHttpPanic()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"http_panic_total 1", "go_goroutines", "scorm_ingest_duration_seconds"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestIngestFinished(t *testing.T) {
	m := New()
	m.IngestFinished("success", 2*time.Second, 1<<20)
	m.IngestFinished("success", time.Second, 2<<20)
	m.IngestFinished("invalid", 10*time.Millisecond, 0)

	if got := counterWith(t, m, "scorm_ingest_total", "result", "success"); got != 2 {
		t.Errorf("success = %v, want 2", got)
	}
	if got := counterWith(t, m, "scorm_ingest_total", "result", "invalid"); got != 1 {
		t.Errorf("invalid = %v, want 1", got)
	}

	dur := gather(t, m, "scorm_ingest_duration_seconds")
	if len(dur) != 1 || dur[0].GetHistogram().GetSampleCount() != 3 {
		t.Errorf("duration samples = %v", dur)
	}
	size := gather(t, m, "scorm_archive_bytes")
	if len(size) != 1 || size[0].GetHistogram().GetSampleCount() != 2 {
		t.Errorf("archive bytes should skip zero-sized ingests: %v", size)
	}
}

func TestArchiveServed(t *testing.T) {
	m := New()
	m.ArchiveServed(http.StatusOK, 100)
	m.ArchiveServed(http.StatusPartialContent, 10)
	m.ArchiveServed(http.StatusPartialContent, 10)

	if got := counterWith(t, m, "scorm_archive_served_total", "status", "206"); got != 2 {
		t.Errorf("206 = %v, want 2", got)
	}
	if got := counterWith(t, m, "scorm_archive_served_total", "status", "200"); got != 1 {
		t.Errorf("200 = %v, want 1", got)
	}
}

func TestSetBuildInfoFromVersion(t *testing.T) {
	m := New()
	dirty := true
	m.SetBuildInfoFromVersion("app", "server", version.Info{Version: "1.2.3", Commit: "abc", VCSDirty: &dirty})

	bi := gather(t, m, "build_info")
	if len(bi) != 1 {
		t.Fatalf("build_info series = %d", len(bi))
	}
	if label(bi[0], "version") != "1.2.3" || label(bi[0], "vcs_dirty") != "true" || label(bi[0], "component") != "server" {
		t.Errorf("labels = %v", bi[0].GetLabel())
	}
	if bi[0].GetGauge().GetValue() != 1 {
		t.Errorf("value = %v", bi[0].GetGauge().GetValue())
	}
}

func TestGauges(t *testing.T) {
	m := New()
	m.SetProfilingActive(true)
	if v := gather(t, m, "profiling_active")[0].GetGauge().GetValue(); v != 1 {
		t.Errorf("profiling_active = %v", v)
	}
	m.SetProfilingActive(false)
	if v := gather(t, m, "profiling_active")[0].GetGauge().GetValue(); v != 0 {
		t.Errorf("profiling_active = %v", v)
	}

	m.IncRateLimitDenied()
	m.IncRateLimitDenied()
	m.IncRateLimitCapacity()
	if got := counterWith(t, m, "http_requests_rate_limited_total", "", ""); got != 2 {
		t.Errorf("denied = %v", got)
	}
	if got := counterWith(t, m, "http_requests_rate_limited_capacity_total", "", ""); got != 1 {
		t.Errorf("capacity = %v", got)
	}
}
