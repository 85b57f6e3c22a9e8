package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the harvester.
type Metrics struct {
	Registry          *prometheus.Registry
	PagesTotal        *prometheus.CounterVec
	PageDuration      prometheus.Histogram
	CandidatesTotal   prometheus.Counter
	DuplicatesTotal   prometheus.Counter
	DownloadsTotal    *prometheus.CounterVec
	DownloadBytes     prometheus.Counter
	SessionsLaunched  prometheus.Counter
	SessionsReaped    prometheus.Counter
	SessionsLive      prometheus.Gauge
	SessionsBusy      prometheus.Gauge
	SessionLaunchFail prometheus.Counter
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_pages_total",
			Help: "Product pages checked, by result (ok, empty, error).",
		},
		[]string{"result"},
	)
	pageDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvester_page_duration_seconds",
			Help:    "Time spent checking a single product page.",
			Buckets: prometheus.DefBuckets,
		},
	)
	candidates := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_candidates_total",
			Help: "Image candidates found before deduplication.",
		},
	)
	duplicates := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_duplicates_total",
			Help: "Image candidates dropped as duplicate URLs.",
		},
	)
	downloads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_downloads_total",
			Help: "Image downloads by outcome (downloaded, failed, skipped).",
		},
		[]string{"outcome"},
	)
	downloadBytes := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_download_bytes_total",
			Help: "Bytes written to disk.",
		},
	)
	launched := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_sessions_launched_total",
			Help: "Browser sessions launched by the pool.",
		},
	)
	reaped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_sessions_reaped_total",
			Help: "Idle browser sessions closed by the reaper.",
		},
	)
	launchFail := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_session_launch_failures_total",
			Help: "Browser sessions that failed to start.",
		},
	)
	live := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvester_sessions_live",
			Help: "Browser sessions currently registered in the pool.",
		},
	)
	busy := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvester_sessions_busy",
			Help: "Browser sessions currently held by a caller.",
		},
	)

	registry.MustRegister(pages, pageDuration, candidates, duplicates, downloads,
		downloadBytes, launched, reaped, launchFail, live, busy)

	return &Metrics{
		Registry:          registry,
		PagesTotal:        pages,
		PageDuration:      pageDuration,
		CandidatesTotal:   candidates,
		DuplicatesTotal:   duplicates,
		DownloadsTotal:    downloads,
		DownloadBytes:     downloadBytes,
		SessionsLaunched:  launched,
		SessionsReaped:    reaped,
		SessionsLive:      live,
		SessionsBusy:      busy,
		SessionLaunchFail: launchFail,
	}
}

// ObservePage records one checked page.
func (m *Metrics) ObservePage(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(result).Inc()
	m.PageDuration.Observe(d.Seconds())
}

// AddCandidates increments the raw candidate counter.
func (m *Metrics) AddCandidates(n int) {
	if m == nil {
		return
	}
	m.CandidatesTotal.Add(float64(n))
}

// AddDuplicates increments the duplicate counter.
func (m *Metrics) AddDuplicates(n int) {
	if m == nil {
		return
	}
	m.DuplicatesTotal.Add(float64(n))
}

// IncDownload increments the downloads counter for an outcome label.
func (m *Metrics) IncDownload(outcome string, bytes int) {
	if m == nil {
		return
	}
	m.DownloadsTotal.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		m.DownloadBytes.Add(float64(bytes))
	}
}

// SessionLaunched records a successful launch.
func (m *Metrics) SessionLaunched() {
	if m == nil {
		return
	}
	m.SessionsLaunched.Inc()
}

// SessionLaunchFailed records a failed launch.
func (m *Metrics) SessionLaunchFailed() {
	if m == nil {
		return
	}
	m.SessionLaunchFail.Inc()
}

// SessionsReapedAdd records sessions closed by the reaper.
func (m *Metrics) SessionsReapedAdd(n int) {
	if m == nil || n == 0 {
		return
	}
	m.SessionsReaped.Add(float64(n))
}

// SetPoolSize publishes the live and busy session counts.
func (m *Metrics) SetPoolSize(live, busy int) {
	if m == nil {
		return
	}
	m.SessionsLive.Set(float64(live))
	m.SessionsBusy.Set(float64(busy))
}
