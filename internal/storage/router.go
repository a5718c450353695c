package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/jittakal/logship/pkg/event"
	"github.com/jittakal/logship/pkg/storage"
)

// Ensure implementations satisfy interfaces.
var (
	_ storage.Router         = (*DefaultRouter)(nil)
	_ storage.RotationPolicy = (*CompositePolicy)(nil)
)

// DefaultRouter implements Hive-style partitioning for storage paths.
type DefaultRouter struct {
	protocol string
	bucket   string
	basePath string
	hourly   bool
}

// NewRouter creates a new storage router. When hourly is set an hr=HH
// partition is added below the date.
func NewRouter(protocol, bucket, basePath string, hourly bool) *DefaultRouter {
	return &DefaultRouter{
		protocol: protocol,
		bucket:   bucket,
		basePath: strings.Trim(basePath, "/"),
		hourly:   hourly,
	}
}

// Route returns the storage prefix for events of source at time t.
// Format: protocol://bucket/basePath/source/dt=YYYY-MM-DD[/hr=HH]/
// An empty source is routed to "default".
func (r *DefaultRouter) Route(source string, t time.Time) string {
	t = t.UTC()
	source = sanitizeSegment(source)

	var b strings.Builder
	if r.protocol != "" {
		fmt.Fprintf(&b, "%s://%s/", r.protocol, r.bucket)
	}
	if r.basePath != "" {
		b.WriteString(r.basePath)
		b.WriteByte('/')
	}
	fmt.Fprintf(&b, "%s/dt=%s/", source, t.Format("2006-01-02"))
	if r.hourly {
		fmt.Fprintf(&b, "hr=%02d/", t.Hour())
	}
	return b.String()
}

func sanitizeSegment(s string) string {
	s = strings.Trim(strings.TrimSpace(s), "/")
	if s == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', ':':
			return '_'
		}
		return r
	}, s)
}

// NewPolicy creates a new rotation policy (alias for NewCompositePolicy).
func NewPolicy(config PolicyConfig) *CompositePolicy {
	return NewCompositePolicy(config)
}

// PolicyConfig configures rotation behavior. Zero disables a criterion.
type PolicyConfig struct {
	MaxFileSizeBytes  int64
	MaxRecordsPerFile int
	MaxAge            time.Duration
}

// CompositePolicy rotates based on multiple criteria.
type CompositePolicy struct {
	maxSizeBytes int64
	maxRecords   int
	maxDuration  time.Duration
	now          func() time.Time
}

// NewCompositePolicy creates a new composite rotation policy.
func NewCompositePolicy(config PolicyConfig) *CompositePolicy {
	return &CompositePolicy{
		maxSizeBytes: config.MaxFileSizeBytes,
		maxRecords:   config.MaxRecordsPerFile,
		maxDuration:  config.MaxAge,
		now:          time.Now,
	}
}

// Enabled reports whether any criterion is configured.
func (p *CompositePolicy) Enabled() bool {
	return p.maxSizeBytes > 0 || p.maxRecords > 0 || p.maxDuration > 0
}

// ShouldRotate returns true if any rotation condition is met.
func (p *CompositePolicy) ShouldRotate(stats event.FileStats) bool {
	// Size-based rotation
	if p.maxSizeBytes > 0 && stats.SizeBytes >= p.maxSizeBytes {
		return true
	}

	// Count-based rotation
	if p.maxRecords > 0 && stats.RecordCount >= p.maxRecords {
		return true
	}

	// Time-based rotation
	if p.maxDuration > 0 && !stats.FirstWriteTime.IsZero() {
		age := p.now().Sub(stats.FirstWriteTime)
		if age >= p.maxDuration {
			return true
		}
	}

	return false
}
