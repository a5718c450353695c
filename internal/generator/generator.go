// Package generator produces realistic fake log events for load testing the
// pipeline.
package generator

import (
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"github.com/jaswdr/faker"

	"github.com/jittakal/logship/internal/sink"
	"github.com/jittakal/logship/pkg/event"
)

// Kinds of generated events, stored in the "kind" field.
const (
	KindHTTPRequest = "http_request"
	KindUserAction  = "user_action"
	KindJob         = "job"
	KindError       = "error"
)

// Config controls the mix of generated events.
type Config struct {
	// Sources are picked at random for each event; a single "loggen" source
	// is used when empty.
	Sources []string
	// Weights maps each kind to its relative weight. Kinds missing from the
	// map are not generated; a nil map uses DefaultWeights.
	Weights map[string]int
}

// DefaultWeights is the event mix used when Config.Weights is nil.
var DefaultWeights = map[string]int{
	KindHTTPRequest: 60,
	KindUserAction:  25,
	KindJob:         10,
	KindError:       5,
}

// kinds is the fixed iteration order for weighted selection.
var kinds = []string{KindHTTPRequest, KindUserAction, KindJob, KindError}

// Generator generates fake log events
type Generator struct {
	sources []string
	weights []int
	total   int
	faker   faker.Faker
}

// New creates a new event generator.
func New(cfg Config) (*Generator, error) {
	weights := cfg.Weights
	if weights == nil {
		weights = DefaultWeights
	}

	g := &Generator{
		sources: cfg.Sources,
		weights: make([]int, len(kinds)),
		faker:   faker.New(),
	}
	if len(g.sources) == 0 {
		g.sources = []string{"loggen"}
	}

	for kind, w := range weights {
		idx := indexOf(kind)
		if idx < 0 {
			return nil, fmt.Errorf("unknown event kind %q", kind)
		}
		if w < 0 {
			return nil, fmt.Errorf("weight for %s cannot be negative", kind)
		}
		g.weights[idx] = w
		g.total += w
	}
	if g.total == 0 {
		return nil, fmt.Errorf("at least one event kind needs a positive weight")
	}
	return g, nil
}

// Next generates one event of a randomly chosen kind.
func (g *Generator) Next() event.Event {
	switch g.randomKind() {
	case KindUserAction:
		return g.UserAction()
	case KindJob:
		return g.Job()
	case KindError:
		return g.Error()
	default:
		return g.HTTPRequest()
	}
}

// Batch generates n events.
func (g *Generator) Batch(n int) []event.Event {
	events := make([]event.Event, 0, n)
	for range n {
		events = append(events, g.Next())
	}
	return events
}

// CloudEvent wraps the next generated event as a CloudEvent.
func (g *Generator) CloudEvent() (cloudevents.Event, error) {
	return sink.ToCloudEvent(g.Next(), sink.DefaultSource)
}

// HTTPRequest generates an access log event. Server errors are logged at
// error level and client errors at warn.
func (g *Generator) HTTPRequest() event.Event {
	status := g.randomStatus()
	method := g.pick([]string{"GET", "GET", "GET", "POST", "PUT", "DELETE"})
	path := g.pick([]string{"/api/orders", "/api/users", "/api/cart", "/login", "/health", "/api/search"})

	level := event.LevelInfo
	switch {
	case status >= 500:
		level = event.LevelError
	case status >= 400:
		level = event.LevelWarn
	}

	return g.newEvent(level, fmt.Sprintf("%s %s %d", method, path, status), event.Fields{
		"kind":       KindHTTPRequest,
		"method":     method,
		"path":       path,
		"status":     status,
		"latency_ms": g.faker.IntBetween(1, 1500),
		"client_ip":  g.faker.Internet().Ipv4(),
		"user_agent": g.faker.UserAgent().UserAgent(),
		"request_id": uuid.NewString(),
	})
}

// UserAction generates an audit style event.
func (g *Generator) UserAction() event.Event {
	action := g.pick([]string{"login", "logout", "update_profile", "checkout", "password_reset"})
	name := g.faker.Person().Name()

	return g.newEvent(event.LevelInfo, fmt.Sprintf("user %s performed %s", name, action), event.Fields{
		"kind":    KindUserAction,
		"action":  action,
		"user_id": g.generateUserID(),
		"email":   g.faker.Internet().Email(),
		"city":    g.faker.Address().City(),
	})
}

// Job generates a background job completion event. Slow jobs are logged at
// warn level and a small share at debug.
func (g *Generator) Job() event.Event {
	duration := time.Duration(g.faker.IntBetween(10, 120_000)) * time.Millisecond
	job := g.pick([]string{"invoice-export", "cache-warmup", "report-build", "email-digest"})

	level := event.LevelInfo
	switch {
	case duration > 60*time.Second:
		level = event.LevelWarn
	case g.faker.IntBetween(1, 100) <= 20:
		level = event.LevelDebug
	}

	return g.newEvent(level, fmt.Sprintf("job %s finished in %s", job, duration), event.Fields{
		"kind":        KindJob,
		"job":         job,
		"job_id":      "J" + g.faker.UUID().V4()[0:8],
		"duration_ms": duration.Milliseconds(),
		"items":       g.faker.IntBetween(0, 10_000),
	})
}

// Error generates an application error event; about one in twenty is fatal.
func (g *Generator) Error() event.Event {
	level := event.LevelError
	if g.faker.IntBetween(1, 100) <= 5 {
		level = event.LevelFatal
	}

	return g.newEvent(level, g.faker.Lorem().Sentence(6), event.Fields{
		"kind":      KindError,
		"component": g.pick([]string{"db", "cache", "payment", "queue"}),
		"error":     g.pick([]string{"connection refused", "timeout", "deadlock detected", "invalid state"}),
		"trace_id":  g.faker.RandomStringWithLength(16),
	})
}

func (g *Generator) newEvent(level event.Level, message string, fields event.Fields) event.Event {
	ev := event.New(level, message, fields)
	ev.Source = g.pick(g.sources)
	return ev
}

func (g *Generator) generateUserID() string {
	return "U" + g.faker.UUID().V4()[0:8]
}

func (g *Generator) pick(values []string) string {
	return values[g.faker.IntBetween(0, len(values)-1)]
}

func (g *Generator) randomKind() string {
	n := g.faker.IntBetween(1, g.total)
	cumulative := 0

	for i, weight := range g.weights {
		cumulative += weight
		if n <= cumulative {
			return kinds[i]
		}
	}

	return KindHTTPRequest
}

func (g *Generator) randomStatus() int {
	statuses := []int{200, 201, 204, 400, 404, 500, 503}
	weights := []int{70, 8, 5, 6, 6, 3, 2}

	n := g.faker.IntBetween(1, 100)
	cumulative := 0

	for i, weight := range weights {
		cumulative += weight
		if n <= cumulative {
			return statuses[i]
		}
	}

	return statuses[0]
}

func indexOf(kind string) int {
	for i, k := range kinds {
		if k == kind {
			return i
		}
	}
	return -1
}
