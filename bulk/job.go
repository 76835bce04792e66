package bulk

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/epic-fhir-client/fhir"
	apperrors "github.com/jrsteele09/epic-fhir-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultPollInterval is the fixed delay between status checks
const DefaultPollInterval = 5 * time.Second

// Exporter is the part of the FHIR client a job drives
type Exporter interface {
	KickOffExport(ctx context.Context, token string, types []string) (string, error)
	ExportStatus(ctx context.Context, token, statusURL string) (*fhir.ExportStatus, error)
}

var _ Exporter = (*fhir.Client)(nil)

// Job is one asynchronous bulk export. It owns at most one poll task, which
// runs from a successful submission until a terminal state or Close.
type Job struct {
	id       string
	exporter Exporter
	types    []string
	interval time.Duration

	mu         sync.Mutex
	token      string
	submitting bool
	closed     bool
	statusURL  string
	state      State
	progress   string
	resultURLs []string
	errorURLs  []string
	failure    error
	lastPoll   error
	polls      int
	task       *pollTask

	done     chan struct{}
	doneOnce sync.Once
}

// JobOption defines a function type to modify the Job instance.
type JobOption func(*Job)

// WithPollInterval sets the delay between status checks
func WithPollInterval(interval time.Duration) JobOption {
	return func(j *Job) {
		if interval > 0 {
			j.interval = interval
		}
	}
}

// NewJob creates a job that exports the given resource types
func NewJob(exporter Exporter, types []string, options ...JobOption) (*Job, error) {
	if exporter == nil {
		return nil, errors.New("[NewJob] exporter is required")
	}

	cleaned := make([]string, 0, len(types))
	for _, t := range types {
		if t = strings.TrimSpace(t); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return nil, errors.New("[NewJob] at least one resource type is required")
	}

	j := &Job{
		id:       uuid.NewString(),
		exporter: exporter,
		types:    cleaned,
		interval: DefaultPollInterval,
		state:    NotStarted,
		done:     make(chan struct{}),
	}
	for _, opt := range options {
		opt(j)
	}
	return j, nil
}

// ID returns the job identifier used in logs
func (j *Job) ID() string {
	return j.id
}

// Submit kicks off the export. Without a token it returns ErrNotAuthenticated and
// sends nothing. Once a status URL is held it does nothing. A rejected submission
// leaves the job NotStarted.
func (j *Job) Submit(ctx context.Context, token string) error {
	if token == "" {
		return apperrors.ErrNotAuthenticated
	}

	j.mu.Lock()
	if j.closed || j.submitting || j.statusURL != "" {
		j.mu.Unlock()
		return nil
	}
	j.submitting = true
	j.mu.Unlock()

	statusURL, err := j.exporter.KickOffExport(ctx, token, j.types)

	j.mu.Lock()
	defer j.mu.Unlock()
	j.submitting = false

	if err != nil {
		log.Err(err).Str("job_id", j.id).Msg("Bulk export submission failed")
		return err
	}
	if j.closed {
		return nil
	}

	j.token = token
	j.statusURL = statusURL
	j.transition(InProgress)
	j.task = startPollTask(j.interval, j.poll)

	log.Info().Str("job_id", j.id).Str("status_url", statusURL).Dur("interval", j.interval).Msg("Bulk export in progress")
	return nil
}

// poll performs one status check and reports whether polling is finished
func (j *Job) poll(ctx context.Context) bool {
	j.mu.Lock()
	if j.state != InProgress {
		j.mu.Unlock()
		return true
	}
	token, statusURL := j.token, j.statusURL
	j.polls++
	j.mu.Unlock()

	status, err := j.exporter.ExportStatus(ctx, token, statusURL)
	if ctx.Err() != nil {
		return true
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed || j.state != InProgress {
		return true
	}

	if err != nil {
		var outcome *fhir.OperationOutcomeError
		if apperrors.As(err, &outcome) && !outcome.Transient() {
			j.failure = fmt.Errorf("%w: %w", apperrors.ErrJobFailed, outcome)
			j.transition(Failed)
			log.Err(outcome).Str("job_id", j.id).Msg("Bulk export failed")
			return true
		}
		j.lastPoll = err
		event := log.Warn().Err(err).Str("job_id", j.id)
		if outcome != nil && outcome.RetryAfter != "" {
			event = event.Str("retry_after", outcome.RetryAfter)
		}
		event.Msg("Bulk export status check failed, will retry")
		return false
	}

	j.lastPoll = nil
	j.progress = status.Progress
	if !status.Complete {
		log.Debug().Str("job_id", j.id).Str("progress", status.Progress).Msg("Bulk export pending")
		return false
	}

	j.resultURLs = outputURLs(status.Manifest.Output)
	j.errorURLs = outputURLs(status.Manifest.Error)
	j.transition(Completed)
	log.Info().Str("job_id", j.id).Int("files", len(j.resultURLs)).Msg("Bulk export completed")
	return true
}

// transition must be called with mu held
func (j *Job) transition(next State) {
	if !j.state.CanTransitionTo(next) {
		log.Warn().Str("job_id", j.id).Stringer("from", j.state).Stringer("to", next).Msg("Ignoring invalid export state transition")
		return
	}
	j.state = next
	if next.IsTerminal() {
		j.doneOnce.Do(func() { close(j.done) })
	}
}

// Done is closed when the job reaches Completed or Failed
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Close stops the poll task, if any, and waits for it to exit. No state changes
// happen after Close returns.
func (j *Job) Close() {
	j.mu.Lock()
	j.closed = true
	task := j.task
	j.task = nil
	j.mu.Unlock()

	if task != nil {
		task.Stop()
		log.Debug().Str("job_id", j.id).Msg("Bulk export polling stopped")
	}
}

// Snapshot is a consistent copy of a job's observable state
type Snapshot struct {
	ID         string   `json:"id"`
	State      State    `json:"state"`
	Types      []string `json:"types"`
	StatusURL  string   `json:"statusUrl,omitempty"`
	Progress   string   `json:"progress,omitempty"`
	Polls      int      `json:"polls"`
	ResultURLs []string `json:"resultUrls"`
	ErrorURLs  []string `json:"errorUrls,omitempty"`
	Failure    string   `json:"failure,omitempty"`
	LastError  string   `json:"lastError,omitempty"`
}

// Snapshot returns the current state of the job
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	s := Snapshot{
		ID:         j.id,
		State:      j.state,
		Types:      append([]string(nil), j.types...),
		StatusURL:  j.statusURL,
		Progress:   j.progress,
		Polls:      j.polls,
		ResultURLs: append([]string{}, j.resultURLs...),
		ErrorURLs:  append([]string(nil), j.errorURLs...),
	}
	if j.failure != nil {
		s.Failure = j.failure.Error()
	}
	if j.lastPoll != nil {
		s.LastError = j.lastPoll.Error()
	}
	return s
}

// Err returns the failure that moved the job to Failed, or nil
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.failure
}

// Links returns the labelled result links of a completed job
func (s Snapshot) Links() []Link {
	links := make([]Link, 0, len(s.ResultURLs))
	for i, u := range s.ResultURLs {
		links = append(links, Link{Label: LinkLabel(u, i), URL: u})
	}
	return links
}

func outputURLs(files []fhir.ExportOutputFile) []string {
	urls := make([]string, 0, len(files))
	for _, f := range files {
		urls = append(urls, f.URL)
	}
	return urls
}
