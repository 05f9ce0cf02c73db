package retention

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starquake/horizon/internal/archive"
	"github.com/starquake/horizon/internal/counters"
	"github.com/starquake/horizon/internal/events"
	"github.com/starquake/horizon/internal/logging"
)

// IdlePollInterval is how often Run checks whether a tick is due.
const IdlePollInterval = 100 * time.Millisecond

// State is the controller's position in its cycle.
type State int32

const (
	StateIdle State = iota
	StateReporting
	StateLocating
	StatePlanning
	StatePurging
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReporting:
		return "reporting"
	case StateLocating:
		return "locating"
	case StatePlanning:
		return "planning"
	case StatePurging:
		return "purging"
	default:
		return "unknown"
	}
}

// Outcome summarizes a tick.
type Outcome string

const (
	OutcomeNoActiveRecording   Outcome = "no_active_recording"
	OutcomeNothingToPurge      Outcome = "nothing_to_purge"
	OutcomePurged              Outcome = "purged"
	OutcomePurgedAfterConflict Outcome = "purged_after_conflict"
	OutcomeFailed              Outcome = "failed"
	OutcomeNotLeader           Outcome = "not_leader"
)

// Recorder receives controller metrics. *metrics.RetentionMetrics
// implements it.
type Recorder interface {
	RecordTick(outcome string, durationSeconds float64)
	RecordPurgeAttempt(result string)
	RecordReplayStopped()
	RecordPurged(recordingID string, position int64, deletedSegments int64)
}

// Config configures a Controller.
type Config struct {
	// Interval between tick starts.
	Interval time.Duration

	// RPCTimeout bounds each archive call. Zero means no per-call bound.
	RPCTimeout time.Duration

	// ReplayStopGrace is the pause between stopping a blocking replay and
	// retrying the purge.
	ReplayStopGrace time.Duration

	// PublishTimeout bounds publishing the tick event. Zero uses the
	// default.
	PublishTimeout time.Duration

	// ArchiveID tags events and log lines.
	ArchiveID string
}

// DefaultConfig returns the default controller settings.
func DefaultConfig() Config {
	return Config{
		Interval:        5 * time.Second,
		RPCTimeout:      5 * time.Second,
		ReplayStopGrace: time.Second,
		PublishTimeout:  5 * time.Second,
	}
}

// TickReport describes one completed tick.
type TickReport struct {
	TickID    string
	StartedAt time.Time
	Duration  time.Duration
	Outcome   Outcome

	// Counters is the registry snapshot taken while Reporting. Nil when no
	// registry is attached.
	Counters []counters.Entry

	// Recording is the located active recording, valid when Located.
	Recording archive.RecordingDescriptor
	Located   bool

	Plan  PurgePlan
	Purge PurgeOutcome

	// Err is set when Outcome is OutcomeFailed.
	Err error
}

// Controller is the retention control loop. DoWork and Run must be called
// from a single goroutine; State may be read from any goroutine.
type Controller struct {
	cfg       Config
	directory *Directory
	resolver  *Resolver
	reader    *counters.SnapshotReader
	lease     *Lease
	sink      events.Sink
	metrics   Recorder
	logger    *logging.Logger
	now       func() time.Time
	newTickID func() string

	nextDue time.Time
	state   atomic.Int32
}

// NewController creates a controller over client.
func NewController(client archive.Client, cfg Config) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultConfig().PublishTimeout
	}
	return &Controller{
		cfg:       cfg,
		directory: NewDirectory(client, cfg.RPCTimeout),
		resolver:  NewResolver(client, cfg.RPCTimeout, cfg.ReplayStopGrace),
		logger:    logging.Global(),
		now:       time.Now,
		newTickID: uuid.NewString,
	}
}

// WithCounters attaches the host counters registry reported each tick.
func (c *Controller) WithCounters(registry counters.Registry) *Controller {
	c.reader = counters.NewSnapshotReader(registry)
	return c
}

// WithLease requires the controller to hold lease before purging.
func (c *Controller) WithLease(lease *Lease) *Controller {
	c.lease = lease
	return c
}

// WithEvents publishes every tick outcome to sink.
func (c *Controller) WithEvents(sink events.Sink) *Controller {
	c.sink = sink
	return c
}

// WithMetrics records tick and purge metrics.
func (c *Controller) WithMetrics(m Recorder) *Controller {
	c.metrics = m
	c.resolver.WithMetrics(m)
	return c
}

// WithLogger sets the logger.
func (c *Controller) WithLogger(logger *logging.Logger) *Controller {
	c.logger = logger
	return c
}

// WithClock replaces the wall clock.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// NextDue returns when the next tick may start.
func (c *Controller) NextDue() time.Time {
	return c.nextDue
}

// Run calls DoWork every IdlePollInterval until ctx is cancelled and then
// returns ctx.Err().
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(IdlePollInterval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.DoWork(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// DoWork runs one full tick if one is due and reports false otherwise.
// The next tick is scheduled from the moment this one starts, so a slow
// tick is not followed by an immediate rerun.
func (c *Controller) DoWork(ctx context.Context) (TickReport, bool) {
	start := c.now()
	if start.Before(c.nextDue) {
		return TickReport{}, false
	}
	c.nextDue = start.Add(c.cfg.Interval)

	report := TickReport{
		TickID:    c.newTickID(),
		StartedAt: start,
		Plan:      PurgePlan{PurgePosition: archive.NullPosition},
	}
	logger := c.logger.WithCorrelationID(report.TickID)
	ctx = logging.WithLoggerCtx(logging.WithCorrelationIDCtx(ctx, report.TickID), logger)

	c.setState(StateReporting)
	report.Counters = c.reportCounters(logger)

	report.Outcome, report.Err = c.cycle(ctx, &report)
	c.setState(StateIdle)
	report.Duration = c.now().Sub(start)

	c.finish(ctx, logger, report)
	return report, true
}

func (c *Controller) cycle(ctx context.Context, report *TickReport) (Outcome, error) {
	if c.lease != nil {
		held, holder, err := c.lease.Acquire(ctx)
		if err != nil {
			return OutcomeFailed, err
		}
		if !held {
			logging.FromCtx(ctx).Debugf("retention lease held elsewhere", map[string]any{"holderId": holder.HolderID})
			return OutcomeNotLeader, nil
		}
	}

	c.setState(StateLocating)
	desc, found, err := c.directory.FindActiveRecording(ctx)
	if err != nil {
		return OutcomeFailed, err
	}
	if !found {
		return OutcomeNoActiveRecording, nil
	}
	report.Recording, report.Located = desc, true

	c.setState(StatePlanning)
	desc, live, err := c.directory.Resolve(ctx, desc.RecordingID)
	if err != nil {
		if errors.Is(err, archive.ErrRecordingNotFound) {
			return OutcomeNothingToPurge, nil
		}
		return OutcomeFailed, err
	}
	report.Recording = desc
	report.Plan = Plan(desc, live)
	if report.Plan.IsNoop() {
		return OutcomeNothingToPurge, nil
	}

	c.setState(StatePurging)
	report.Purge, err = c.resolver.Purge(ctx, desc.RecordingID, report.Plan.PurgePosition)
	if err != nil {
		return OutcomeFailed, err
	}
	if report.Purge.StoppedReplay {
		return OutcomePurgedAfterConflict, nil
	}
	return OutcomePurged, nil
}

func (c *Controller) reportCounters(logger *logging.Logger) []counters.Entry {
	if c.reader == nil {
		return nil
	}
	entries := c.reader.Report()
	for _, e := range entries {
		logger.Debugf("counter", map[string]any{
			"counterId": e.CounterID,
			"typeId":    e.TypeID,
			"label":     e.Label,
			"value":     e.Value,
		})
	}
	logger.Infof("counters report", map[string]any{
		"allocated":          len(entries),
		"recordingPositions": counters.CountByType(entries, counters.TypeRecordingPosition),
		"activeReplays":      counters.CountByType(entries, counters.TypeReplayPosition),
	})
	return entries
}

func (c *Controller) finish(ctx context.Context, logger *logging.Logger, report TickReport) {
	fields := map[string]any{
		"outcome":    string(report.Outcome),
		"durationMs": report.Duration.Milliseconds(),
	}
	if report.Located {
		fields["recordingId"] = report.Recording.RecordingID
	}
	if !report.Plan.IsNoop() {
		fields["purgePosition"] = report.Plan.PurgePosition
		fields["segmentsToPurge"] = report.Plan.SegmentsToPurge
	}

	switch report.Outcome {
	case OutcomeFailed:
		fields["error"] = report.Err
		logger.Errorf("retention tick failed", fields)
	case OutcomePurged, OutcomePurgedAfterConflict:
		fields["deletedSegments"] = report.Purge.DeletedSegments
		if report.Purge.StoppedReplay {
			fields["replaySessionId"] = report.Purge.ReplaySessionID
		}
		logger.Infof("purged segments", fields)
	default:
		logger.Debugf("retention tick", fields)
	}

	if c.metrics != nil {
		c.metrics.RecordTick(string(report.Outcome), report.Duration.Seconds())
		if report.Outcome == OutcomePurged || report.Outcome == OutcomePurgedAfterConflict {
			c.metrics.RecordPurged(strconv.FormatInt(report.Recording.RecordingID, 10), report.Plan.PurgePosition, report.Purge.DeletedSegments)
		}
	}

	if c.sink != nil {
		publishCtx, cancel := context.WithTimeout(ctx, c.cfg.PublishTimeout)
		err := c.sink.Publish(publishCtx, c.event(report))
		cancel()
		if err != nil {
			logger.Warnf("publish retention event", map[string]any{"error": err})
		}
	}
}

func (c *Controller) event(report TickReport) events.Event {
	e := events.Event{
		Type:            events.Type(report.Outcome),
		TickID:          report.TickID,
		ArchiveID:       c.cfg.ArchiveID,
		RecordingID:     archive.NullPosition,
		PurgePosition:   report.Plan.PurgePosition,
		DeletedSegments: report.Purge.DeletedSegments,
		TimestampMs:     report.StartedAt.UnixMilli(),
	}
	if report.Located {
		e.RecordingID = report.Recording.RecordingID
	}
	if report.Purge.StoppedReplay {
		e.ReplaySessionID = events.ReplaySession(report.Purge.ReplaySessionID)
	}
	var failed *PurgeFailedError
	if errors.As(report.Err, &failed) && failed.Conflict {
		e.ReplaySessionID = events.ReplaySession(failed.ReplaySessionID)
	}
	if report.Err != nil {
		e.Error = report.Err.Error()
	}
	return e
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
}
