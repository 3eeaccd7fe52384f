// Package gsregistry implements the Session Registry of §4.5: the
// catalog of active Accountable Safety sessions, keyed by instance id,
// created on conflict detection and purged some retention window after
// termination.
package gsregistry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gordian-engine/grandpa-accountable-safety/gsconsensus"
	"github.com/gordian-engine/grandpa-accountable-safety/gsdriver"
	"github.com/gordian-engine/grandpa-accountable-safety/gsmetrics"
)

// DefaultRetention is how long a terminated session is kept around
// before Purge removes it, giving late readers a chance to observe the
// verdict (§4.5).
const DefaultRetention = 10 * time.Minute

// Registry is a single-exclusive-write/many-read catalog of sessions
// (§5). All methods are safe for concurrent use.
type Registry struct {
	log       *slog.Logger
	retention time.Duration
	metrics   *gsmetrics.Collector

	mu       sync.RWMutex
	nextID   gsdriver.InstanceID
	sessions map[gsdriver.InstanceID]*gsdriver.Session
	closedAt map[gsdriver.InstanceID]time.Time
}

// Opt configures a Registry at construction, mirroring the teacher's
// functional-options convention (§2 AMBIENT STACK).
type Opt func(*Registry)

// WithRetention overrides DefaultRetention.
func WithRetention(d time.Duration) Opt {
	return func(r *Registry) { r.retention = d }
}

// WithMetrics attaches a [gsmetrics.Collector] that observes every
// session lifecycle event.
func WithMetrics(m *gsmetrics.Collector) Opt {
	return func(r *Registry) { r.metrics = m }
}

// New returns an empty Registry.
func New(log *slog.Logger, opts ...Opt) *Registry {
	r := &Registry{
		log:       log,
		retention: DefaultRetention,
		sessions:  make(map[gsdriver.InstanceID]*gsdriver.Session),
		closedAt:  make(map[gsdriver.InstanceID]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open verifies the conflict described by in and, if valid, opens a
// new session under a freshly assigned InstanceID (§6).
func (r *Registry) Open(in gsdriver.OpenInput, now time.Time) (gsdriver.InstanceID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID

	s, err := gsdriver.Open(id, in, now)
	if err != nil {
		r.nextID--
		if r.metrics != nil {
			r.metrics.SessionOpenRejected()
		}
		return 0, err
	}

	r.sessions[id] = s
	r.log.Info("Opened accountable safety session",
		"instance", id,
		"block_earlier", in.BlockEarlier.Block, "round_earlier", in.BlockEarlier.Round,
		"block_later", in.BlockLater.Block, "round_later", in.BlockLater.Round,
	)
	if r.metrics != nil {
		r.metrics.SessionOpened()
	}
	return id, nil
}

// Lookup returns the session for id, if it exists.
func (r *Registry) Lookup(id gsdriver.InstanceID) (*gsdriver.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// ActiveInstances returns every non-terminated session id, ascending.
func (r *Registry) ActiveInstances() []gsdriver.InstanceID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]gsdriver.InstanceID, 0, len(r.sessions))
	for id, s := range r.sessions {
		if !s.Terminated() {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// State returns the observable snapshot for id (§6).
func (r *Registry) State(id gsdriver.InstanceID) (gsdriver.SessionSnapshot, error) {
	s, ok := r.Lookup(id)
	if !ok {
		return gsdriver.SessionSnapshot{}, fmt.Errorf("gsregistry: unknown instance %d", id)
	}
	return s.Snapshot(), nil
}

// PendingQueries returns the outstanding query descriptors for id, for
// an outer transport to disseminate (§6, §9).
func (r *Registry) PendingQueries(id gsdriver.InstanceID) ([]gsdriver.QueryDescriptor, error) {
	s, ok := r.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("gsregistry: unknown instance %d", id)
	}
	return s.PendingQueries(), nil
}

// Verdict returns the terminal verdict for id, or nil if it has not
// yet terminated.
func (r *Registry) Verdict(id gsdriver.InstanceID) (*gsdriver.Verdict, error) {
	s, ok := r.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("gsregistry: unknown instance %d", id)
	}
	return s.Phase.Verdict, nil
}

// SubmitResponse validates and admits a response for id, advancing the
// session's driver as needed (§6).
func (r *Registry) SubmitResponse(id gsdriver.InstanceID, responder gsconsensus.VoterID, round gsconsensus.RoundNumber, payload []gsconsensus.Vote, now time.Time) error {
	s, ok := r.Lookup(id)
	if !ok {
		return fmt.Errorf("gsregistry: unknown instance %d", id)
	}

	wasTerminated := s.Terminated()
	err := gsdriver.SubmitResponse(s, responder, round, payload, now)
	r.observeOutcome(id, s, wasTerminated, err, now)
	if r.metrics != nil {
		if err == nil {
			r.metrics.ResponseAccepted()
		} else {
			r.metrics.ResponseRejected()
		}
	}
	return err
}

// Tick evaluates deadlines for every active session (§5, §6).
func (r *Registry) Tick(now time.Time) {
	for _, id := range r.ActiveInstances() {
		s, ok := r.Lookup(id)
		if !ok {
			continue
		}
		wasTerminated := s.Terminated()
		if err := gsdriver.Tick(s, now); err != nil {
			r.log.Warn("Tick failed", "instance", id, "err", err)
			continue
		}
		r.observeOutcome(id, s, wasTerminated, nil, now)
	}
}

// Abort terminates id out of band (§5). now is used to timestamp the
// session's closure for Purge, keeping the registry's whole retention
// clock driven by caller-supplied time (§5) rather than the wall clock.
func (r *Registry) Abort(id gsdriver.InstanceID, now time.Time) error {
	s, ok := r.Lookup(id)
	if !ok {
		return fmt.Errorf("gsregistry: unknown instance %d", id)
	}
	wasTerminated := s.Terminated()
	err := gsdriver.Abort(s)
	r.observeOutcome(id, s, wasTerminated, err, now)
	return err
}

func (r *Registry) observeOutcome(id gsdriver.InstanceID, s *gsdriver.Session, wasTerminated bool, err error, now time.Time) {
	if err == nil && !wasTerminated && s.Terminated() {
		r.mu.Lock()
		r.closedAt[id] = now
		r.mu.Unlock()

		r.log.Info("Accountable safety session terminated",
			"instance", id, "verdict_kind", s.Phase.Verdict.Kind, "equivocators", len(s.Phase.Verdict.Equivocations),
		)
		if r.metrics != nil {
			r.metrics.SessionTerminated(s.Phase.Verdict.Kind)
			r.metrics.EquivocationsDetected(len(s.Phase.Verdict.Equivocations))
		}
	}
}

// Purge removes every terminated session whose retention window has
// elapsed as of now (§4.5).
func (r *Registry) Purge(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int
	for id, closedAt := range r.closedAt {
		if now.Sub(closedAt) < r.retention {
			continue
		}
		delete(r.sessions, id)
		delete(r.closedAt, id)
		removed++
	}
	if removed > 0 && r.metrics != nil {
		r.metrics.SessionsPurged(removed)
	}
	return removed
}
