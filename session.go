package otd

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var sessionIDCounter uint64

// OutputCallback receives every ProtocolDatum of a given OutputType
// produced by any instance in the session.
type OutputCallback func(*ProtocolDatum)

// Session owns a set of decoder instances wired into one or more
// stacks and drives them with sample data. Session ids are globally
// unique, monotonically increasing, and never reused.
type Session struct {
	id uint64

	mu        sync.Mutex
	roots     []*Instance
	byID      map[string]*Instance
	callbacks map[OutputType][]OutputCallback

	unitSize   int
	sampleRate uint64
	started    bool
	destroyed  bool

	nextInstID uint64
}

// NewSession allocates a new Session with a fresh, never-reused id.
// unitSize is the number of bytes in one packed multi-channel sample.
func NewSession(unitSize int) *Session {
	return &Session{
		id:        atomic.AddUint64(&sessionIDCounter, 1),
		byID:      map[string]*Instance{},
		callbacks: map[OutputType][]OutputCallback{},
		unitSize:  unitSize,
	}
}

// ID returns the session's globally unique id.
func (s *Session) ID() uint64 { return s.id }

func (s *Session) checkAlive() error {
	if s.destroyed {
		return newErr(StatusArg, "session %d: already destroyed", s.id)
	}
	return nil
}

// MetadataSet records session-wide metadata. Today the only recognized
// key is ConfSampleRate, whose value must be a u64.
func (s *Session) MetadataSet(key ConfigKey, v Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAlive(); err != nil {
		return err
	}
	switch key {
	case ConfSampleRate:
		if v.Kind != KindU64 {
			return newErr(StatusArg, "session %d: samplerate must be u64", s.id)
		}
		s.sampleRate = v.U64
		return nil
	default:
		return newErr(StatusArg, "session %d: unrecognized metadata key %d", s.id, key)
	}
}

// SampleRate returns the last value set via MetadataSet(ConfSampleRate, ...).
func (s *Session) SampleRate() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleRate
}

// InstNew creates a new root instance of d in this session. The
// instance is not yet runnable -- options, channels and initial pins
// may still be set, and it may still be stacked onto another instance,
// until Start is called.
func (s *Session) InstNew(d *Decoder) (*Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAlive(); err != nil {
		return nil, err
	}
	if s.started {
		return nil, newErr(StatusArg, "session %d: cannot create instances after start", s.id)
	}
	s.nextInstID++
	id := fmt.Sprintf("%s-%d", d.ID, s.nextInstID)
	inst := newInstance(id, d, s)
	script, err := d.NewScript()
	if err != nil {
		return nil, fmt.Errorf("instance %s: %w", id, err)
	}
	inst.script = script
	inst.isRoot = true
	s.roots = append(s.roots, inst)
	s.byID[id] = inst
	return inst, nil
}

// InstFindByID searches every instance reachable from the session's
// roots (through stacking) for one with the given id.
func (s *Session) InstFindByID(id string) (*Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.byID[id]
	if !ok {
		return nil, newErr(StatusArg, "session %d: no instance %q", s.id, id)
	}
	return inst, nil
}

// InstStack chains to as a passthrough successor of from: from's
// OutputPassthrough data for an id that to declares as an input will be
// delivered to to synchronously during from's Put calls. Cycles are
// rejected (invariant: the stack graph is acyclic).
func (s *Session) InstStack(from, to *Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAlive(); err != nil {
		return err
	}
	if s.started {
		return newErr(StatusArg, "session %d: cannot stack instances after start", s.id)
	}
	if from == to {
		return newErr(StatusArg, "session %d: cannot stack an instance onto itself", s.id)
	}
	if wouldCycle(from, to) {
		return newErr(StatusArg, "session %d: stacking %s onto %s would create a cycle", s.id, to.id, from.id)
	}
	matched := false
	for _, out := range to.decoder.Inputs {
		if from.decoder.declaresOutput(out) {
			matched = true
			break
		}
	}
	if !matched {
		return newErr(StatusArg, "session %d: %s declares no input matching any output of %s", s.id, to.id, from.id)
	}
	to.isRoot = false
	for i, r := range s.roots {
		if r == to {
			s.roots = append(s.roots[:i], s.roots[i+1:]...)
			break
		}
	}
	from.next = append(from.next, to)
	s.byID[to.id] = to
	return nil
}

// wouldCycle reports whether adding to as a successor of from would
// create a cycle in the stack graph, by searching for from reachable
// from to.
func wouldCycle(from, to *Instance) bool {
	seen := map[*Instance]bool{}
	var dfs func(n *Instance) bool
	dfs = func(n *Instance) bool {
		if n == from {
			return true
		}
		if seen[n] {
			return false
		}
		seen[n] = true
		for _, nx := range n.next {
			if dfs(nx) {
				return true
			}
		}
		return false
	}
	return dfs(to)
}

// PDOutputCallbackAdd registers cb to receive every ProtocolDatum of
// type t produced by any instance in the session.
func (s *Session) PDOutputCallbackAdd(t OutputType, cb OutputCallback) {
	s.mu.Lock()
	s.callbacks[t] = append(s.callbacks[t], cb)
	s.mu.Unlock()
}

func (s *Session) dispatch(t OutputType, d *ProtocolDatum) {
	s.mu.Lock()
	cbs := append([]OutputCallback(nil), s.callbacks[t]...)
	s.mu.Unlock()
	for _, cb := range cbs {
		cb(d)
	}
}

// Start seeds every instance's cursor and spawns one worker goroutine
// per root instance. Options, channels, and stacking may no longer be
// changed after this call.
func (s *Session) Start(firstSampleBytes func() ([]byte, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAlive(); err != nil {
		return err
	}
	if s.started {
		return newErr(StatusArg, "session %d: already started", s.id)
	}
	for _, inst := range s.byID {
		if err := inst.prepare(s.unitSize, firstSampleBytes); err != nil {
			return fmt.Errorf("session %d: %w", s.id, err)
		}
		inst.setState(StateInitialized)
	}
	// Stacked instances never get a worker goroutine, but still need
	// their script started once, synchronously, so they can register
	// outputs before their producer's first Put.
	for _, inst := range s.byID {
		if inst.isRoot {
			continue
		}
		if err := inst.script.Start(inst); err != nil {
			return fmt.Errorf("session %d: instance %s: %w", s.id, inst.id, err)
		}
		if err := inst.script.Reset(); err != nil {
			return fmt.Errorf("session %d: instance %s: %w", s.id, inst.id, err)
		}
		inst.setState(StateRunning)
	}
	s.started = true
	for _, r := range s.roots {
		go r.run()
	}
	return nil
}

// Send feeds one sample segment to every root instance, in declaration
// order, blocking until each has consumed it (or requested
// termination). The segment is [absStart, absEnd) in absolute sample
// numbers; buf must hold (absEnd-absStart)*unitSize bytes. Send before
// Start returns StatusArg without touching any instance, since no
// worker goroutine exists yet to consume a posted buffer.
func (s *Session) Send(buf []byte, absStart, absEnd uint64) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return newErr(StatusArg, "session %d: not started", s.id)
	}
	roots := append([]*Instance(nil), s.roots...)
	s.mu.Unlock()

	for _, r := range roots {
		r.hs.postBuffer(buf, absStart, absEnd)
		if terminated := r.hs.awaitConsumed(); terminated {
			return newErr(StatusTerminateRequest, "instance %s", r.id)
		}
		if err := r.runError(); err != nil && err != ErrEOF {
			return fmt.Errorf("instance %s: %w", r.id, err)
		}
	}
	return nil
}

// SendEOF signals end of stream to every root instance and waits for
// each worker to exit.
func (s *Session) SendEOF() error {
	s.mu.Lock()
	roots := append([]*Instance(nil), s.roots...)
	s.mu.Unlock()

	for _, r := range roots {
		r.hs.requestEOF()
	}
	for _, r := range roots {
		<-r.done
		if r.runErr != nil && r.runErr != ErrEOF {
			return fmt.Errorf("instance %s: %w", r.id, r.runErr)
		}
	}
	return nil
}

// TerminateReset asks every root worker to stop, joins it, re-arms the
// session's instances to Initialized and starts a fresh worker for every
// root, so Send can be called again directly. The session stays started:
// a later Start call returns an error.
func (s *Session) TerminateReset() error {
	s.mu.Lock()
	roots := append([]*Instance(nil), s.roots...)
	s.mu.Unlock()

	for _, r := range roots {
		r.hs.requestTerminate()
	}
	for _, r := range roots {
		<-r.done
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inst := range s.byID {
		inst.hs.reset()
		inst.done = make(chan struct{})
		inst.runErr = nil
		inst.setState(StateInitialized)
	}
	for _, r := range roots {
		go r.run()
	}
	return nil
}

// Destroy tears the session down. It is not idempotent: calling Destroy
// on an already-destroyed session returns an error, matching the original core's
// NULL-pointer-after-free semantics.
func (s *Session) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAlive(); err != nil {
		return err
	}
	for _, r := range s.roots {
		r.hs.requestTerminate()
	}
	s.destroyed = true
	return nil
}
