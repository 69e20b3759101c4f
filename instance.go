package otd

import (
	"fmt"
	"sync"

	"github.com/otdecode/otd/internal/condition"
	"github.com/otdecode/otd/internal/cursor"
)

// Instance is one running (or not-yet-started) decoder, created from a
// Decoder by Session.InstNew. Root instances (those fed directly by
// Session.Send) each get their own worker goroutine; stacked instances
// are driven synchronously by their producer's Put call and never run
// their own goroutine.
type Instance struct {
	id      string
	decoder *Decoder
	session *Session

	channelMap  []int
	initialPins []InitialPin
	options     map[string]Value

	cur *cursor.Cursor

	next     []*Instance // stacked successors, in stack order
	outputs  []*Output
	isRoot   bool

	script Script

	hs *handshake

	stateMu sync.Mutex
	state   State

	done    chan struct{}
	runErr  error

	condMu   sync.Mutex
	condList condition.List
	matched  []bool
}

func newInstance(id string, d *Decoder, sess *Session) *Instance {
	n := len(d.Channels) + len(d.OptionalChannels)
	chmap := make([]int, n)
	pins := make([]InitialPin, n)
	for i := range chmap {
		chmap[i] = cursor.Unassigned
		pins[i] = InitialPinLow
	}
	return &Instance{
		id:          id,
		decoder:     d,
		session:     sess,
		channelMap:  chmap,
		initialPins: pins,
		options:     map[string]Value{},
		hs:          newHandshake(),
		state:       StateUninitialized,
		done:        make(chan struct{}),
	}
}

// ID returns the instance's session-unique identifier.
func (inst *Instance) ID() string { return inst.id }

// Decoder returns the class-level Decoder this instance was created from.
func (inst *Instance) Decoder() *Decoder { return inst.decoder }

func (inst *Instance) getState() State {
	inst.stateMu.Lock()
	defer inst.stateMu.Unlock()
	return inst.state
}

func (inst *Instance) setState(s State) {
	inst.stateMu.Lock()
	inst.state = s
	inst.stateMu.Unlock()
}

// OptionSet validates and stores one option value, only legal before
// the owning session has started.
func (inst *Instance) OptionSet(id string, v Value) error {
	if inst.getState() != StateUninitialized {
		return newErr(StatusArg, "instance %s: options can only be set before session start", inst.id)
	}
	schema := inst.decoder.optionByID(id)
	if schema == nil {
		return newErr(StatusArg, "instance %s: no such option %q", inst.id, id)
	}
	if err := schema.validate(v); err != nil {
		return err
	}
	inst.options[id] = v
	return nil
}

// ChannelSetAll assigns every decoder channel's stream channel index at
// once, by channel id. Missing optional channels are left Unassigned;
// missing required channels are an error.
func (inst *Instance) ChannelSetAll(byID map[string]int) error {
	if inst.getState() != StateUninitialized {
		return newErr(StatusArg, "instance %s: channels can only be set before session start", inst.id)
	}
	idx := 0
	for _, c := range inst.decoder.Channels {
		sch, ok := byID[c.ID]
		if !ok {
			return newErr(StatusArg, "instance %s: required channel %q not assigned", inst.id, c.ID)
		}
		inst.channelMap[idx] = sch
		idx++
	}
	for _, c := range inst.decoder.OptionalChannels {
		if sch, ok := byID[c.ID]; ok {
			inst.channelMap[idx] = sch
		}
		idx++
	}
	return nil
}

// InitialPinsSetAll assigns the initial pin kind for every decoder
// channel, by position (required channels first, then optional, the
// same order the decoder declares them in).
func (inst *Instance) InitialPinsSetAll(pins []InitialPin) error {
	if inst.getState() != StateUninitialized {
		return newErr(StatusArg, "instance %s: initial pins can only be set before session start", inst.id)
	}
	if len(pins) != len(inst.initialPins) {
		return newErr(StatusArg, "instance %s: expected %d initial pin values, got %d", inst.id, len(inst.initialPins), len(pins))
	}
	copy(inst.initialPins, pins)
	return nil
}

// prepare builds the cursor and seeds initial pins just before session
// start, once the channel map and sample unit size are final.
func (inst *Instance) prepare(unitSize int, firstSampleBytes func() ([]byte, error)) error {
	inst.cur = cursor.New(inst.channelMap, unitSize)
	kinds := make([]int, len(inst.initialPins))
	for i, p := range inst.initialPins {
		kinds[i] = int(p)
	}
	sameAsSample0 := func(ch int) (byte, error) {
		buf, err := firstSampleBytes()
		if err != nil {
			return 0, err
		}
		tmp := cursor.New(inst.channelMap, unitSize)
		if err := tmp.Reset(buf, 0, uint64(len(buf))/uint64(unitSize)); err != nil {
			return 0, err
		}
		return tmp.Pins()[ch], nil
	}
	return inst.cur.SeedInitial(sameAsSample0, kinds)
}

func (inst *Instance) unassignedFn() condition.Unassigned {
	return func(ch int) bool { return !inst.cur.Assigned(ch) }
}

// run is the worker goroutine body for a root instance.
func (inst *Instance) run() {
	defer close(inst.done)

	// Initial rendezvous: publish samples_consumed before any script
	// code runs, unless a buffer has already been posted. A pending
	// buffer keeps its Send blocked until Wait has processed it, or
	// until the markConsumed call below once the script has exited.
	inst.hs.mu.Lock()
	if !inst.hs.samplesAvailable {
		inst.hs.samplesConsumed = true
		inst.hs.cvConsumed.Signal()
	}
	inst.hs.mu.Unlock()

	if err := inst.script.Start(inst); err != nil {
		inst.fail(err)
		return
	}
	if err := inst.script.Reset(); err != nil {
		inst.fail(err)
		return
	}
	inst.setState(StateRunning)

	err := inst.script.Decode()

	inst.stateMu.Lock()
	if err != nil {
		inst.runErr = err
	}
	if inst.state != StateEOFSignaled {
		inst.state = StateTerminated
	}
	inst.stateMu.Unlock()

	// However the script exited, make sure the feeder is never left
	// waiting on a buffer this instance will now never consume.
	inst.hs.markConsumed()
}

func (inst *Instance) fail(err error) {
	inst.stateMu.Lock()
	inst.runErr = err
	inst.state = StateTerminated
	inst.stateMu.Unlock()
	inst.hs.markConsumed()
}

// runError returns the error (if any) that ended this instance's
// worker, guarded by the same mutex run() and fail() use to set it.
func (inst *Instance) runError() error {
	inst.stateMu.Lock()
	defer inst.stateMu.Unlock()
	return inst.runErr
}

// ErrEOF is returned by Wait when the session has signaled end of
// stream and the instance has no more samples to receive.
var ErrEOF = fmt.Errorf("otd: end of sample stream")

// Wait blocks until list matches against the live sample stream, or the
// stream ends, or termination is requested. It owns list for the
// duration of the call: Reset/Tick mutate it in place, so a fresh set
// of skip counters is armed every time a script calls Wait.
func (inst *Instance) Wait(list condition.List) (pins []byte, matched []bool, err error) {
	list.Reset()

	inst.condMu.Lock()
	inst.condList = list
	inst.matched = make([]bool, len(list))
	inst.condMu.Unlock()

	for {
		if inst.cur == nil || inst.cur.At() >= inst.cur.End() {
			buf, start, end, terminate, eof := inst.hs.awaitAvailable()
			if terminate {
				return nil, nil, newErr(StatusTerminateRequest, "instance %s", inst.id)
			}
			if eof {
				inst.setState(StateEOFSignaled)
				return nil, nil, ErrEOF
			}
			if err := inst.cur.Reset(buf, start, end); err != nil {
				return nil, nil, err
			}
			if inst.cur.At() >= inst.cur.End() {
				// zero-length buffer: go straight back to waiting.
				continue
			}
		}

		match, matched, err := condition.Evaluate(list, inst.cur.Pins(), inst.cur.Prev(), inst.unassignedFn())
		if err != nil {
			return nil, nil, err
		}
		if match {
			inst.condMu.Lock()
			inst.matched = matched
			inst.condMu.Unlock()
			return append([]byte(nil), inst.cur.Pins()...), matched, nil
		}

		list.Tick()
		if err := inst.cur.Advance(); err != nil {
			return nil, nil, err
		}
		if inst.hs.terminating() {
			return nil, nil, newErr(StatusTerminateRequest, "instance %s", inst.id)
		}
	}
}
