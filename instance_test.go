package otd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otdecode/otd/internal/condition"
)

// scriptFunc adapts a plain function to the Script interface for tests
// that only care about the Decode phase.
type scriptFunc struct {
	decode func(inst *Instance) error
	inst   *Instance
}

func (s *scriptFunc) Start(inst *Instance) error { s.inst = inst; return nil }
func (s *scriptFunc) Reset() error               { return nil }
func (s *scriptFunc) Decode() error              { return s.decode(s.inst) }

func newTestDecoder(decode func(inst *Instance) error) *Decoder {
	return &Decoder{
		ID:       "test",
		Channels: []Channel{{ID: "a"}},
		NewScript: func() (Script, error) {
			return &scriptFunc{decode: decode}, nil
		},
	}
}

func packBit(v int) byte {
	if v != 0 {
		return 1
	}
	return 0
}

// TestWaitSkipMatchesAfterExactlyNAdvances drives a real Instance
// through an 8-sample buffer with a bare SKIP(3) condition and checks
// it matches at absolute sample 3, then 6, the same worked scenario
// condition_test.go checks at the matcher level -- here through the
// full handshake and cursor.
func TestWaitSkipMatchesAfterExactlyNAdvances(t *testing.T) {
	var matchedSamples []uint64

	d := newTestDecoder(func(inst *Instance) error {
		for i := 0; i < 2; i++ {
			_, _, err := inst.Wait(condition.List{{{Kind: condition.Skip, N: 3}}})
			if err != nil {
				return err
			}
			matchedSamples = append(matchedSamples, inst.cur.At())
		}
		return nil
	})

	sess := NewSession(1)
	inst, err := sess.InstNew(d)
	require.NoError(t, err)
	require.NoError(t, inst.ChannelSetAll(map[string]int{"a": 0}))

	buf := make([]byte, 8)
	require.NoError(t, sess.Start(func() ([]byte, error) { return buf, nil }))
	require.NoError(t, sess.Send(buf, 0, 8))
	require.NoError(t, sess.SendEOF())

	assert.Equal(t, []uint64{3, 6}, matchedSamples)
}

// TestWaitDetectsEdgeAcrossBufferBoundary checks that an edge
// straddling two Send calls -- the last sample of one buffer low, the
// first sample of the next buffer high -- is still detected, since
// previous-pins state is never reset at a buffer boundary.
func TestWaitDetectsEdgeAcrossBufferBoundary(t *testing.T) {
	matched := make(chan uint64, 1)

	d := newTestDecoder(func(inst *Instance) error {
		pins, _, err := inst.Wait(condition.List{{{Kind: condition.EdgeRising, Channel: 0}}})
		if err != nil {
			return err
		}
		_ = pins
		matched <- inst.cur.At()
		return nil
	})

	sess := NewSession(1)
	inst, err := sess.InstNew(d)
	require.NoError(t, err)
	require.NoError(t, inst.ChannelSetAll(map[string]int{"a": 0}))

	buf1 := []byte{packBit(0), packBit(0)} // samples 0,1: low,low
	require.NoError(t, sess.Start(func() ([]byte, error) { return buf1, nil }))
	require.NoError(t, sess.Send(buf1, 0, 2))

	buf2 := []byte{packBit(1)} // sample 2: high -- rising edge vs sample 1
	require.NoError(t, sess.Send(buf2, 2, 3))

	select {
	case at := <-matched:
		assert.Equal(t, uint64(2), at, "rising edge must be detected at the first sample of the new buffer")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for edge match")
	}

	require.NoError(t, sess.TerminateReset())
}

func TestOptionSetRejectsWrongKind(t *testing.T) {
	d := &Decoder{
		ID: "opt",
		Options: []OptionSchema{
			{ID: "rate", Default: U64(0)},
		},
		NewScript: func() (Script, error) { return &scriptFunc{decode: func(*Instance) error { return nil }}, nil },
	}
	sess := NewSession(1)
	inst, err := sess.InstNew(d)
	require.NoError(t, err)

	assert.Error(t, inst.OptionSet("rate", Str("nope")))
	assert.NoError(t, inst.OptionSet("rate", U64(9600)))
}

func TestChannelSetAllRequiresRequiredChannels(t *testing.T) {
	d := newTestDecoder(func(*Instance) error { return nil })
	sess := NewSession(1)
	inst, err := sess.InstNew(d)
	require.NoError(t, err)
	assert.Error(t, inst.ChannelSetAll(map[string]int{}))
}
