package otd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otdecode/otd/internal/condition"
)

// passthroughScript is a Script that also implements PassthroughScript,
// recording every passthrough datum it receives.
type passthroughScript struct {
	inst     *Instance
	received []string
	onStart  func(inst *Instance) error
}

func (s *passthroughScript) Start(inst *Instance) error {
	s.inst = inst
	if s.onStart != nil {
		return s.onStart(inst)
	}
	return nil
}
func (s *passthroughScript) Reset() error  { return nil }
func (s *passthroughScript) Decode() error { return nil }
func (s *passthroughScript) DecodePassthrough(start, end uint64, payload any) error {
	b, _ := payload.(Binary)
	s.received = append(s.received, string(b.Data))
	return nil
}

// TestStackedInstanceReceivesPassthroughBeforeFurtherSamples checks
// that a producer's Put call delivers passthrough data synchronously
// to its stacked successor, on the same goroutine, before Put returns.
func TestStackedInstanceReceivesPassthroughBeforeFurtherSamples(t *testing.T) {
	var order []string

	successorScript := &passthroughScript{}
	successor := &Decoder{
		ID:      "successor",
		Inputs:  []string{"bytes"},
		NewScript: func() (Script, error) { return successorScript, nil },
	}

	producer := &Decoder{
		ID:      "producer",
		Outputs: []string{"bytes"},
		Channels: []Channel{{ID: "a"}},
	}
	producer.NewScript = func() (Script, error) {
		return &scriptFunc{decode: func(inst *Instance) error {
			out := inst.NewOutput(OutputPassthrough, "bytes")
			order = append(order, "before-put")
			if err := inst.Put(0, 1, out, Binary{Data: []byte("hello")}); err != nil {
				return err
			}
			order = append(order, "after-put")
			_, _, err := inst.Wait(condition.List{{{Kind: condition.LevelHigh, Channel: 0}}})
			return err
		}}, nil
	}

	sess := NewSession(1)
	pinst, err := sess.InstNew(producer)
	require.NoError(t, err)
	require.NoError(t, pinst.ChannelSetAll(map[string]int{"a": 0}))

	sinst, err := sess.InstNew(successor)
	require.NoError(t, err)
	require.NoError(t, sess.InstStack(pinst, sinst))

	buf := []byte{1}
	require.NoError(t, sess.Start(func() ([]byte, error) { return buf, nil }))
	require.NoError(t, sess.Send(buf, 0, 1))
	require.NoError(t, sess.SendEOF())

	require.Len(t, successorScript.received, 1)
	assert.Equal(t, "hello", successorScript.received[0])
	assert.Equal(t, []string{"before-put", "after-put"}, order, "Put must deliver to the successor synchronously within the call")
}

func TestInstStackRejectsCycles(t *testing.T) {
	a := &Decoder{ID: "a", Inputs: []string{"x"}, Outputs: []string{"x"}, NewScript: func() (Script, error) { return &scriptFunc{decode: func(*Instance) error { return nil }}, nil }}
	b := &Decoder{ID: "b", Inputs: []string{"x"}, Outputs: []string{"x"}, NewScript: func() (Script, error) { return &scriptFunc{decode: func(*Instance) error { return nil }}, nil }}

	sess := NewSession(1)
	ia, err := sess.InstNew(a)
	require.NoError(t, err)
	ib, err := sess.InstNew(b)
	require.NoError(t, err)

	require.NoError(t, sess.InstStack(ia, ib))
	assert.Error(t, sess.InstStack(ib, ia), "stacking back onto an ancestor must be rejected as a cycle")
}

func TestInstStackRejectsUnmatchedInputOutput(t *testing.T) {
	a := &Decoder{ID: "a", Outputs: []string{"x"}, NewScript: func() (Script, error) { return &scriptFunc{decode: func(*Instance) error { return nil }}, nil }}
	b := &Decoder{ID: "b", Inputs: []string{"y"}, NewScript: func() (Script, error) { return &scriptFunc{decode: func(*Instance) error { return nil }}, nil }}

	sess := NewSession(1)
	ia, err := sess.InstNew(a)
	require.NoError(t, err)
	ib, err := sess.InstNew(b)
	require.NoError(t, err)

	assert.Error(t, sess.InstStack(ia, ib))
}

func TestPutRejectsPayloadTypeMismatch(t *testing.T) {
	d := &Decoder{ID: "mismatch", NewScript: func() (Script, error) { return &scriptFunc{decode: func(*Instance) error { return nil }}, nil }}
	sess := NewSession(1)
	inst, err := sess.InstNew(d)
	require.NoError(t, err)
	out := inst.NewOutput(OutputAnn, "proto")
	err = inst.Put(0, 1, out, Binary{Data: []byte("x")})
	assert.Error(t, err)
}
