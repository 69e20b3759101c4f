package cursor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// packSample packs one bit per channel into a single byte, channel 0 at
// bit 0.
func packSample(bits ...int) byte {
	var b byte
	for i, v := range bits {
		if v != 0 {
			b |= 1 << uint(i)
		}
	}
	return b
}

func TestResetLeavesPrevPinsAcrossBoundary(t *testing.T) {
	c := New([]int{0, 1}, 1)
	require.NoError(t, c.SeedInitial(nil, []int{0, 0}))

	buf1 := []byte{packSample(1, 0), packSample(1, 1)}
	require.NoError(t, c.Reset(buf1, 0, 2))
	assert.NoError(t, c.Advance()) // cur now at sample 1

	// Prev should reflect sample 0, cur should reflect sample 1.
	assert.Equal(t, []byte{1, 0}, c.Prev())
	assert.Equal(t, []byte{1, 1}, c.Pins())
	require.NoError(t, c.Advance()) // cur now at sample 2, the end of buf1

	// A second buffer starting where the first left off must not reset
	// the previous-pins snapshot -- the edge from sample 1 to sample 2
	// (the first sample of the new buffer) must still be detectable.
	buf2 := []byte{packSample(0, 1)}
	require.NoError(t, c.Reset(buf2, 2, 3))
	assert.Equal(t, []byte{1, 1}, c.Prev(), "prev pins must survive a Reset at a buffer boundary")
	assert.Equal(t, []byte{0, 1}, c.Pins())
}

func TestSeedInitialSameAsSample0(t *testing.T) {
	c := New([]int{0}, 1)
	buf := []byte{packSample(1)}
	first := New([]int{0}, 1)
	require.NoError(t, first.Reset(buf, 0, 1))
	err := c.SeedInitial(func(ch int) (byte, error) {
		return first.PinAt(ch, 0)
	}, []int{2}) // SAME_AS_SAMPLE0
	require.NoError(t, err)
	require.NoError(t, c.Reset(buf, 0, 1))
	assert.Equal(t, byte(1), c.Prev()[0])
}

func TestAssignedReportsUnmappedChannels(t *testing.T) {
	c := New([]int{0, Unassigned}, 1)
	assert.True(t, c.Assigned(0))
	assert.False(t, c.Assigned(1))
}

func TestAdvancePastEndLeavesPinsUnchanged(t *testing.T) {
	c := New([]int{0}, 1)
	require.NoError(t, c.SeedInitial(nil, []int{0}))
	require.NoError(t, c.Reset([]byte{packSample(1)}, 0, 1))
	require.NoError(t, c.Advance())
	assert.Equal(t, uint64(1), c.At())
	assert.Equal(t, c.End(), c.At())
	assert.Equal(t, []byte{1}, c.Pins())
}

// TestCursorAlwaysInRange exercises the cursor's "abs_cur always
// stays within the installed buffer's range" property across randomly
// generated buffers and advance counts.
func TestCursorAlwaysInRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 32).Draw(rt, "n")
		c := New([]int{0}, 1)
		require.NoError(t, c.SeedInitial(nil, []int{0}))
		buf := make([]byte, n)
		for i := range buf {
			buf[i] = byte(rapid.IntRange(0, 1).Draw(rt, "bit"))
		}
		require.NoError(t, c.Reset(buf, 0, uint64(n)))

		steps := rapid.IntRange(0, n+5).Draw(rt, "steps")
		for i := 0; i < steps && c.At() < c.End(); i++ {
			require.NoError(t, c.Advance())
			assert.LessOrEqual(t, c.At(), c.End())
		}
	})
}
