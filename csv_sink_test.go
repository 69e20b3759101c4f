package otd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVAnnotationSinkWritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewCSVAnnotationSink(dir)
	require.NoError(t, err)
	defer sink.Close()

	out := &Output{Instance: &Instance{id: "i2c-1", decoder: &Decoder{}}, Type: OutputAnn, ProtoID: "i2c"}
	sink.Callback(&ProtocolDatum{Start: 0, End: 4, Binding: out, Payload: Annotation{Text: []string{"START"}}})
	sink.Callback(&ProtocolDatum{Start: 4, End: 8, Binding: out, Payload: Annotation{Text: []string{"ADDR", "0x50"}}})

	name := time.Now().UTC().Format("2006-01-02") + ".csv"
	contents, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)

	lines := splitLines(string(contents))
	require.Len(t, lines, 3) // header + 2 records
	assert.Equal(t, "instance,start_sample,end_sample,class,text", lines[0])
	assert.Contains(t, lines[1], "i2c-1")
	assert.Contains(t, lines[2], "ADDR|0x50")
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
