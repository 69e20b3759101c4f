package otd

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/strftime"
)

// CSVAnnotationSink writes every OutputAnn datum it receives to a
// daily-rotating CSV file, rotated by UTC date -- one open *os.File
// per calendar day, closed and reopened across a day boundary, with a
// header written only the first time a given day's file is created.
type CSVAnnotationSink struct {
	dir     string
	pattern *strftime.Strftime

	mu       sync.Mutex
	fp       *os.File
	w        *csv.Writer
	openName string
}

// NewCSVAnnotationSink prepares a sink that writes "<dir>/YYYY-MM-DD.csv"
// files, creating dir if it does not already exist.
func NewCSVAnnotationSink(dir string) (*CSVAnnotationSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csv sink: %w", err)
	}
	pattern, err := strftime.New("%Y-%m-%d.csv")
	if err != nil {
		return nil, fmt.Errorf("csv sink: %w", err)
	}
	return &CSVAnnotationSink{dir: dir, pattern: pattern}, nil
}

// Callback is an OutputCallback suitable for PDOutputCallbackAdd(OutputAnn, ...).
func (s *CSVAnnotationSink) Callback(d *ProtocolDatum) {
	a, ok := d.Payload.(Annotation)
	if !ok {
		return
	}
	now := time.Now().UTC()
	name := s.pattern.FormatString(now)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fp != nil && name != s.openName {
		s.closeLocked()
	}
	if s.fp == nil {
		if err := s.openLocked(name); err != nil {
			logAt(LogErr, "csv sink: %v", err)
			return
		}
	}

	class := ""
	if d.Binding.Instance != nil && d.Binding.Instance.decoder != nil {
		if d.Binding.Instance.decoder.Annotations != nil && a.Class >= 0 && a.Class < len(d.Binding.Instance.decoder.Annotations) {
			class = d.Binding.Instance.decoder.Annotations[a.Class].ID
		}
	}
	record := []string{
		d.Binding.Instance.id,
		fmt.Sprintf("%d", d.Start),
		fmt.Sprintf("%d", d.End),
		class,
		strings.Join(a.Text, "|"),
	}
	if err := s.w.Write(record); err != nil {
		logAt(LogErr, "csv sink: %v", err)
		return
	}
	s.w.Flush()
}

func (s *CSVAnnotationSink) openLocked(name string) error {
	full := filepath.Join(s.dir, name)
	_, statErr := os.Stat(full)
	alreadyThere := statErr == nil

	f, err := os.OpenFile(full, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", full, err)
	}
	s.fp = f
	s.openName = name
	s.w = csv.NewWriter(f)
	if !alreadyThere {
		s.w.Write([]string{"instance", "start_sample", "end_sample", "class", "text"})
		s.w.Flush()
	}
	return nil
}

func (s *CSVAnnotationSink) closeLocked() {
	if s.fp != nil {
		s.w.Flush()
		s.fp.Close()
		s.fp = nil
		s.w = nil
		s.openName = ""
	}
}

// Close flushes and closes the currently open file, if any.
func (s *CSVAnnotationSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}
