package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/otdecode/otd"
)

// wiringFile is the YAML shape of a session wiring file: which
// decoders to instantiate, how their channels map onto the capture's
// stream channels, and how instances stack onto each other.
type wiringFile struct {
	SampleRate uint64 `yaml:"samplerate"`
	Instances  []struct {
		ID       string            `yaml:"id"`
		Decoder  string            `yaml:"decoder"`
		Channels map[string]int    `yaml:"channels"`
		Options  map[string]string `yaml:"options"`
		StackOn  string            `yaml:"stack_on"`
	} `yaml:"instances"`
}

func main() {
	var (
		decodersPath = pflag.StringP("decoders-path", "d", "", "Directory to search for decoders. Defaults to $OTD_DECODERS_PATH.")
		wiringPath   = pflag.StringP("wiring", "w", "", "Session wiring file (YAML) describing instances, channel maps and stacking.")
		samplePath   = pflag.StringP("samples", "s", "", "Packed-sample input file to replay.")
		unitSize     = pflag.IntP("unit-size", "u", 1, "Bytes per packed sample in the input file.")
		chunkSamples = pflag.IntP("chunk", "c", 4096, "Samples fed to Session.Send per call.")
		logLevel     = pflag.IntP("loglevel", "l", int(otd.LogWarn), "Log verbosity, 0 (none) through 5 (spew).")
		help         = pflag.BoolP("help", "h", false, "Display help text.")
	)

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "otd-replay: decode a captured sample file through a wired decoder session.\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help || *wiringPath == "" || *samplePath == "" {
		pflag.Usage()
		if *help {
			os.Exit(0)
		}
		os.Exit(2)
	}

	otd.LogLevelSet(otd.LogLevel(*logLevel))

	if err := run(*decodersPath, *wiringPath, *samplePath, *unitSize, *chunkSamples); err != nil {
		fmt.Fprintf(os.Stderr, "otd-replay: %v\n", err)
		os.Exit(1)
	}
}

func run(decodersPath, wiringPath, samplePath string, unitSize, chunkSamples int) error {
	if err := otd.Init(decodersPath); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer otd.Exit()

	wiringBytes, err := os.ReadFile(wiringPath)
	if err != nil {
		return fmt.Errorf("reading wiring file: %w", err)
	}
	var wf wiringFile
	if err := yaml.Unmarshal(wiringBytes, &wf); err != nil {
		return fmt.Errorf("parsing wiring file: %w", err)
	}

	data, err := os.ReadFile(samplePath)
	if err != nil {
		return fmt.Errorf("reading sample file: %w", err)
	}

	sess := otd.NewSession(unitSize)
	if err := sess.MetadataSet(otd.ConfSampleRate, otd.U64(wf.SampleRate)); err != nil {
		return fmt.Errorf("setting samplerate: %w", err)
	}

	byWiringID := map[string]*otd.Instance{}
	for _, iw := range wf.Instances {
		d, err := otd.DecoderLoad(iw.Decoder)
		if err != nil {
			return fmt.Errorf("loading decoder %s: %w", iw.Decoder, err)
		}
		inst, err := sess.InstNew(d)
		if err != nil {
			return fmt.Errorf("creating instance %s: %w", iw.ID, err)
		}
		if err := inst.ChannelSetAll(iw.Channels); err != nil {
			return fmt.Errorf("instance %s: %w", iw.ID, err)
		}
		for id, raw := range iw.Options {
			if err := inst.OptionSet(id, otd.Str(raw)); err != nil {
				return fmt.Errorf("instance %s: option %s: %w", iw.ID, id, err)
			}
		}
		byWiringID[iw.ID] = inst
	}
	for _, iw := range wf.Instances {
		if iw.StackOn == "" {
			continue
		}
		from, ok := byWiringID[iw.StackOn]
		if !ok {
			return fmt.Errorf("instance %s: stack_on references unknown instance %s", iw.ID, iw.StackOn)
		}
		if err := sess.InstStack(from, byWiringID[iw.ID]); err != nil {
			return fmt.Errorf("stacking %s onto %s: %w", iw.ID, iw.StackOn, err)
		}
	}

	sess.PDOutputCallbackAdd(otd.OutputAnn, func(d *otd.ProtocolDatum) {
		if a, ok := d.Payload.(otd.Annotation); ok {
			fmt.Printf("%d-%d: %v\n", d.Start, d.End, a.Text)
		}
	})

	firstSample := func() ([]byte, error) {
		if len(data) < unitSize {
			return nil, fmt.Errorf("sample file shorter than one sample unit")
		}
		return data[:unitSize], nil
	}
	if err := sess.Start(firstSample); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	unit := uint64(unitSize)
	total := uint64(len(data)) / unit
	var pos uint64
	for pos < total {
		end := pos + uint64(chunkSamples)
		if end > total {
			end = total
		}
		buf := data[pos*unit : end*unit]
		if err := sess.Send(buf, pos, end); err != nil {
			return fmt.Errorf("sending samples [%d,%d): %w", pos, end, err)
		}
		pos = end
	}
	return sess.SendEOF()
}
