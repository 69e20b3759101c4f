package otd

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// registry is the process-wide set of loaded decoders, populated by
// DecoderLoad/DecoderLoadAll between Init and Exit.
type registry struct {
	mu          sync.Mutex
	initialized bool
	searchpaths []string
	decoders    map[string]*Decoder
}

var global registry

// decoderMeta is the on-disk shape of a decoder's <id>/decoder.yaml metadata
// file; NewScript is wired up separately by loadDecoderDir.
type decoderMeta struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	LongName string   `yaml:"longname"`
	Desc     string   `yaml:"desc"`
	License  string   `yaml:"license"`
	Inputs   []string `yaml:"inputs"`
	Outputs  []string `yaml:"outputs"`
	Tags     []string `yaml:"tags"`

	Channels         []Channel `yaml:"channels"`
	OptionalChannels []Channel `yaml:"optional_channels"`

	Options []struct {
		ID      string `yaml:"id"`
		Desc    string `yaml:"desc"`
		Default string `yaml:"default"`
	} `yaml:"options"`

	Annotations []AnnotationClass `yaml:"annotations"`
	Binary      []BinaryClass     `yaml:"binary"`
}

// Init prepares the global decoder registry, searching searchpath (or
// the OTD_DECODERS_PATH environment variable, or a built-in default)
// for decoders. Calling Init twice without an intervening Exit is an
// error -- there is exactly one level of initialization, no reference
// counting.
func Init(searchpath string) error {
	global.mu.Lock()
	defer global.mu.Unlock()
	if global.initialized {
		return newErr(StatusArg, "otd: already initialized")
	}
	if searchpath == "" {
		searchpath = os.Getenv("OTD_DECODERS_PATH")
	}
	if searchpath == "" {
		searchpath = "/usr/local/share/otd/decoders"
	}
	global.searchpaths = []string{searchpath}
	global.decoders = map[string]*Decoder{}
	global.initialized = true
	logAt(LogInfo, "initialized, search path %s", searchpath)
	return nil
}

// Exit tears down the registry. A second or third Exit call after the
// registry is already torn down is a no-op returning nil, matching
// Init's own one-shot-then-idle lifecycle.
func Exit() error {
	global.mu.Lock()
	defer global.mu.Unlock()
	if !global.initialized {
		return nil
	}
	global.initialized = false
	global.decoders = nil
	global.searchpaths = nil
	return nil
}

// SearchpathsGet returns the directories Init will search for decoders.
func SearchpathsGet() ([]string, error) {
	global.mu.Lock()
	defer global.mu.Unlock()
	if !global.initialized {
		return nil, newErr(StatusArg, "otd: not initialized")
	}
	return append([]string(nil), global.searchpaths...), nil
}

// DecoderLoad loads one decoder by id from the search path, parsing
// <id>/decoder.yaml for metadata and <id>/decoder.go for its Script
// implementation (run through the yaegi scripting host).
func DecoderLoad(id string) (*Decoder, error) {
	global.mu.Lock()
	defer global.mu.Unlock()
	if !global.initialized {
		return nil, newErr(StatusArg, "otd: not initialized")
	}
	if d, ok := global.decoders[id]; ok {
		return d, nil
	}
	for _, sp := range global.searchpaths {
		dir := filepath.Join(sp, id)
		d, err := loadDecoderDir(dir, id)
		if err == nil {
			global.decoders[id] = d
			logAt(LogInfo, "loaded decoder %s", id)
			return d, nil
		}
	}
	return nil, newErr(StatusDecodersDir, "decoder %q not found under %v", id, global.searchpaths)
}

func loadDecoderDir(dir, id string) (*Decoder, error) {
	metaBytes, err := os.ReadFile(filepath.Join(dir, "decoder.yaml"))
	if err != nil {
		return nil, err
	}
	var meta decoderMeta
	if err := yaml.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("decoder %s: parsing decoder.yaml: %w", id, err)
	}
	if meta.ID == "" {
		meta.ID = id
	}

	d := &Decoder{
		ID:               meta.ID,
		Name:             meta.Name,
		LongName:         meta.LongName,
		Desc:             meta.Desc,
		License:          meta.License,
		Inputs:           meta.Inputs,
		Outputs:          meta.Outputs,
		Tags:             meta.Tags,
		Channels:         meta.Channels,
		OptionalChannels: meta.OptionalChannels,
		Annotations:      meta.Annotations,
		Binary:           meta.Binary,
	}
	for _, o := range meta.Options {
		d.Options = append(d.Options, OptionSchema{
			ID:      o.ID,
			Desc:    o.Desc,
			Default: Str(o.Default),
		})
	}

	host, err := newScriptHost(filepath.Join(dir, "decoder.go"))
	if err != nil {
		return nil, fmt.Errorf("decoder %s: loading script: %w", id, err)
	}
	d.NewScript = host.newInstance
	return d, nil
}

// DecoderUnload removes id from the registry. Instances already
// created from it keep running.
func DecoderUnload(id string) error {
	global.mu.Lock()
	defer global.mu.Unlock()
	if !global.initialized {
		return newErr(StatusArg, "otd: not initialized")
	}
	delete(global.decoders, id)
	return nil
}

// DecoderUnloadAll clears the registry. Called without a prior Init,
// or with nothing loaded, it is a no-op returning nil.
func DecoderUnloadAll() error {
	global.mu.Lock()
	defer global.mu.Unlock()
	if !global.initialized {
		return nil
	}
	global.decoders = map[string]*Decoder{}
	return nil
}

// DecoderLoadAll loads every decoder found in the search path.
func DecoderLoadAll() ([]*Decoder, error) {
	global.mu.Lock()
	paths := append([]string(nil), global.searchpaths...)
	initialized := global.initialized
	global.mu.Unlock()
	if !initialized {
		return nil, newErr(StatusArg, "otd: not initialized")
	}
	var out []*Decoder
	for _, sp := range paths {
		entries, err := os.ReadDir(sp)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			d, err := DecoderLoad(e.Name())
			if err != nil {
				logAt(LogWarn, "skipping decoder %s: %v", e.Name(), err)
				continue
			}
			out = append(out, d)
		}
	}
	return out, nil
}

// DecoderList returns every currently loaded decoder's id.
func DecoderList() []string {
	global.mu.Lock()
	defer global.mu.Unlock()
	ids := make([]string, 0, len(global.decoders))
	for id := range global.decoders {
		ids = append(ids, id)
	}
	return ids
}

// DecoderGetByID returns an already-loaded decoder, or an error if it
// has not been loaded.
func DecoderGetByID(id string) (*Decoder, error) {
	global.mu.Lock()
	defer global.mu.Unlock()
	d, ok := global.decoders[id]
	if !ok {
		return nil, newErr(StatusArg, "decoder %q not loaded", id)
	}
	return d, nil
}

// DecoderDocGet returns an already-loaded decoder's Desc text.
func DecoderDocGet(id string) (string, error) {
	d, err := DecoderGetByID(id)
	if err != nil {
		return "", err
	}
	return d.Desc, nil
}
