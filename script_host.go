package otd

import (
	"fmt"
	"os"
	"reflect"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// scriptHost compiles one decoder's Go source with the yaegi
// interpreter and knows how to mint a fresh Script value per instance.
// The original core embedded a Python interpreter per decoder; this
// runtime substitutes a Go one so decoder scripts stay ordinary,
// interpretable Go rather than a second language.
type scriptHost struct {
	src    []byte
	symbol string
}

// otdSymbols exposes the types, constants and value constructors listed
// below from this package's exported API to interpreted decoder
// scripts, which import it as "github.com/otdecode/otd".
var otdSymbols = interp.Exports{
	"github.com/otdecode/otd": map[string]reflect.Value{
		"Instance":          reflect.ValueOf((*Instance)(nil)),
		"Output":            reflect.ValueOf((*Output)(nil)),
		"Annotation":        reflect.ValueOf(Annotation{}),
		"Binary":            reflect.ValueOf(Binary{}),
		"Logic":             reflect.ValueOf(Logic{}),
		"Meta":              reflect.ValueOf(Meta{}),
		"OutputAnn":         reflect.ValueOf(OutputAnn),
		"OutputPassthrough": reflect.ValueOf(OutputPassthrough),
		"OutputBinary":      reflect.ValueOf(OutputBinary),
		"OutputLogic":       reflect.ValueOf(OutputLogic),
		"OutputMeta":        reflect.ValueOf(OutputMeta),
		"U64":               reflect.ValueOf(U64),
		"I64":               reflect.ValueOf(I64),
		"F64":               reflect.ValueOf(F64),
		"Str":               reflect.ValueOf(Str),
	},
}

func newScriptHost(path string) (*scriptHost, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &scriptHost{src: src}, nil
}

// newInstance runs the decoder's source in a fresh interpreter and
// extracts its exported NewDecoder() otd.Script constructor. A fresh
// *interp.Interpreter is used per call since yaegi's Interpreter is
// not safe for concurrent Eval calls across instances.
func (h *scriptHost) newInstance() (Script, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("script host: loading stdlib: %w", err)
	}
	if err := i.Use(otdSymbols); err != nil {
		return nil, fmt.Errorf("script host: loading otd symbols: %w", err)
	}
	if _, err := i.Eval(string(h.src)); err != nil {
		return nil, fmt.Errorf("script host: evaluating decoder source: %w", err)
	}
	v, err := i.Eval("main.NewDecoder")
	if err != nil {
		return nil, fmt.Errorf("script host: decoder source must define func NewDecoder() otd.Script: %w", err)
	}
	fn, ok := v.Interface().(func() Script)
	if !ok {
		return nil, fmt.Errorf("script host: NewDecoder has wrong signature")
	}
	return fn(), nil
}
