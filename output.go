package otd

import "fmt"

// Output is one pd_output binding: a decoder's declaration that it
// produces values of a given OutputType tagged with a protocol id
// (e.g. "i2c"), allocated by Instance.NewOutput; each call allocates a
// new binding.
type Output struct {
	Instance *Instance
	Type     OutputType
	ProtoID  string
}

// Annotation is the payload shape for OutputAnn.
type Annotation struct {
	Class int
	Text  []string
}

// Binary is the payload shape for OutputBinary.
type Binary struct {
	Class int
	Data  []byte
}

// Logic is the payload shape for OutputLogic.
type Logic struct {
	Channel int
	Data    []byte
}

// Meta is the payload shape for OutputMeta; Key is decoder-defined
// (e.g. "samplerate-change").
type Meta struct {
	Key   string
	Value Value
}

// ProtocolDatum is one value emitted through an Output, timestamped in
// absolute sample numbers.
type ProtocolDatum struct {
	Start, End uint64
	Binding    *Output
	Payload    any
}

func typeMatches(t OutputType, payload any) bool {
	switch t {
	case OutputAnn:
		_, ok := payload.(Annotation)
		return ok
	case OutputBinary:
		_, ok := payload.(Binary)
		return ok
	case OutputLogic:
		_, ok := payload.(Logic)
		return ok
	case OutputMeta:
		_, ok := payload.(Meta)
		return ok
	default:
		return true // passthrough carries any decoder-defined shape
	}
}

// Put validates and routes one protocol datum produced by inst's
// script: first to the session's registered callback for out.Type (if
// any), then, for passthrough output, synchronously to every stacked
// successor whose declared input accepts out.ProtoID. A type mismatch
// or out-of-order range is a non-fatal error returned to the caller;
// the worker keeps running.
func (inst *Instance) Put(start, end uint64, out *Output, payload any) error {
	if start > end {
		return newErr(StatusArg, "put: start %d > end %d", start, end)
	}
	if out == nil {
		return newErr(StatusArg, "put: nil output binding")
	}
	if !typeMatches(out.Type, payload) {
		return newErr(StatusArg, "put: payload %T does not match output type %s", payload, out.Type)
	}

	datum := &ProtocolDatum{Start: start, End: end, Binding: out, Payload: payload}

	if inst.session != nil {
		inst.session.dispatch(out.Type, datum)
	}

	if out.Type != OutputPassthrough {
		return nil
	}
	for _, succ := range inst.next {
		if !succ.decoder.declaresInput(out.ProtoID) {
			continue
		}
		ps, ok := succ.script.(PassthroughScript)
		if !ok {
			continue
		}
		if err := ps.DecodePassthrough(start, end, payload); err != nil {
			return fmt.Errorf("put: successor %s: %w", succ.id, err)
		}
	}
	return nil
}

// NewOutput registers an output binding for inst, the way a script
// asks for one once at Start time.
func (inst *Instance) NewOutput(t OutputType, protoID string) *Output {
	out := &Output{Instance: inst, Type: t, ProtoID: protoID}
	inst.outputs = append(inst.outputs, out)
	return out
}
