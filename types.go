package otd

// OutputType is the stable, ABI-level tag of a pd_output binding.
type OutputType int

const (
	OutputAnn         OutputType = 0
	OutputPassthrough OutputType = 1
	OutputBinary      OutputType = 2
	OutputLogic       OutputType = 3
	OutputMeta        OutputType = 4
)

func (t OutputType) String() string {
	switch t {
	case OutputAnn:
		return "ann"
	case OutputPassthrough:
		return "passthrough"
	case OutputBinary:
		return "binary"
	case OutputLogic:
		return "logic"
	case OutputMeta:
		return "meta"
	default:
		return "unknown"
	}
}

// InitialPin is the assumed pin value at sample index -1, used to seed
// edge detection at sample 0.
type InitialPin int

const (
	InitialPinLow InitialPin = iota
	InitialPinHigh
	InitialPinSameAsSample0
)

// LogLevel controls verbosity of the package-level logger.
type LogLevel int

const (
	LogNone LogLevel = iota
	LogErr
	LogWarn
	LogInfo
	LogDbg
	LogSpew
)

// ConfigKey identifies a recognized Session.MetadataSet key.
type ConfigKey int

// ConfSampleRate is the only metadata key recognized today; its value
// must be a uint64. New keys may be added without renumbering this one.
const ConfSampleRate ConfigKey = 10000

// State is a decoder instance's lifecycle stage.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateRunning
	StateEOFSignaled
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateEOFSignaled:
		return "eof_signaled"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
