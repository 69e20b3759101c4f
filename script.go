package otd

// Script is the decode logic a loaded Decoder hands to each Instance.
// Start and then Reset are called before the instance's first sample,
// and for a root instance again each time Session.TerminateReset
// restarts its worker. On a root instance's worker goroutine, Decode is
// then called once per start and is expected to run a wait()/put()
// loop, returning only when the stream ends, the script is done, or
// inst.Wait returns a StatusTerminateRequest error. Stacked instances
// get no Decode call; see PassthroughScript.
type Script interface {
	Start(inst *Instance) error
	Reset() error
	Decode() error
}

// PassthroughScript is implemented by scripts that consume another
// instance's passthrough output rather than (or in addition to) raw
// samples. Stacked instances are driven by their producer's Put call,
// synchronously, on the producer's worker goroutine -- they never get
// a worker of their own.
type PassthroughScript interface {
	Script
	DecodePassthrough(start, end uint64, payload any) error
}
