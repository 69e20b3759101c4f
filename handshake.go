package otd

import "sync"

// handshake is the per-instance producer/consumer synchronization
// between the feeder (Session.Send, running on the caller's goroutine)
// and the instance's worker goroutine. It is modeled as a bounded
// capacity-1 mailbox guarded by one mutex and two condition variables
// rather than a single Go channel, so the feeder can tell the precise
// difference between "buffer delivered" and "buffer fully consumed" --
// a plain channel send only captures the former.
type handshake struct {
	mu sync.Mutex

	cvAvailable *sync.Cond // signaled when a new buffer (or term/EOF) is posted
	cvConsumed  *sync.Cond // signaled when the worker has drained the buffer

	samplesAvailable bool
	samplesConsumed  bool
	wantTerminate    bool
	communicateEOF   bool

	inbuf    []byte
	absStart uint64
	absEnd   uint64
}

func newHandshake() *handshake {
	h := &handshake{}
	h.cvAvailable = sync.NewCond(&h.mu)
	h.cvConsumed = sync.NewCond(&h.mu)
	return h
}

// postBuffer installs a new sample segment and wakes the worker.
// Called by the feeder.
func (h *handshake) postBuffer(buf []byte, absStart, absEnd uint64) {
	h.mu.Lock()
	h.inbuf = buf
	h.absStart = absStart
	h.absEnd = absEnd
	h.samplesAvailable = true
	h.samplesConsumed = false
	h.cvAvailable.Signal()
	h.mu.Unlock()
}

// awaitConsumed blocks the feeder until the worker has drained the
// posted buffer or termination was requested concurrently. Returns
// true if termination was observed.
func (h *handshake) awaitConsumed() (terminated bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for !h.samplesConsumed && !h.wantTerminate {
		h.cvConsumed.Wait()
	}
	return h.wantTerminate
}

// markConsumed is called by the worker once it has nothing left to do
// with the current buffer (either it ran off the end, or it is
// terminating/erroring out before consuming anything further).
func (h *handshake) markConsumed() {
	h.mu.Lock()
	h.samplesConsumed = true
	h.cvConsumed.Signal()
	h.mu.Unlock()
}

// awaitAvailable blocks the worker until a new buffer is posted, or
// termination/EOF is requested. Unless a new buffer is already pending,
// it first marks the previous buffer consumed, so the feeder is never
// left waiting once the worker has nothing more to process; a pending
// buffer keeps its feeder blocked until the worker has processed it.
func (h *handshake) awaitAvailable() (buf []byte, absStart, absEnd uint64, terminate, eof bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.samplesAvailable {
		h.samplesConsumed = true
		h.cvConsumed.Signal()
	}

	for !h.samplesAvailable && !h.wantTerminate && !h.communicateEOF {
		h.cvAvailable.Wait()
	}

	if h.wantTerminate {
		return nil, 0, 0, true, false
	}
	if h.communicateEOF {
		h.communicateEOF = false
		return nil, 0, 0, false, true
	}

	h.samplesAvailable = false
	return h.inbuf, h.absStart, h.absEnd, false, false
}

// requestTerminate asks the worker to stop at its next blocking point
// and wakes it if it is currently blocked.
func (h *handshake) requestTerminate() {
	h.mu.Lock()
	h.wantTerminate = true
	h.cvAvailable.Signal()
	h.cvConsumed.Signal()
	h.mu.Unlock()
}

// requestEOF causes the worker's next wait() to raise an end-of-stream
// signal to the script.
func (h *handshake) requestEOF() {
	h.mu.Lock()
	h.communicateEOF = true
	h.cvAvailable.Signal()
	h.mu.Unlock()
}

// terminating reports whether termination has been requested, without
// blocking. Used by the worker's cooperative cancellation checks.
func (h *handshake) terminating() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.wantTerminate
}

// reset clears all handshake flags, for terminate_reset's re-arm.
func (h *handshake) reset() {
	h.mu.Lock()
	h.samplesAvailable = false
	h.samplesConsumed = false
	h.wantTerminate = false
	h.communicateEOF = false
	h.inbuf = nil
	h.absStart = 0
	h.absEnd = 0
	h.mu.Unlock()
}
