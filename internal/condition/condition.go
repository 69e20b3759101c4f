// Package condition evaluates a disjunction of sample-condition term
// sets against a decoder instance's current and previous pin vectors.
package condition

// TermKind is the type of one atomic predicate inside a condition set.
type TermKind int

const (
	AlwaysFalse TermKind = iota
	LevelHigh
	LevelLow
	EdgeRising
	EdgeFalling
	EdgeEither
	EdgeNone
	Skip
)

// Term is one atomic predicate. Channel is meaningful for every kind
// except AlwaysFalse and Skip; N/Remaining are meaningful only for
// Skip, with Remaining counting down from N as the matcher is
// re-evaluated sample by sample.
type Term struct {
	Kind      TermKind
	Channel   int
	N         int
	Remaining int
}

// Set is a conjunction of terms: it matches a sample only when every
// term in it matches.
type Set []Term

// List is a disjunction of sets: it matches when any set matches.
type List []Set

// Reset rearms every SKIP term's countdown to its static N, as required
// at the start of each Wait call.
func (l List) Reset() {
	for si := range l {
		for ti := range l[si] {
			if l[si][ti].Kind == Skip {
				l[si][ti].Remaining = l[si][ti].N
			}
		}
	}
}

// Tick decrements every SKIP term's countdown by one. The worker calls
// this exactly once per cursor advancement, immediately after an
// Evaluate that did not match -- never speculatively before the first
// Evaluate of a Wait call -- so a bare SKIP(n) set matches on the
// sample reached after exactly n advancements from the moment Wait
// began.
func (l List) Tick() {
	for si := range l {
		for ti := range l[si] {
			if l[si][ti].Kind == Skip && l[si][ti].Remaining > 0 {
				l[si][ti].Remaining--
			}
		}
	}
}

// Unassigned, when non-nil, reports whether decoder channel ch has no
// stream channel mapped to it. Evaluate returns an error if any level
// or edge term references such a channel (invariant 3).
type Unassigned func(ch int) bool

// Evaluate checks every set in l against the current/previous pin
// vectors for one sample. It never skips samples itself: the caller
// advances the cursor between calls. The returned matched slice has one
// bool per set in l, true where that set matched; when match is false,
// every entry is false and the caller should advance one sample and
// call Evaluate again. An empty list matches nothing (advance one
// sample and return with an empty matched slice).
func Evaluate(l List, cur, prev []byte, unassigned Unassigned) (match bool, matched []bool, err error) {
	matched = make([]bool, len(l))
	for si, set := range l {
		ok, serr := evalSet(set, cur, prev, unassigned)
		if serr != nil {
			return false, nil, serr
		}
		matched[si] = ok
		if ok {
			match = true
		}
	}
	return match, matched, nil
}

// evalSet evaluates one conjunction, purely: a set combining SKIP with
// edge/level terms matches only once the skip countdown has reached
// zero (via Tick, called between samples) and the other terms hold
// simultaneously.
func evalSet(set Set, cur, prev []byte, unassigned Unassigned) (bool, error) {
	ok := true
	for i := range set {
		t := &set[i]
		switch t.Kind {
		case AlwaysFalse:
			ok = false
		case LevelHigh, LevelLow, EdgeRising, EdgeFalling, EdgeEither, EdgeNone:
			if unassigned != nil && unassigned(t.Channel) {
				return false, channelUnassignedError(t.Channel)
			}
			if t.Channel < 0 || t.Channel >= len(cur) || t.Channel >= len(prev) {
				return false, channelRangeError(t.Channel)
			}
			if !evalLevelOrEdge(t.Kind, cur[t.Channel], prev[t.Channel]) {
				ok = false
			}
		case Skip:
			if t.Remaining != 0 {
				ok = false
			}
		}
	}
	return ok, nil
}

func evalLevelOrEdge(kind TermKind, cur, prev byte) bool {
	switch kind {
	case LevelHigh:
		return cur == 1
	case LevelLow:
		return cur == 0
	case EdgeRising:
		return prev == 0 && cur == 1
	case EdgeFalling:
		return prev == 1 && cur == 0
	case EdgeEither:
		return prev != cur
	case EdgeNone:
		return prev == cur
	default:
		return false
	}
}
