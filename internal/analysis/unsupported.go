package analysis

import (
	"sort"

	"github.com/shinyvision/phpinfer/internal/syntax"
	"github.com/tliron/commonlog"
)

var unsupportedLog = commonlog.GetLoggerf("phpinfer.analysis.unsupported")

// Unsupported counts constructs the engine does not model. These never
// become user diagnostics; they only feed the development log and the
// counters exposed on Result.
type Unsupported struct {
	counts map[string]int
}

func newUnsupported() *Unsupported {
	return &Unsupported{counts: make(map[string]int)}
}

// Mark records one occurrence of an unmodelled construct.
func (u *Unsupported) Mark(what string, n syntax.Node) {
	u.counts[what]++
	if n != nil {
		r := n.Range()
		unsupportedLog.Debugf("unsupported %s (%s) at %d:%d", what, n.Kind(), r.StartLine, r.StartColumn+1)
		return
	}
	unsupportedLog.Debugf("unsupported %s", what)
}

// Count returns how often the construct was seen.
func (u *Unsupported) Count(what string) int { return u.counts[what] }

// Total returns the number of markers recorded.
func (u *Unsupported) Total() int {
	total := 0
	for _, n := range u.counts {
		total += n
	}
	return total
}

// Snapshot returns a copy of the counters.
func (u *Unsupported) Snapshot() map[string]int {
	out := make(map[string]int, len(u.counts))
	for k, v := range u.counts {
		out[k] = v
	}
	return out
}

// Names returns the recorded construct names, sorted.
func (u *Unsupported) Names() []string {
	names := make([]string, 0, len(u.counts))
	for k := range u.counts {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
