package telemetry

import "sync"

// Report is a single call recorded by Recorder.
type Report struct {
	Kind   string
	ID     string
	Params []any
}

const (
	KindBroken  = "broken"
	KindWarning = "warning"
	KindDebug   = "debug"
	KindCount   = "count"
)

// Recorder is an API that keeps every report in memory, it is meant for tests that need
// to assert something was (or was not) reported.
type Recorder struct {
	mutex   sync.Mutex
	reports []Report
}

func (r *Recorder) record(kind, id string, params []any) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.reports = append(r.reports, Report{Kind: kind, ID: id, Params: params})
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.record(KindBroken, id, params)
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.record(KindWarning, id, params)
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.record(KindDebug, msg, params)
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.record(KindCount, id, []any{count})
}

// Reports returns a copy of everything recorded so far, optionally filtered by kind.
func (r *Recorder) Reports(kind ...string) []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var out []Report
	for _, rep := range r.reports {
		if len(kind) > 0 && rep.Kind != kind[0] {
			continue
		}
		out = append(out, rep)
	}
	return out
}
