package harness

// Trace event types.
const (
	EventLoad  = "load"
	EventQuery = "query"
)

// TraceEvent records one executed setup or flow step.
type TraceEvent struct {
	Seq         int64            `json:"seq"`
	Type        string           `json:"type"`
	Step        string           `json:"step,omitempty"`
	View        string           `json:"view"`
	Kind        string           `json:"kind,omitempty"` // select, search or aggregate
	Hash        string           `json:"hash,omitempty"` // statement content hash
	Count       int              `json:"count"`
	HasNextPage bool             `json:"has_next_page,omitempty"`
	Items       []map[string]any `json:"items,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`
}

// NewResult creates a passing result with an empty trace.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event to the trace.
func (r *Result) AddTrace(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}

// Step returns the query event of the named flow step.
func (r *Result) Step(name string) (TraceEvent, bool) {
	for _, e := range r.Trace {
		if e.Type == EventQuery && e.Step == name {
			return e, true
		}
	}
	return TraceEvent{}, false
}

// canonical converts an event to plain values for canonical JSON.
func (e TraceEvent) canonical() map[string]any {
	out := map[string]any{
		"seq":   e.Seq,
		"type":  e.Type,
		"view":  e.View,
		"count": e.Count,
	}
	if e.Step != "" {
		out["step"] = e.Step
	}
	if e.Kind != "" {
		out["kind"] = e.Kind
	}
	if e.Hash != "" {
		out["hash"] = e.Hash
	}
	if e.HasNextPage {
		out["has_next_page"] = true
	}
	if len(e.Items) > 0 {
		items := make([]any, len(e.Items))
		for i, item := range e.Items {
			items[i] = item
		}
		out["items"] = items
	}
	if e.Error != "" {
		out["error"] = e.Error
	}
	return out
}
