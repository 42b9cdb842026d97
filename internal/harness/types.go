package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq       int64  `json:"seq"` // 1-based step number
	Op        string `json:"op"`
	Type      string `json:"type,omitempty"`
	Predicate string `json:"predicate,omitempty"`

	// Result is the step outcome in snapshot form: the object for create
	// and upsert, the matching objects for query, and {"deleted": n} or
	// {"updated": n} for delete and set.
	Result any `json:"result,omitempty"`

	// Error is the error kind of a failed step.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step behaved as expected and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final object count per type.
	State map[string]int `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]int),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStepTrace appends the event of a completed step.
func (r *Result) AddStepTrace(step Step, result any, errKind string) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:       int64(len(r.Trace) + 1),
		Op:        step.Op,
		Type:      step.Type,
		Predicate: step.Predicate,
		Result:    result,
		Error:     errKind,
	})
}
