package domain

import "time"

// WorkflowStatus represents the lifecycle states of a processing workflow.
type WorkflowStatus string

const (
	WorkflowStatusPending    WorkflowStatus = "pending"
	WorkflowStatusProcessing WorkflowStatus = "processing"
	WorkflowStatusCompleted  WorkflowStatus = "completed"
	WorkflowStatusFailed     WorkflowStatus = "failed"
)

// IsTerminal returns true if the status represents a final state that
// will not change.
func (s WorkflowStatus) IsTerminal() bool {
	switch s {
	case WorkflowStatusCompleted, WorkflowStatusFailed:
		return true
	default:
		return false
	}
}

// ResultPayload is the terminal-success result embedded in a workflow
// record. Immutable once written.
type ResultPayload struct {
	WorkflowID      string      `json:"workflow_id"`
	Papers          []PaperView `json:"papers"`
	PapersProcessed int         `json:"papers_processed"`
	Classifications [][]string  `json:"classifications"`
	Summaries       []Summary   `json:"summaries"`
	Synthesis       *Synthesis  `json:"synthesis,omitempty"`
	AudioFiles      []string    `json:"audio_files"`
	Status          string      `json:"status"`
}

// WorkflowRecord tracks one in-flight or finished pipeline job.
// Records are created at submission, mutated by the coordinator at each
// milestone, and never mutated again after a terminal status is reached.
type WorkflowRecord struct {
	// ID matches the job identifier returned at submission.
	ID string `json:"id"`

	// Status is the current lifecycle state.
	Status WorkflowStatus `json:"status"`

	// Progress is 0.0–100.0, monotonically non-decreasing within a run
	// under normal operation. Reset to 0 on failure.
	Progress float64 `json:"progress"`

	// Message is the latest human-readable status line.
	Message string `json:"message"`

	// CreatedAt is set once at creation.
	CreatedAt time.Time `json:"created_at"`

	// Result is present only after terminal success.
	Result *ResultPayload `json:"results,omitempty"`

	// Error carries the failure description for terminal failures.
	Error string `json:"error,omitempty"`
}

// Clone returns a deep copy of the record so readers never observe a
// partially applied update.
func (r *WorkflowRecord) Clone() *WorkflowRecord {
	cp := *r
	if r.Result != nil {
		res := *r.Result
		res.Papers = append([]PaperView(nil), r.Result.Papers...)
		res.Classifications = make([][]string, len(r.Result.Classifications))
		for i, c := range r.Result.Classifications {
			res.Classifications[i] = append([]string(nil), c...)
		}
		res.Summaries = append([]Summary(nil), r.Result.Summaries...)
		res.AudioFiles = append([]string(nil), r.Result.AudioFiles...)
		if r.Result.Synthesis != nil {
			syn := *r.Result.Synthesis
			if r.Result.Synthesis.TopicAnalysis != nil {
				ta := *r.Result.Synthesis.TopicAnalysis
				ta.Distribution = copyIntMap(r.Result.Synthesis.TopicAnalysis.Distribution)
				ta.Cooccurrence = copyIntMap(r.Result.Synthesis.TopicAnalysis.Cooccurrence)
				ta.MostCommon = append([]TopicCount(nil), r.Result.Synthesis.TopicAnalysis.MostCommon...)
				syn.TopicAnalysis = &ta
			}
			res.Synthesis = &syn
		}
		cp.Result = &res
	}
	return &cp
}

func copyIntMap(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// WorkflowUpdate describes a partial merge into an existing record.
// Nil fields are left untouched.
type WorkflowUpdate struct {
	Status   *WorkflowStatus
	Progress *float64
	Message  *string
	Result   *ResultPayload
	Error    *string
}

// StatusOf returns a pointer to s, for building WorkflowUpdate values.
func StatusOf(s WorkflowStatus) *WorkflowStatus { return &s }

// ProgressOf returns a pointer to p, for building WorkflowUpdate values.
func ProgressOf(p float64) *float64 { return &p }

// MessageOf returns a pointer to m, for building WorkflowUpdate values.
func MessageOf(m string) *string { return &m }
