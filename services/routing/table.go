package routing

import (
	"sort"
	"strings"
)

// TaskType classifies an inbound chat request for model selection
type TaskType string

const (
	TaskComplexReasoning TaskType = "complex_reasoning"
	TaskDietPlanning     TaskType = "diet_planning"
	TaskGeneralChat      TaskType = "general_chat"
	TaskImageAnalysis    TaskType = "image_analysis"

	// TaskUnknown routes straight to the hard fallback
	TaskUnknown TaskType = "unknown"
)

// ParseTaskType accepts both dashed and underscored spellings. Anything
// unrecognised becomes TaskUnknown.
func ParseTaskType(s string) TaskType {
	t := TaskType(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch t {
	case TaskComplexReasoning, TaskDietPlanning, TaskGeneralChat, TaskImageAnalysis:
		return t
	}
	return TaskUnknown
}

// Role is the job a configured provider plays in the route table
type Role string

const (
	RoleReasoning Role = "reasoning"
	RoleFastChat  Role = "fast_chat"
	RoleVision    Role = "vision"
	RoleFallback  Role = "fallback"
)

// Binding ties a role to a concrete provider. LargeModel is an optional
// bigger model on the same provider, used where a route asks for it.
type Binding struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	LargeModel string `json:"large_model,omitempty"`
}

// Bindings maps every role to its provider
type Bindings map[Role]Binding

// DefaultBindings returns the stock provider lineup
func DefaultBindings() Bindings {
	return Bindings{
		RoleReasoning: {Provider: "xai", Model: "grok-2-1212"},
		RoleFastChat:  {Provider: "groq", Model: "llama-3.1-8b-instant", LargeModel: "llama-3.3-70b-versatile"},
		RoleVision:    {Provider: "gemini", Model: "gemini-2.0-flash"},
		RoleFallback:  {Provider: "openrouter", Model: "google/gemini-2.0-flash-001"},
	}
}

// Candidate is one (provider, model) pair in a route
type Candidate struct {
	Role     Role   `json:"role"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	JSONMode bool   `json:"json_mode,omitempty"`
}

// String renders the candidate as "provider/model"
func (c Candidate) String() string {
	return c.Provider + "/" + c.Model
}

// entry is one row of the static route layout
type entry struct {
	role  Role
	large bool
	json  bool
}

// routeLayout is the priority order per task. The hard fallback is appended
// to every route when the table is built, so it is not listed here.
var routeLayout = map[TaskType][]entry{
	TaskComplexReasoning: {
		{role: RoleReasoning},
		{role: RoleFastChat, large: true},
	},
	TaskDietPlanning: {
		{role: RoleReasoning, json: true},
		{role: RoleFastChat, large: true, json: true},
	},
	TaskGeneralChat: {
		{role: RoleFastChat},
		{role: RoleVision},
	},
	TaskImageAnalysis: {
		{role: RoleVision},
	},
	TaskUnknown: {},
}

// Table is the immutable task to candidate-list mapping
type Table struct {
	routes   map[TaskType][]Candidate
	fallback Candidate
}

// NewTable resolves the route layout against bindings. Roles without a
// binding are skipped; the fallback role is always last.
func NewTable(bindings Bindings) *Table {
	fb := bindings[RoleFallback]
	fallback := Candidate{Role: RoleFallback, Provider: fb.Provider, Model: fb.Model}

	routes := make(map[TaskType][]Candidate, len(routeLayout))
	for task, entries := range routeLayout {
		list := make([]Candidate, 0, len(entries)+1)
		for _, e := range entries {
			b, ok := bindings[e.role]
			if !ok || b.Provider == "" || b.Model == "" {
				continue
			}
			model := b.Model
			if e.large && b.LargeModel != "" {
				model = b.LargeModel
			}
			list = append(list, Candidate{Role: e.role, Provider: b.Provider, Model: model, JSONMode: e.json})
		}
		fbForTask := fallback
		if task == TaskDietPlanning {
			fbForTask.JSONMode = true
		}
		list = append(list, fbForTask)
		routes[task] = dedupe(list)
	}

	return &Table{routes: routes, fallback: fallback}
}

// DefaultTable builds the table from DefaultBindings
func DefaultTable() *Table {
	return NewTable(DefaultBindings())
}

// dedupe drops a candidate when the same provider/model appears later in the
// list, so the hard fallback keeps its final position.
func dedupe(list []Candidate) []Candidate {
	out := make([]Candidate, 0, len(list))
	for i, c := range list {
		repeated := false
		for _, later := range list[i+1:] {
			if later.Provider == c.Provider && later.Model == c.Model {
				repeated = true
				break
			}
		}
		if !repeated {
			out = append(out, c)
		}
	}
	return out
}

// Candidates returns a copy of the ordered candidate list for task.
// Unknown tasks get the hard fallback alone.
func (t *Table) Candidates(task TaskType) []Candidate {
	list, ok := t.routes[task]
	if !ok {
		list = t.routes[TaskUnknown]
	}
	return append([]Candidate(nil), list...)
}

// Fallback returns the hard-fallback candidate
func (t *Table) Fallback() Candidate {
	return t.fallback
}

// Tasks returns the known task types in sorted order, excluding TaskUnknown
func (t *Table) Tasks() []TaskType {
	tasks := make([]TaskType, 0, len(t.routes))
	for task := range t.routes {
		if task != TaskUnknown {
			tasks = append(tasks, task)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i] < tasks[j] })
	return tasks
}

// Snapshot returns a copy of the whole table keyed by task
func (t *Table) Snapshot() map[TaskType][]Candidate {
	out := make(map[TaskType][]Candidate, len(t.routes))
	for task := range t.routes {
		out[task] = t.Candidates(task)
	}
	return out
}
