package protocol

// Settings holds the seven recognized session options from spec.md §6,
// tagged for both the wire protocol (json) and a YAML-configured default
// (yaml), the same dual-tag style `linage.*` types use throughout the
// teacher's codebase.
type Settings struct {
	// ExecMode is "reactive" or "lazy": whether to auto-schedule downstream
	// cells after each run.
	ExecMode string `yaml:"execMode" json:"exec_mode"`

	// FlowOrder is "in_order" or "any_order": which cells are eligible for
	// scheduling.
	FlowOrder string `yaml:"flowOrder" json:"flow_order"`

	// ExecSchedule is "liveness_based", "dag_based", or "hybrid".
	ExecSchedule string `yaml:"execSchedule" json:"exec_schedule"`

	// ReactivityMode is "batch" or "incremental": schedule the whole
	// reactive closure at once, or one cell at a time.
	ReactivityMode string `yaml:"reactivityMode" json:"reactivity_mode"`

	// Highlights is "all", "none", "executed", or "reactive": which cells
	// carry UI hints.
	Highlights string `yaml:"highlights" json:"highlights"`

	// PullReactiveUpdates extends the reactive closure through
	// stale-parents.
	PullReactiveUpdates bool `yaml:"pullReactiveUpdates" json:"pull_reactive_updates"`

	// PushReactiveUpdatesToCousins extends the closure to siblings sharing
	// a waiting parent.
	PushReactiveUpdatesToCousins bool `yaml:"pushReactiveUpdatesToCousins" json:"push_reactive_updates_to_cousins"`
}

// DefaultSettings returns the engine's out-of-the-box configuration:
// reactive execution, in-order flow, the hybrid schedule, incremental
// reactivity, and highlights on every cell touched by the last run.
func DefaultSettings() Settings {
	return Settings{
		ExecMode:                     "reactive",
		FlowOrder:                    "in_order",
		ExecSchedule:                 "hybrid",
		ReactivityMode:               "incremental",
		Highlights:                   "reactive",
		PullReactiveUpdates:          true,
		PushReactiveUpdatesToCousins: false,
	}
}
