// Package protocol defines the JSON message set exchanged with the
// notebook front-end (spec.md §6), plus the persisted-session snapshot
// format. Messages carry json tags only: the wire format is plain
// encoding/json, the way the teacher's graph.Emitter keeps its own
// single-purpose shape rather than reaching for a generic RPC framework.
package protocol

import "github.com/viant/dflow/dataflow"

// CellID is the dataflow package's cell identifier.
type CellID = dataflow.CellID

// Establish is the handshake message: front-end -> engine, carrying the
// session's initial Settings.
type Establish struct {
	Settings Settings `json:"settings"`
}

// EstablishAck is the engine's reply acknowledging the channel.
type EstablishAck struct {
	Acknowledged bool `json:"acknowledged"`
}

// ChangeActiveCell notifies the engine which cell the user is currently
// editing, for in-order flow eligibility.
type ChangeActiveCell struct {
	ActiveCellID       CellID `json:"active_cell_id"`
	ActiveCellOrderIdx int    `json:"active_cell_order_idx"`
}

// CellMetadata is one entry of ComputeExecSchedule's cell_metadata_by_id
// map: the front-end's current view of a cell.
type CellMetadata struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

// ComputeExecSchedule asks the engine to classify every cell named in
// CellMetadataByID and, if reactively executing, compute the next schedule
// entry.
type ComputeExecSchedule struct {
	CellMetadataByID      map[CellID]CellMetadata `json:"cell_metadata_by_id"`
	IsReactivelyExecuting bool                    `json:"is_reactively_executing"`
}

// ComputeExecScheduleResult is the engine's reply: the full classification
// plus the derived cell graph and current settings echo.
type ComputeExecScheduleResult struct {
	WaitingCells          []CellID            `json:"waiting_cells"`
	ReadyCells            []CellID            `json:"ready_cells"`
	NewReadyCells         []CellID            `json:"new_ready_cells"`
	ForcedReactiveCells   []CellID            `json:"forced_reactive_cells"`
	WaiterLinks           map[CellID][]CellID `json:"waiter_links"`
	ReadyMakerLinks       map[CellID][]CellID `json:"ready_maker_links"`
	CellParents           map[CellID][]CellID `json:"cell_parents"`
	CellChildren          map[CellID][]CellID `json:"cell_children"`
	ExecMode              string              `json:"exec_mode"`
	FlowOrder             string              `json:"flow_order"`
	ExecSchedule          string              `json:"exec_schedule"`
	Highlights            string              `json:"highlights"`
	LastExecutedCellID    CellID              `json:"last_executed_cell_id"`
	LastExecutionWasError bool                `json:"last_execution_was_error"`
	Settings              Settings            `json:"settings"`
}

// ReactivityCleanup clears reactive-session-local scheduler state
// (broken-cycle memory, pending closures). It carries no payload.
type ReactivityCleanup struct{}

// NotifyContentChanged updates a cell's cached source text without
// triggering reclassification.
type NotifyContentChanged struct {
	CellID  CellID `json:"cell_id"`
	Content string `json:"content"`
}
