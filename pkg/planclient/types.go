// Package planclient is the client side of the plan editor: a tracker that
// collapses user edits into a minimal list of pending operations, an HTTP
// client for the plan service, and an Editor tying the two together.
package planclient

import "github.com/hyperengineering/holocene/internal/types"

// Wire types shared with the server.
type (
	Plan            = types.Plan
	PlanPatch       = types.PlanPatch
	Operation       = types.Operation
	Action          = types.Action
	BatchResponse   = types.BatchResponse
	OperationResult = types.OperationResult
	HealthResponse  = types.HealthResponse
)

const (
	ActionCreate = types.ActionCreate
	ActionUpdate = types.ActionUpdate
	ActionDelete = types.ActionDelete
)

// DefaultPlanName is the name given to rows created by Editor.Add.
const DefaultPlanName = "Dummy"
