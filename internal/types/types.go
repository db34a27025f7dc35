package types

import (
	"encoding/json"
)

// Action identifies the kind of a batch operation.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Actions lists every valid Action in wire order.
var Actions = []string{string(ActionCreate), string(ActionUpdate), string(ActionDelete)}

// Plan is a physical item used for packing and logistics planning.
type Plan struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Length    float64 `json:"length"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Weight    float64 `json:"weight"`
	Quantity  int     `json:"quantity"`
	Stackable bool    `json:"stackable"`
	Tiltable  bool    `json:"tiltable"`
}

// PlanPatch is a partial Plan. Nil fields are left untouched when applied.
type PlanPatch struct {
	Name      *string  `json:"name,omitempty"`
	Length    *float64 `json:"length,omitempty"`
	Width     *float64 `json:"width,omitempty"`
	Height    *float64 `json:"height,omitempty"`
	Weight    *float64 `json:"weight,omitempty"`
	Quantity  *int     `json:"quantity,omitempty"`
	Stackable *bool    `json:"stackable,omitempty"`
	Tiltable  *bool    `json:"tiltable,omitempty"`
}

// PatchFrom returns a patch carrying every field of p. The id is never copied.
func PatchFrom(p Plan) *PlanPatch {
	return &PlanPatch{
		Name:      &p.Name,
		Length:    &p.Length,
		Width:     &p.Width,
		Height:    &p.Height,
		Weight:    &p.Weight,
		Quantity:  &p.Quantity,
		Stackable: &p.Stackable,
		Tiltable:  &p.Tiltable,
	}
}

// Apply returns a copy of p with every non-nil field of the patch set.
func (pp *PlanPatch) Apply(p Plan) Plan {
	if pp == nil {
		return p
	}
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Length != nil {
		p.Length = *pp.Length
	}
	if pp.Width != nil {
		p.Width = *pp.Width
	}
	if pp.Height != nil {
		p.Height = *pp.Height
	}
	if pp.Weight != nil {
		p.Weight = *pp.Weight
	}
	if pp.Quantity != nil {
		p.Quantity = *pp.Quantity
	}
	if pp.Stackable != nil {
		p.Stackable = *pp.Stackable
	}
	if pp.Tiltable != nil {
		p.Tiltable = *pp.Tiltable
	}
	return p
}

// Merge overlays the non-nil fields of other onto a copy of pp.
func (pp *PlanPatch) Merge(other *PlanPatch) *PlanPatch {
	out := &PlanPatch{}
	if pp != nil {
		*out = *pp
	}
	if other == nil {
		return out
	}
	if other.Name != nil {
		out.Name = other.Name
	}
	if other.Length != nil {
		out.Length = other.Length
	}
	if other.Width != nil {
		out.Width = other.Width
	}
	if other.Height != nil {
		out.Height = other.Height
	}
	if other.Weight != nil {
		out.Weight = other.Weight
	}
	if other.Quantity != nil {
		out.Quantity = other.Quantity
	}
	if other.Stackable != nil {
		out.Stackable = other.Stackable
	}
	if other.Tiltable != nil {
		out.Tiltable = other.Tiltable
	}
	return out
}

// Clone returns a deep copy of the patch.
func (pp *PlanPatch) Clone() *PlanPatch {
	if pp == nil {
		return nil
	}
	return &PlanPatch{
		Name:      clonePtr(pp.Name),
		Length:    clonePtr(pp.Length),
		Width:     clonePtr(pp.Width),
		Height:    clonePtr(pp.Height),
		Weight:    clonePtr(pp.Weight),
		Quantity:  clonePtr(pp.Quantity),
		Stackable: clonePtr(pp.Stackable),
		Tiltable:  clonePtr(pp.Tiltable),
	}
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// IsEmpty reports whether the patch sets no fields.
func (pp *PlanPatch) IsEmpty() bool {
	return pp == nil || *pp == PlanPatch{}
}

// Operation is a single pending intent submitted in a batch.
type Operation struct {
	Action Action     `json:"action"`
	ID     string     `json:"id,omitempty"`
	Data   *PlanPatch `json:"data,omitempty"`
}

// BatchRequest is the body of POST /api/v1/plan/batch.
type BatchRequest struct {
	Operations []Operation `json:"operations"`
}

// ListResponse is the body of GET /api/v1/plan.
type ListResponse struct {
	Data []Plan `json:"data"`
}

// MarshalJSON ensures nil slices in ListResponse marshal as [] not null.
func (l ListResponse) MarshalJSON() ([]byte, error) {
	if l.Data == nil {
		l.Data = []Plan{}
	}
	type Alias ListResponse
	return json.Marshal(Alias(l))
}

// ResultStatus is the outcome of a single applied operation.
type ResultStatus string

const (
	StatusApplied  ResultStatus = "applied"
	StatusNoop     ResultStatus = "noop"
	StatusRejected ResultStatus = "rejected"
)

// OperationResult reports what happened to one operation of a batch.
type OperationResult struct {
	Index  int          `json:"index"`
	Action Action       `json:"action"`
	ID     string       `json:"id,omitempty"`
	Status ResultStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// BatchResponse is the body returned by a successful batch request.
type BatchResponse struct {
	Applied  int               `json:"applied"`
	Noop     int               `json:"noop"`
	Rejected int               `json:"rejected"`
	Results  []OperationResult `json:"results"`
}

// MarshalJSON ensures nil slices in BatchResponse marshal as [] not null.
func (b BatchResponse) MarshalJSON() ([]byte, error) {
	if b.Results == nil {
		b.Results = []OperationResult{}
	}
	type Alias BatchResponse
	return json.Marshal(Alias(b))
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	PlanCount int64  `json:"plan_count"`
}

// StoreStats holds aggregate store statistics.
type StoreStats struct {
	PlanCount int64 `json:"plan_count"`
}
