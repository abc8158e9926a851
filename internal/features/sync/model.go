package sync

// Direction of a sync pass
type Direction string

const (
	DirectionPull          Direction = "pull"
	DirectionPush          Direction = "push"
	DirectionBidirectional Direction = "bidirectional"
)

// Operation carried by a single-entity sync request
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// RecordError is one failed record inside an otherwise-continuing batch
type RecordError struct {
	EntityID string `json:"entity_id"`
	Message  string `json:"message"`
}

// SyncResult summarizes one executor pass
type SyncResult struct {
	Provider         string        `json:"provider"`
	EntityType       string        `json:"entity_type,omitempty"`
	Direction        Direction     `json:"direction,omitempty"`
	RecordsProcessed int           `json:"records_processed"`
	Errors           []RecordError `json:"errors"`
}

func (r *SyncResult) merge(other *SyncResult) {
	if other == nil {
		return
	}
	r.RecordsProcessed += other.RecordsProcessed
	r.Errors = append(r.Errors, other.Errors...)
}
