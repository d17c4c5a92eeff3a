package entity

import "time"

// Business application (business centre) names a session can run under
const (
	BusinessAppClient       = "Adria TSCF Client"
	BusinessAppOrchestrator = "Adria Process Orchestrator"
	BusinessAppBank         = "Adria TSCF Bank"
)

// TransactionRecord is the persisted state of a trade-finance transaction.
// Status is the free-text workflow status.
type TransactionRecord struct {
	ID                int64     `json:"id"`
	TransactionRef    string    `json:"transaction_ref"`
	ProductCode       string    `json:"product_code"`
	EventCode         string    `json:"event_code"`
	EventLabel        string    `json:"event_label"`
	BusinessApp       string    `json:"business_app"`
	InitiatingChannel string    `json:"initiating_channel"`
	Status            string    `json:"status"`
	FormData          string    `json:"form_data"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TransactionHistory is the audit trail of status writes
type TransactionHistory struct {
	ID             int64     `json:"id"`
	TransactionRef string    `json:"transaction_ref"`
	StageName      string    `json:"stage_name"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	ActionType     string    `json:"action_type"`
	ActorID        string    `json:"actor_id"`
	ActionData     string    `json:"action_data"`
	Timestamp      time.Time `json:"timestamp"`
}

// History action types
const (
	ActionStageCompleted = "STAGE_COMPLETED"
	ActionFinalApproval  = "FINAL_APPROVAL"
	ActionRejected       = "REJECTED"
)
