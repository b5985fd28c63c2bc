package domain

import "fmt"

// AgentError is the unified error type for the engine.
// Each error has a numeric code and human-readable message.
type AgentError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	return fmt.Sprintf("agent error %d: %s", e.Code, e.Message)
}

// NewAgentError creates a new AgentError.
func NewAgentError(code int, msg string) *AgentError {
	return &AgentError{Code: code, Message: msg}
}

// WrapAgentError creates an AgentError that includes a cause.
func WrapAgentError(code int, msg string, cause error) *AgentError {
	return &AgentError{Code: code, Message: fmt.Sprintf("%s: %v", msg, cause)}
}

// ---- Gate / Evaluation errors (-32010 to -32039) ----

var (
	ErrEvaluationMissing = &AgentError{Code: -32011, Message: "evaluation not found"}
	ErrDailyCapReached   = &AgentError{Code: -32012, Message: "daily action cap reached"}
)

// ---- Strategy errors (-32040 to -32069) ----

var (
	ErrStrategyMissing  = &AgentError{Code: -32040, Message: "no strategy persisted"}
	ErrVersionConflict  = &AgentError{Code: -32041, Message: "strategy version conflict: state was modified concurrently"}
	ErrParamNotMutable  = &AgentError{Code: -32043, Message: "parameter is not on the mutable allow-list"}
	ErrParamOutOfDomain = &AgentError{Code: -32044, Message: "parameter value outside its valid domain"}
)

// ---- Ledger errors (-32070 to -32099) ----

var (
	ErrLedgerUnavailable = &AgentError{Code: -32070, Message: "ledger RPC unavailable"}
	ErrLedgerTimeout     = &AgentError{Code: -32071, Message: "ledger confirmation timed out"}
	ErrPayloadTooLarge   = &AgentError{Code: -32072, Message: "memo payload exceeds size ceiling"}
	ErrPayloadMalformed  = &AgentError{Code: -32073, Message: "memo payload does not match agent format"}
	ErrTxRefAlreadySet   = &AgentError{Code: -32074, Message: "action already has a ledger reference"}
)

// ---- Collaborator errors (-32100 to -32129) ----

var (
	ErrRateLimited         = &AgentError{Code: -32100, Message: "rate limit signal from execution target"}
	ErrEcosystemFetch      = &AgentError{Code: -32101, Message: "ecosystem data fetch failed"}
	ErrReasoningFailed     = &AgentError{Code: -32102, Message: "reasoning provider call failed"}
	ErrReasoningMalformed  = &AgentError{Code: -32103, Message: "reasoning response could not be parsed"}
	ErrProviderUnavailable = &AgentError{Code: -32104, Message: "reasoning provider unavailable"}
)

// ---- Scheduler errors (-32130 to -32149) ----

var (
	ErrLoopNotFound = &AgentError{Code: -32130, Message: "no loop registered with that name"}
	ErrLoopBusy     = &AgentError{Code: -32131, Message: "loop iteration already in progress"}
	ErrStopped      = &AgentError{Code: -32132, Message: "scheduler is stopped"}
)

// ---- Store / Config errors (-32150 to -32179) ----

var (
	ErrStoreInit       = &AgentError{Code: -32150, Message: "failed to initialize store"}
	ErrActionNotFound  = &AgentError{Code: -32151, Message: "action record not found"}
	ErrDuplicateAction = &AgentError{Code: -32152, Message: "action already recorded for subject"}
	ErrOutcomeFinal    = &AgentError{Code: -32153, Message: "action outcome already finalized"}
	ErrConfigInvalid   = &AgentError{Code: -32154, Message: "invalid configuration"}
)
