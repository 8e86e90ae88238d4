package metrics

import "strconv"

// Label names used by the hindsight metric families.
const (
	LabelOperation   = "operation"
	LabelBankID      = "bank_id"
	LabelSource      = "source"
	LabelBudget      = "budget"
	LabelMaxTokens   = "max_tokens"
	LabelSuccess     = "success"
	LabelProvider    = "provider"
	LabelModel       = "model"
	LabelScope       = "scope"
	LabelTokenBucket = "token_bucket"
)

// Operation is the memory operation being measured.
type Operation string

const (
	OperationRetain  Operation = "retain"
	OperationRecall  Operation = "recall"
	OperationReflect Operation = "reflect"
)

// Valid reports whether o is one of the known operations.
func (o Operation) Valid() bool {
	switch o {
	case OperationRetain, OperationRecall, OperationReflect:
		return true
	}
	return false
}

// Source says who triggered an operation. Reflect runs recall internally,
// and those recalls are recorded with SourceReflect so their latency is not
// attributed to API callers.
type Source string

const (
	SourceAPI      Source = "api"
	SourceReflect  Source = "reflect"
	SourceInternal Source = "internal"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceAPI, SourceReflect, SourceInternal:
		return true
	}
	return false
}

// Budget is the thinking budget requested for an operation. BudgetNone is
// exported as an empty label value, which Prometheus treats as absent.
type Budget string

const (
	BudgetNone Budget = ""
	BudgetLow  Budget = "low"
	BudgetMid  Budget = "mid"
	BudgetHigh Budget = "high"
)

// Valid reports whether b is one of the known budgets or BudgetNone.
func (b Budget) Valid() bool {
	switch b {
	case BudgetNone, BudgetLow, BudgetMid, BudgetHigh:
		return true
	}
	return false
}

// Scope says why an LLM was called, independent of the operation that
// caused the call.
type Scope string

const (
	ScopeMemory            Scope = "memory"
	ScopeReflect           Scope = "reflect"
	ScopeEntityObservation Scope = "entity_observation"
	ScopeAnswer            Scope = "answer"
)

// Valid reports whether s is one of the known scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopeMemory, ScopeReflect, ScopeEntityObservation, ScopeAnswer:
		return true
	}
	return false
}

// TokenDirection distinguishes prompt tokens from completion tokens.
type TokenDirection string

const (
	DirectionInput  TokenDirection = "input"
	DirectionOutput TokenDirection = "output"
)

func successValue(ok bool) string {
	return strconv.FormatBool(ok)
}
