// Package events carries budget scope changes between processes so every
// API instance can drop cached views of a scope that changed elsewhere.
package events

import (
	"encoding/json"
	"time"
)

// Reason says what happened to a scope.
type Reason string

const (
	ReasonBudgetCreated          Reason = "budget_created"
	ReasonPeriodClosed           Reason = "period_closed"
	ReasonRolloverHealed         Reason = "rollover_healed"
	ReasonCategoryBudgetsUpdated Reason = "category_budgets_updated"
)

// ScopeEvent announces that the budgets or ledger of a scope changed.
type ScopeEvent struct {
	ScopeKey   string    `json:"scope_key"`
	Reason     Reason    `json:"reason"`
	Period     string    `json:"period,omitempty"`
	BudgetID   string    `json:"budget_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewScopeEvent stamps a new event with the current time.
func NewScopeEvent(scopeKey string, reason Reason, period, budgetID string) ScopeEvent {
	return ScopeEvent{
		ScopeKey:   scopeKey,
		Reason:     reason,
		Period:     period,
		BudgetID:   budgetID,
		OccurredAt: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e ScopeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ScopeEventFromJSON decodes an event published by another process.
func ScopeEventFromJSON(data []byte) (ScopeEvent, error) {
	var ev ScopeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ScopeEvent{}, err
	}
	return ev, nil
}
