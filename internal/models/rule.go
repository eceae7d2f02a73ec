package models

import "time"

// Strategy is a resolution strategy a rule or caller can request.
type Strategy string

const (
	StrategyAutoReassign Strategy = "auto_reassign"
	StrategyNotifyAdmin  Strategy = "notify_admin"
	StrategySuggestSwap  Strategy = "suggest_swap"
	StrategyEnforceRule  Strategy = "enforce_rule"
)

// KnownStrategies lists every dispatchable strategy.
var KnownStrategies = []Strategy{
	StrategyAutoReassign,
	StrategyNotifyAdmin,
	StrategySuggestSwap,
	StrategyEnforceRule,
}

// SchedulingRule binds a conflict type to a resolution strategy.
// Rules are immutable during a single resolution pass; the highest-priority
// active rule for a conflict type wins, ties broken by lowest id.
type SchedulingRule struct {
	ID           uint         `gorm:"primaryKey;autoIncrement"`
	Name         string       `gorm:"size:128;uniqueIndex"`
	ConflictType ConflictType `gorm:"size:32;not null;index"`
	Params       string       `gorm:"type:json"`
	Strategy     Strategy     `gorm:"size:32;not null"`
	Priority     int          `gorm:"default:0"`
	IsActive     bool         `gorm:"default:true;index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
