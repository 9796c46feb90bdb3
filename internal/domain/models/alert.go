package models

import "time"

// AlertRule is a user-configured trigger condition. Threshold fields are
// pointers: nil means the rule does not care about that dimension.
// MinConfidence is on the 0-100 scale, matching the persisted settings.
type AlertRule struct {
	ID                int64    `json:"id"`
	Name              string   `json:"name"`
	IsActive          bool     `json:"isActive"`
	MinConfidence     *float64 `json:"minConfidence,omitempty"`
	MinStrength       *float64 `json:"minStrength,omitempty"`
	RequiredAgreement *int     `json:"requiredTimeframeAgreement,omitempty"`
	RequiredAction    *Action  `json:"requiredAction,omitempty"`
	Priority          string   `json:"priority"`
}

// Notification is the event emitted when a rule fires.
type Notification struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Type       string    `json:"type"`
	Priority   string    `json:"priority"`
	Symbol     string    `json:"symbol"`
	Action     Action    `json:"action"`
	Confidence float64   `json:"confidence"`
	Strength   float64   `json:"strength"`
	Timeframe  string    `json:"timeframe"`
	RuleID     int64     `json:"ruleId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SignalUpdate is the fire-and-forget broadcast event sent after each
// orchestrated run.
type SignalUpdate struct {
	Symbol            string        `json:"symbol"`
	Timeframe         string        `json:"timeframe"`
	Signal            *SignalResult `json:"signal"`
	NotificationCount int           `json:"notificationCount"`
	Timestamp         time.Time     `json:"timestamp"`
}
