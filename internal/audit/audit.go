package audit

import (
	"encoding/json"
	"log"
	"time"
)

// Event is one admin or system action worth keeping a trail of: funding
// approvals and rejections, balance adjustments, accrual runs.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	EventType   string    `json:"event_type"`
	ReferenceID string    `json:"reference_id,omitempty"`
	UserID      int       `json:"user_id,omitempty"`
	ActorID     int       `json:"actor_id,omitempty"`
	Amount      int64     `json:"amount,omitempty"`
	Status      string    `json:"status"`
	Details     any       `json:"details,omitempty"`
}

type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (a *Logger) LogApproval(requestID string, userID, adminID int, amount int64, status string) {
	a.log(Event{
		Timestamp:   time.Now(),
		EventType:   "FUNDING_" + status,
		ReferenceID: requestID,
		UserID:      userID,
		ActorID:     adminID,
		Amount:      amount,
		Status:      "SUCCESS",
	})
}

func (a *Logger) LogAdjustment(userID, adminID int, balanceType string, amount int64) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "BALANCE_ADJUSTMENT",
		UserID:    userID,
		ActorID:   adminID,
		Amount:    amount,
		Status:    "SUCCESS",
		Details:   map[string]string{"balance_type": balanceType},
	})
}

func (a *Logger) LogAccrualRun(subscriptions, credited int, total int64) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "ACCRUAL_RUN",
		Amount:    total,
		Status:    "SUCCESS",
		Details:   map[string]int{"subscriptions": subscriptions, "credited": credited},
	})
}

func (a *Logger) LogError(eventType, referenceID string, err error) {
	a.log(Event{
		Timestamp:   time.Now(),
		EventType:   eventType,
		ReferenceID: referenceID,
		Status:      "FAILED",
		Details:     map[string]string{"error": err.Error()},
	})
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
