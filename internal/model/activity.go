package model

import "time"

// ActorRole identifies who performed or was affected by an activity.
type ActorRole string

const (
	RoleCustomer ActorRole = "customer"
	RoleStaff    ActorRole = "staff"
	RoleSystem   ActorRole = "system"
)

// Activity is a free-form audit fact recorded after a successful commit.
type Activity struct {
	ActorID     string    `json:"actor_id"`
	ActorRole   ActorRole `json:"actor_role"`
	TargetID    string    `json:"target_id"`
	TargetRole  ActorRole `json:"target_role"`
	Description string    `json:"description"`
	PointsDelta int64     `json:"points_delta"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// ActivityLog is a persisted activity row.
type ActivityLog struct {
	ID int64 `json:"id"`
	Activity
}
