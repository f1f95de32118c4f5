package model

import "time"

// NotificationType is the numeric category code carried by schedules and
// notifications.
type NotificationType int

const (
	NotifTypeProposalCreated NotificationType = iota + 1
	NotifTypeMealFinalized
	NotifTypeMemberJoined
	NotifTypeReminder
	NotifTypeCookAssigned
	NotifTypeFamilyWelcome
)

var notifTypeNames = map[NotificationType]string{
	NotifTypeProposalCreated: "proposal_created",
	NotifTypeMealFinalized:   "meal_finalized",
	NotifTypeMemberJoined:    "member_joined",
	NotifTypeReminder:        "reminder",
	NotifTypeCookAssigned:    "cook_assigned",
	NotifTypeFamilyWelcome:   "family_welcome",
}

// Valid reports whether t is one of the known categories.
func (t NotificationType) Valid() bool {
	_, ok := notifTypeNames[t]
	return ok
}

func (t NotificationType) String() string {
	if name, ok := notifTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ScheduleStatus is the lifecycle state of a ScheduledNotification.
// Transitions only ever leave PENDING.
type ScheduleStatus string

const (
	ScheduleStatusPending  ScheduleStatus = "PENDING"
	ScheduleStatusDone     ScheduleStatus = "DONE"
	ScheduleStatusCanceled ScheduleStatus = "CANCELED"
)

type ScheduledNotification struct {
	ID        int64            `json:"id"`
	FamilyID  int64            `json:"family_id"`
	Type      NotificationType `json:"type"`
	RefID     string           `json:"ref_id"`
	DueAt     time.Time        `json:"due_at"`
	Status    ScheduleStatus   `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// Notification is a per-user delivery record produced by fan-out.
type Notification struct {
	ID        int64            `json:"id"`
	FamilyID  int64            `json:"family_id"`
	UserID    int64            `json:"user_id"`
	Type      NotificationType `json:"type"`
	RefID     string           `json:"ref_id"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
	ReadAt    *time.Time       `json:"read_at"`
}

// NotificationPurge selects notifications for deletion. A row matches when it
// is read and older than ReadBefore, or older than AnyBefore regardless of
// read state.
type NotificationPurge struct {
	ReadBefore time.Time
	AnyBefore  time.Time
}

// SchedulePurge selects DONE schedules created before DoneBefore and CANCELED
// schedules created before CanceledBefore. PENDING rows never match.
type SchedulePurge struct {
	DoneBefore     time.Time
	CanceledBefore time.Time
}
