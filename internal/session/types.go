// Package session defines the closed data model synchronized across
// clients: the Session aggregate, its Participants/Groups, and the
// TimeoutAction policy. Types here are pure data — the transition algebra
// lives in internal/syncengine.
package session

import "time"

// SyncMode selects which entity accrues time and how rotation behaves.
type SyncMode string

const (
	ModePerParticipant SyncMode = "per_participant"
	ModePerCycle       SyncMode = "per_cycle"
	ModePerGroup       SyncMode = "per_group"
	ModeGlobal         SyncMode = "global"
	ModeCountUp        SyncMode = "count_up"
)

// Valid reports whether m is one of the recognized sync modes.
func (m SyncMode) Valid() bool {
	switch m {
	case ModePerParticipant, ModePerCycle, ModePerGroup, ModeGlobal, ModeCountUp:
		return true
	}
	return false
}

// Status is the session lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Valid reports whether s is one of the recognized statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusPaused, StatusCompleted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// TimeoutKind selects what happens when the active entity's time reaches zero.
type TimeoutKind string

const (
	TimeoutSkipCycle  TimeoutKind = "skip_cycle"
	TimeoutEndSession TimeoutKind = "end_session"
	TimeoutAutoAction TimeoutKind = "auto_action"
	TimeoutNotify     TimeoutKind = "notify"
)

// Valid reports whether k is one of the recognized timeout kinds.
func (k TimeoutKind) Valid() bool {
	switch k {
	case TimeoutSkipCycle, TimeoutEndSession, TimeoutAutoAction, TimeoutNotify:
		return true
	}
	return false
}

// TimeoutAction is the tagged policy evaluated when the active entity's
// remaining time reaches zero and no successor can be chosen.
type TimeoutAction struct {
	Kind       TimeoutKind `json:"kind"`
	Outcome    string      `json:"outcome,omitempty"`     // used by end_session, e.g. "timeout", "forfeit"
	ActionName string      `json:"action_name,omitempty"` // used by auto_action
}

// DefaultTimeoutAction is applied when a session is created without one.
func DefaultTimeoutAction() TimeoutAction {
	return TimeoutAction{Kind: TimeoutEndSession, Outcome: "timeout"}
}

// Participant is one entity whose time budget may be debited.
type Participant struct {
	ParticipantID    string  `json:"participant_id"`
	ParticipantIndex int     `json:"participant_index"`
	TotalTimeMs      int64   `json:"total_time_ms"`
	TimeRemainingMs  int64   `json:"time_remaining_ms"`
	TimeUsedMs       int64   `json:"time_used_ms"`
	CycleCount       int     `json:"cycle_count"`
	HasGone          bool    `json:"has_gone"`
	IsActive         bool    `json:"is_active"`
	HasExpired       bool    `json:"has_expired"`
	GroupID          *string `json:"group_id,omitempty"`
}

// Group is a per_group-mode collection of participants sharing a budget.
type Group struct {
	GroupID         string   `json:"group_id"`
	TotalTimeMs     int64    `json:"total_time_ms"`
	TimeRemainingMs int64    `json:"time_remaining_ms"`
	TimeUsedMs      int64    `json:"time_used_ms"`
	CycleCount      int      `json:"cycle_count"`
	HasExpired      bool     `json:"has_expired"`
	IsActive        bool     `json:"is_active"`
	MemberIDs       []string `json:"member_ids"`
}

// Session is the single durable-in-hot-store entity: the unit of
// synchronization.
type Session struct {
	SessionID   string   `json:"session_id"`
	SyncMode    SyncMode `json:"sync_mode"`
	Status      Status   `json:"status"`
	Version     int64    `json:"version"`
	Participants []Participant `json:"participants"`
	Groups       []Group       `json:"groups,omitempty"`

	ActiveParticipantID *string `json:"active_participant_id,omitempty"`
	ActiveGroupID        *string `json:"active_group_id,omitempty"`

	TotalTimeMs     int64  `json:"total_time_ms"`
	TimePerCycleMs  *int64 `json:"time_per_cycle_ms,omitempty"`
	IncrementMs     *int64 `json:"increment_ms,omitempty"`
	MaxTimeMs       *int64 `json:"max_time_ms,omitempty"`
	TotalUsedMs     int64  `json:"total_used_ms"`

	CycleStartedAt *time.Time `json:"cycle_started_at,omitempty"`

	SessionStartedAt   *time.Time `json:"session_started_at,omitempty"`
	SessionCompletedAt *time.Time `json:"session_completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TimeoutAction TimeoutAction `json:"timeout_action"`
}

// Clone returns a deep copy so callers may mutate it without aliasing the
// original (the engine always operates on a fresh clone of the stored
// state; see internal/syncengine).
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Participants = make([]Participant, len(s.Participants))
	copy(out.Participants, s.Participants)
	if len(s.Groups) > 0 {
		out.Groups = make([]Group, len(s.Groups))
		for i, g := range s.Groups {
			gc := g
			gc.MemberIDs = append([]string(nil), g.MemberIDs...)
			out.Groups[i] = gc
		}
	}
	if s.ActiveParticipantID != nil {
		v := *s.ActiveParticipantID
		out.ActiveParticipantID = &v
	}
	if s.ActiveGroupID != nil {
		v := *s.ActiveGroupID
		out.ActiveGroupID = &v
	}
	if s.TimePerCycleMs != nil {
		v := *s.TimePerCycleMs
		out.TimePerCycleMs = &v
	}
	if s.IncrementMs != nil {
		v := *s.IncrementMs
		out.IncrementMs = &v
	}
	if s.MaxTimeMs != nil {
		v := *s.MaxTimeMs
		out.MaxTimeMs = &v
	}
	if s.CycleStartedAt != nil {
		v := *s.CycleStartedAt
		out.CycleStartedAt = &v
	}
	if s.SessionStartedAt != nil {
		v := *s.SessionStartedAt
		out.SessionStartedAt = &v
	}
	if s.SessionCompletedAt != nil {
		v := *s.SessionCompletedAt
		out.SessionCompletedAt = &v
	}
	return &out
}

// ParticipantByID finds a participant by ID, returning its index and a
// pointer into s.Participants, or -1/nil when absent.
func (s *Session) ParticipantByID(id string) (int, *Participant) {
	for i := range s.Participants {
		if s.Participants[i].ParticipantID == id {
			return i, &s.Participants[i]
		}
	}
	return -1, nil
}

// GroupByID finds a group by ID, returning its index and a pointer into
// s.Groups, or -1/nil when absent.
func (s *Session) GroupByID(id string) (int, *Group) {
	for i := range s.Groups {
		if s.Groups[i].GroupID == id {
			return i, &s.Groups[i]
		}
	}
	return -1, nil
}
