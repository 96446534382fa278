package api

// createParticipantDTO is one entry of the create body's participants
// list (spec.md §6).
type createParticipantDTO struct {
	ParticipantID    string `json:"participant_id" validate:"required,uuid4"`
	ParticipantIndex int    `json:"participant_index" validate:"gte=0"`
	TotalTimeMs      int64  `json:"total_time_ms" validate:"gte=0"`
	GroupID          string `json:"group_id,omitempty" validate:"omitempty,uuid4"`
}

type createGroupDTO struct {
	GroupID     string   `json:"group_id" validate:"required,uuid4"`
	TotalTimeMs int64    `json:"total_time_ms" validate:"gte=0"`
	MemberIDs   []string `json:"member_ids" validate:"required,min=1,dive,uuid4"`
}

type timeoutActionDTO struct {
	Kind       string `json:"kind" validate:"required,oneof=skip_cycle end_session auto_action notify"`
	Outcome    string `json:"outcome,omitempty"`
	ActionName string `json:"action_name,omitempty"`
}

// createSessionRequest is the create body, per spec.md §6.
type createSessionRequest struct {
	SessionID    string                 `json:"session_id" validate:"required,uuid4"`
	SyncMode     string                 `json:"sync_mode" validate:"required,oneof=per_participant per_cycle per_group global count_up"`
	Participants []createParticipantDTO `json:"participants" validate:"required,min=1,dive"`
	Groups       []createGroupDTO       `json:"groups,omitempty" validate:"omitempty,dive"`

	TotalTimeMs    int64  `json:"total_time_ms" validate:"gte=0"`
	TimePerCycleMs *int64 `json:"time_per_cycle_ms,omitempty" validate:"omitempty,gte=0"`
	IncrementMs    *int64 `json:"increment_ms,omitempty" validate:"omitempty,gte=0"`
	MaxTimeMs      *int64 `json:"max_time_ms,omitempty" validate:"omitempty,gte=0"`

	ActiveParticipantID *string `json:"active_participant_id,omitempty" validate:"omitempty,uuid4"`
	ActiveGroupID        *string `json:"active_group_id,omitempty" validate:"omitempty,uuid4"`

	ActionOnTimeout *timeoutActionDTO `json:"action_on_timeout,omitempty" validate:"omitempty"`
}

// switchRequest is the optional body of the switch transition, pinning
// the successor.
type switchRequest struct {
	NextParticipantID *string `json:"next_participant_id,omitempty" validate:"omitempty,uuid4"`
	NextGroupID       *string `json:"next_group_id,omitempty" validate:"omitempty,uuid4"`
}

// completeRequest is the optional body of the complete transition.
type completeRequest struct {
	Outcome string `json:"outcome,omitempty"`
}
