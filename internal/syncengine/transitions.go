package syncengine

import (
	"fmt"
	"sort"
	"time"

	svcerrors "github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/errors"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/session"
	"github.com/google/uuid"
)

func invalidTransition(from, operation string) error {
	return svcerrors.InvalidTransition(from, operation)
}

func validationErr(msg string, fields map[string]interface{}) error {
	return svcerrors.ValidationError(msg, fields)
}

// CreateConfig is the validated shape of a create_session request, per
// spec.md §6.
type CreateConfig struct {
	SessionID    string
	SyncMode     session.SyncMode
	Participants []session.Participant
	Groups       []session.Group

	TotalTimeMs    int64
	TimePerCycleMs *int64
	IncrementMs    *int64
	MaxTimeMs      *int64

	ActiveParticipantID *string
	ActiveGroupID       *string

	TimeoutAction *session.TimeoutAction
}

// NextSelector pins the successor of a switch_cycle, by participant or
// by group (per_group mode); at most one should be set.
type NextSelector struct {
	ParticipantID *string
	GroupID       *string
}

func buildInitialSession(cfg CreateConfig, now time.Time) (*session.Session, error) {
	if _, err := uuid.Parse(cfg.SessionID); err != nil {
		return nil, validationErr("session_id must be a UUID", map[string]interface{}{"field": "session_id"})
	}
	if !cfg.SyncMode.Valid() {
		return nil, validationErr("unrecognized sync_mode", map[string]interface{}{"field": "sync_mode", "value": string(cfg.SyncMode)})
	}
	if len(cfg.Participants) == 0 {
		return nil, validationErr("at least one participant is required", map[string]interface{}{"field": "participants"})
	}

	seenIdx := make(map[int]bool, len(cfg.Participants))
	seenID := make(map[string]bool, len(cfg.Participants))
	participants := make([]session.Participant, len(cfg.Participants))
	for i, p := range cfg.Participants {
		if _, err := uuid.Parse(p.ParticipantID); err != nil {
			return nil, validationErr("participant_id must be a UUID", map[string]interface{}{"field": fmt.Sprintf("participants[%d].participant_id", i)})
		}
		if seenID[p.ParticipantID] {
			return nil, validationErr("duplicate participant_id", map[string]interface{}{"field": fmt.Sprintf("participants[%d].participant_id", i)})
		}
		if seenIdx[p.ParticipantIndex] {
			return nil, validationErr("duplicate participant_index", map[string]interface{}{"field": fmt.Sprintf("participants[%d].participant_index", i)})
		}
		seenID[p.ParticipantID] = true
		seenIdx[p.ParticipantIndex] = true

		participants[i] = p
		participants[i].TimeRemainingMs = p.TotalTimeMs
		participants[i].TimeUsedMs = 0
		participants[i].CycleCount = 0
		participants[i].HasGone = false
		participants[i].IsActive = false
		participants[i].HasExpired = false
	}
	// Keep participants ordered by participant_index so that slice order,
	// which start and rotation walk, is index order.
	sort.SliceStable(participants, func(a, b int) bool {
		return participants[a].ParticipantIndex < participants[b].ParticipantIndex
	})

	groups := make([]session.Group, len(cfg.Groups))
	for i, g := range cfg.Groups {
		groups[i] = g
		groups[i].TimeRemainingMs = g.TotalTimeMs
		groups[i].TimeUsedMs = 0
		groups[i].CycleCount = 0
		groups[i].HasExpired = false
		groups[i].IsActive = false
	}

	timeoutAction := session.DefaultTimeoutAction()
	if cfg.TimeoutAction != nil {
		if !cfg.TimeoutAction.Kind.Valid() {
			return nil, validationErr("unrecognized timeout_action.kind", map[string]interface{}{"field": "timeout_action.kind"})
		}
		timeoutAction = *cfg.TimeoutAction
	}

	// The configured start entity is carried on the pending session so
	// applyStart can honor it (spec.md §4.2: "marks participant 0 active
	// (or the configured active_participant_id / active_group_id)");
	// start_session overwrites these once it actually activates an entity.
	var initialActiveParticipant *string
	if cfg.ActiveParticipantID != nil {
		v := *cfg.ActiveParticipantID
		initialActiveParticipant = &v
	}
	var initialActiveGroup *string
	if cfg.ActiveGroupID != nil {
		v := *cfg.ActiveGroupID
		initialActiveGroup = &v
	}

	return &session.Session{
		SessionID:           cfg.SessionID,
		SyncMode:            cfg.SyncMode,
		Status:              session.StatusPending,
		Version:             1,
		Participants:        participants,
		Groups:              groups,
		ActiveParticipantID: initialActiveParticipant,
		ActiveGroupID:       initialActiveGroup,
		TotalTimeMs:         cfg.TotalTimeMs,
		TimePerCycleMs:      cfg.TimePerCycleMs,
		IncrementMs:         cfg.IncrementMs,
		MaxTimeMs:           cfg.MaxTimeMs,
		CreatedAt:           now,
		UpdatedAt:           now,
		TimeoutAction:       timeoutAction,
	}, nil
}

func applyStart(s *session.Session, now time.Time) (*session.Session, error) {
	if err := requireStatus(s, "start"); err != nil {
		return nil, err
	}

	if s.SyncMode == session.ModePerGroup {
		return applyGroupStart(s, now)
	}

	activeIdx := 0
	var activeID *string
	for i := range s.Participants {
		s.Participants[i].IsActive = false
	}
	if len(s.Participants) == 0 {
		return nil, invalidTransition(string(s.Status), "start")
	}
	if s.ActiveParticipantID != nil {
		idx, p := s.ParticipantByID(*s.ActiveParticipantID)
		if p == nil {
			return nil, validationErr("active_participant_id does not reference a known participant", nil)
		}
		activeIdx = idx
	}
	s.Participants[activeIdx].IsActive = true
	id := s.Participants[activeIdx].ParticipantID
	activeID = &id

	s.Status = session.StatusRunning
	s.SessionStartedAt = timePtr(now)
	s.CycleStartedAt = timePtr(now)
	s.ActiveParticipantID = activeID
	s.ActiveGroupID = nil
	s.UpdatedAt = now
	s.Version++
	return s, nil
}

// applyGroupStart is applyStart's per_group counterpart: the accruing
// entity is a Group rather than a Participant (spec.md §3's Group type).
func applyGroupStart(s *session.Session, now time.Time) (*session.Session, error) {
	if len(s.Groups) == 0 {
		return nil, invalidTransition(string(s.Status), "start")
	}

	activeIdx := 0
	for i := range s.Groups {
		s.Groups[i].IsActive = false
	}
	for i := range s.Participants {
		s.Participants[i].IsActive = false
	}
	if s.ActiveGroupID != nil {
		idx, g := s.GroupByID(*s.ActiveGroupID)
		if g == nil {
			return nil, validationErr("active_group_id does not reference a known group", nil)
		}
		activeIdx = idx
	}
	s.Groups[activeIdx].IsActive = true
	id := s.Groups[activeIdx].GroupID

	s.Status = session.StatusRunning
	s.SessionStartedAt = timePtr(now)
	s.CycleStartedAt = timePtr(now)
	s.ActiveGroupID = &id
	s.ActiveParticipantID = nil
	s.UpdatedAt = now
	s.Version++
	return s, nil
}

// applySwitch is the hot path described in spec.md §4.2 steps (1)-(5).
func applySwitch(s *session.Session, now time.Time, next *NextSelector) (*session.Session, error) {
	if err := requireStatus(s, "switch"); err != nil {
		return nil, err
	}

	if s.SyncMode == session.ModePerGroup {
		return applyGroupSwitch(s, now, next)
	}

	if s.ActiveParticipantID == nil {
		return nil, svcerrors.StateCorrupt(s.SessionID, fmt.Errorf("running session has no active participant"))
	}

	settleActiveLedger(s, now)

	if bounded, nextState, err := checkCountUpBound(s, now); bounded {
		return nextState, err
	}

	successorID, expired := chooseSuccessor(s, next)
	if expired {
		return applyTimeoutAction(s, now)
	}

	for i := range s.Participants {
		s.Participants[i].IsActive = s.Participants[i].ParticipantID == successorID
	}
	s.ActiveParticipantID = &successorID
	s.CycleStartedAt = timePtr(now)
	s.UpdatedAt = now
	s.Version++
	return s, nil
}

// applyGroupSwitch is applySwitch's per_group counterpart.
func applyGroupSwitch(s *session.Session, now time.Time, next *NextSelector) (*session.Session, error) {
	if s.ActiveGroupID == nil {
		return nil, svcerrors.StateCorrupt(s.SessionID, fmt.Errorf("running per_group session has no active group"))
	}

	settleActiveGroupLedger(s, now)

	successorID, expired := chooseGroupSuccessor(s, next)
	if expired {
		return applyTimeoutAction(s, now)
	}

	for i := range s.Groups {
		s.Groups[i].IsActive = s.Groups[i].GroupID == successorID
	}
	s.ActiveGroupID = &successorID
	s.CycleStartedAt = timePtr(now)
	s.UpdatedAt = now
	s.Version++
	return s, nil
}

// settleActiveLedger debits elapsed time from the active participant,
// credits time_used_ms, bumps cycle_count, and applies the configured
// increment — spec.md §4.2 steps (1)-(3).
func settleActiveLedger(s *session.Session, now time.Time) {
	idx, p := s.ParticipantByID(*s.ActiveParticipantID)
	if p == nil {
		return
	}

	elapsed := int64(0)
	if s.CycleStartedAt != nil {
		elapsed = now.Sub(*s.CycleStartedAt).Milliseconds()
		if elapsed < 0 {
			elapsed = 0
		}
	}

	if s.SyncMode != session.ModeCountUp {
		remaining := p.TimeRemainingMs - elapsed
		if remaining < 0 {
			remaining = 0
		}
		p.TimeRemainingMs = remaining
		p.TimeUsedMs += elapsed
		p.CycleCount++
		if p.TimeRemainingMs == 0 {
			p.HasExpired = true
		} else if s.IncrementMs != nil {
			p.TimeRemainingMs += *s.IncrementMs
		}
	} else {
		p.TimeUsedMs += elapsed
		p.CycleCount++
	}
	p.HasGone = true
	s.TotalUsedMs += elapsed
	s.Participants[idx] = *p
}

// chooseSuccessor implements spec.md §4.2 step (4): pinned next, else
// rotation by participant_index among non-expired participants
// (s.Participants is sorted by participant_index at creation). Returns
// (id, true) when no eligible successor exists (all expired).
func chooseSuccessor(s *session.Session, next *NextSelector) (string, bool) {
	if next != nil && next.ParticipantID != nil {
		if _, p := s.ParticipantByID(*next.ParticipantID); p != nil && !p.HasExpired {
			return *next.ParticipantID, false
		}
	}

	n := len(s.Participants)
	currentIdx := 0
	for i, p := range s.Participants {
		if p.ParticipantID == *s.ActiveParticipantID {
			currentIdx = i
			break
		}
	}

	for step := 1; step <= n; step++ {
		idx := (currentIdx + step) % n
		if s.SyncMode == session.ModeCountUp || !s.Participants[idx].HasExpired {
			return s.Participants[idx].ParticipantID, false
		}
	}
	return "", true
}

// settleActiveGroupLedger is settleActiveLedger's per_group counterpart:
// the shared budget belongs to the Group, not to any one participant.
func settleActiveGroupLedger(s *session.Session, now time.Time) {
	idx, g := s.GroupByID(*s.ActiveGroupID)
	if g == nil {
		return
	}

	elapsed := int64(0)
	if s.CycleStartedAt != nil {
		elapsed = now.Sub(*s.CycleStartedAt).Milliseconds()
		if elapsed < 0 {
			elapsed = 0
		}
	}

	remaining := g.TimeRemainingMs - elapsed
	if remaining < 0 {
		remaining = 0
	}
	g.TimeRemainingMs = remaining
	g.TimeUsedMs += elapsed
	g.CycleCount++
	if g.TimeRemainingMs == 0 {
		g.HasExpired = true
	} else if s.IncrementMs != nil {
		g.TimeRemainingMs += *s.IncrementMs
	}

	s.TotalUsedMs += elapsed
	s.Groups[idx] = *g
}

// chooseGroupSuccessor mirrors chooseSuccessor, rotating over s.Groups by
// slice order (Group carries no index field) among non-expired groups.
func chooseGroupSuccessor(s *session.Session, next *NextSelector) (string, bool) {
	if next != nil && next.GroupID != nil {
		if _, g := s.GroupByID(*next.GroupID); g != nil && !g.HasExpired {
			return *next.GroupID, false
		}
	}

	n := len(s.Groups)
	currentIdx := 0
	for i, g := range s.Groups {
		if g.GroupID == *s.ActiveGroupID {
			currentIdx = i
			break
		}
	}

	for step := 1; step <= n; step++ {
		idx := (currentIdx + step) % n
		if !s.Groups[idx].HasExpired {
			return s.Groups[idx].GroupID, false
		}
	}
	return "", true
}

// checkCountUpBound implements spec.md §4.2's count_up session bound:
// "max_time_ms, if set, bounds session duration and expiry there emits the
// session-level timeout_action." Returns bounded=false when the session is
// not count_up, has no max_time_ms configured, or has not yet reached it.
func checkCountUpBound(s *session.Session, now time.Time) (bool, *session.Session, error) {
	if s.SyncMode != session.ModeCountUp || s.MaxTimeMs == nil || s.TotalUsedMs < *s.MaxTimeMs {
		return false, nil, nil
	}
	next, err := applyTimeoutAction(s, now)
	return true, next, err
}

func applyTimeoutAction(s *session.Session, now time.Time) (*session.Session, error) {
	switch s.TimeoutAction.Kind {
	case session.TimeoutEndSession:
		return applyComplete(s, now, s.TimeoutAction.Outcome)
	case session.TimeoutSkipCycle, session.TimeoutAutoAction, session.TimeoutNotify:
		// No eligible successor and the policy does not end the session
		// outright: clear the active entity and leave the session running
		// so the request surface/push gateway can surface the policy
		// outcome. With no active entity a later switch is rejected as
		// StateCorrupt, even with an explicit `next`; pause and complete
		// are still admitted.
		for i := range s.Participants {
			s.Participants[i].IsActive = false
		}
		for i := range s.Groups {
			s.Groups[i].IsActive = false
		}
		s.ActiveParticipantID = nil
		s.ActiveGroupID = nil
		s.CycleStartedAt = nil
		s.UpdatedAt = now
		s.Version++
		return s, nil
	default:
		return applyComplete(s, now, "timeout")
	}
}

func applyPause(s *session.Session, now time.Time) (*session.Session, error) {
	if err := requireStatus(s, "pause"); err != nil {
		return nil, err
	}
	if s.SyncMode == session.ModePerGroup {
		if s.ActiveGroupID != nil {
			settleActiveGroupLedger(s, now)
		}
	} else if s.ActiveParticipantID != nil {
		settleActiveLedger(s, now)
	}
	s.Status = session.StatusPaused
	s.CycleStartedAt = nil
	s.UpdatedAt = now
	s.Version++
	return s, nil
}

func applyResume(s *session.Session, now time.Time) (*session.Session, error) {
	if err := requireStatus(s, "resume"); err != nil {
		return nil, err
	}
	s.Status = session.StatusRunning
	s.CycleStartedAt = timePtr(now)
	s.UpdatedAt = now
	s.Version++
	return s, nil
}

func applyComplete(s *session.Session, now time.Time, outcome string) (*session.Session, error) {
	if outcome == "cancel" {
		// any→cancelled is admitted from any non-terminal status
		// (spec.md §4.2 state machine), unlike a plain complete which
		// only settles a session that was actually running or paused.
		if s.Status == session.StatusCompleted || s.Status == session.StatusCancelled {
			return nil, invalidTransition(string(s.Status), "complete")
		}
	} else if err := requireStatus(s, "complete"); err != nil {
		return nil, err
	}
	if s.Status == session.StatusRunning {
		if s.SyncMode == session.ModePerGroup {
			if s.ActiveGroupID != nil {
				settleActiveGroupLedger(s, now)
			}
		} else if s.ActiveParticipantID != nil {
			settleActiveLedger(s, now)
		}
	}

	for i := range s.Participants {
		s.Participants[i].IsActive = false
	}
	for i := range s.Groups {
		s.Groups[i].IsActive = false
	}

	if outcome == "cancel" {
		s.Status = session.StatusCancelled
	} else {
		s.Status = session.StatusCompleted
	}
	s.SessionCompletedAt = timePtr(now)
	s.ActiveParticipantID = nil
	s.ActiveGroupID = nil
	s.CycleStartedAt = nil
	s.UpdatedAt = now
	s.Version++
	return s, nil
}

func timePtr(t time.Time) *time.Time { return &t }
