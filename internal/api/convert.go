package api

import (
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/session"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/syncengine"
)

func toCreateConfig(req createSessionRequest) syncengine.CreateConfig {
	participants := make([]session.Participant, len(req.Participants))
	for i, p := range req.Participants {
		pp := session.Participant{
			ParticipantID:    p.ParticipantID,
			ParticipantIndex: p.ParticipantIndex,
			TotalTimeMs:      p.TotalTimeMs,
		}
		if p.GroupID != "" {
			gid := p.GroupID
			pp.GroupID = &gid
		}
		participants[i] = pp
	}

	groups := make([]session.Group, len(req.Groups))
	for i, g := range req.Groups {
		groups[i] = session.Group{
			GroupID:     g.GroupID,
			TotalTimeMs: g.TotalTimeMs,
			MemberIDs:   g.MemberIDs,
		}
	}

	var timeoutAction *session.TimeoutAction
	if req.ActionOnTimeout != nil {
		timeoutAction = &session.TimeoutAction{
			Kind:       session.TimeoutKind(req.ActionOnTimeout.Kind),
			Outcome:    req.ActionOnTimeout.Outcome,
			ActionName: req.ActionOnTimeout.ActionName,
		}
	}

	return syncengine.CreateConfig{
		SessionID:            req.SessionID,
		SyncMode:             session.SyncMode(req.SyncMode),
		Participants:         participants,
		Groups:               groups,
		TotalTimeMs:          req.TotalTimeMs,
		TimePerCycleMs:       req.TimePerCycleMs,
		IncrementMs:          req.IncrementMs,
		MaxTimeMs:            req.MaxTimeMs,
		ActiveParticipantID:  req.ActiveParticipantID,
		ActiveGroupID:        req.ActiveGroupID,
		TimeoutAction:        timeoutAction,
	}
}

func toNextSelector(req switchRequest) *syncengine.NextSelector {
	if req.NextParticipantID == nil && req.NextGroupID == nil {
		return nil
	}
	return &syncengine.NextSelector{
		ParticipantID: req.NextParticipantID,
		GroupID:       req.NextGroupID,
	}
}
