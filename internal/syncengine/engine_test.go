package syncengine

import (
	"context"
	"sync"
	"testing"
	"time"

	svcerrors "github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/errors"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/session"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-process stand-in for internal/store.RedisStore,
// grounded on the same Get/Create/Update/Delete contract.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]*session.Session)}
}

func (f *fakeStore) Get(_ context.Context, id string) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (f *fakeStore) Create(_ context.Context, s *session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.sessions[s.SessionID]; exists {
		return svcerrors.ValidationError("session already exists", nil)
	}
	f.sessions[s.SessionID] = s.Clone()
	return nil
}

func (f *fakeStore) Update(_ context.Context, s *session.Session, expectedVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.sessions[s.SessionID]
	if !ok {
		return svcerrors.SessionNotFound(s.SessionID)
	}
	if current.Version != expectedVersion {
		return svcerrors.Conflict(expectedVersion, current.Version)
	}
	f.sessions[s.SessionID] = s.Clone()
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

func newTestConfig(n int) CreateConfig {
	participants := make([]session.Participant, n)
	for i := 0; i < n; i++ {
		participants[i] = session.Participant{
			ParticipantID:    uuid.New().String(),
			ParticipantIndex: i,
			TotalTimeMs:      300000,
		}
	}
	return CreateConfig{
		SessionID:    uuid.New().String(),
		SyncMode:     session.ModePerParticipant,
		Participants: participants,
		TotalTimeMs:  300000,
	}
}

func TestCreateStartSwitchComplete(t *testing.T) {
	store := newFakeStore()
	clock := &fixedClock{t: time.Now()}
	engine := New(store, 3).WithClock(clock)
	ctx := context.Background()

	cfg := newTestConfig(2)
	s, err := engine.CreateSession(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, session.StatusPending, s.Status)
	assert.Equal(t, int64(1), s.Version)

	s, err = engine.StartSession(ctx, cfg.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusRunning, s.Status)
	assert.Equal(t, cfg.Participants[0].ParticipantID, *s.ActiveParticipantID)

	clock.t = clock.t.Add(2 * time.Second)
	s, err = engine.SwitchCycle(ctx, cfg.SessionID, nil)
	require.NoError(t, err)
	_, p0 := s.ParticipantByID(cfg.Participants[0].ParticipantID)
	assert.InDelta(t, 298000, p0.TimeRemainingMs, 50)
	assert.Equal(t, 1, p0.CycleCount)
	assert.Equal(t, cfg.Participants[1].ParticipantID, *s.ActiveParticipantID)

	s, err = engine.CompleteSession(ctx, cfg.SessionID, "finished")
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, s.Status)
	assert.NotNil(t, s.SessionCompletedAt)
	for _, p := range s.Participants {
		assert.False(t, p.IsActive)
	}
}

func TestCompleteRejectedFromPending(t *testing.T) {
	store := newFakeStore()
	engine := New(store, 3)
	ctx := context.Background()

	cfg := newTestConfig(2)
	_, err := engine.CreateSession(ctx, cfg)
	require.NoError(t, err)

	_, err = engine.CompleteSession(ctx, cfg.SessionID, "finished")
	require.Error(t, err)
	svcErr, ok := svcerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, svcerrors.CodeInvalidTransition, svcErr.Code)
}

func TestSwitchSingleParticipantIncrementsCycleCount(t *testing.T) {
	store := newFakeStore()
	clock := &fixedClock{t: time.Now()}
	engine := New(store, 3).WithClock(clock)
	ctx := context.Background()

	cfg := newTestConfig(1)
	_, err := engine.CreateSession(ctx, cfg)
	require.NoError(t, err)
	_, err = engine.StartSession(ctx, cfg.SessionID)
	require.NoError(t, err)

	clock.t = clock.t.Add(time.Second)
	s, err := engine.SwitchCycle(ctx, cfg.SessionID, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.Participants[0].ParticipantID, *s.ActiveParticipantID)
	_, p := s.ParticipantByID(cfg.Participants[0].ParticipantID)
	assert.Equal(t, 1, p.CycleCount)
}

func TestPauseResumePreservesRemaining(t *testing.T) {
	store := newFakeStore()
	clock := &fixedClock{t: time.Now()}
	engine := New(store, 3).WithClock(clock)
	ctx := context.Background()

	cfg := newTestConfig(2)
	_, err := engine.CreateSession(ctx, cfg)
	require.NoError(t, err)
	_, err = engine.StartSession(ctx, cfg.SessionID)
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Second)
	s, err := engine.PauseSession(ctx, cfg.SessionID)
	require.NoError(t, err)
	_, p := s.ParticipantByID(cfg.Participants[0].ParticipantID)
	remaining := p.TimeRemainingMs
	assert.Nil(t, s.CycleStartedAt)

	s, err = engine.ResumeSession(ctx, cfg.SessionID)
	require.NoError(t, err)
	_, p = s.ParticipantByID(cfg.Participants[0].ParticipantID)
	assert.InDelta(t, remaining, p.TimeRemainingMs, 5)
	assert.NotNil(t, s.CycleStartedAt)
}

func TestExpiryOnZeroRemaining(t *testing.T) {
	store := newFakeStore()
	clock := &fixedClock{t: time.Now()}
	engine := New(store, 3).WithClock(clock)
	ctx := context.Background()

	cfg := newTestConfig(2)
	cfg.Participants[0].TotalTimeMs = 100
	cfg.Participants[1].TotalTimeMs = 300000
	_, err := engine.CreateSession(ctx, cfg)
	require.NoError(t, err)
	_, err = engine.StartSession(ctx, cfg.SessionID)
	require.NoError(t, err)

	clock.t = clock.t.Add(200 * time.Millisecond)
	s, err := engine.SwitchCycle(ctx, cfg.SessionID, nil)
	require.NoError(t, err)
	_, p0 := s.ParticipantByID(cfg.Participants[0].ParticipantID)
	assert.Equal(t, int64(0), p0.TimeRemainingMs)
	assert.True(t, p0.HasExpired)
}

func newGroupTestConfig(groupCount, membersPerGroup int) CreateConfig {
	var participants []session.Participant
	groups := make([]session.Group, groupCount)
	idx := 0
	for g := 0; g < groupCount; g++ {
		groupID := uuid.New().String()
		members := make([]string, membersPerGroup)
		for m := 0; m < membersPerGroup; m++ {
			pid := uuid.New().String()
			members[m] = pid
			participants = append(participants, session.Participant{
				ParticipantID:    pid,
				ParticipantIndex: idx,
				TotalTimeMs:      300000,
				GroupID:          &groupID,
			})
			idx++
		}
		groups[g] = session.Group{GroupID: groupID, TotalTimeMs: 300000, MemberIDs: members}
	}
	return CreateConfig{
		SessionID:    uuid.New().String(),
		SyncMode:     session.ModePerGroup,
		Participants: participants,
		Groups:       groups,
		TotalTimeMs:  300000,
	}
}

func TestPerGroupStartHonorsConfiguredActiveGroup(t *testing.T) {
	store := newFakeStore()
	engine := New(store, 3)
	ctx := context.Background()

	cfg := newGroupTestConfig(2, 2)
	cfg.ActiveGroupID = &cfg.Groups[1].GroupID
	_, err := engine.CreateSession(ctx, cfg)
	require.NoError(t, err)

	s, err := engine.StartSession(ctx, cfg.SessionID)
	require.NoError(t, err)
	require.NotNil(t, s.ActiveGroupID)
	assert.Equal(t, cfg.Groups[1].GroupID, *s.ActiveGroupID)
	assert.Nil(t, s.ActiveParticipantID)
	_, g := s.GroupByID(cfg.Groups[1].GroupID)
	assert.True(t, g.IsActive)
}

func TestPerGroupSwitchDebitsAndRotatesGroups(t *testing.T) {
	store := newFakeStore()
	clock := &fixedClock{t: time.Now()}
	engine := New(store, 3).WithClock(clock)
	ctx := context.Background()

	cfg := newGroupTestConfig(2, 2)
	_, err := engine.CreateSession(ctx, cfg)
	require.NoError(t, err)
	_, err = engine.StartSession(ctx, cfg.SessionID)
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Second)
	s, err := engine.SwitchCycle(ctx, cfg.SessionID, nil)
	require.NoError(t, err)

	_, g0 := s.GroupByID(cfg.Groups[0].GroupID)
	assert.InDelta(t, 298000, g0.TimeRemainingMs, 50)
	assert.Equal(t, 1, g0.CycleCount)
	assert.False(t, g0.IsActive)

	_, g1 := s.GroupByID(cfg.Groups[1].GroupID)
	assert.True(t, g1.IsActive)
	require.NotNil(t, s.ActiveGroupID)
	assert.Equal(t, cfg.Groups[1].GroupID, *s.ActiveGroupID)

	for _, p := range s.Participants {
		assert.False(t, p.IsActive)
	}
}

func TestCountUpSessionEndsAtMaxTimeMs(t *testing.T) {
	store := newFakeStore()
	clock := &fixedClock{t: time.Now()}
	engine := New(store, 3).WithClock(clock)
	ctx := context.Background()

	cfg := newTestConfig(2)
	cfg.SyncMode = session.ModeCountUp
	maxTime := int64(1000)
	cfg.MaxTimeMs = &maxTime
	_, err := engine.CreateSession(ctx, cfg)
	require.NoError(t, err)
	_, err = engine.StartSession(ctx, cfg.SessionID)
	require.NoError(t, err)

	clock.t = clock.t.Add(1500 * time.Millisecond)
	s, err := engine.SwitchCycle(ctx, cfg.SessionID, nil)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, s.Status)
	assert.Nil(t, s.ActiveParticipantID)
}

func TestCountUpSessionContinuesBeforeMaxTimeMs(t *testing.T) {
	store := newFakeStore()
	clock := &fixedClock{t: time.Now()}
	engine := New(store, 3).WithClock(clock)
	ctx := context.Background()

	cfg := newTestConfig(2)
	cfg.SyncMode = session.ModeCountUp
	maxTime := int64(10000)
	cfg.MaxTimeMs = &maxTime
	_, err := engine.CreateSession(ctx, cfg)
	require.NoError(t, err)
	_, err = engine.StartSession(ctx, cfg.SessionID)
	require.NoError(t, err)

	clock.t = clock.t.Add(time.Second)
	s, err := engine.SwitchCycle(ctx, cfg.SessionID, nil)
	require.NoError(t, err)
	assert.Equal(t, session.StatusRunning, s.Status)
	assert.Equal(t, cfg.Participants[1].ParticipantID, *s.ActiveParticipantID)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newFakeStore()
	engine := New(store, 3)
	ctx := context.Background()

	cfg := newTestConfig(1)
	_, err := engine.CreateSession(ctx, cfg)
	require.NoError(t, err)

	require.NoError(t, engine.DeleteSession(ctx, cfg.SessionID))
	require.NoError(t, engine.DeleteSession(ctx, cfg.SessionID))
}
