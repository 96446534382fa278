package store

import (
	"encoding/json"
	"testing"

	svcerrors "github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/errors"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RedisStore's Get/Create/Update/Delete require a live Redis instance
// (the external collaborator spec.md §1 places out of scope); these
// tests cover the pure, network-free pieces: key layout and wire
// decoding. The engine's tests in internal/syncengine run against a fake
// store that applies the same expected-version check.

func TestKeyLayoutIncludesPrefix(t *testing.T) {
	s := &RedisStore{keyPrefix: "test:"}
	assert.Equal(t, "test:session:abc", s.key("abc"))
}

func TestPushChannelLayout(t *testing.T) {
	assert.Equal(t, "test:ws:abc", pushChannel("test:", "abc"))
	assert.Equal(t, "ws:abc", pushChannel("", "abc"))
}

func TestDecodeRoundTrip(t *testing.T) {
	original := &session.Session{SessionID: "s1", Status: session.StatusPending, Version: 1}
	raw, err := json.Marshal(original)
	require.NoError(t, err)

	decoded, err := decode("s1", raw)
	require.NoError(t, err)
	assert.Equal(t, original.SessionID, decoded.SessionID)
	assert.Equal(t, original.Version, decoded.Version)
}

func TestDecodeRejectsCorruptPayload(t *testing.T) {
	_, err := decode("s1", []byte("not json"))
	require.Error(t, err)
	svcErr, ok := svcerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, svcerrors.CodeStateCorrupt, svcErr.Code)
}
