package pushgateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/logging"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/session"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/store"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type fakeGatewayStore struct {
	sessions map[string]*session.Session
}

func (f *fakeGatewayStore) Get(_ context.Context, id string) (*session.Session, error) {
	return f.sessions[id], nil
}
func (f *fakeGatewayStore) SubscribeUpdates(ctx context.Context, callback func(store.UpdateNotice)) error {
	<-ctx.Done()
	return nil
}
func (f *fakeGatewayStore) SubscribePush(ctx context.Context, callback func(sessionID string, payload []byte)) error {
	<-ctx.Done()
	return nil
}

func TestHandleWSSendsConnectedThenStateSyncOnReconnect(t *testing.T) {
	sessionID := uuid.New().String()
	st := &session.Session{SessionID: sessionID, Status: session.StatusRunning, Version: 3}
	fs := &fakeGatewayStore{sessions: map[string]*session.Session{sessionID: st}}

	logger := logging.New("test", "error", "json")
	gw := New(fs, logger, 50*time.Millisecond)

	srv := httptest.NewServer(http.HandlerFunc(gw.HandleWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?sessionId=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var connected Message
	require.NoError(t, conn.ReadJSON(&connected))
	require.Equal(t, TypeConnected, connected.Type)

	require.NoError(t, conn.WriteJSON(Message{Type: TypeReconnect, SessionID: sessionID}))

	var sync Message
	require.NoError(t, conn.ReadJSON(&sync))
	require.Equal(t, TypeStateSync, sync.Type)
	require.NotNil(t, sync.State)
	require.Equal(t, int64(3), sync.State.Version)
}

func TestBroadcastDeliversToRegisteredObserver(t *testing.T) {
	sessionID := uuid.New().String()
	fs := &fakeGatewayStore{sessions: map[string]*session.Session{}}
	logger := logging.New("test", "error", "json")
	gw := New(fs, logger, time.Second)

	srv := httptest.NewServer(http.HandlerFunc(gw.HandleWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?sessionId=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var connected Message
	require.NoError(t, conn.ReadJSON(&connected))

	require.Eventually(t, func() bool { return gw.ObserverCount() == 1 }, time.Second, 10*time.Millisecond)

	gw.broadcast(sessionID, Message{Type: TypeStateUpdate, SessionID: sessionID, Timestamp: nowMs()})

	var update Message
	require.NoError(t, conn.ReadJSON(&update))
	require.Equal(t, TypeStateUpdate, update.Type)
}
