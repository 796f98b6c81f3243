package transcript

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-client/internal/mocks"
	"chat-client/internal/models"
)

var (
	convA = models.ConversationRef{Kind: models.KindDirect, ID: "5"}
	convB = models.ConversationRef{Kind: models.KindGroup, ID: "9"}
)

func newSynchronizer(t *testing.T) (*Synchronizer, *mocks.GatewayMock, *mocks.ChannelFake) {
	t.Helper()
	gw := new(mocks.GatewayMock)
	ch := mocks.NewChannelFake()
	s := New(gw, ch, models.Identity{UserID: "1", Username: "me"}, nil)
	s.Start()
	t.Cleanup(s.Close)
	return s, gw, ch
}

func activate(t *testing.T, s *Synchronizer, gw *mocks.GatewayMock, conv models.ConversationRef, history []models.Message) {
	t.Helper()
	gw.On("History", mock.Anything, conv).Return(history, nil).Once()
	gw.On("MarkRead", mock.Anything, conv).Return(nil).Maybe()
	require.NoError(t, s.Switch(context.Background(), conv))
}

func TestSendOptimisticRoundTrip(t *testing.T) {
	s, gw, ch := newSynchronizer(t)
	activate(t, s, gw, convA, nil)

	gw.On("Send", mock.Anything, convA, "hi", mock.AnythingOfType("string")).Return(nil).Once()
	require.NoError(t, s.Send(context.Background(), "hi"))

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	require.False(t, snap[0].Confirmed())
	require.Equal(t, "hi", snap[0].Content)
	corr := snap[0].ID.Correlation()
	require.NotEmpty(t, corr)

	ch.Dispatch(models.EventChatMessage, models.MessageEvent{
		ID:             "srv-1",
		ConversationID: convA.ID,
		Sender:         "me",
		Content:        "hi",
		CreatedAt:      time.Now(),
		ClientMsgID:    corr,
	})

	snap = s.Snapshot()
	require.Len(t, snap, 1)
	require.True(t, snap[0].Confirmed())
	require.Equal(t, "srv-1", snap[0].ID.Server())
	require.Equal(t, "hi", snap[0].Content)
	gw.AssertExpectations(t)
}

func TestReconciliationPreservesPosition(t *testing.T) {
	s, gw, ch := newSynchronizer(t)
	activate(t, s, gw, convA, []models.Message{
		{ID: models.ServerID("srv-1"), Conversation: convA, Content: "earlier"},
	})

	gw.On("Send", mock.Anything, convA, "mine", mock.AnythingOfType("string")).Return(nil).Once()
	require.NoError(t, s.Send(context.Background(), "mine"))
	corr := s.Snapshot()[1].ID.Correlation()

	// A peer message lands after the optimistic entry.
	ch.Dispatch(models.EventChatMessage, models.MessageEvent{
		ID: "srv-2", ConversationID: convA.ID, Sender: "bob", Content: "theirs",
	})

	ch.Dispatch(models.EventChatMessage, models.MessageEvent{
		ID: "srv-3", ConversationID: convA.ID, Sender: "me", Content: "mine", ClientMsgID: corr,
	})

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "earlier", snap[0].Content)
	assert.Equal(t, "mine", snap[1].Content)
	assert.Equal(t, "srv-3", snap[1].ID.Server())
	assert.Equal(t, "theirs", snap[2].Content)
}

func TestRemoteDeliveryIsIdempotent(t *testing.T) {
	s, gw, ch := newSynchronizer(t)
	activate(t, s, gw, convA, nil)

	evt := models.MessageEvent{ID: "srv-7", ConversationID: convA.ID, Sender: "bob", Content: "yo"}
	ch.Dispatch(models.EventChatMessage, evt)
	ch.Dispatch(models.EventChatMessage, evt)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "srv-7", snap[0].ID.Server())
}

func TestSendFailureRollsBack(t *testing.T) {
	s, gw, _ := newSynchronizer(t)
	activate(t, s, gw, convA, nil)

	gw.On("Send", mock.Anything, convA, "hi", mock.AnythingOfType("string")).Return(assert.AnError).Once()
	err := s.Send(context.Background(), "hi")
	require.ErrorIs(t, err, ErrSendFailed)
	require.Empty(t, s.Snapshot())
	gw.AssertExpectations(t)
}

func TestSendRejectsEmptyContent(t *testing.T) {
	s, gw, _ := newSynchronizer(t)
	activate(t, s, gw, convA, nil)

	require.ErrorIs(t, s.Send(context.Background(), "   \n"), ErrEmptyContent)
	require.Empty(t, s.Snapshot())
}

func TestSendWithoutActiveConversation(t *testing.T) {
	s, _, _ := newSynchronizer(t)
	require.ErrorIs(t, s.Send(context.Background(), "hi"), ErrNoConversation)
}

func TestStaleHistoryLoadIsDiscarded(t *testing.T) {
	s, gw, _ := newSynchronizer(t)

	release := make(chan struct{})
	gw.On("History", mock.Anything, convA).Run(func(mock.Arguments) {
		<-release
	}).Return([]models.Message{
		{ID: models.ServerID("a-1"), Conversation: convA, Content: "from A"},
	}, nil).Once()
	gw.On("History", mock.Anything, convB).Return([]models.Message{
		{ID: models.ServerID("b-1"), Conversation: convB, Content: "from B"},
	}, nil).Once()
	gw.On("MarkRead", mock.Anything, mock.Anything).Return(nil).Maybe()

	done := make(chan error, 1)
	go func() { done <- s.Switch(context.Background(), convA) }()

	// Switch away before the A-load resolves.
	require.Eventually(t, func() bool { return s.Active() == convA }, time.Second, time.Millisecond)
	require.NoError(t, s.Switch(context.Background(), convB))

	close(release)
	require.NoError(t, <-done)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "from B", snap[0].Content)
}

func TestHistoryFailureLeavesTranscriptEmpty(t *testing.T) {
	s, gw, _ := newSynchronizer(t)

	gw.On("History", mock.Anything, convA).Return(([]models.Message)(nil), assert.AnError).Once()
	err := s.Switch(context.Background(), convA)
	require.ErrorIs(t, err, ErrHistoryUnavailable)
	require.Empty(t, s.Snapshot())
}

func TestCrossConversationIsolation(t *testing.T) {
	s, gw, ch := newSynchronizer(t)
	activate(t, s, gw, convA, nil)

	// Same kind, different conversation id.
	ch.Dispatch(models.EventChatMessage, models.MessageEvent{
		ID: "srv-9", ConversationID: "999", Sender: "eve", Content: "wrong room",
	})
	// Different kind entirely.
	ch.Dispatch(models.EventGroupMessage, models.MessageEvent{
		ID: "srv-10", ConversationID: convA.ID, Sender: "eve", Content: "wrong kind",
	})

	require.Empty(t, s.Snapshot())
}

func TestSwitchDiscardsPreviousTranscript(t *testing.T) {
	s, gw, ch := newSynchronizer(t)
	activate(t, s, gw, convA, nil)

	ch.Dispatch(models.EventChatMessage, models.MessageEvent{
		ID: "srv-1", ConversationID: convA.ID, Sender: "bob", Content: "old",
	})
	require.Len(t, s.Snapshot(), 1)

	activate(t, s, gw, convB, nil)
	require.Empty(t, s.Snapshot())

	// A late echo for the old conversation must not leak into the new one.
	ch.Dispatch(models.EventChatMessage, models.MessageEvent{
		ID: "srv-2", ConversationID: convA.ID, Sender: "bob", Content: "late",
	})
	require.Empty(t, s.Snapshot())
}

func TestRoomSendGoesThroughChannel(t *testing.T) {
	s, gw, ch := newSynchronizer(t)
	room := models.ConversationRef{Kind: models.KindRoom, ID: "lobby"}
	activate(t, s, gw, room, nil)

	require.NoError(t, s.Send(context.Background(), "hello room"))
	require.Len(t, ch.Emitted, 1)
	require.Equal(t, models.EventRoomMessage, ch.Emitted[0].Event)

	payload, ok := ch.Emitted[0].Payload.(roomSend)
	require.True(t, ok)
	assert.Equal(t, "lobby", payload.ConversationID)
	assert.Equal(t, "hello room", payload.Content)
	assert.NotEmpty(t, payload.ClientMsgID)

	// No REST send must have happened.
	gw.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRoomSendFailsWhenChannelDown(t *testing.T) {
	s, gw, ch := newSynchronizer(t)
	room := models.ConversationRef{Kind: models.KindRoom, ID: "lobby"}
	activate(t, s, gw, room, nil)

	ch.EmitErr = assert.AnError
	require.ErrorIs(t, s.Send(context.Background(), "hello"), ErrSendFailed)
	require.Empty(t, s.Snapshot())
}

func TestLeaveRoomEmitsAndDeactivates(t *testing.T) {
	s, gw, ch := newSynchronizer(t)
	room := models.ConversationRef{Kind: models.KindRoom, ID: "lobby"}
	activate(t, s, gw, room, []models.Message{
		{ID: models.ServerID("srv-1"), Conversation: room, Content: "hi"},
	})

	require.NoError(t, s.LeaveRoom(context.Background()))
	require.Len(t, ch.Emitted, 1)
	require.Equal(t, "room.leave", ch.Emitted[0].Event)
	require.True(t, s.Active().IsZero())
	require.Empty(t, s.Snapshot())
}

func TestRemoteDeletionRemovesEntry(t *testing.T) {
	s, gw, ch := newSynchronizer(t)
	activate(t, s, gw, convA, []models.Message{
		{ID: models.ServerID("srv-1"), Conversation: convA, Content: "keep"},
		{ID: models.ServerID("srv-2"), Conversation: convA, Content: "delete me"},
	})

	ch.Dispatch(models.EventChatDeleted, models.DeletionEvent{ConversationID: convA.ID, MessageID: "srv-2"})

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "srv-1", snap[0].ID.Server())

	// Deletion for another conversation is ignored.
	ch.Dispatch(models.EventChatDeleted, models.DeletionEvent{ConversationID: "999", MessageID: "srv-1"})
	require.Len(t, s.Snapshot(), 1)
}

func TestCloseRemovesListeners(t *testing.T) {
	gw := new(mocks.GatewayMock)
	ch := mocks.NewChannelFake()
	s := New(gw, ch, models.Identity{Username: "me"}, nil)
	s.Start()
	require.Equal(t, 1, ch.ListenerCount(models.EventChatMessage))
	require.Equal(t, 1, ch.ListenerCount(models.EventRoomDeleted))

	s.Close()
	require.Zero(t, ch.ListenerCount(models.EventChatMessage))
	require.Zero(t, ch.ListenerCount(models.EventRoomDeleted))
}
