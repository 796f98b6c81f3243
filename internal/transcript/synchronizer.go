package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"chat-client/internal/eventchannel"
	"chat-client/internal/gateway"
	"chat-client/internal/models"
	"chat-client/internal/observability"
	"chat-client/internal/telemetry"
)

var (
	// ErrHistoryUnavailable means the history fetch failed; the transcript is
	// left empty and nothing retries automatically.
	ErrHistoryUnavailable = errors.New("history unavailable")
	// ErrSendFailed means the send was rejected or the network call failed;
	// the optimistic entry has been rolled back. Retry is a fresh Send.
	ErrSendFailed = errors.New("send failed")
	// ErrEmptyContent rejects sends whose trimmed content is empty.
	ErrEmptyContent = errors.New("empty message content")
	// ErrNoConversation rejects sends while no conversation is active.
	ErrNoConversation = errors.New("no active conversation")
)

// EventChannel is the slice of the event channel the synchronizer consumes.
type EventChannel interface {
	On(event string, fn eventchannel.Handler) func()
	Emit(event string, payload any) error
}

// Synchronizer owns the transcript of the currently active conversation and
// keeps it consistent across history loads, optimistic local sends,
// server-pushed events and conversation switches.
//
// The transcript holds at most one optimistic entry per outstanding send,
// never two entries with the same server id, and reconciliation replaces the
// optimistic entry in place so the visual position is preserved.
type Synchronizer struct {
	gateway  gateway.Gateway
	channel  EventChannel
	identity models.Identity
	audit    *telemetry.AuditEmitter

	mu      sync.Mutex
	active  models.ConversationRef
	entries []models.Message
	loadGen int
	unsubs  []func()
}

// New builds a synchronizer with no active conversation. Call Start to attach
// its event-channel listeners and Close to detach them.
func New(gw gateway.Gateway, ch EventChannel, identity models.Identity, audit *telemetry.AuditEmitter) *Synchronizer {
	return &Synchronizer{gateway: gw, channel: ch, identity: identity, audit: audit}
}

// Start subscribes to the message-delivery and deletion events of every
// conversation kind. Events for conversations other than the active one are
// ignored inside HandleRemote.
func (s *Synchronizer) Start() {
	for _, kind := range []models.Kind{models.KindDirect, models.KindGroup, models.KindRoom} {
		kind := kind
		s.unsubs = append(s.unsubs,
			s.channel.On(models.MessageEventName(kind), func(payload json.RawMessage) {
				var evt models.MessageEvent
				if err := json.Unmarshal(payload, &evt); err != nil {
					log.Debug().Str("kind", string(kind)).Msg("discarding malformed message event")
					return
				}
				evt.Conversation = models.ConversationRef{Kind: kind, ID: evt.ConversationID}
				s.HandleRemote(evt)
			}),
			s.channel.On(models.DeletionEventName(kind), func(payload json.RawMessage) {
				var evt models.DeletionEvent
				if err := json.Unmarshal(payload, &evt); err != nil {
					log.Debug().Str("kind", string(kind)).Msg("discarding malformed deletion event")
					return
				}
				s.HandleDeletion(models.ConversationRef{Kind: kind, ID: evt.ConversationID}, evt.MessageID)
			}),
		)
	}
}

// Close removes every listener Start registered.
func (s *Synchronizer) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
}

// Switch makes conv the active conversation: the previous transcript is
// discarded and the history is reloaded wholesale. A load still in flight for
// a previous conversation can no longer touch the transcript once Switch
// returns. A zero ref deactivates without loading.
func (s *Synchronizer) Switch(ctx context.Context, conv models.ConversationRef) error {
	s.mu.Lock()
	s.active = conv
	s.entries = nil
	s.loadGen++
	gen := s.loadGen
	observability.SetPendingEntries(0)
	s.mu.Unlock()

	if conv.IsZero() {
		return nil
	}

	ctx, span := otel.Tracer("chat-client/transcript").Start(ctx, "transcript.load_history")
	defer span.End()

	msgs, err := s.gateway.History(ctx, conv)

	s.mu.Lock()
	if s.loadGen != gen {
		// The active conversation changed while the load was in flight.
		s.mu.Unlock()
		log.Debug().Stringer("conversation", conv).Msg("discarding stale history load")
		return nil
	}
	if err != nil {
		s.entries = nil
		s.mu.Unlock()
		s.audit.Emit(ctx, "history_failed", conv.String(), map[string]any{"reason": err.Error()})
		return fmt.Errorf("%w: %s: %v", ErrHistoryUnavailable, conv, err)
	}
	s.entries = msgs
	s.mu.Unlock()

	// Mark-as-read is fire-and-forget; a failure never disturbs the caller.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.gateway.MarkRead(ctx, conv); err != nil {
			log.Warn().Err(err).Stringer("conversation", conv).Msg("mark-as-read failed")
		}
	}()
	return nil
}

// roomSend is the outbound payload for room sends, which have no REST path.
type roomSend struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	ClientMsgID    string `json:"client_msg_id"`
}

// Send appends an optimistic entry for the active conversation and forwards
// the message to the backend, carrying a fresh correlation id the backend
// echoes back through the event channel. On failure the optimistic entry is
// rolled back and ErrSendFailed returned; on a conversation switch in the
// meantime the rollback finds nothing and no-ops.
func (s *Synchronizer) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}

	s.mu.Lock()
	conv := s.active
	if conv.IsZero() {
		s.mu.Unlock()
		return ErrNoConversation
	}
	corr := uuid.NewString()
	s.entries = append(s.entries, models.Message{
		ID:           models.CorrelationID(corr),
		Conversation: conv,
		Author:       s.identity.Username,
		Content:      content,
		CreatedAt:    time.Now(),
	})
	observability.SetPendingEntries(s.pendingLocked())
	s.mu.Unlock()

	ctx, span := otel.Tracer("chat-client/transcript").Start(ctx, "transcript.send")
	defer span.End()

	var err error
	if conv.Kind == models.KindRoom {
		err = s.channel.Emit(models.EventRoomMessage, roomSend{
			ConversationID: conv.ID,
			Content:        content,
			ClientMsgID:    corr,
		})
	} else {
		err = s.gateway.Send(ctx, conv, content, corr)
	}
	if err != nil {
		s.rollback(corr)
		observability.IncSend("failed")
		s.audit.Emit(ctx, "send_failed", conv.String(), map[string]any{"reason": err.Error()})
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	observability.IncSend("ok")
	return nil
}

// HandleRemote applies one message-delivery event, in order: foreign
// conversations are ignored, an echoed correlation id reconciles its
// optimistic entry in place, an already-known server id is a redelivery and
// dropped, anything else is appended as a new confirmed entry.
func (s *Synchronizer) HandleRemote(evt models.MessageEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if evt.Conversation != s.active {
		return
	}

	if evt.ClientMsgID != "" {
		for i, entry := range s.entries {
			if !entry.ID.Confirmed() && entry.ID.Correlation() == evt.ClientMsgID {
				s.entries[i] = evt.Confirmed()
				observability.SetPendingEntries(s.pendingLocked())
				return
			}
		}
	}

	for _, entry := range s.entries {
		if entry.ID.Confirmed() && entry.ID.Server() == evt.ID {
			// Redelivery after a reconnect.
			return
		}
	}

	s.entries = append(s.entries, evt.Confirmed())
}

// HandleDeletion removes the message with the given server id when the event
// targets the active conversation.
func (s *Synchronizer) HandleDeletion(conv models.ConversationRef, serverID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv != s.active {
		return
	}
	for i, entry := range s.entries {
		if entry.ID.Confirmed() && entry.ID.Server() == serverID {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

// LeaveRoom emits the leave event for the active room and deactivates the
// transcript. On non-room conversations it only deactivates.
func (s *Synchronizer) LeaveRoom(ctx context.Context) error {
	s.mu.Lock()
	conv := s.active
	s.mu.Unlock()

	if conv.Kind == models.KindRoom {
		if err := s.channel.Emit("room.leave", map[string]string{"conversation_id": conv.ID}); err != nil {
			log.Warn().Err(err).Stringer("conversation", conv).Msg("leave event dropped")
		}
	}
	return s.Switch(ctx, models.ConversationRef{})
}

// Active returns the currently active conversation ref.
func (s *Synchronizer) Active() models.ConversationRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Snapshot returns a copy of the active transcript in order.
func (s *Synchronizer) Snapshot() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Synchronizer) rollback(corr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, entry := range s.entries {
		if !entry.ID.Confirmed() && entry.ID.Correlation() == corr {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}
	observability.SetPendingEntries(s.pendingLocked())
}

func (s *Synchronizer) pendingLocked() int {
	n := 0
	for _, entry := range s.entries {
		if !entry.ID.Confirmed() {
			n++
		}
	}
	return n
}
