package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"chat-client/internal/models"
	"chat-client/internal/observability"
)

// CredentialSource yields the bearer token attached to every gateway call.
type CredentialSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Gateway is the request/response half of the backend. Rooms have no REST
// send path; their sends go through the event channel instead.
type Gateway interface {
	History(ctx context.Context, conv models.ConversationRef) ([]models.Message, error)
	Send(ctx context.Context, conv models.ConversationRef, content, clientMsgID string) error
	MarkRead(ctx context.Context, conv models.ConversationRef) error
}

// HTTPGateway talks to the backend REST API.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
	creds   CredentialSource
}

// NewHTTPGateway builds a gateway rooted at baseURL.
func NewHTTPGateway(baseURL string, creds CredentialSource) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		creds:   creds,
	}
}

type wireMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Sender         string    `json:"sender"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// History fetches the ordered message history of a conversation.
func (g *HTTPGateway) History(ctx context.Context, conv models.ConversationRef) ([]models.Message, error) {
	ctx, span := otel.Tracer("chat-client/gateway").Start(ctx, "gateway.history")
	defer span.End()

	var body struct {
		Messages []wireMessage `json:"messages"`
	}
	if err := g.do(ctx, http.MethodGet, g.messagesPath(conv), nil, &body, "history"); err != nil {
		return nil, err
	}

	msgs := make([]models.Message, 0, len(body.Messages))
	for _, w := range body.Messages {
		msgs = append(msgs, models.Message{
			ID:           models.ServerID(w.ID),
			Conversation: conv,
			Author:       w.Sender,
			Content:      w.Content,
			CreatedAt:    w.CreatedAt,
		})
	}
	return msgs, nil
}

// Send posts a message, carrying the client correlation id so the backend can
// echo it back through the event channel.
func (g *HTTPGateway) Send(ctx context.Context, conv models.ConversationRef, content, clientMsgID string) error {
	ctx, span := otel.Tracer("chat-client/gateway").Start(ctx, "gateway.send")
	defer span.End()

	payload := map[string]string{
		"content":       content,
		"client_msg_id": clientMsgID,
	}
	return g.do(ctx, http.MethodPost, g.messagesPath(conv), payload, nil, "send")
}

// MarkRead acknowledges the conversation as read. Callers treat it as
// fire-and-forget; errors are only logged upstream.
func (g *HTTPGateway) MarkRead(ctx context.Context, conv models.ConversationRef) error {
	ctx, span := otel.Tracer("chat-client/gateway").Start(ctx, "gateway.mark_read")
	defer span.End()

	path := fmt.Sprintf("/%ss/%s/read", conv.Kind, conv.ID)
	return g.do(ctx, http.MethodPost, path, nil, nil, "mark_read")
}

func (g *HTTPGateway) messagesPath(conv models.ConversationRef) string {
	return fmt.Sprintf("/%ss/%s/messages", conv.Kind, conv.ID)
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, payload, out any, op string) error {
	start := time.Now()

	var reqBody *bytes.Buffer = bytes.NewBuffer(nil)
	if payload != nil {
		if err := json.NewEncoder(reqBody).Encode(payload); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := g.creds.AccessToken(ctx)
	if err == nil && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		observability.ObserveGatewayRequest(op, "error", time.Since(start))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	observability.ObserveGatewayRequest(op, strconv.Itoa(resp.StatusCode), time.Since(start))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debug().Str("op", op).Int("status", resp.StatusCode).Msg("gateway call rejected")
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
