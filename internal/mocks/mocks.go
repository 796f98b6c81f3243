package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-client/internal/gateway"
	"chat-client/internal/models"
)

type GatewayMock struct {
	mock.Mock
}

func (m *GatewayMock) History(ctx context.Context, conv models.ConversationRef) ([]models.Message, error) {
	args := m.Called(ctx, conv)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *GatewayMock) Send(ctx context.Context, conv models.ConversationRef, content, clientMsgID string) error {
	args := m.Called(ctx, conv, content, clientMsgID)
	return args.Error(0)
}

func (m *GatewayMock) MarkRead(ctx context.Context, conv models.ConversationRef) error {
	args := m.Called(ctx, conv)
	return args.Error(0)
}

type CredentialSourceMock struct {
	mock.Mock
}

func (m *CredentialSourceMock) AccessToken(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

var _ gateway.Gateway = (*GatewayMock)(nil)
var _ gateway.CredentialSource = (*CredentialSourceMock)(nil)
