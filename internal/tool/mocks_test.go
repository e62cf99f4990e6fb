package tool_test

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/gmail-agent/internal/draft"
	"github.com/hal9000y/gmail-agent/internal/message"
	"github.com/hal9000y/gmail-agent/internal/retrieval"
	"github.com/hal9000y/gmail-agent/internal/tool"
)

type gmailSvcMock struct {
	ListMessagesFunc       func(ctx context.Context, Q, pageToken string, maxResults int64) (*gmail.ListMessagesResponse, error)
	GetMessageMetadataFunc func(ctx context.Context, msgID string) (*gmail.Message, error)
	GetMessageFunc         func(ctx context.Context, msgID string) (*gmail.Message, error)
	CreateDraftFunc        func(ctx context.Context, raw, threadID string) (*gmail.Draft, error)
	UpdateDraftFunc        func(ctx context.Context, draftID, raw, threadID string) (*gmail.Draft, error)
	GetDraftFunc           func(ctx context.Context, draftID string) (*gmail.Draft, error)
	SendDraftFunc          func(ctx context.Context, draftID string) (*gmail.Message, error)
}

func (m *gmailSvcMock) ListMessages(ctx context.Context, Q, pageToken string, maxResults int64) (*gmail.ListMessagesResponse, error) {
	return m.ListMessagesFunc(ctx, Q, pageToken, maxResults)
}

func (m *gmailSvcMock) GetMessageMetadata(ctx context.Context, msgID string) (*gmail.Message, error) {
	return m.GetMessageMetadataFunc(ctx, msgID)
}

func (m *gmailSvcMock) GetMessage(ctx context.Context, msgID string) (*gmail.Message, error) {
	return m.GetMessageFunc(ctx, msgID)
}

func (m *gmailSvcMock) CreateDraft(ctx context.Context, raw, threadID string) (*gmail.Draft, error) {
	return m.CreateDraftFunc(ctx, raw, threadID)
}

func (m *gmailSvcMock) UpdateDraft(ctx context.Context, draftID, raw, threadID string) (*gmail.Draft, error) {
	return m.UpdateDraftFunc(ctx, draftID, raw, threadID)
}

func (m *gmailSvcMock) GetDraft(ctx context.Context, draftID string) (*gmail.Draft, error) {
	return m.GetDraftFunc(ctx, draftID)
}

func (m *gmailSvcMock) SendDraft(ctx context.Context, draftID string) (*gmail.Message, error) {
	return m.SendDraftFunc(ctx, draftID)
}

type converterMock struct {
	HTML2TextFunc func(raw []byte) (string, error)
}

func (m *converterMock) HTML2Text(raw []byte) (string, error) {
	return m.HTML2TextFunc(raw)
}

type engineMock struct {
	RunFunc func(ctx context.Context, request string) (*retrieval.Result, error)
}

func (m *engineMock) Run(ctx context.Context, request string) (*retrieval.Result, error) {
	return m.RunFunc(ctx, request)
}

func newTestServer(svc *gmailSvcMock, conv *converterMock, engine *engineMock) *mcp.Server {
	if conv == nil {
		conv = &converterMock{}
	}
	if engine == nil {
		engine = &engineMock{}
	}

	return tool.NewServer(svc, message.NewDecoder(conv, true), draft.NewService(svc), engine)
}

// connect opens an in-memory client session to server.
func connect(t *testing.T, server *mcp.Server) *mcp.ClientSession {
	t.Helper()

	ctx := context.Background()
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	clientSession, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = clientSession.Close() })

	return clientSession
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()

	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])

	return text.Text
}
