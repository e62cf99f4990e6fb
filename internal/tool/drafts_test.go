package tool_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/gmail-agent/internal/draft"
	"github.com/hal9000y/gmail-agent/internal/gservice"
	"github.com/hal9000y/gmail-agent/internal/tool"
)

func storedDraft(id string) *gmail.Draft {
	return &gmail.Draft{
		Id: id,
		Message: &gmail.Message{
			Id:       "msg-" + id,
			ThreadId: "thread-" + id,
			Payload: &gmail.MessagePart{
				MimeType: "text/plain",
				Headers: []*gmail.MessagePartHeader{
					{Name: "To", Value: "Alice <alice@example.com>"},
					{Name: "Subject", Value: "Lunch"},
					{Name: "Content-Type", Value: "text/plain; charset=UTF-8"},
				},
				Body: &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("Noon?"))},
			},
		},
	}
}

func newDraftsGmailSvc(calls *[]string) *gmailSvcMock {
	return &gmailSvcMock{
		CreateDraftFunc: func(_ context.Context, raw, threadID string) (*gmail.Draft, error) {
			*calls = append(*calls, "create")
			if _, err := base64.RawURLEncoding.DecodeString(raw); err != nil {
				return nil, err
			}
			return &gmail.Draft{Id: "d-new", Message: &gmail.Message{Id: "msg-new", ThreadId: threadID}}, nil
		},
		UpdateDraftFunc: func(_ context.Context, draftID, _, threadID string) (*gmail.Draft, error) {
			*calls = append(*calls, "update")
			return &gmail.Draft{Id: draftID, Message: &gmail.Message{Id: "msg-" + draftID, ThreadId: threadID}}, nil
		},
		GetDraftFunc: func(_ context.Context, draftID string) (*gmail.Draft, error) {
			*calls = append(*calls, "get")
			if draftID == "missing" {
				return nil, fmt.Errorf("users.drafts.get failed: %w", gservice.ErrNotFound)
			}
			return storedDraft(draftID), nil
		},
		SendDraftFunc: func(_ context.Context, draftID string) (*gmail.Message, error) {
			*calls = append(*calls, "send")
			return &gmail.Message{Id: "sent-" + draftID, ThreadId: "thread-" + draftID, LabelIds: []string{"SENT"}}, nil
		},
	}
}

func callTool[T any](t *testing.T, session *mcp.ClientSession, name string, args any) (T, string, bool) {
	t.Helper()

	var out T
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)

	text := resultText(t, result)
	if result.IsError {
		return out, text, true
	}

	require.NoError(t, json.Unmarshal([]byte(text), &out))

	return out, text, false
}

func TestDraftTools(t *testing.T) {
	var calls []string
	session := connect(t, newTestServer(newDraftsGmailSvc(&calls), nil, nil))

	t.Run("create", func(t *testing.T) {
		calls = nil
		resp, text, isErr := callTool[tool.DraftResponse](t, session, "gmail_create_draft", tool.CreateDraftRequest{
			To:       []string{"bob@example.com"},
			Subject:  "Hi",
			Body:     "Hello Bob",
			ThreadID: "thread-9",
		})
		require.False(t, isErr, text)

		assert.Equal(t, draft.View{
			ID:        "d-new",
			MessageID: "msg-new",
			ThreadID:  "thread-9",
			To:        []string{"bob@example.com"},
			Subject:   "Hi",
			Body:      "Hello Bob",
		}, resp.Draft)
		assert.Equal(t, []string{"create"}, calls)
	})

	t.Run("update merges", func(t *testing.T) {
		calls = nil
		resp, text, isErr := callTool[tool.DraftResponse](t, session, "gmail_update_draft", tool.UpdateDraftRequest{
			DraftID: "d1",
			Body:    "1pm instead?",
		})
		require.False(t, isErr, text)

		assert.Equal(t, draft.View{
			ID:        "d1",
			MessageID: "msg-d1",
			ThreadID:  "thread-d1",
			To:        []string{"Alice <alice@example.com>"},
			Subject:   "Lunch",
			Body:      "1pm instead?",
		}, resp.Draft)
		assert.Equal(t, []string{"get", "update"}, calls)
	})

	t.Run("get", func(t *testing.T) {
		resp, text, isErr := callTool[tool.DraftResponse](t, session, "gmail_get_draft", tool.DraftIDRequest{DraftID: "d2"})
		require.False(t, isErr, text)
		assert.Equal(t, "Noon?", resp.Draft.Body)
		assert.Equal(t, "Lunch", resp.Draft.Subject)
	})

	t.Run("send", func(t *testing.T) {
		resp, text, isErr := callTool[tool.SendDraftResponse](t, session, "gmail_send_draft", tool.DraftIDRequest{DraftID: "d3"})
		require.False(t, isErr, text)
		assert.Equal(t, draft.Sent{MessageID: "sent-d3", ThreadID: "thread-d3", Labels: []string{"SENT"}}, resp.Sent)
	})
}

func TestDraftToolErrors(t *testing.T) {
	cases := []struct {
		name      string
		tool      string
		args      any
		wantText  string
		wantCalls []string
	}{
		{
			name:     "invalid recipient",
			tool:     "gmail_create_draft",
			args:     tool.CreateDraftRequest{To: []string{"bob"}, Subject: "s", Body: "b"},
			wantText: `invalid to: "bob" is not an email address`,
		},
		{
			name:     "empty body",
			tool:     "gmail_create_draft",
			args:     tool.CreateDraftRequest{To: []string{"bob@example.com"}, Subject: "s"},
			wantText: "invalid body: must not be empty",
		},
		{
			name:     "blank draft id",
			tool:     "gmail_send_draft",
			args:     tool.DraftIDRequest{DraftID: " "},
			wantText: "invalid draft_id: must not be empty",
		},
		{
			name:      "unknown draft",
			tool:      "gmail_update_draft",
			args:      tool.UpdateDraftRequest{DraftID: "missing", Subject: "x"},
			wantText:  "update draft: " + "the requested Gmail message or draft does not exist",
			wantCalls: []string{"get"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls []string
			session := connect(t, newTestServer(newDraftsGmailSvc(&calls), nil, nil))

			_, text, isErr := callTool[tool.DraftResponse](t, session, tc.tool, tc.args)

			require.True(t, isErr)
			assert.Contains(t, text, tc.wantText)
			assert.Equal(t, tc.wantCalls, calls)
		})
	}
}
