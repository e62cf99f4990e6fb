package tool

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type gmailSvc interface {
	getMessagesSvc
	searchMessagesSvc
}

// NewServer creates an MCP server with the search engine, draft and message
// inspection tools.
func NewServer(svc gmailSvc, dec messageDecoder, drafts draftSvc, engine searchEngine) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "gmail-agent", Version: "v1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "gmail_search_engine",
		Description: "Answer a plain-language request about the mailbox by searching Gmail several ways and reading the matching emails",
	}, NewSearchEngine(engine).Search)

	d := NewDrafts(drafts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "gmail_create_draft",
		Description: "Create a plain text Gmail draft",
	}, d.Create)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "gmail_update_draft",
		Description: "Change fields of an existing draft; fields left empty keep their current value",
	}, d.Update)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "gmail_get_draft",
		Description: "Read a draft",
	}, d.Get)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "gmail_send_draft",
		Description: "Send a draft; it can no longer be edited afterwards",
	}, d.Send)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_messages",
		Description: "Search Gmail messages using Gmail search syntax",
	}, NewSearchMessages(svc).SearchMessages)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_messages",
		Description: "Get full message content for specified message IDs",
	}, NewGetMessages(svc, dec).GetMessages)

	return server
}
