package mcpadapter

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
	"github.com/kirillkom/scc-caselaw-rag/internal/core/ports"
)

const (
	serverName    = "scc-caselaw"
	serverVersion = "1.0.0"
	endpointPath  = "/mcp"
)

type Server struct {
	engine      ports.QueryEngine
	cases       ports.CaseReader
	defaultTopK int
	mcp         *server.MCPServer
}

// New registers ask_case_law and, when cases is non-nil, get_case.
func New(engine ports.QueryEngine, cases ports.CaseReader, defaultTopK int) *Server {
	s := &Server{
		engine:      engine,
		cases:       cases,
		defaultTopK: defaultTopK,
		mcp:         server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool("ask_case_law",
		mcp.WithDescription("Answer a question about Supreme Court of Canada criminal case law, with citations to the cases used."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural-language legal question.")),
		mcp.WithNumber("top_k", mcp.Description("Number of passages to retrieve."), mcp.Min(1)),
	), s.askCaseLaw)

	if cases != nil {
		s.mcp.AddTool(mcp.NewTool("get_case",
			mcp.WithDescription("Look up a case by its SCC case number."),
			mcp.WithString("case_number", mcp.Required(), mcp.Description("SCC docket number, e.g. 36068.")),
		), s.getCase)
	}
	return s
}

// HTTPHandler serves the streamable HTTP transport.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp, server.WithEndpointPath(endpointPath))
}

func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) askCaseLaw(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topK := req.GetInt("top_k", s.defaultTopK)

	result, err := s.engine.Answer(ctx, query, topK)
	payload, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		return nil, marshalErr
	}
	if err != nil {
		return mcp.NewToolResultError(string(payload)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) getCase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caseNumber, err := req.RequireString("case_number")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	c, err := s.cases.GetByNumber(ctx, caseNumber)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if c == nil {
		return mcp.NewToolResultError(domain.NewError(domain.ErrCaseNotFound, "get case", caseNumber).Error()), nil
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(payload)), nil
}
