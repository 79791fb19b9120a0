package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"rechtsbron/internal/grounding"
	"rechtsbron/internal/knowledge"
	"rechtsbron/internal/legalcontext"
	"rechtsbron/internal/search"
	"rechtsbron/internal/sources"
	"rechtsbron/internal/terms"
)

type backendFunc func(ctx context.Context, req search.Request) ([]search.SearchResult, error)

func (f backendFunc) Search(ctx context.Context, req search.Request) ([]search.SearchResult, error) {
	return f(ctx, req)
}

type ToolsSuite struct {
	suite.Suite
	tools   *Tools
	queries []string
}

func TestToolsSuite(t *testing.T) {
	suite.Run(t, new(ToolsSuite))
}

func (s *ToolsSuite) SetupTest() {
	s.queries = nil
	reg := knowledge.Default()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	backend := backendFunc(func(_ context.Context, req search.Request) ([]search.SearchResult, error) {
		if req.Category != search.CategoryWetten {
			return nil, nil
		}
		s.queries = append(s.queries, req.Query)
		return []search.SearchResult{{
			Title:   "Wetboek van Strafvordering",
			Link:    "https://wetten.overheid.nl/BWBR0001903",
			Snippet: "Vorderen van gegevens",
		}}, nil
	})
	var clients []*search.CategoryClient
	for _, c := range search.Categories {
		clients = append(clients, search.NewCategoryClient(c, backend, nil))
	}
	svc := grounding.NewService(
		legalcontext.NewAnalyzer(reg),
		search.NewAggregator(clients, search.WithLogger(logger)),
		terms.NewExtractor(reg),
		grounding.WithLogger(logger),
	)
	s.tools = NewTools(svc, sources.New(sources.DefaultTable), logger)
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return tc.Text
}

func (s *ToolsSuite) TestAnalyzeQuestion() {
	res, err := s.tools.AnalyzeQuestion(context.Background(), call(map[string]any{
		"question": "Mag de politie camerabeelden van het ziekenhuis vorderen?",
	}))
	s.Require().NoError(err)
	s.False(res.IsError)

	var analysis legalcontext.Analysis
	s.Require().NoError(json.Unmarshal([]byte(text(s.T(), res)), &analysis))
	s.Equal("ziekenhuis", analysis.Contexts[0].DomainID)
}

func (s *ToolsSuite) TestMissingArgumentIsToolError() {
	for name, handler := range map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"question": s.tools.AnalyzeQuestion,
		"query":    s.tools.SearchSources,
		"text":     s.tools.ExtractTerms,
		"url":      s.tools.ClassifySource,
	} {
		res, err := handler(context.Background(), call(map[string]any{name: "  "}))
		s.Require().NoError(err)
		s.True(res.IsError, name)
		s.Equal(name+" is required", text(s.T(), res))
	}
}

func (s *ToolsSuite) TestSearchSources() {
	res, err := s.tools.SearchSources(context.Background(), call(map[string]any{
		"query":       "vorderen camerabeelden",
		"extra_terms": []any{"artikel 126nf Sv", "Artikel 126NF Sv"},
	}))
	s.Require().NoError(err)

	out := text(s.T(), res)
	s.Contains(out, "=== WETGEVING ===")
	s.Contains(out, "Bron: Wetten.overheid.nl")
	s.Require().Len(s.queries, 1)
	s.Contains(s.queries[0], "vorderen camerabeelden artikel 126nf Sv")
}

func (s *ToolsSuite) TestBuildGrounding() {
	res, err := s.tools.BuildGrounding(context.Background(), call(map[string]any{
		"question":     "Mag de politie camerabeelden van het ziekenhuis vorderen?",
		"draft_answer": "Zie artikel 126nf Sv.",
	}))
	s.Require().NoError(err)
	s.False(res.IsError)

	out := text(s.T(), res)
	s.Contains(out, "=== JURIDISCHE CONTEXT ===")
	s.Contains(out, "=== WETGEVING ===")
}

func (s *ToolsSuite) TestBuildGrounding_CancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.tools.BuildGrounding(ctx, call(map[string]any{"question": "huur"}))
	s.Require().NoError(err)
	s.True(res.IsError)
}

func (s *ToolsSuite) TestExtractTermsAndClassify() {
	res, err := s.tools.ExtractTerms(context.Background(), call(map[string]any{
		"text": "Zie art. 7:457 BW en ECLI:NL:HR:2019:1234",
	}))
	s.Require().NoError(err)
	s.JSONEq(`{"terms":["artikel 7:457 BW","ECLI:NL:HR:2019:1234"]}`, text(s.T(), res))

	res, err = s.tools.ClassifySource(context.Background(), call(map[string]any{
		"url": "https://boetebase.om.nl/feitcode/R315",
	}))
	s.Require().NoError(err)
	s.JSONEq(`{"url":"https://boetebase.om.nl/feitcode/R315","source":"Boetebase OM"}`, text(s.T(), res))
}

func TestNew_RegistersTools(t *testing.T) {
	s := New(nil, nil, nil, "test")

	resp := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	for _, name := range []string{"analyze-question", "search-sources", "build-grounding", "extract-terms", "classify-source"} {
		assert.Contains(t, string(data), `"name":"`+name+`"`)
	}
}
