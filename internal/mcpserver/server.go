// Package mcpserver exposes the grounding operations as MCP tools so that an
// assistant can call them directly.
package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"rechtsbron/internal/grounding"
	"rechtsbron/internal/grounding/handler"
	"rechtsbron/internal/legalcontext"
	"rechtsbron/internal/search"
	pstrings "rechtsbron/pkg/platform/strings"
)

// Name identifies the server to MCP clients.
const Name = "rechtsbron"

const (
	maxQuestionLength = 4000
	maxTextLength     = 20000
)

// Service is the subset of the grounding service the tools call.
type Service interface {
	Build(ctx context.Context, req grounding.Request) (*grounding.Result, error)
	Analyze(question string) legalcontext.Analysis
	Search(ctx context.Context, query string, extraTerms []string) (*search.AggregatedResults, string)
	Terms(text string) []string
}

// Classifier labels result URLs.
type Classifier interface {
	Classify(rawURL string) string
}

// Tools holds the tool handlers.
type Tools struct {
	service    Service
	classifier Classifier
	logger     *slog.Logger
}

// NewTools constructs the tool handlers.
func NewTools(service Service, classifier Classifier, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{service: service, classifier: classifier, logger: logger}
}

// New builds an MCP server with every tool registered.
func New(service Service, classifier Classifier, logger *slog.Logger, version string) *server.MCPServer {
	s := server.NewMCPServer(Name, version,
		server.WithToolCapabilities(false),
		server.WithInstructions("Dutch legal grounding: classify questions into legal domains and collect official sources per category."),
	)
	NewTools(service, classifier, logger).Register(s)
	return s
}

// Register adds the tools to s.
func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("analyze-question",
		mcp.WithDescription("Detect the legal domains of a question with their special rules, principles and required considerations"),
		mcp.WithString("question", mcp.Required(), mcp.Description("The user's question in Dutch")),
	), t.AnalyzeQuestion)

	s.AddTool(mcp.NewTool("search-sources",
		mcp.WithDescription("Search legislation, case law, disciplinary law, fines and general sources and return a grouped source block"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithArray("extra_terms", mcp.Description("Article references or law names to add to the query"), mcp.WithStringItems()),
	), t.SearchSources)

	s.AddTool(mcp.NewTool("build-grounding",
		mcp.WithDescription("Build the complete legal context and source block for a question, optionally sharpened by a draft answer"),
		mcp.WithString("question", mcp.Required(), mcp.Description("The user's question in Dutch")),
		mcp.WithString("draft_answer", mcp.Description("Draft answer mined for article references")),
	), t.BuildGrounding)

	s.AddTool(mcp.NewTool("extract-terms",
		mcp.WithDescription("Extract article references, law names and ECLI identifiers from text"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to scan")),
	), t.ExtractTerms)

	s.AddTool(mcp.NewTool("classify-source",
		mcp.WithDescription("Name the publisher of a URL"),
		mcp.WithString("url", mcp.Required(), mcp.Description("Absolute URL")),
	), t.ClassifySource)
}

// AnalyzeQuestion handles the analyze-question tool.
func (t *Tools) AnalyzeQuestion(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, errResult := requiredString(req, "question", maxQuestionLength)
	if errResult != nil {
		return errResult, nil
	}
	return jsonResult(t.service.Analyze(question))
}

// SearchSources handles the search-sources tool.
func (t *Tools) SearchSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, errResult := requiredString(req, "query", maxQuestionLength)
	if errResult != nil {
		return errResult, nil
	}
	extra := pstrings.DedupeFold(req.GetStringSlice("extra_terms", nil))

	results, text := t.service.Search(ctx, query, extra)
	if err := ctx.Err(); err != nil {
		return mcp.NewToolResultError("search cancelled"), nil
	}
	t.logger.InfoContext(ctx, "mcp sources searched",
		"results", results.Total(),
		"failed_categories", results.FailedCategories(),
	)
	if text == "" {
		return mcp.NewToolResultText("Geen bronnen gevonden."), nil
	}
	return mcp.NewToolResultText(text), nil
}

// BuildGrounding handles the build-grounding tool.
func (t *Tools) BuildGrounding(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, errResult := requiredString(req, "question", maxQuestionLength)
	if errResult != nil {
		return errResult, nil
	}
	draft := strings.TrimSpace(req.GetString("draft_answer", ""))
	if len(draft) > maxTextLength {
		return mcp.NewToolResultError("draft_answer is too long"), nil
	}

	res, err := t.service.Build(ctx, grounding.Request{Question: question, DraftAnswer: draft})
	if err != nil {
		t.logger.ErrorContext(ctx, "mcp grounding failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	if res.Context == "" {
		return mcp.NewToolResultText("Geen juridische context of bronnen gevonden."), nil
	}
	return mcp.NewToolResultText(res.Context), nil
}

// ExtractTerms handles the extract-terms tool.
func (t *Tools) ExtractTerms(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, errResult := requiredString(req, "text", maxTextLength)
	if errResult != nil {
		return errResult, nil
	}
	return jsonResult(handler.TermsResponse{Terms: t.service.Terms(text)})
}

// ClassifySource handles the classify-source tool.
func (t *Tools) ClassifySource(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, errResult := requiredString(req, "url", maxTextLength)
	if errResult != nil {
		return errResult, nil
	}
	return jsonResult(handler.ClassifyResponse{URL: raw, Source: t.classifier.Classify(raw)})
}

func requiredString(req mcp.CallToolRequest, key string, max int) (string, *mcp.CallToolResult) {
	v, err := req.RequireString(key)
	if err != nil {
		return "", mcp.NewToolResultError(key + " is required")
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", mcp.NewToolResultError(key + " is required")
	}
	if len(v) > max {
		return "", mcp.NewToolResultError(key + " is too long")
	}
	return v, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
