// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes conversion and context-stack tools for LLM integration via stdio
// transport. The tools are thin wrappers over the extraction and
// persistence collaborators; they never touch the live session.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nibzard/ctxt/internal/extract"
	"github.com/nibzard/ctxt/internal/published"
	"github.com/nibzard/ctxt/internal/serializer"
	"github.com/nibzard/ctxt/internal/session"
	"github.com/nibzard/ctxt/internal/tokencount"
)

// Server wraps the MCP server with ctxt tools.
type Server struct {
	mcp       *server.MCPServer
	repo      *published.Repo
	extractor *extract.Client
}

// New creates a new MCP server with all ctxt tools registered.
func New(repo *published.Repo, extractor *extract.Client) *Server {
	s := &Server{repo: repo, extractor: extractor}

	s.mcp = server.NewMCPServer(
		"ctxt",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("convert_url",
		mcp.WithDescription("Fetch a web page and convert its main content to clean markdown."),
		mcp.WithString("url", mcp.Required(), mcp.Description("The http(s) URL to convert")),
	), s.convertURL)

	s.mcp.AddTool(mcp.NewTool("create_context_stack",
		mcp.WithDescription("Publish a context stack from flattened markdown and return its permanent id. "+
			"Blocks are separated by a '---' line; a source block starts with a '# Title' heading "+
			"followed by a 'Source: <url>' attribution line."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Human-readable stack name")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Flattened markdown content of the stack")),
	), s.createStack)

	s.mcp.AddTool(mcp.NewTool("get_context_stack",
		mcp.WithDescription("Fetch a published context stack by permanent id or slug."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Permanent id or slug")),
		mcp.WithString("format", mcp.Description("Output format: markdown (default), xml, or json")),
	), s.getStack)

	s.mcp.AddTool(mcp.NewTool("list_context_stacks",
		mcp.WithDescription("List recently published context stacks."),
	), s.listStacks)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) convertURL(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ex, err := s.extractor.Fetch(ctx, url)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(map[string]any{
		"source_url":     ex.SourceURL,
		"title":          ex.Title,
		"description":    ex.Description,
		"content":        ex.Body,
		"token_estimate": tokencount.Estimate(ex.Body),
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createStack(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(content) == "" {
		return mcp.NewToolResultError("content must not be empty"), nil
	}

	id, err := s.repo.Publish(ctx, name, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("published: %s", id)), nil
}

func (s *Server) getStack(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	stack, err := s.repo.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	_ = s.repo.IncrementUseCount(ctx, stack.ID)

	format := session.FormatMarkdown
	if f, fErr := req.RequireString("format"); fErr == nil && f != "" {
		format = f
	}

	switch format {
	case session.FormatMarkdown:
		return mcp.NewToolResultText(stack.Content), nil
	case session.FormatXML:
		blocks := serializer.DecodeMarkdown(stack.Content)
		return mcp.NewToolResultText(serializer.EncodeXML(stack.Name, blocks)), nil
	case session.FormatJSON:
		blocks := serializer.DecodeMarkdown(stack.Content)
		out, encErr := serializer.EncodeJSON(stack.Name, blocks, time.Now())
		if encErr != nil {
			return mcp.NewToolResultError(encErr.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown format: %s", format)), nil
	}
}

func (s *Server) listStacks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stacks, err := s.repo.List(ctx, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(stacks) == 0 {
		return mcp.NewToolResultText("no published stacks"), nil
	}
	var lines []string
	for _, st := range stacks {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", st.ID, st.Slug, st.Name))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}
