// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Daybook tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/daybook-labs/daybook/internal/apperr"
	"github.com/daybook-labs/daybook/internal/daycal"
	"github.com/daybook-labs/daybook/internal/journal"
	"github.com/daybook-labs/daybook/internal/profile"
)

// Journal is the reflection surface the MCP tools need.
type Journal interface {
	Save(ctx context.Context, dateKey, body string) (*journal.Entry, error)
	Get(ctx context.Context, author, dateKey string) (*journal.Entry, error)
	List(ctx context.Context, author string, limit int) ([]journal.Entry, error)
}

// Searcher is the profile search surface the MCP tools need.
type Searcher interface {
	Search(ctx context.Context, text string, limit int) ([]profile.Profile, error)
}

// LocalSearcher is the cached name search consulted when the live search
// channel is down.
type LocalSearcher interface {
	Search(query string, limit int) ([]profile.Profile, error)
}

// Server wraps the MCP server with Daybook tools.
type Server struct {
	mcp      *server.MCPServer
	self     string
	journal  Journal
	searcher Searcher
	local    LocalSearcher
}

// New creates a new MCP server with all Daybook tools registered. self is
// the acting user's public key; local may be nil.
func New(self string, jrnl Journal, searcher Searcher, local LocalSearcher) *Server {
	s := &Server{self: self, journal: jrnl, searcher: searcher, local: local}

	s.mcp = server.NewMCPServer(
		"Daybook",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("save_reflection",
		mcp.WithDescription("Save the daily reflection for a date, replacing any earlier one for the same date."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Date key in YYYY-MM-DD form; must not be in the future")),
		mcp.WithString("body", mcp.Required(), mcp.Description("Free-text reflection body")),
	), s.saveReflection)

	s.mcp.AddTool(mcp.NewTool("read_reflection",
		mcp.WithDescription("Read the current reflection for a date."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Date key in YYYY-MM-DD form")),
	), s.readReflection)

	s.mcp.AddTool(mcp.NewTool("list_reflections",
		mcp.WithDescription("List saved reflections, newest first."),
	), s.listReflections)

	s.mcp.AddTool(mcp.NewTool("day_content",
		mcp.WithDescription("Get the quote, prompt, and affirmation assigned to a date, plus its day-of-year."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Date key in YYYY-MM-DD form")),
	), s.dayContent)

	s.mcp.AddTool(mcp.NewTool("search_profiles",
		mcp.WithDescription("Substring search of community profiles by name (minimum 2 characters)."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
	), s.searchProfiles)

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

func (s *Server) saveReflection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body, err := req.RequireString("body")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := s.journal.Save(ctx, date, body)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s (day %d)", entry.DateKey, entry.Day)), nil
}

func (s *Server) readReflection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := s.journal.Get(ctx, s.self, date)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("no reflection for %s", date)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(entry.Body), nil
}

func (s *Server) listReflections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.journal.List(ctx, s.self, 100)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	type item struct {
		Date string `json:"date"`
		Day  int    `json:"day"`
		Body string `json:"body"`
	}
	items := make([]item, 0, len(entries))
	for _, e := range entries {
		items = append(items, item{Date: e.DateKey, Day: e.Day, Body: e.Body})
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) dayContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dateKey, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date, err := daycal.ParseDateKey(dateKey)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	day := daycal.DayOfYear(date)
	content := daycal.ContentFor(day)
	out, _ := json.MarshalIndent(map[string]any{
		"date":        dateKey,
		"day":         day,
		"total_days":  daycal.TotalDays(date.Year()),
		"unlocked":    daycal.IsUnlocked(date),
		"quote":       content.Quote,
		"prompt":      content.Prompt,
		"affirmation": content.Affirmation,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchProfiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	profiles, err := s.searcher.Search(ctx, query, 10)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotConnected) || s.local == nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		// Channel down: answer from the local profile cache instead.
		profiles, err = s.local.Search(query, 10)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	type item struct {
		PubKey string `json:"pubkey"`
		Label  string `json:"label"`
		NIP05  string `json:"nip05,omitempty"`
	}
	items := make([]item, 0, len(profiles))
	for i := range profiles {
		p := &profiles[i]
		items = append(items, item{PubKey: p.PubKey, Label: p.Label(), NIP05: p.NIP05})
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
