package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/daybook-labs/daybook/internal/apperr"
	"github.com/daybook-labs/daybook/internal/daycal"
	"github.com/daybook-labs/daybook/internal/journal"
	"github.com/daybook-labs/daybook/internal/profile"
)

const selfKey = "0000000000000000000000000000000000000000000000000000000000000001"

type memJournal struct {
	entries map[string]journal.Entry
}

func (m *memJournal) Save(_ context.Context, dateKey, body string) (*journal.Entry, error) {
	date, err := daycal.ParseDateKey(dateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}
	e := journal.Entry{
		Author:      selfKey,
		DateKey:     dateKey,
		Day:         daycal.DayOfYear(date),
		Body:        body,
		PublishedAt: time.Now(),
	}
	m.entries[dateKey] = e
	return &e, nil
}

func (m *memJournal) Get(_ context.Context, _, dateKey string) (*journal.Entry, error) {
	e, ok := m.entries[dateKey]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &e, nil
}

func (m *memJournal) List(context.Context, string, int) ([]journal.Entry, error) {
	out := make([]journal.Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

type memSearcher struct {
	down bool
}

func (m memSearcher) Search(_ context.Context, text string, _ int) ([]profile.Profile, error) {
	if m.down {
		return nil, apperr.ErrNotConnected
	}
	if len(text) < 2 {
		return nil, nil
	}
	return []profile.Profile{{
		PubKey: "aaaa000000000000000000000000000000000000000000000000000000000001",
		Name:   "alice",
	}}, nil
}

type memLocalSearch struct {
	profiles []profile.Profile
}

func (m memLocalSearch) Search(string, int) ([]profile.Profile, error) {
	return m.profiles, nil
}

func testServer(t *testing.T) *Server {
	t.Helper()
	return New(selfKey, &memJournal{entries: make(map[string]journal.Entry)}, memSearcher{}, nil)
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "save_reflection":
		result, err = srv.saveReflection(ctx, req)
	case "read_reflection":
		result, err = srv.readReflection(ctx, req)
	case "list_reflections":
		result, err = srv.listReflections(ctx, req)
	case "day_content":
		result, err = srv.dayContent(ctx, req)
	case "search_profiles":
		result, err = srv.searchProfiles(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestSaveAndReadReflection(t *testing.T) {
	srv := testServer(t)

	res := callTool(t, srv, "save_reflection", map[string]interface{}{
		"date": "2024-12-06",
		"body": "a good day",
	})
	if res.IsError {
		t.Fatalf("save failed: %s", resultText(res))
	}
	if !strings.Contains(resultText(res), "day 341") {
		t.Fatalf("save result %q", resultText(res))
	}

	res = callTool(t, srv, "read_reflection", map[string]interface{}{"date": "2024-12-06"})
	if res.IsError {
		t.Fatalf("read failed: %s", resultText(res))
	}
	if resultText(res) != "a good day" {
		t.Fatalf("read result %q", resultText(res))
	}
}

func TestReadMissingReflection(t *testing.T) {
	srv := testServer(t)
	res := callTool(t, srv, "read_reflection", map[string]interface{}{"date": "2024-01-01"})
	if !res.IsError {
		t.Fatal("expected error result for missing reflection")
	}
}

func TestListReflections(t *testing.T) {
	srv := testServer(t)
	callTool(t, srv, "save_reflection", map[string]interface{}{"date": "2024-12-05", "body": "one"})
	callTool(t, srv, "save_reflection", map[string]interface{}{"date": "2024-12-06", "body": "two"})

	res := callTool(t, srv, "list_reflections", nil)
	if res.IsError {
		t.Fatalf("list failed: %s", resultText(res))
	}
	text := resultText(res)
	if !strings.Contains(text, "2024-12-05") || !strings.Contains(text, "2024-12-06") {
		t.Fatalf("list result %q", text)
	}
}

func TestDayContent(t *testing.T) {
	srv := testServer(t)
	res := callTool(t, srv, "day_content", map[string]interface{}{"date": "2024-12-06"})
	if res.IsError {
		t.Fatalf("day_content failed: %s", resultText(res))
	}
	text := resultText(res)
	if !strings.Contains(text, `"day": 341`) || !strings.Contains(text, `"total_days": 366`) {
		t.Fatalf("day_content result %q", text)
	}

	res = callTool(t, srv, "day_content", map[string]interface{}{"date": "nonsense"})
	if !res.IsError {
		t.Fatal("expected error for bad date key")
	}
}

func TestSearchProfiles(t *testing.T) {
	srv := testServer(t)
	res := callTool(t, srv, "search_profiles", map[string]interface{}{"query": "ali"})
	if res.IsError {
		t.Fatalf("search failed: %s", resultText(res))
	}
	if !strings.Contains(resultText(res), "alice") {
		t.Fatalf("search result %q", resultText(res))
	}

	res = callTool(t, srv, "search_profiles", map[string]interface{}{})
	if !res.IsError {
		t.Fatal("expected error for missing query")
	}
}

func TestSearchProfilesFallsBackToCache(t *testing.T) {
	jrnl := &memJournal{entries: make(map[string]journal.Entry)}
	local := memLocalSearch{profiles: []profile.Profile{{
		PubKey: "aaaa000000000000000000000000000000000000000000000000000000000001",
		Name:   "alice",
	}}}
	srv := New(selfKey, jrnl, memSearcher{down: true}, local)

	res := callTool(t, srv, "search_profiles", map[string]interface{}{"query": "ali"})
	if res.IsError {
		t.Fatalf("search failed: %s", resultText(res))
	}
	if !strings.Contains(resultText(res), "alice") {
		t.Fatalf("search result %q", resultText(res))
	}

	// Without a cache the outage surfaces as an error result.
	down := New(selfKey, jrnl, memSearcher{down: true}, nil)
	res = callTool(t, down, "search_profiles", map[string]interface{}{"query": "ali"})
	if !res.IsError {
		t.Fatal("expected error result with no cache available")
	}
}
