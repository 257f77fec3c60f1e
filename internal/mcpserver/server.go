// Package mcpserver exposes classification history and reports as Model
// Context Protocol tools over stdio.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/wildlife-vision/internal/aggregate"
	"github.com/fpang/wildlife-vision/internal/history"
)

// History is the read side of the history store.
type History interface {
	List() ([]string, error)
	Latest() (string, error)
	Load(id string) (history.Record, error)
}

// Reports exports and lists report files.
type Reports interface {
	Export(ctx context.Context, recordID string) (string, error)
	List() ([]string, error)
}

type emptyInput struct{}

type recordInput struct {
	ID string `json:"id,omitempty" jsonschema:"history record id; the newest record when empty"`
}

type historyList struct {
	Records []string `json:"records"`
}

type recordOutput struct {
	ID                   string                          `json:"id"`
	Total                int                             `json:"total"`
	ClassCounts          aggregate.ClassCounts           `json:"class_counts"`
	ImageClassifications []aggregate.ImageClassification `json:"image_classifications"`
}

type exportOutput struct {
	Record string `json:"record"`
	Report string `json:"report"`
}

type reportList struct {
	Reports []string `json:"reports"`
}

type handlers struct {
	history History
	reports Reports
}

// New returns an MCP server with the history and report tools registered.
func New(h History, r Reports, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "wildlife-vision", Version: version}, nil)
	hs := &handlers{history: h, reports: r}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_history",
		Description: "List saved classification runs, oldest first.",
	}, hs.listHistory)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "load_history",
		Description: "Load one classification run: per-label counts and per-image labels.",
	}, hs.loadHistory)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "export_report",
		Description: "Write a spreadsheet report for a classification run and return its file name.",
	}, hs.exportReport)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_reports",
		Description: "List report files, oldest first.",
	}, hs.listReports)

	return server
}

// Run serves s over stdin/stdout until ctx is done or the client disconnects.
func Run(ctx context.Context, s *mcp.Server) error {
	log.Info().Msg("MCP server listening on stdio")
	return s.Run(ctx, &mcp.StdioTransport{})
}

func (h *handlers) listHistory(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, historyList, error) {
	ids, err := h.history.List()
	if err != nil {
		return nil, historyList{}, err
	}
	return nil, historyList{Records: ids}, nil
}

func (h *handlers) loadHistory(ctx context.Context, req *mcp.CallToolRequest, in recordInput) (*mcp.CallToolResult, recordOutput, error) {
	id, err := h.resolve(in.ID)
	if err != nil {
		return nil, recordOutput{}, err
	}
	rec, err := h.history.Load(id)
	if err != nil {
		return nil, recordOutput{}, err
	}
	log.Debug().Str("record", id).Msg("MCP load_history")
	return nil, recordOutput{
		ID:                   rec.ID,
		Total:                rec.ClassCounts.Total(),
		ClassCounts:          rec.ClassCounts,
		ImageClassifications: rec.ImageClassifications,
	}, nil
}

func (h *handlers) exportReport(ctx context.Context, req *mcp.CallToolRequest, in recordInput) (*mcp.CallToolResult, exportOutput, error) {
	id, err := h.resolve(in.ID)
	if err != nil {
		return nil, exportOutput{}, err
	}
	name, err := h.reports.Export(ctx, id)
	if err != nil {
		return nil, exportOutput{}, err
	}
	return nil, exportOutput{Record: id, Report: name}, nil
}

func (h *handlers) listReports(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, reportList, error) {
	names, err := h.reports.List()
	if err != nil {
		return nil, reportList{}, err
	}
	return nil, reportList{Reports: names}, nil
}

func (h *handlers) resolve(id string) (string, error) {
	if id != "" {
		return id, nil
	}
	latest, err := h.history.Latest()
	if err != nil {
		return "", fmt.Errorf("no history records: %w", err)
	}
	return latest, nil
}
