// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Tally tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/settings"
	"github.com/starford/tally/internal/snapshot"
	"github.com/starford/tally/internal/tracker"
)

// ConfigSchemaURI is the resource URI of the metric config contract.
const ConfigSchemaURI = "tally://config-schema"

// SnapshotLister lists stored export payloads.
type SnapshotLister interface {
	List() ([]snapshot.Info, error)
}

// Server wraps the MCP server with Tally tools.
type Server struct {
	mcp   *server.MCPServer
	ctl   *tracker.Controller
	snaps SnapshotLister
}

// New creates a new MCP server with all Tally tools registered.
// snaps may be nil when export snapshots are disabled.
func New(ctl *tracker.Controller, snaps SnapshotLister) *Server {
	s := &Server{ctl: ctl, snaps: snaps}

	s.mcp = server.NewMCPServer(
		"Tally",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_period",
		mcp.WithDescription("Return today's date, the metric config and every entry of the active "+
			"(not yet exported) period, oldest first."),
	), s.getPeriod)

	s.mcp.AddTool(mcp.NewTool("cycle_score",
		mcp.WithDescription("Advance today's score for a metric: unscored or 0 → 0.5 → 1 → 0. "+
			"Only today's entry can be cycled."),
		mcp.WithString("metric", mcp.Required(), mcp.Description("Metric id from the config (e.g. meditate)")),
	), s.cycleScore)

	s.mcp.AddTool(mcp.NewTool("set_score",
		mcp.WithDescription("Set a metric score on an active entry. Value must be 0, 0.5 or 1."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Entry date, YYYY-MM-DD")),
		mcp.WithString("metric", mcp.Required(), mcp.Description("Metric id from the config")),
		mcp.WithNumber("value", mcp.Required(), mcp.Description("0, 0.5 or 1")),
	), s.setScore)

	s.mcp.AddTool(mcp.NewTool("update_notes",
		mcp.WithDescription("Replace the free-text notes of an active entry."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Entry date, YYYY-MM-DD")),
		mcp.WithString("notes", mcp.Required(), mcp.Description("New notes text (replaces the old text)")),
	), s.updateNotes)

	s.mcp.AddTool(mcp.NewTool("close_period",
		mcp.WithDescription("Export the active period to the configured webhook and archive it. "+
			"Nothing is archived if the export fails."),
	), s.closePeriod)

	s.mcp.AddTool(mcp.NewTool("get_settings",
		mcp.WithDescription("Return the metric config (as editor JSON) and the export URL."),
	), s.getSettings)

	s.mcp.AddTool(mcp.NewTool("get_config_schema",
		mcp.WithDescription("Returns the metric config format contract. "+
			"Read it before proposing config changes."),
	), s.getConfigSchema)

	s.mcp.AddTool(mcp.NewTool("list_exports",
		mcp.WithDescription("List locally stored copies of past exports, newest first."),
	), s.listExports)

	// Resource: metric config contract.
	s.mcp.AddResource(
		mcp.NewResource(ConfigSchemaURI, "Metric Config Contract",
			mcp.WithResourceDescription("JSON format of the tracked metric configuration."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readConfigSchemaResource,
	)

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

func (s *Server) getPeriod(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ctl.Resume(ctx); err != nil {
		return toolError(err), nil
	}
	return jsonResult(s.ctl.State())
}

func (s *Server) cycleScore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metric, err := req.RequireString("metric")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, err := s.ctl.CycleScore(ctx, "", metric)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s on %s: %v %s", metric, s.ctl.Today(), float64(value), value)), nil
}

func (s *Server) setScore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	metric, err := req.RequireString("metric")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireFloat("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.ctl.SetScore(ctx, date, metric, models.ScoreValue(raw)); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s on %s: %v", metric, date, raw)), nil
}

func (s *Server) updateNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, err := req.RequireString("notes")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.ctl.SaveNotes(ctx, date, notes); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("notes saved: %s", date)), nil
}

func (s *Server) closePeriod(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.ctl.ClosePeriod(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res)
}

func (s *Server) getSettings(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.ctl.State().Settings
	text, err := settings.Format(st.Config)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]string{"configText": text, "exportUrl": st.ExportURL})
}

func (s *Server) getConfigSchema(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ConfigFormatContract), nil
}

func (s *Server) listExports(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.snaps == nil {
		return mcp.NewToolResultText("export snapshots are disabled"), nil
	}
	items, err := s.snaps.List()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no exports yet"), nil
	}
	return jsonResult(items)
}

func (s *Server) readConfigSchemaResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ConfigSchemaURI,
			MIMEType: "text/markdown",
			Text:     ConfigFormatContract,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// toolError turns domain errors into messages an LLM can act on.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrMissingExportTarget):
		return mcp.NewToolResultError("no export URL configured; ask the user to set one in settings")
	case errors.Is(err, apperr.ErrPartialCommit):
		return mcp.NewToolResultError("the export was delivered but archiving failed; call close_period again to finish archiving")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}
