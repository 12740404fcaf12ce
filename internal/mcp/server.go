// Package mcp exposes read-only gallery tools over the Model Context Protocol.
package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/showcase/internal/ops"
)

// ServerName is reported to MCP clients during initialization.
const ServerName = "showcase"

type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

var toolRegistry = map[string]toolEntry{
	"gallery_list_sketches": {
		def: mcp.NewTool("gallery_list_sketches",
			mcp.WithDescription("List every sketch in the gallery with its derived slug."),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleListSketches },
	},
	"gallery_get_sketch": {
		def: mcp.NewTool("gallery_get_sketch",
			mcp.WithDescription("Fetch one sketch by slug (lowercase title and author last name joined by a hyphen)."),
			mcp.WithString("slug", mcp.Required(), mcp.Description("Sketch slug, e.g. frog-erpulat")),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetSketch },
	},
	"gallery_list_folders": {
		def: mcp.NewTool("gallery_list_folders",
			mcp.WithDescription("List the week folders, in display order."),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleListFolders },
	},
	"gallery_snapshot": {
		def: mcp.NewTool("gallery_snapshot",
			mcp.WithDescription("Return the published gallery snapshot: weeks with their sketches and rendered descriptions."),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSnapshot },
	},
}

// ToolNames returns the registered tool names, sorted.
func ToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewServer creates an MCP server with the gallery tools registered.
func NewServer(svc *ops.Service, version string) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(svc)
	for _, entry := range toolRegistry {
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run serves the MCP server over stdio until stdin closes.
func Run(svc *ops.Service, version string) error {
	return server.ServeStdio(NewServer(svc, version))
}
