package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/showcase/internal/errors"
	"github.com/hpungsan/showcase/internal/ops"
	"github.com/hpungsan/showcase/internal/slug"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	svc *ops.Service
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc *ops.Service) *Handlers {
	return &Handlers{svc: svc}
}

// GetSketchRequest is the gallery_get_sketch argument object.
type GetSketchRequest struct {
	Slug string `json:"slug"`
}

// HandleListSketches handles gallery_list_sketches.
func (h *Handlers) HandleListSketches(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sketches, err := h.svc.ListSketches()
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"sketches": sketches})
}

// HandleGetSketch handles gallery_get_sketch.
func (h *Handlers) HandleGetSketch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetSketchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	id := slug.Parse(input.Slug)
	if id == "" {
		return errorResult(errors.NewInvalidRequest("slug is required")), nil
	}

	view, err := h.svc.GetSketch(id)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(view)
}

// HandleListFolders handles gallery_list_folders.
func (h *Handlers) HandleListFolders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folders, err := h.svc.ListFolders()
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"folders": folders})
}

// HandleSnapshot handles gallery_snapshot.
func (h *Handlers) HandleSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := h.svc.Snapshot()
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(snap)
}

// errorResult renders err as an IsError result. Internal errors carry a
// fixed message so paths and driver errors stay out of the client.
func errorResult(err error) *mcp.CallToolResult {
	sErr := errors.As(err)
	errorObj := map[string]any{
		"code":    sErr.Code,
		"message": sErr.Message,
		"status":  sErr.Status,
	}
	if sErr.Code == errors.ErrInternal {
		errorObj["message"] = "an internal error occurred"
	} else if sErr.Details != nil {
		errorObj["details"] = sErr.Details
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
