package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/hpungsan/showcase/internal/errors"
	"github.com/hpungsan/showcase/internal/journal"
	"github.com/hpungsan/showcase/internal/ops"
	"github.com/hpungsan/showcase/internal/slug"
	"github.com/hpungsan/showcase/internal/validate"
)

// sketchRequest is the POST /api/sketches body. Dimensions stay raw so that
// non-integers and out-of-range values get the same field error.
type sketchRequest struct {
	Author      string      `json:"author"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	URL         string      `json:"url"`
	Width       json.Number `json:"width"`
	Height      json.Number `json:"height"`
	Week        string      `json:"week"`
}

// sketchPatchRequest is the PATCH /api/sketches/{slug} body. Absent or null
// fields are left unchanged.
type sketchPatchRequest struct {
	Author      *string      `json:"author"`
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	URL         *string      `json:"url"`
	Width       *json.Number `json:"width"`
	Height      *json.Number `json:"height"`
	Week        *string      `json:"week"`
}

type folderPatchRequest struct {
	ID        *string `json:"id"`
	Name      *string `json:"name"`
	IsDefault *bool   `json:"isDefault"`
}

func dimension(field string, n json.Number) (int, error) {
	v, ok := validate.DimensionNumber(n)
	if !ok {
		return 0, validate.DimensionError(field)
	}
	return v, nil
}

func optionalDimension(field string, n *json.Number) (*int, error) {
	if n == nil {
		return nil, nil
	}
	v, err := dimension(field, *n)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// handleListSketches handles GET /api/sketches.
func (s *Server) handleListSketches(w http.ResponseWriter, r *http.Request) {
	sketches, err := s.svc.ListSketches()
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, sketches)
}

// handleListFolders handles GET /api/folders.
func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := s.svc.ListFolders()
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, folders)
}

// handleGallery handles GET /api/gallery: the projected snapshot.
func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Snapshot()
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateSketch handles POST /api/sketches.
func (s *Server) handleCreateSketch(w http.ResponseWriter, r *http.Request) {
	var req sketchRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}

	width, err := dimension("width", req.Width)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	height, err := dimension("height", req.Height)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	view, err := s.svc.CreateSketch(r.Context(), ops.SketchInput{
		Author:      req.Author,
		Title:       req.Title,
		Description: req.Description,
		URL:         req.URL,
		Width:       width,
		Height:      height,
		Week:        req.Week,
	})
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, view)
}

// handleUpdateSketch handles PATCH /api/sketches/{slug}.
func (s *Server) handleUpdateSketch(w http.ResponseWriter, r *http.Request) {
	id := slug.Parse(mux.Vars(r)["slug"])

	var req sketchPatchRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}

	width, err := optionalDimension("width", req.Width)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	height, err := optionalDimension("height", req.Height)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	view, err := s.svc.UpdateSketch(r.Context(), id, ops.SketchPatch{
		Author:      req.Author,
		Title:       req.Title,
		Description: req.Description,
		URL:         req.URL,
		Width:       width,
		Height:      height,
		Week:        req.Week,
	})
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, view)
}

// handleDeleteSketch handles DELETE /api/sketches/{slug}.
func (s *Server) handleDeleteSketch(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.DeleteSketch(r.Context(), slug.Parse(mux.Vars(r)["slug"]))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// handleCreateFolder handles POST /api/folders.
func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req ops.FolderInput
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}
	folder, err := s.svc.CreateFolder(r.Context(), req)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, folder)
}

// handleUpdateFolder handles PUT /api/folders/{id}.
func (s *Server) handleUpdateFolder(w http.ResponseWriter, r *http.Request) {
	var req folderPatchRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}
	folder, err := s.svc.UpdateFolder(r.Context(), mux.Vars(r)["id"], ops.FolderPatch{
		ID:        req.ID,
		Name:      req.Name,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, folder)
}

// handleDeleteFolder handles DELETE /api/folders/{id}.
func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.DeleteFolder(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// handleHistory handles GET /api/history?limit=N.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := journal.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.renderError(w, r, errors.NewInvalidRequest("limit must be a positive integer"))
			return
		}
		limit = n
	}
	out, err := s.svc.History(r.Context(), limit)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}
