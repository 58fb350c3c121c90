package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayusman/abhinaya/internal/overlay"
	"github.com/ayusman/abhinaya/internal/store"
)

// AssetHandler handles HTTP requests for the accessory catalog.
type AssetHandler struct {
	store  *store.Store
	ctrl   Controller
	logger *zap.SugaredLogger
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(s *store.Store, ctrl Controller, logger *zap.SugaredLogger) *AssetHandler {
	return &AssetHandler{store: s, ctrl: ctrl, logger: logger}
}

// ServeHTTP routes /api/assets, /api/assets/select and /api/assets/{id}.
func (h *AssetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/assets")
	path = strings.TrimPrefix(path, "/")

	switch {
	case path == "":
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case path == "select":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.selectAsset(w, r)
	default:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, path)
		case http.MethodDelete:
			h.delete(w, r, path)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

type createAssetRequest struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type selectAssetRequest struct {
	Index int `json:"index"`
	// Direction is 1 to slide in from above, -1 from below. Zero means 1.
	Direction int `json:"direction"`
}

type assetResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	Position  int    `json:"position"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

type listAssetsResponse struct {
	Assets        []assetResponse `json:"assets"`
	Current       int             `json:"current"`
	Target        int             `json:"target"`
	Transitioning bool            `json:"transitioning"`
}

func (h *AssetHandler) toResponse(a *store.Asset, snap overlay.Snapshot) assetResponse {
	active := snap.Current < len(snap.Assets) && snap.Assets[snap.Current] == a.Name
	return assetResponse{
		ID:        a.ID,
		Name:      a.Name,
		Path:      a.Path,
		Position:  a.Position,
		Active:    active,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

// list handles GET /api/assets.
func (h *AssetHandler) list(w http.ResponseWriter, r *http.Request) {
	assets, err := h.store.Assets().List()
	if err != nil {
		h.logger.Errorw("list assets", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list assets")
		return
	}

	snap := h.ctrl.Snapshot()
	response := listAssetsResponse{
		Assets:        make([]assetResponse, 0, len(assets)),
		Current:       snap.Current,
		Target:        snap.Target,
		Transitioning: snap.Transitioning,
	}
	for _, a := range assets {
		response.Assets = append(response.Assets, h.toResponse(a, snap))
	}
	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/assets/{id}.
func (h *AssetHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	a, err := h.store.Assets().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Asset not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get asset")
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(a, h.ctrl.Snapshot()))
}

// create handles POST /api/assets. The model is loaded before the catalog
// entry is written, so a broken file never reaches the catalog.
func (h *AssetHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name == "" || req.Path == "" {
		writeError(w, http.StatusBadRequest, "Name and path are required")
		return
	}

	switch _, err := h.store.Assets().GetByName(req.Name); {
	case err == nil:
		writeError(w, http.StatusConflict, "Asset name already exists")
		return
	case !errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusInternalServerError, "Failed to check asset")
		return
	}

	if err := h.ctrl.AddAsset(req.Name, req.Path); err != nil {
		h.logger.Warnw("load asset", "name", req.Name, "path", req.Path, "error", err)
		writeError(w, http.StatusBadRequest, "Failed to load model: "+err.Error())
		return
	}

	a := &store.Asset{ID: uuid.New().String(), Name: req.Name, Path: req.Path}
	if err := h.store.Assets().Create(a); err != nil {
		h.logger.Errorw("create asset", "name", req.Name, "error", err)
		if rmErr := h.ctrl.RemoveAsset(req.Name); rmErr != nil {
			h.logger.Warnw("unload asset after failed create", "name", req.Name, "error", rmErr)
		}
		writeError(w, http.StatusInternalServerError, "Failed to create asset")
		return
	}
	writeJSON(w, http.StatusCreated, h.toResponse(a, h.ctrl.Snapshot()))
}

// delete handles DELETE /api/assets/{id}.
func (h *AssetHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	a, err := h.store.Assets().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Asset not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get asset")
		return
	}
	if err := h.store.Assets().Delete(id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete asset")
		return
	}
	if err := h.ctrl.RemoveAsset(a.Name); err != nil && !errors.Is(err, overlay.ErrNoSuchAsset) {
		h.logger.Warnw("unload asset", "name", a.Name, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// selectAsset handles POST /api/assets/select.
func (h *AssetHandler) selectAsset(w http.ResponseWriter, r *http.Request) {
	var req selectAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	dir := overlay.Next
	if req.Direction < 0 {
		dir = overlay.Previous
	}

	if err := h.ctrl.SelectAsset(req.Index, dir); err != nil {
		if errors.Is(err, overlay.ErrNoSuchAsset) {
			writeError(w, http.StatusNotFound, "Asset not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to select asset")
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
}
