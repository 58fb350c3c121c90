package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/abhinaya/internal/overlay"
)

// ParamsHandler reads and patches the overlay placement parameters.
type ParamsHandler struct {
	ctrl Controller
}

// NewParamsHandler creates a new ParamsHandler.
func NewParamsHandler(ctrl Controller) *ParamsHandler {
	return &ParamsHandler{ctrl: ctrl}
}

// ServeHTTP handles GET and PATCH /api/params.
func (h *ParamsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.ctrl.Snapshot().Params)
	case http.MethodPatch:
		var patch overlay.ParamsPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		params, err := h.ctrl.UpdateParams(patch)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, params)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
