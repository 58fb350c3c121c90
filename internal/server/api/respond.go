// Package api provides the HTTP handlers for the accessory catalog and the
// overlay placement parameters.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/abhinaya/internal/overlay"
)

// Controller is the part of the running app the API drives.
type Controller interface {
	Snapshot() overlay.Snapshot
	SelectAsset(index int, dir overlay.Direction) error
	UpdateParams(patch overlay.ParamsPatch) (overlay.Params, error)
	AddAsset(name, path string) error
	RemoveAsset(name string) error
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
