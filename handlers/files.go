package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"atlastel.gr/crm/models"
)

// GeneratedFilesHandler exposes read access to an entity's generated files.
type GeneratedFilesHandler struct {
	files *FileStore
}

func NewGeneratedFilesHandler(files *FileStore) *GeneratedFilesHandler {
	return &GeneratedFilesHandler{files: files}
}

// ListLeadFiles returns a lead's generated files, newest first
func (h *GeneratedFilesHandler) ListLeadFiles(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, models.EntityTypeLead)
}

// ListCustomerFiles returns a customer's generated files, newest first
func (h *GeneratedFilesHandler) ListCustomerFiles(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, models.EntityTypeCustomer)
}

func (h *GeneratedFilesHandler) list(w http.ResponseWriter, r *http.Request, entityType models.EntityType) {
	vars := mux.Vars(r)
	entityID, err := uuid.Parse(vars["id"])
	if err != nil {
		http.Error(w, "Invalid entity id", http.StatusBadRequest)
		return
	}

	files, err := h.files.ListEntityFiles(entityID, entityType)
	if err != nil {
		http.Error(w, "Failed to fetch files: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(files)
}
