package routes

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"atlastel.gr/crm/config"
	"atlastel.gr/crm/handlers"
	"atlastel.gr/crm/middleware"
)

// RegisterRoutes wires the storage backend, the generation pipeline and
// all API routes.
func RegisterRoutes() (http.Handler, error) {
	blobs, err := handlers.NewBlobStoreFromEnv(context.Background())
	if err != nil {
		return nil, err
	}

	fileStore := handlers.NewFileStore(config.DB, blobs)
	rfpHandler := handlers.NewRFPHandler(fileStore)
	filesHandler := handlers.NewGeneratedFilesHandler(fileStore)
	codesHandler := handlers.NewProductCodesHandler(handlers.NewERPClientFromEnv())
	markupHandler := handlers.NewMarkupRuleHandler()

	r := mux.NewRouter()

	// =====================================================
	// Public Routes (no authentication)
	// =====================================================
	r.HandleFunc("/health", handleHealth).Methods("GET")
	r.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir("./uploads"))),
	)

	// =====================================================
	// Protected API Routes (require JWT authentication)
	// =====================================================
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.SecurityMiddleware)
	api.Use(middleware.JWTMiddleware)

	// RFP generation pipeline
	api.HandleFunc("/surveys/{id}/rfp", rfpHandler.GenerateRFP).Methods("POST")
	api.HandleFunc("/surveys/{id}/bom", rfpHandler.GenerateBOM).Methods("POST")
	api.HandleFunc("/rfps/{id}/excel", rfpHandler.RegenerateExcel).Methods("POST")

	// Generated file listings
	api.HandleFunc("/leads/{id}/files", filesHandler.ListLeadFiles).Methods("GET")
	api.HandleFunc("/customers/{id}/files", filesHandler.ListCustomerFiles).Methods("GET")

	// Product code updates (persist + best-effort ERP push)
	api.HandleFunc("/products/codes", codesHandler.UpdateProductCodes).Methods("POST")

	// Markup rule administration
	api.HandleFunc("/markup-rules", markupHandler.ListMarkupRules).Methods("GET")
	api.HandleFunc("/markup-rules", markupHandler.CreateMarkupRule).Methods("POST")
	api.HandleFunc("/markup-rules/{id}", markupHandler.GetMarkupRule).Methods("GET")
	api.HandleFunc("/markup-rules/{id}", markupHandler.UpdateMarkupRule).Methods("PUT")
	api.HandleFunc("/markup-rules/{id}", markupHandler.DeleteMarkupRule).Methods("DELETE")

	return r, nil
}

// handleHealth reports process liveness
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
