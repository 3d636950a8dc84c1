package rest

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fee-ledger/internal/clients"
)

// downloadFile serves a finished export from local storage under its
// original file name.
func (h *Handler) downloadFile(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	path, err := h.Files.Resolve(file)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", clients.DisplayName(file)))
	http.ServeFile(w, r, path)
}
