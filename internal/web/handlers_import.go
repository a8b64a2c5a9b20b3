package web

import (
	"context"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/charterops/internal/etl"
)

// handleImport runs a spreadsheet import. The body is either the raw CSV
// text or a multipart form with a "file" part. ?dry_run=true parses and
// reports without writing.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	source, err := etl.ParseSource(chi.URLParam(r, "source"))
	if err != nil {
		respondError(w, r, err, nil)
		return
	}
	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))

	text, err := s.readImportBody(w, r)
	if err != nil {
		respondError(w, r, err, nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Import.Timeout)
	defer cancel()

	summary, err := s.service.Import(ctx, source, text, dryRun)
	if err != nil {
		if summary != nil && summary.Rows == 0 {
			summary = nil
		}
		respondError(w, r, err, summary)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) readImportBody(w http.ResponseWriter, r *http.Request) (string, error) {
	maxSize := s.cfg.Import.MaxFileSize

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return etl.ReadInput(r.Body, maxSize)
	}

	// Leave room for the multipart envelope around the file.
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		return "", err
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return "", err
	}
	defer file.Close()
	return etl.ReadInput(file, maxSize)
}
