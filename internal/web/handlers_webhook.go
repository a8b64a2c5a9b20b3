package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/JonMunkholm/charterops/internal/etl"
)

// handleWooCommerce ingests an order webhook. The signature middleware has
// already verified the body when a secret is configured.
func (s *Server) handleWooCommerce(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.Webhook.MaxBodySize))
	if err != nil {
		respondError(w, r, err, nil)
		return
	}

	// WooCommerce pings a new webhook with a form body before the first
	// delivery.
	if bytes.HasPrefix(bytes.TrimSpace(body), []byte("webhook_id=")) {
		writeJSON(w, http.StatusOK, etl.WebhookResult{Status: "ok", Message: "ping acknowledged"})
		return
	}

	res, err := s.service.SyncWooCommerceOrder(r.Context(), body)
	if err != nil {
		respondError(w, r, err, nil)
		return
	}
	writeJSON(w, webhookStatus(res), res)
}

// handleWordPress ingests a form submission sent as JSON or as a URL-encoded
// or multipart form.
func (s *Server) handleWordPress(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Webhook.MaxBodySize)

	fields, err := readFormFields(r)
	if err != nil {
		respondError(w, r, err, nil)
		return
	}

	res, err := s.service.SyncWordPressForm(r.Context(), fields)
	if err != nil {
		respondError(w, r, err, nil)
		return
	}
	writeJSON(w, webhookStatus(res), res)
}

func readFormFields(r *http.Request) (map[string]string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		var raw map[string]any
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", etl.ErrInvalidPayload, err)
		}
		return etl.FormValues(raw), nil
	}

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			return nil, fmt.Errorf("%w: %v", etl.ErrInvalidPayload, err)
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: %v", etl.ErrInvalidPayload, err)
	}

	fields := make(map[string]string, len(r.PostForm))
	for k, vals := range r.PostForm {
		fields[k] = strings.Join(vals, ", ")
	}
	return fields, nil
}

func webhookStatus(res etl.WebhookResult) int {
	if res.Status == etl.WebhookCreated {
		return http.StatusCreated
	}
	return http.StatusOK
}
