package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/JonMunkholm/charterops/internal/etl"
	"github.com/JonMunkholm/charterops/internal/logging"
)

// WooCommerceSignatureHeader carries base64(HMAC-SHA256(body, secret)).
const WooCommerceSignatureHeader = "X-WC-Webhook-Signature"

// ErrorResponder writes the response for a request the middleware rejects.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

// WooCommerceSignature returns middleware that verifies the WooCommerce
// webhook signature over the raw body. With an empty secret all requests
// pass through. Unsigned ping bodies (webhook_id=...) are let through so the
// webhook can be activated. The verified body is replayed to the handler.
//
// Rejections go to respond as etl.ErrInputTooLarge or etl.ErrInvalidSignature.
func WooCommerceSignature(secret string, maxBody int64, respond ErrorResponder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					err = fmt.Errorf("%w (%d bytes)", etl.ErrInputTooLarge, maxErr.Limit)
				}
				respond(w, r, err)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sig := r.Header.Get(WooCommerceSignatureHeader)
			if sig == "" && bytes.HasPrefix(bytes.TrimSpace(body), []byte("webhook_id=")) {
				next.ServeHTTP(w, r)
				return
			}

			if !ValidSignature(body, sig, secret) {
				logging.FromContext(r.Context()).Warn("webhook: invalid signature",
					"remote_addr", r.RemoteAddr,
					"signed", sig != "",
				)
				respond(w, r, etl.ErrInvalidSignature)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Sign returns the WooCommerce signature for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidSignature compares sig to the expected signature in constant time.
func ValidSignature(body []byte, sig, secret string) bool {
	if sig == "" {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(Sign(body, secret)))
}
