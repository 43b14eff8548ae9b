// Package httpresp writes the gateway's standardized ApiResponse envelope
// onto an http.ResponseWriter. It is a leaf package depending only on
// contracts so that auth and httpapi can both call it without forming an
// import cycle between each other.
package httpresp

import (
	"encoding/json"
	"net/http"

	"github.com/relaygate/gateway/contracts"
)

// WriteSuccess writes a 2xx ApiResponse envelope.
func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	writeEnvelope(w, status, contracts.NewSuccessResponse(status, http.StatusText(status), data))
}

// WriteError writes an ApiResponse error envelope. Its message is always the
// standard HTTP status text for status; detail goes into the error field.
func WriteError(w http.ResponseWriter, status int, detail string) {
	message := http.StatusText(status)
	writeEnvelope(w, status, contracts.NewErrorResponse(status, message, detail))
}

func writeEnvelope(w http.ResponseWriter, status int, body contracts.ApiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
