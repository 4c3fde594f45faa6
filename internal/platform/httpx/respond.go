// Package httpx carries the JSON helpers shared by every handler. Error
// responses follow RFC 7807 problem details.
package httpx

import (
	"encoding/json"
	"net/http"
)

// maxBodyBytes caps request bodies; carts and drafts stay well under this.
const maxBodyBytes = 1 << 20

// ProblemDetail is an RFC 7807 problem response. Violations carries
// field-level validation failures when a request fails as a whole.
type ProblemDetail struct {
	Type       string `json:"type,omitempty"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail,omitempty"`
	Violations any    `json:"violations,omitempty"`
}

// JSON writes data with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem writes a problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// ProblemWithViolations writes a problem details response carrying the
// complete list of field violations.
func ProblemWithViolations(w http.ResponseWriter, status int, title string, violations any) {
	JSON(w, status, ProblemDetail{
		Title:      title,
		Status:     status,
		Violations: violations,
	})
}

// DecodeJSON decodes the request body into target, enforcing the body cap.
func DecodeJSON(r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(target)
}
