package contract

import "encoding/json"

// Request is the guest-visible request object handed to an entry point.
type Request struct {
	Path    string            `json:"path"`
	Method  string            `json:"method"`
	Query   map[string]string `json:"query"`
	Headers map[string]string `json:"headers"`
	Params  map[string]string `json:"params"`
	IP      string            `json:"ip"`
}

// Response is the structured result an entry point returns (or the fixed
// error shape substituted for it).
type Response struct {
	Status  int               `json:"status"`
	Body    json.RawMessage   `json:"body"`
	Headers map[string]string `json:"headers,omitempty"`
}

// ErrorResponse builds the standard {status:500, body:{error:...}} result.
func ErrorResponse(msg string) Response {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return Response{Status: 500, Body: body}
}
