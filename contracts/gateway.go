package contracts

import (
	"strconv"
	"strings"
)

// AuthPrincipal is the identity extracted from a validated bearer token.
type AuthPrincipal struct {
	AccountID string   `json:"accountId"`
	Roles     []string `json:"roles,omitempty"`
	Email     string   `json:"email,omitempty"`
	Name      string   `json:"name,omitempty"`
}

// RequestEnvelope is published to a downstream service over the broker.
type RequestEnvelope struct {
	Path        string            `json:"path"`
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers,omitempty"`
	QueryParams map[string]string `json:"queryParams,omitempty"`
	Body        string            `json:"body"`
	Principal   *AuthPrincipal    `json:"principal,omitempty"`
}

// ResponseEnvelope is what a downstream service publishes back to the gateway.
type ResponseEnvelope struct {
	CorrelationID string            `json:"correlationId"`
	StatusCode    int               `json:"statusCode"`
	Headers       map[string]string `json:"headers,omitempty"`
	Body          string            `json:"body"`
}

// ImageURL is returned by the local image upload endpoint.
type ImageURL struct {
	URL string `json:"url"`
}

// ErrorInfo is the nested error shape inside ApiResponse.
type ErrorInfo struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// ApiResponse is the standardized JSON envelope returned to HTTP clients.
// Exactly one of Data or Error is non-nil.
type ApiResponse struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	Error   *ErrorInfo  `json:"error"`
}

// NewSuccessResponse builds an ApiResponse for a 2xx reply.
func NewSuccessResponse(status int, message string, data interface{}) ApiResponse {
	return ApiResponse{Status: status, Message: message, Data: data, Error: nil}
}

// NewErrorResponse builds an ApiResponse carrying an error, formatting the
// code as ERR_<status> per the gateway's convention.
func NewErrorResponse(status int, message string, detail string) ApiResponse {
	return ApiResponse{
		Status:  status,
		Message: message,
		Data:    nil,
		Error:   &ErrorInfo{Code: ErrCode(status), Detail: detail},
	}
}

// ErrCode formats an HTTP status as the gateway's ERR_<status> error code.
func ErrCode(status int) string {
	return "ERR_" + strconv.Itoa(status)
}

// hopByHopHeaders are stripped when copying ResponseEnvelope headers onto the
// outgoing HTTP response.
var hopByHopHeaders = map[string]bool{
	"connection":          true,
	"keep-alive":           true,
	"transfer-encoding":    true,
	"upgrade":              true,
	"te":                   true,
	"trailer":              true,
}

// IsHopByHop reports whether header name (any case) must never be forwarded.
func IsHopByHop(name string) bool {
	lower := strings.ToLower(name)
	if hopByHopHeaders[lower] {
		return true
	}
	return strings.HasPrefix(lower, "proxy-")
}
