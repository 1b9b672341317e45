package httpx

import (
	"fmt"
	"net/http"

	"github.com/Ratio1/apistore_sdk_go/internal/apibody"
)

// HTTPError represents a non-2xx HTTP response returned by the remote service.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	Header     http.Header
	// JSON holds the decoded body when the response declared a JSON content type.
	JSON any
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Method == "" && e.URL == "" {
		return fmt.Sprintf("http error: status=%d body=%s", e.StatusCode, string(e.Body))
	}
	return fmt.Sprintf("http error: %s %s: status=%d body=%s", e.Method, e.URL, e.StatusCode, string(e.Body))
}

// Retryable reports whether the error should be considered transient.
func (e *HTTPError) Retryable() bool {
	if e == nil {
		return false
	}
	return retryableStatus(e.StatusCode)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout ||
		(code >= 500 && code <= 599)
}

func decodeJSONBody(body []byte) any {
	payload, err := apibody.Decode(body)
	if err != nil {
		return nil
	}
	return payload
}
