package apistore

// APIError is the model for server bodies of type "error".
type APIError struct {
	*Resource
}

func newAPIError(r *Resource) Model {
	r.mu.Lock()
	r.fields[KeyType] = TypeError
	r.mu.Unlock()
	return &APIError{Resource: r}
}

// Status returns the HTTP status the server reported in the body.
func (e *APIError) Status() int {
	switch v := e.Get("status").(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// Code returns the machine-readable error code.
func (e *APIError) Code() string {
	return e.GetString("code")
}

// Message returns the human-readable message.
func (e *APIError) Message() string {
	return e.GetString("message")
}

// Detail returns the optional detail text.
func (e *APIError) Detail() string {
	return e.GetString("detail")
}
