package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/Ratio1/apistore_sdk_go/internal/apibody"
	"github.com/Ratio1/apistore_sdk_go/pkg/apistore"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The API answered with an error
	ExitCommandError = 2 // Bad arguments, configuration or transport setup
)

// Error codes reported in JSON output.
const (
	ErrCodeUsage   = "E_USAGE"
	ErrCodeConfig  = "E_CONFIG"
	ErrCodeRequest = "E_REQUEST"
)

// ExitError is an error carrying the process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error

	reported bool
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error, ExitFailure by default.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Reported reports whether err was already written by an OutputFormatter.
func Reported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.reported
}

// OutputFormatter writes results as text lines or JSON envelopes.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error part of CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success writes a result. Text output prints one line per record.
func (f *OutputFormatter) Success(data any) error {
	plain := plainValue(data)
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: plain})
	}
	if items, ok := plain.([]any); ok {
		for _, item := range items {
			if err := f.writeLine(item); err != nil {
				return err
			}
		}
		return nil
	}
	return f.writeLine(plain)
}

func (f *OutputFormatter) writeLine(v any) error {
	switch val := v.(type) {
	case nil:
		_, err := fmt.Fprintln(f.Writer, "null")
		return err
	case string:
		_, err := fmt.Fprintln(f.Writer, val)
		return err
	case map[string]any:
		data, err := apibody.Encode(val)
		if err != nil {
			return err
		}
		if label := recordLabel(val); label != "" {
			_, err = fmt.Fprintf(f.Writer, "%s\t%s\n", label, data)
		} else {
			_, err = fmt.Fprintf(f.Writer, "%s\n", data)
		}
		return err
	default:
		data, err := apibody.Encode(val)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(f.Writer, "%s\n", data)
		return err
	}
}

// Error writes an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.errWriter(), "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.errWriter(), "Details: %v\n", details)
	}
	return nil
}

// VerboseLog writes a diagnostic line when verbose output is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.errWriter(), format+"\n", args...)
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// fail reports err and returns the matching ExitError. API failures carry
// the status and server payload as details.
func (f *OutputFormatter) fail(code, message string, err error) error {
	exit := ExitCommandError
	var details any
	var apiErr *apistore.Error
	if errors.As(err, &apiErr) {
		exit = ExitFailure
		d := map[string]any{"status": apiErr.Status}
		if apiErr.Detail != "" {
			d["request"] = apiErr.Detail
		}
		if apiErr.Payload != nil {
			d["payload"] = plainValue(apiErr.Payload)
		}
		details = d
	}
	_ = f.Error(code, fmt.Sprintf("%s: %v", message, err), details)
	exitErr := WrapExitError(exit, message, err)
	exitErr.reported = true
	return exitErr
}

// plainValue converts hydrated values into JSON-ready data.
func plainValue(v any) any {
	switch val := v.(type) {
	case *apistore.Collection:
		return plainValue(val.Content())
	case apistore.Model:
		return val.Base().Serialize()
	case []apistore.Model:
		out := make([]any, len(val))
		for i, m := range val {
			out[i] = m.Base().Serialize()
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = plainValue(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	default:
		return v
	}
}

func recordLabel(m map[string]any) string {
	t, _ := m[apistore.KeyType].(string)
	if t == "" {
		return ""
	}
	switch id := m[apistore.KeyID].(type) {
	case string:
		if id != "" {
			return t + ":" + id
		}
	case float64:
		return fmt.Sprintf("%s:%v", t, id)
	}
	return t
}

func sortedIDs(models []apistore.Model) []string {
	out := make([]string, 0, len(models))
	for _, m := range models {
		out = append(out, m.Base().ID())
	}
	sort.Strings(out)
	return out
}
