package output

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"time"
)

// Version is the imagesmith version, set at link time.
var Version = "dev"

// Response is the JSON envelope every --json command writes.
// A failed run still carries its partial result in Data.
type Response struct {
	Success   bool        `json:"success"`
	Command   string      `json:"command"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"` // RFC3339
	Version   string      `json:"version"`
}

// Okayer is implemented by results that know whether they succeeded.
type Okayer interface {
	OK() bool
}

// NewResponse wraps data and err for command. Success requires err == nil
// and, when data reports its own status, data.OK().
func NewResponse(command string, data interface{}, err error) Response {
	resp := Response{
		Success:   err == nil,
		Command:   command,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   Version,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	if ok, has := data.(Okayer); has && !isNil(data) && !ok.OK() {
		resp.Success = false
	}
	return resp
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// WriteJSON writes a Response as indented JSON to the given writer
func WriteJSON(w io.Writer, response Response) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// Write wraps data and err in a Response and writes it.
func Write(w io.Writer, command string, data interface{}, err error) error {
	return WriteJSON(w, NewResponse(command, data, err))
}
