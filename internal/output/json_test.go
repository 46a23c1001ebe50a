package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

type summary struct {
	Failed int `json:"failed"`
}

func (s *summary) OK() bool { return s.Failed == 0 }

func TestNewResponse_Success(t *testing.T) {
	resp := NewResponse("build", map[string]string{"key": "value"}, nil)

	if !resp.Success {
		t.Error("Success should be true")
	}
	if resp.Command != "build" {
		t.Errorf("Command should be build, got %s", resp.Command)
	}
	if resp.Error != "" {
		t.Error("Error should be empty")
	}
	if resp.Version != Version {
		t.Errorf("Version should be %s, got %s", Version, resp.Version)
	}
	if _, err := time.Parse(time.RFC3339, resp.Timestamp); err != nil {
		t.Errorf("Timestamp is not valid RFC3339: %v", err)
	}
}

func TestNewResponse_Error(t *testing.T) {
	resp := NewResponse("sweep", nil, errors.New("test error"))

	if resp.Success {
		t.Error("Success should be false")
	}
	if resp.Error != "test error" {
		t.Errorf("Error should be 'test error', got '%s'", resp.Error)
	}
	if resp.Data != nil {
		t.Error("Data should be nil")
	}
}

func TestNewResponse_DataReportsFailure(t *testing.T) {
	if resp := NewResponse("build", &summary{Failed: 2}, nil); resp.Success {
		t.Error("Success should be false when data is not OK")
	}
	if resp := NewResponse("build", &summary{}, nil); !resp.Success {
		t.Error("Success should be true when data is OK")
	}

	var nilSummary *summary
	if resp := NewResponse("build", nilSummary, nil); !resp.Success {
		t.Error("typed nil data must not be inspected")
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer

	if err := WriteJSON(&buf, NewResponse("list", map[string]int{"count": 42}, nil)); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	output := buf.String()
	var parsed Response
	if err := json.Unmarshal([]byte(output), &parsed); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if !parsed.Success || parsed.Command != "list" {
		t.Errorf("Unexpected parsed response: %+v", parsed)
	}
	if !strings.Contains(output, "\n  ") {
		t.Error("Output should be indented")
	}
}

func TestWrite_PartialResultWithError(t *testing.T) {
	var buf bytes.Buffer

	err := Write(&buf, "build", &summary{Failed: 1}, errors.New("namespace ci: 1 variant(s) failed"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if parsed["success"] != false {
		t.Error("success should be false")
	}
	data, ok := parsed["data"].(map[string]interface{})
	if !ok {
		t.Fatal("data should be an object")
	}
	if data["failed"] != float64(1) {
		t.Errorf("data.failed should be 1, got %v", data["failed"])
	}
}
