package storage

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestExportMarkdown(t *testing.T) {
	launches := []Launch{
		{
			ID:        "0f8fad5b-d9cb-469f-a165-70867728950e",
			App:       "scheduled_analytics",
			Trigger:   TriggerSchedule,
			Status:    StatusFailed,
			Error:     "build failed | exit 1",
			CreatedAt: time.Date(2026, 10, 19, 22, 0, 0, 0, time.UTC),
		},
	}

	out := ExportMarkdown(launches)
	if !strings.Contains(out, "| 0f8fad5b-d9c | scheduled_analytics | schedule | failed |") {
		t.Errorf("missing row in:\n%s", out)
	}
	if !strings.Contains(out, `build failed \| exit 1`) {
		t.Errorf("pipe in error should be escaped:\n%s", out)
	}
}

func TestExportJSONEmpty(t *testing.T) {
	data, err := ExportJSON(nil)
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	var out []Launch
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("got %s, want []", data)
	}
}
