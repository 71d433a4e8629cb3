package storage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExportMarkdown renders launch records as a markdown table.
func ExportMarkdown(launches []Launch) string {
	var b strings.Builder

	b.WriteString("| ID | App | Trigger | Status | Sandbox | Created | Error |\n")
	b.WriteString("|----|-----|---------|--------|---------|---------|-------|\n")
	for _, l := range launches {
		b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s |\n",
			shortID(l.ID), l.App, l.Trigger, l.Status, shortID(l.SandboxID),
			l.CreatedAt.Format("2006-01-02 15:04:05"), strings.ReplaceAll(l.Error, "|", `\|`)))
	}

	return b.String()
}

// ExportJSON renders launch records as formatted JSON.
func ExportJSON(launches []Launch) ([]byte, error) {
	if launches == nil {
		launches = []Launch{}
	}
	return json.MarshalIndent(launches, "", "  ")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
