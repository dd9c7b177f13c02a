package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// createTestFile creates a temporary file with given content
func createTestFile(t *testing.T, name, content string) string {
	t.Helper()
	filePath := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return filePath
}

// dxfStream joins code/value pairs into interchange text.
func dxfStream(pairs ...string) string {
	return strings.Join(pairs, "\n") + "\n"
}

func entitiesSection(body ...string) string {
	head := []string{"0", "SECTION", "2", "ENTITIES"}
	tail := []string{"0", "ENDSEC", "0", "EOF"}
	all := append(append(head, body...), tail...)
	return dxfStream(all...)
}
