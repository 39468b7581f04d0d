package mcp

import (
	"context"
	"strings"
	"testing"
)

func TestSanitizeDocument_SizeLimit(t *testing.T) {
	t.Setenv(EnvMaxDocumentSize, "4096")
	limit := 4096

	tests := []struct {
		name      string
		inputSize int
		wantErr   bool
	}{
		{"Under Limit", limit - 1, false},
		{"Exact Limit", limit, false},
		{"Over Limit", limit + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SanitizeDocument(strings.Repeat("a", tt.inputSize))
			if tt.wantErr && err == nil {
				t.Errorf("SanitizeDocument() expected error for size %d, got nil", tt.inputSize)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("SanitizeDocument() unexpected error: %v", err)
			}
		})
	}
}

func TestSanitizeDocument_ControlChars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Normal Text", "name: Agile", "name: Agile"},
		{"Safe Controls", "entities:\n\t- x\r\n", "entities:\n\t- x\r\n"},
		{"ANSI Code", "name: \x1b[31mRed\x1b[0m", "name: [31mRed[0m"},
		{"Null Byte", "name: Null\x00Byte", "name: NullByte"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeDocument(tt.input)
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestSanitizeDocument_InvalidUTF8(t *testing.T) {
	_, err := SanitizeDocument("\xbd\xb2\x3d\xbc\x20\xe2\x8c\x98")
	if err != ErrInvalidUTF8 {
		t.Errorf("Expected ErrInvalidUTF8, got %v", err)
	}
}

func TestResolveTemplate_RejectsOversizedDocument(t *testing.T) {
	t.Setenv(EnvMaxDocumentSize, "16")

	_, err := resolveTemplate(context.Background(), "name: a very long template name\nentities: []\n")
	if err == nil {
		t.Fatal("Expected oversized inline template to be rejected")
	}
}
