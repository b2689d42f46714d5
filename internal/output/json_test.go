package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONLinesFormatter_Format(t *testing.T) {
	tests := []struct {
		name string
		rows []map[string]any
	}{
		{
			name: "empty rows",
			rows: []map[string]any{},
		},
		{
			name: "single row",
			rows: []map[string]any{
				{"KeyStore": "A", "Qty": int64(2), "Amount": 20.0},
			},
		},
		{
			name: "nil values",
			rows: []map[string]any{
				{"KeyStore": nil, "Qty": int64(2)},
				{"KeyStore": "B", "Qty": nil},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewJSONLinesFormatter(&buf).Format(tt.rows); err != nil {
				t.Fatalf("Format() error = %v", err)
			}

			output := buf.String()
			if len(tt.rows) == 0 {
				if output != "" {
					t.Errorf("Format() output should be empty for empty rows, got %q", output)
				}
				return
			}

			lines := strings.Split(strings.TrimSpace(output), "\n")
			if len(lines) != len(tt.rows) {
				t.Errorf("Format() produced %d lines, want %d", len(lines), len(tt.rows))
			}
			for i, line := range lines {
				var decoded map[string]any
				if err := json.Unmarshal([]byte(line), &decoded); err != nil {
					t.Errorf("Format() line %d is not valid JSON: %v", i, err)
				}
			}
		})
	}
}

func TestJSONLinesFormatter_SetOutput(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	formatter := NewJSONLinesFormatter(&buf1)
	rows := []map[string]any{{"KeyStore": "A"}}

	if err := formatter.Format(rows); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	formatter.SetOutput(&buf2)
	if err := formatter.Format(rows); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	if buf1.String() != buf2.String() || buf1.Len() == 0 {
		t.Errorf("outputs differ: %q vs %q", buf1.String(), buf2.String())
	}
}

func TestJSONFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	rows := []map[string]any{
		{"KeyStore": "A", "Qty": 5.0},
		{"KeyStore": "B", "Qty": 0.0},
	}
	if err := NewJSONFormatter(&buf).Format(rows); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not a JSON array: %v", err)
	}
	if len(decoded) != 2 || decoded[1]["KeyStore"] != "B" {
		t.Errorf("decoded = %v", decoded)
	}

	buf.Reset()
	if err := NewJSONFormatter(&buf).Format(nil); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty output = %q, want []", buf.String())
	}
}
