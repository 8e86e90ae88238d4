package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"testing"
)

type textResult struct{ name string }

func (r textResult) WriteText(w io.Writer) error {
	_, err := io.WriteString(w, "result: "+r.name+"\n")
	return err
}

type tableResult struct{}

func (tableResult) TableHeader() []string { return []string{"bucket", "count"} }
func (tableResult) TableRows() [][]string {
	return [][]string{{"0-100", "3"}, {"500-1k", "12"}}
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name string
		data any
		want string
	}{
		{"plain value", "test message", "test message\n"},
		{"text writer", textResult{name: "ok"}, "result: ok\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &TextFormatter{}
			output, err := formatter.Format(tt.data)
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			if string(output) != tt.want {
				t.Errorf("Format() = %q, want %q", output, tt.want)
			}
		})
	}
}

func TestJSONFormatter(t *testing.T) {
	data := struct {
		Bucket string `json:"bucket"`
		Tokens int    `json:"tokens"`
	}{Bucket: "500-1k", Tokens: 750}

	for _, indent := range []bool{false, true} {
		formatter := &JSONFormatter{Indent: indent}

		var buf bytes.Buffer
		if err := formatter.FormatTo(&buf, data); err != nil {
			t.Fatalf("FormatTo() error = %v", err)
		}

		var result map[string]any
		if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
			t.Fatalf("FormatTo() produced invalid JSON: %v", err)
		}
		if result["bucket"] != "500-1k" {
			t.Errorf("bucket = %v", result["bucket"])
		}
	}
}

func TestCSVFormatter(t *testing.T) {
	formatter := &CSVFormatter{}

	output, err := formatter.Format(tableResult{})
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	want := "bucket,count\n0-100,3\n500-1k,12\n"
	if string(output) != want {
		t.Errorf("Format() = %q, want %q", output, want)
	}

	if _, err := formatter.Format("not a table"); err == nil {
		t.Error("Format() of a non-table should fail")
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{FormatText, "*cli.TextFormatter"},
		{FormatJSON, "*cli.JSONFormatter"},
		{FormatCSV, "*cli.CSVFormatter"},
		{"unknown", "*cli.TextFormatter"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			got := NewFormatter(tt.format)
			if typeName(got) != tt.want {
				t.Errorf("NewFormatter(%q) = %s, want %s", tt.format, typeName(got), tt.want)
			}
		})
	}
}

func typeName(f Formatter) string {
	switch f.(type) {
	case *TextFormatter:
		return "*cli.TextFormatter"
	case *JSONFormatter:
		return "*cli.JSONFormatter"
	case *CSVFormatter:
		return "*cli.CSVFormatter"
	}
	return "unknown"
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"json", FormatJSON, false},
		{"csv", FormatCSV, false},
		{"yaml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOutputFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseOutputFormat() = %q, want %q", got, tt.want)
			}
			var cerr *ConfigError
			if tt.wantErr && !errors.As(err, &cerr) {
				t.Errorf("error = %T, want *ConfigError", err)
			}
		})
	}
}
