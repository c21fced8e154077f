package output

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Tag   string `json:"tag"`
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON).(*JSONFormatter); !ok {
		t.Error("json: wrong formatter")
	}
	if _, ok := NewFormatter(FormatYAML).(*YAMLFormatter); !ok {
		t.Error("yaml: wrong formatter")
	}
	if _, ok := NewFormatter("other").(*TableFormatter); !ok {
		t.Error("default: wrong formatter")
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONFormatter{}).Format(&buf, sample{Name: "k", Count: 2}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"name": "k"`) {
		t.Errorf("output = %s", buf.String())
	}
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	err := (&YAMLFormatter{}).Format(&buf, sample{Name: "k", Count: 2, Tag: "true"})
	if err != nil {
		t.Fatal(err)
	}
	want := "name: k\ncount: 2\ntag: \"true\"\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestYAMLFormatter_Nested(t *testing.T) {
	var buf bytes.Buffer
	data := map[string]any{"store": map[string]any{"keys": 3}, "items": []string{"a"}}
	if err := (&YAMLFormatter{}).Format(&buf, data); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, "{") || strings.Contains(out, "[") {
		t.Errorf("expected block style, got %q", out)
	}
	if !strings.Contains(out, "store:\n  keys: 3\n") {
		t.Errorf("output = %q", out)
	}
}

func TestTable(t *testing.T) {
	tbl := NewTable("KEY", "VALUE")
	tbl.AddRow("alpha", 1)
	tbl.AddRow("b", "")

	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, tbl); err != nil {
		t.Fatal(err)
	}
	want := "KEY    VALUE\nalpha  1\nb      -\n"
	if buf.String() != want {
		t.Errorf("table = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	if err := (&TableFormatter{NoHeaders: true}).Format(&buf, tbl); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "KEY") {
		t.Errorf("headers not suppressed: %q", buf.String())
	}
}

func TestTableFormatter_FallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, sample{Name: "x"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"name": "x"`) {
		t.Errorf("output = %s", buf.String())
	}
}

func TestHumanize(t *testing.T) {
	if got := Bytes(1536); got != "1.5 KiB" {
		t.Errorf("Bytes = %q", got)
	}
	if got := Count(1234567); got != "1,234,567" {
		t.Errorf("Count = %q", got)
	}
	if got := Percent(0.125); got != "12.5%" {
		t.Errorf("Percent = %q", got)
	}
	if got := Ago(time.Time{}); got != "-" {
		t.Errorf("Ago(zero) = %q", got)
	}
}
