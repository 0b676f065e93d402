package badge

import (
	"bytes"
	"strings"
	"testing"

	"github.com/felixgeelhaar/v8cov/internal/application"
)

func TestGenerateBadge(t *testing.T) {
	buf := new(bytes.Buffer)
	opts := Options{
		Label:   "coverage",
		Percent: 85.5,
		Style:   StyleFlat,
	}
	if err := Generate(buf, opts); err != nil {
		t.Fatalf("generate: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "<svg") {
		t.Fatal("expected SVG element")
	}
	if !strings.Contains(output, "coverage") {
		t.Fatal("expected label in output")
	}
	if !strings.Contains(output, "85.5%") {
		t.Fatal("expected percentage in output")
	}
}

func TestGenerateBadgeColors(t *testing.T) {
	tests := []struct {
		name      string
		percent   float64
		mark      application.Watermark
		wantColor string
	}{
		{"below low", 40, application.Watermark{Low: 50, High: 80}, "#e05d44"},
		{"between bands", 65, application.Watermark{Low: 50, High: 80}, "#dfb317"},
		{"at high", 80, application.Watermark{Low: 50, High: 80}, "#4c1"},
		{"custom bands", 65, application.Watermark{Low: 70, High: 95}, "#e05d44"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			opts := Options{
				Label:     "coverage",
				Percent:   tc.percent,
				Style:     StyleFlat,
				Watermark: tc.mark,
			}
			if err := Generate(buf, opts); err != nil {
				t.Fatalf("generate: %v", err)
			}
			if !strings.Contains(buf.String(), tc.wantColor) {
				t.Fatalf("expected color %s for %.0f%%", tc.wantColor, tc.percent)
			}
		})
	}
}

func TestGenerateBadgeFlatSquare(t *testing.T) {
	buf := new(bytes.Buffer)
	if err := Generate(buf, Options{Label: "coverage", Percent: 100, Style: StyleFlatSquare}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(buf.String(), `rx="0"`) {
		t.Fatal("expected square corners")
	}
}
