package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/docutag/aboutus-scraper/models"
)

func hasPair(kvs []models.KeyValue, key, value string) bool {
	for _, kv := range kvs {
		if kv.Key == key && kv.Value == value {
			return true
		}
	}
	return false
}

func TestExtractKeyValuesSources(t *testing.T) {
	doc := mustParse(t, `
		<table><tr><th>Founded</th><td>1998</td></tr><tr><td>a</td><td>b</td><td>c</td></tr></table>
		<dl><dt>Headquarters</dt><dd>Denver, CO</dd></dl>
		<p>Industry: Aerospace</p>
		<p>Today we have 120 employees.</p>`)

	kvs := ExtractKeyValues(doc, 0)
	if len(kvs) < 4 {
		t.Fatalf("ExtractKeyValues() = %+v, want at least 4 pairs", kvs)
	}
	if kvs[0] != (models.KeyValue{Key: "Founded", Value: "1998"}) {
		t.Errorf("kvs[0] = %+v, want table row first", kvs[0])
	}
	if kvs[1] != (models.KeyValue{Key: "Headquarters", Value: "Denver, CO"}) {
		t.Errorf("kvs[1] = %+v, want definition list second", kvs[1])
	}
	if !hasPair(kvs, "Industry", "Aerospace") {
		t.Errorf("missing label line pair in %+v", kvs)
	}
	if !hasPair(kvs, "Employees", "120") {
		t.Errorf("missing narrative pair in %+v", kvs)
	}
	if hasPair(kvs, "a", "b") {
		t.Error("three-cell row should be ignored")
	}
}

func TestExtractKeyValuesDeduplicates(t *testing.T) {
	doc := mustParse(t, `
		<table><tr><td>Industry</td><td>Aerospace</td></tr></table>
		<p>industry: aerospace</p>`)

	kvs := ExtractKeyValues(doc, 10)
	count := 0
	for _, kv := range kvs {
		if strings.EqualFold(kv.Key, "industry") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("industry pairs = %d in %+v, want 1", count, kvs)
	}
	if kvs[0].Value != "Aerospace" {
		t.Errorf("kvs[0] = %+v, want first occurrence kept", kvs[0])
	}
}

func TestExtractKeyValuesLimit(t *testing.T) {
	var rows strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&rows, "<tr><td>Key %d</td><td>Value %d</td></tr>", i, i)
	}
	doc := mustParse(t, "<table>"+rows.String()+"</table>")

	tests := []struct {
		max  int
		want int
	}{
		{0, DefaultMaxKeyValues},
		{-3, DefaultMaxKeyValues},
		{3, 3},
		{50, MaxKeyValues},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.max), func(t *testing.T) {
			if got := len(ExtractKeyValues(doc, tt.max)); got != tt.want {
				t.Errorf("len = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExtractKeyValuesIgnoresLongLabels(t *testing.T) {
	doc := mustParse(t, `<p>This sentence is far too long to be a label and goes on: really</p>`)
	if kvs := ExtractKeyValues(doc, 10); len(kvs) != 0 {
		t.Errorf("ExtractKeyValues() = %+v, want none", kvs)
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		title string
		want  string
	}{
		{
			name: "first three long sentences",
			text: "Hi. Acme builds reusable rockets for everyone! We were founded in a small garage. Our team is twelve people strong? Fourth sentence is dropped here.",
			want: "Acme builds reusable rockets for everyone. We were founded in a small garage. Our team is twelve people strong.",
		},
		{
			name:  "falls back to title",
			text:  "Short. Tiny!",
			title: "Acme Corp",
			want:  "Acme Corp provides information about their services and offerings.",
		},
		{
			name: "empty",
			want: "This company provides information about their services and offerings.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summarize(tt.text, tt.title); got != tt.want {
				t.Errorf("Summarize() = %q, want %q", got, tt.want)
			}
		})
	}
}
