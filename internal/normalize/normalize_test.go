package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_RenamesWireKeys(t *testing.T) {
	raw := map[string]any{
		"ogTitle":       "Example",
		"ogDescription": "A page",
		"sourceURL":     "https://example.com/page",
		"statusCode":    200,
	}

	result := Metadata(raw)

	assert.Equal(t, "Example", result["og_title"])
	assert.Equal(t, "A page", result["og_description"])
	assert.Equal(t, "https://example.com/page", result["source_url"])
	assert.Equal(t, 200, result["status_code"])
	assert.NotContains(t, result, "ogTitle")
	assert.NotContains(t, result, "sourceURL")
}

func TestMetadata_UnknownKeysPassThrough(t *testing.T) {
	raw := map[string]any{
		"customField": "kept",
		"title":       "Canonical already",
	}

	result := Metadata(raw)

	assert.Equal(t, "kept", result["customField"])
	assert.Equal(t, "Canonical already", result["title"])
}

func TestMetadata_ListCoercion(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
		want  any
	}{
		{"single element unwraps", "ogTitle", []any{"Only"}, "Only"},
		{"multiple elements join", "ogTitle", []any{"A", "B"}, "A, B"},
		{"string slice joins", "description", []string{"x", "y", "z"}, "x, y, z"},
		{"non-string elements formatted", "statusCode", []any{200, 301}, "200, 301"},
		{"scalar untouched", "title", "plain", "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Metadata(map[string]any{tt.key: tt.value})
			canonical := tt.key
			if renamed, ok := metadataKeyRenames[tt.key]; ok {
				canonical = renamed
			}
			assert.Equal(t, tt.want, result[canonical])
		})
	}
}

func TestMetadata_MultiValueFieldsKeptAsLists(t *testing.T) {
	raw := map[string]any{
		"ogLocaleAlternate": []any{"en_GB", "en_AU"},
		"keywords":          []any{"crawl", "scrape"},
	}

	result := Metadata(raw)

	assert.Equal(t, []any{"en_GB", "en_AU"}, result["og_locale_alternate"])
	assert.Equal(t, []any{"crawl", "scrape"}, result["keywords"])
}

func TestMetadata_BothCasingsCanonicalWins(t *testing.T) {
	raw := map[string]any{
		"ogTitle":  "wire",
		"og_title": "canonical",
	}

	result := Metadata(raw)

	assert.Equal(t, "canonical", result["og_title"])
	assert.Len(t, result, 1)
}

func TestMetadata_Idempotent(t *testing.T) {
	raw := map[string]any{
		"ogTitle":           []any{"A", "B"},
		"ogLocaleAlternate": []any{"en_GB", "en_AU"},
		"sourceURL":         "https://example.com",
		"unknown":           []any{"x"},
	}

	once := Metadata(raw)
	twice := Metadata(once)

	assert.Equal(t, once, twice)
}

func TestMetadata_NilAndEmpty(t *testing.T) {
	assert.Nil(t, Metadata(nil))
	assert.Empty(t, Metadata(map[string]any{}))
}

func TestDocument_ScenarioRawHTMLAndMetadata(t *testing.T) {
	raw := map[string]any{
		"rawHtml": "<p>hi</p>",
		"metadata": map[string]any{
			"ogTitle": []any{"A", "B"},
		},
	}

	doc := Document(raw)

	assert.Equal(t, "<p>hi</p>", doc.RawHTML)
	assert.Equal(t, "A, B", doc.Metadata["og_title"])
}

func TestDocument_AcceptsBothTopLevelCasings(t *testing.T) {
	wire := Document(map[string]any{"rawHtml": "<p>wire</p>"})
	canonical := Document(map[string]any{"raw_html": "<p>canonical</p>"})

	assert.Equal(t, "<p>wire</p>", wire.RawHTML)
	assert.Equal(t, "<p>canonical</p>", canonical.RawHTML)
}

func TestDocument_MissingFieldsStayZero(t *testing.T) {
	doc := Document(map[string]any{})

	assert.Empty(t, doc.Markdown)
	assert.Empty(t, doc.RawHTML)
	assert.Nil(t, doc.Links)
	assert.Nil(t, doc.Metadata)
	assert.Nil(t, doc.Extract)
}

func TestDocument_ContentFields(t *testing.T) {
	raw := map[string]any{
		"markdown":   "# Title",
		"html":       "<h1>Title</h1>",
		"screenshot": "data:image/png;base64,xyz",
		"links":      []any{"https://a.example", "https://b.example", 42},
		"extract":    map[string]any{"price": 9.95},
	}

	doc := Document(raw)

	assert.Equal(t, "# Title", doc.Markdown)
	assert.Equal(t, "<h1>Title</h1>", doc.HTML)
	assert.Equal(t, "data:image/png;base64,xyz", doc.Screenshot)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, doc.Links)
	require.NotNil(t, doc.Extract)
	assert.JSONEq(t, `{"price":9.95}`, string(doc.Extract))
}

func TestDocument_MistypedFieldsIgnored(t *testing.T) {
	raw := map[string]any{
		"markdown": 12345,
		"metadata": "not a map",
		"links":    "not a list",
	}

	doc := Document(raw)

	assert.Empty(t, doc.Markdown)
	assert.Nil(t, doc.Metadata)
	assert.Nil(t, doc.Links)
}
