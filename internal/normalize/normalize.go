// Package normalize converts raw document records from the service into the
// canonical Document shape. The service emits two casing conventions
// depending on code path (wire camelCase and canonical snake_case); this
// package accepts either and always produces snake_case.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/prowl/pkg/models"
)

// metadataKeyRenames maps wire-format metadata keys to canonical snake_case
// names. Keys already in canonical form pass through untouched, which makes
// normalization idempotent.
var metadataKeyRenames = map[string]string{
	"ogTitle":           "og_title",
	"ogDescription":     "og_description",
	"ogUrl":             "og_url",
	"ogImage":           "og_image",
	"ogAudio":           "og_audio",
	"ogDeterminer":      "og_determiner",
	"ogLocale":          "og_locale",
	"ogLocaleAlternate": "og_locale_alternate",
	"ogSiteName":        "og_site_name",
	"ogVideo":           "og_video",
	"dcTermsCreated":    "dc_terms_created",
	"dcDateCreated":     "dc_date_created",
	"dcDate":            "dc_date",
	"dcTermsType":       "dc_terms_type",
	"dcType":            "dc_type",
	"dcTermsAudience":   "dc_terms_audience",
	"dcTermsSubject":    "dc_terms_subject",
	"dcSubject":         "dc_subject",
	"dcDescription":     "dc_description",
	"dcTermsKeywords":   "dc_terms_keywords",
	"modifiedTime":      "modified_time",
	"publishedTime":     "published_time",
	"articleTag":        "article_tag",
	"articleSection":    "article_section",
	"sourceURL":         "source_url",
	"statusCode":        "status_code",
	"pageError":         "page_error",
	"scrapeId":          "scrape_id",
}

// multiValueKeys are metadata fields that legitimately hold multiple values
// and are exempt from list-to-scalar coercion.
var multiValueKeys = map[string]bool{
	"og_locale_alternate": true,
	"keywords":            true,
	"article_tag":         true,
}

// Metadata renames known metadata keys to their canonical snake_case form
// and coerces list values to scalars where a scalar is expected. It never
// fails: unknown keys pass through unchanged and values that cannot be
// coerced are kept as-is.
func Metadata(raw map[string]any) map[string]any {
	if raw == nil {
		return nil
	}

	out := make(map[string]any, len(raw))
	for key, value := range raw {
		canonical := key
		if renamed, ok := metadataKeyRenames[key]; ok {
			canonical = renamed
		}

		// A record carrying both casings keeps the canonical one.
		if canonical != key {
			if _, exists := raw[canonical]; exists {
				continue
			}
		}

		if !multiValueKeys[canonical] {
			value = coerceScalar(value)
		}
		out[canonical] = value
	}
	return out
}

// coerceScalar collapses a list value into a single scalar: the sole element
// for single-item lists, otherwise a comma-joined display string. Non-list
// values are returned unchanged.
func coerceScalar(value any) any {
	items, ok := asSlice(value)
	if !ok || len(items) == 0 {
		return value
	}
	if len(items) == 1 {
		return items[0]
	}

	parts := make([]string, len(items))
	for i, item := range items {
		if s, ok := item.(string); ok {
			parts[i] = s
		} else {
			parts[i] = fmt.Sprintf("%v", item)
		}
	}
	return strings.Join(parts, ", ")
}

func asSlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return items, true
	}
	return nil, false
}

// Document builds a canonical Document from a raw record. No field is
// required; missing or mistyped fields simply stay zero.
func Document(raw map[string]any) models.Document {
	doc := models.Document{
		Markdown:   stringField(raw, "markdown"),
		HTML:       stringField(raw, "html"),
		RawHTML:    stringFieldAny(raw, "raw_html", "rawHtml"),
		Screenshot: stringField(raw, "screenshot"),
		Links:      stringSliceField(raw, "links"),
	}

	if meta, ok := raw["metadata"].(map[string]any); ok {
		doc.Metadata = Metadata(meta)
	}

	if extract, ok := firstPresent(raw, "extract", "llm_extraction"); ok {
		if data, err := json.Marshal(extract); err == nil {
			doc.Extract = data
		}
	}

	return doc
}

func firstPresent(raw map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := raw[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func stringField(raw map[string]any, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

// stringFieldAny tries field names in order, matching the snake_case and
// camelCase conventions the service mixes.
func stringFieldAny(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if v := stringField(raw, key); v != "" {
			return v
		}
	}
	return ""
}

func stringSliceField(raw map[string]any, key string) []string {
	items, ok := asSlice(raw[key])
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
