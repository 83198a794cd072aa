package models

import "encoding/json"

// Output format constants for scrape requests.
const (
	FormatMarkdown   = "markdown" // primary content format
	FormatHTML       = "html"
	FormatRawHTML    = "rawHtml"
	FormatLinks      = "links"
	FormatScreenshot = "screenshot"
	FormatExtract    = "extract"
)

// Document is one unit of retrieved content. Every content field is
// optional; which ones are populated depends on the formats requested when
// the job was started. Documents are built once by the normalizer and never
// mutated afterwards.
type Document struct {
	// Content (markdown-first)
	Markdown   string   `json:"markdown,omitempty"`
	HTML       string   `json:"html,omitempty"`
	RawHTML    string   `json:"raw_html,omitempty"`
	Links      []string `json:"links,omitempty"`
	Screenshot string   `json:"screenshot,omitempty"`

	// Metadata uses normalized snake_case keys regardless of the casing
	// the service sent. Example: {"title": "...", "og_title": "...",
	// "source_url": "https://...", "status_code": 200}
	Metadata map[string]any `json:"metadata,omitempty"`

	// Extract holds the structured-extraction payload verbatim, if an
	// extract format was requested.
	Extract json.RawMessage `json:"extract,omitempty"`
}

// SourceURL returns the normalized source_url metadata value, if present.
func (d *Document) SourceURL() string {
	if d.Metadata == nil {
		return ""
	}
	if v, ok := d.Metadata["source_url"].(string); ok {
		return v
	}
	return ""
}

// StatusCode returns the normalized status_code metadata value, or 0.
func (d *Document) StatusCode() int {
	if d.Metadata == nil {
		return 0
	}
	switch v := d.Metadata["status_code"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
