package prowl

// ScrapeOptions controls what the service retrieves for each page.
type ScrapeOptions struct {
	// Formats selects the content fields populated on each Document
	// (models.FormatMarkdown, models.FormatHTML, ...). Defaults to
	// markdown upstream when empty.
	Formats         []string `json:"formats,omitempty"`
	OnlyMainContent *bool    `json:"onlyMainContent,omitempty"`
	IncludeTags     []string `json:"includeTags,omitempty"`
	ExcludeTags     []string `json:"excludeTags,omitempty"`
	WaitFor         int      `json:"waitFor,omitempty"` // milliseconds
	Timeout         int      `json:"timeout,omitempty"` // milliseconds
}

// CrawlRequest describes a multi-page crawl job.
type CrawlRequest struct {
	URL                string         `json:"url"`
	IncludePaths       []string       `json:"includePaths,omitempty"`
	ExcludePaths       []string       `json:"excludePaths,omitempty"`
	MaxDepth           int            `json:"maxDepth,omitempty"`
	Limit              int            `json:"limit,omitempty"`
	AllowBackwardLinks bool           `json:"allowBackwardLinks,omitempty"`
	AllowExternalLinks bool           `json:"allowExternalLinks,omitempty"`
	IgnoreSitemap      bool           `json:"ignoreSitemap,omitempty"`
	ScrapeOptions      *ScrapeOptions `json:"scrapeOptions,omitempty"`
}

// BatchScrapeRequest describes a batch scrape job over a fixed URL list.
type BatchScrapeRequest struct {
	URLs    []string       `json:"urls"`
	Options *ScrapeOptions `json:"options,omitempty"`
}
