// Package prowl is a Go client for a remote document-retrieval service:
// start crawl and batch scrape jobs, check their status, and watch a
// running job to completion.
//
// Watching supports two styles. The callback style runs on a background
// worker and invokes registered listeners:
//
//	w := client.WatchCrawl(jobID)
//	w.OnDocument(func(doc models.Document) { ... })
//	w.OnSnapshot(func(snap models.JobSnapshot) { ... })
//	w.Start()
//	<-w.Done()
//
// The iterator style is driven by the caller's own goroutine:
//
//	it := client.CrawlSnapshots(jobID)
//	for snap, ok := it.Next(ctx); ok; snap, ok = it.Next(ctx) { ... }
//
// Both open a streaming connection to the service and fall back to status
// polling when the stream cannot be opened or drops mid-session.
package prowl

const (
	// DefaultBaseURL is the hosted service endpoint.
	DefaultBaseURL = "https://api.firecrawl.dev"
)
