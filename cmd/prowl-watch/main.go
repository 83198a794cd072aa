package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/prowl"
	"github.com/ternarybob/prowl/internal/common"
	"github.com/ternarybob/prowl/pkg/models"
)

func main() {
	configFlag := flag.String("config", "", "Path to TOML config file (optional, PROWL_API_KEY env works too)")
	jobFlag := flag.String("job", "", "Job ID to watch")
	kindFlag := flag.String("kind", "crawl", "Job kind: crawl or batch")
	timeoutFlag := flag.Duration("timeout", 0, "Overall watch deadline (e.g. 10m), overrides config")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println("prowl-watch " + common.GetFullVersion())
		return
	}

	if *jobFlag == "" {
		fmt.Println("Error: -job flag is required")
		flag.Usage()
		os.Exit(1)
	}

	kind := models.WatchKind(*kindFlag)
	if kind != models.WatchKindCrawl && kind != models.WatchKindBatch {
		fmt.Printf("Error: invalid -kind %q (want crawl or batch)\n", *kindFlag)
		os.Exit(1)
	}

	config, err := common.LoadConfig(*configFlag)
	if err != nil {
		// The config-driven logger is not available yet.
		common.GetLogger().Error().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	clientOpts := []prowl.ClientOption{
		prowl.WithBaseURL(config.Service.BaseURL),
		prowl.WithLogger(logger),
	}
	if config.Service.RateLimit > 0 {
		clientOpts = append(clientOpts, prowl.WithRateLimit(config.Service.RateLimit))
	}
	client := prowl.NewClient(config.Service.APIKey, clientOpts...)

	watchOpts := []prowl.WatchOption{
		prowl.WithPollInterval(config.Watch.PollIntervalDuration()),
	}
	timeout := config.Watch.TimeoutDuration()
	if *timeoutFlag > 0 {
		timeout = *timeoutFlag
	}
	if timeout > 0 {
		watchOpts = append(watchOpts, prowl.WithWatchTimeout(timeout))
	}

	var watcher *prowl.Watcher
	if kind == models.WatchKindCrawl {
		watcher = client.WatchCrawl(*jobFlag, watchOpts...)
	} else {
		watcher = client.WatchBatch(*jobFlag, watchOpts...)
	}

	var terminal models.JobStatus

	watcher.OnDocument(func(doc models.Document) {
		fmt.Printf("document: %s\n", doc.SourceURL())
	})
	watcher.OnSnapshot(func(snapshot models.JobSnapshot) {
		fmt.Printf("status: %s (%d/%d)\n", snapshot.Status, snapshot.Completed, snapshot.Total)
		if snapshot.Status.IsTerminal() {
			terminal = snapshot.Status
		}
	})
	watcher.AddListener(prowl.EventError, func(event prowl.Event) {
		if event.Err != "" {
			fmt.Printf("job failed: %s\n", event.Err)
		}
	})

	watcher.Start()

	// Ctrl-C stops the watcher cleanly
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case <-watcher.Done():
	case <-interrupt:
		fmt.Println("Interrupted, stopping watcher...")
		watcher.Stop()
	}

	switch terminal {
	case models.JobStatusCompleted:
		os.Exit(0)
	case "":
		fmt.Println("Watch ended without a terminal status - re-check job status")
		os.Exit(1)
	default:
		os.Exit(1)
	}
}
