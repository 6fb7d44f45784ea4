package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/pkg/reconcile"
)

var (
	serverURL   = flag.String("server", "http://localhost:8085", "Colligo server base URL")
	ownerID     = flag.String("owner", "", "Owner ID sent as X-Owner-ID (required)")
	historyPath = flag.String("history", "", "Notification history file (default: ~/.colligo/notified.json)")
	showVersion = flag.Bool("version", false, "Print version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("colligo-watch version %s\n", common.GetVersion())
		os.Exit(0)
	}

	if *ownerID == "" {
		fmt.Fprintln(os.Stderr, "error: -owner is required")
		flag.Usage()
		os.Exit(2)
	}

	path := *historyPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: cannot locate home directory: %v\n", err)
			os.Exit(1)
		}
		path = filepath.Join(home, ".colligo", "notified.json")
	}

	history, err := reconcile.NewFileStore(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	client := reconcile.NewClient(*serverURL, *ownerID)
	engine := reconcile.NewEngine(client, history, printNotification, nil)
	defer engine.Stop()

	ctx := context.Background()

	// Submit any URLs given as arguments, then watch until quiet.
	for _, pageURL := range flag.Args() {
		if _, err := engine.Submit(ctx, pageURL); err != nil {
			handleSubmitError(pageURL, err)
		}
	}

	engine.Start()
	fmt.Println("watching for page transitions - press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			fmt.Println("\nstopped")
			return
		case <-ticker.C:
			if allTerminal(engine.Entries()) {
				printSummary(engine.Entries())
				return
			}
		}
	}
}

func handleSubmitError(pageURL string, err error) {
	var conflictErr *reconcile.ConflictError
	switch {
	case errors.As(err, &conflictErr):
		fmt.Printf("duplicate: %s already submitted (page %s)\n", pageURL, conflictErr.ExistingPageID)
	case errors.Is(err, reconcile.ErrUnauthorized):
		fmt.Fprintln(os.Stderr, "error: owner rejected by server")
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "submit failed for %s: %v\n", pageURL, err)
	}
}

func printNotification(pageID string, status reconcile.Status) {
	fmt.Printf("[%s] page %s is now %s\n", time.Now().Format("15:04:05"), pageID, status)
}

func allTerminal(entries []reconcile.Entry) bool {
	if len(entries) == 0 {
		return false
	}
	for _, entry := range entries {
		if entry.Ref.IsProvisional() || entry.Status.IsActive() {
			return false
		}
	}
	return true
}

func printSummary(entries []reconcile.Entry) {
	fmt.Println("all pages settled:")
	for _, entry := range entries {
		title := entry.Title
		if title == "" {
			title = entry.URL
		}
		fmt.Printf("  %-10s %-40s links=%d\n", entry.Status, truncate(title, 40), entry.LinkCount)
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
