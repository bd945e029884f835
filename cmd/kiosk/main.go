// Package main is a minimal field-kiosk client for the ouvidoria API. It
// submits a manifestation from the command line, falling back to a local
// durable queue when the server is unreachable, and replays queued items
// on the next run with connectivity.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/participa-df/ouvidoria-server/internal/offline"
	"go.uber.org/zap"
)

func main() {
	var (
		server    = flag.String("server", "http://localhost:8080", "ouvidoria server base URL")
		text      = flag.String("text", "", "manifestation text (empty: replay queue only)")
		category  = flag.String("type", "Informação", "manifestation type")
		anonymous = flag.Bool("anonymous", true, "submit anonymously")
		queuePath = flag.String("queue", defaultQueuePath(), "offline queue database file")
	)
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()
	sugar := logger.Sugar()

	if err := os.MkdirAll(filepath.Dir(*queuePath), 0o755); err != nil {
		sugar.Fatalf("Failed to create queue directory: %v", err)
	}
	queue, err := offline.Open(*queuePath)
	if err != nil {
		sugar.Fatalf("Failed to open offline queue: %v", err)
	}
	defer queue.Close()

	endpoint := *server + "/api/v1/manifestations"
	statusURL := *server + "/api/v1/status"

	submitter := offline.NewHTTPSubmitter(endpoint)
	reconciler := offline.NewReconciler(queue, submitter, probe(statusURL), sugar)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Drain anything left from previous offline runs first.
	if synced, failed, err := reconciler.Replay(ctx); err != nil {
		sugar.Warnf("Replay failed: %v", err)
	} else if synced+failed > 0 {
		fmt.Printf("Replayed %d queued manifestation(s), %d still pending\n", synced, failed)
	}

	if *text == "" {
		return
	}

	item := offline.Item{Text: *text, Type: *category, IsAnonymous: *anonymous}
	queued, err := reconciler.SubmitOrEnqueue(ctx, item)
	if err != nil {
		sugar.Fatalf("Submission failed: %v", err)
	}
	if queued {
		fmt.Println("No connectivity: manifestation saved locally and will be sent later.")
		return
	}
	fmt.Println("Manifestation submitted.")
}

// probe reports connectivity by hitting the server status endpoint.
func probe(statusURL string) func() bool {
	client := &http.Client{Timeout: 5 * time.Second}
	return func() bool {
		resp, err := client.Get(statusURL)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}
}

func defaultQueuePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "participa-df", "offline-queue.db")
}
