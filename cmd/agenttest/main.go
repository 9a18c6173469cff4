package main

// Manual smoke driver for the extraction and summarization path:
//   go run ./cmd/agenttest -pdf complaint.pdf -rag-id <id>

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"litigation-backend/internal/agent"
	"litigation-backend/internal/extract"
	"litigation-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	pdfPaths := flag.String("pdf", "", "Comma-separated paths to PDF files")
	ragID := flag.String("rag-id", "", "Knowledge-base id to attach (optional)")
	shortAgent := flag.String("short-agent", cfg.ShortSummaryAgent, "Short summary agent id")
	longAgent := flag.String("long-agent", cfg.LongSummaryAgent, "Long summary agent id")
	apiKey := flag.String("api-key", cfg.ProviderAPIKey, "Provider api key")
	extractOnly := flag.Bool("extract-only", false, "Stop after extraction; print the combined message")
	flag.Parse()

	if strings.TrimSpace(*pdfPaths) == "" {
		exitErr("at least one -pdf path is required")
	}

	ctx := context.Background()
	var parts []string
	for _, path := range strings.Split(*pdfPaths, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			exitErr(fmt.Sprintf("read %s: %v", path, err))
		}
		res, err := extract.FromBytes(ctx, data)
		if err != nil {
			exitErr(fmt.Sprintf("extract %s: %v", path, err))
		}
		name := filepath.Base(path)
		fmt.Printf("extracted %s: %d pages, %d chars\n", name, res.PageCount, len(res.Text))
		parts = append(parts, fmt.Sprintf("[Document: %s]\nPages: %d\n\n%s", name, res.PageCount, res.Text))
	}
	if len(parts) == 0 {
		exitErr("no extractable text in any input")
	}
	combined := strings.Join(parts, "\n\n=== NEW DOCUMENT ===\n\n")

	if *extractOnly {
		fmt.Println(combined)
		return
	}
	if strings.TrimSpace(*apiKey) == "" {
		exitErr("api key is required unless -extract-only is set")
	}

	client := agent.NewClient(cfg.AgentBaseURL, cfg.RagBaseURL)
	for _, agentID := range []string{*shortAgent, *longAgent} {
		if strings.TrimSpace(agentID) == "" {
			continue
		}
		resp, err := client.Ask(ctx, *apiKey, agent.AskInput{
			AgentID: agentID,
			Message: combined,
			RagID:   *ragID,
		})
		if err != nil {
			exitErr(fmt.Sprintf("agent %s: %v", agentID, err))
		}
		pretty, _ := json.MarshalIndent(json.RawMessage(resp.Raw), "", "  ")
		fmt.Printf("--- agent %s ---\n%s\n", agentID, pretty)
	}
}

func exitErr(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
