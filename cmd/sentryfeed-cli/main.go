// Command sentryfeed-cli replays a JSON fixture of per-frame tracks
// through the pipeline and prints the resulting alerts and frame
// summaries, for demoing and for driving the end-to-end scenarios of
// spec.md 8 without a live video source. Mirrors the spirit of orbo's
// cmd/orbo-cli operator tool.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"sentryfeed/internal/config"
	"sentryfeed/internal/pipeline"
	"sentryfeed/internal/risk"
)

// fixtureFrame is one line of the replay fixture: a frame ID, timestamp,
// and the live tracks visible in it.
type fixtureFrame struct {
	FrameID uint64      `json:"frame_id"`
	T       float64     `json:"t"`
	Tracks  []risk.Track `json:"tracks"`
}

func main() {
	fixturePath := flag.String("fixture", "", "path to a JSON array of fixture frames")
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	logger := log.New(os.Stderr, "[sentryfeed-cli] ", log.Ltime)

	if *fixturePath == "" {
		logger.Fatal("missing required -fixture flag")
	}

	data, err := os.ReadFile(*fixturePath)
	if err != nil {
		logger.Fatalf("read fixture: %v", err)
	}
	var frames []fixtureFrame
	if err := json.Unmarshal(data, &frames); err != nil {
		logger.Fatalf("parse fixture: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	pl, err := pipeline.New(cfg, nil, logger)
	if err != nil {
		logger.Fatalf("pipeline: %v", err)
	}
	defer pl.Stop()

	unsubAlerts := subscribeAndPrint(pl)
	defer unsubAlerts()

	for _, f := range frames {
		summary, _ := pl.ProcessFrame(f.Tracks, f.FrameID, f.T, nil, "")
		fmt.Printf("frame %d: max_level=%s max_score=%.3f concerning=%d\n",
			summary.FrameID, summary.MaxRiskLevel, summary.MaxRiskScore, summary.ConcerningTracks)
	}
}

func subscribeAndPrint(pl *pipeline.Pipeline) func() {
	ch, unsubscribe := pl.Alerts.Subscribe(16)
	go func() {
		for a := range ch {
			fmt.Println(a.ToLogString())
		}
	}()
	return unsubscribe
}
