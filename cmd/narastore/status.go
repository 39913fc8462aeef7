package main

import (
	"context"
	"time"

	"github.com/narastore/narastore/internal/analysis"
	"github.com/narastore/narastore/internal/config"
)

type serverStatus struct {
	Backend struct {
		URL         string     `json:"url"`
		Healthy     *bool      `json:"healthy"`
		LastChecked *time.Time `json:"lastChecked"`
	} `json:"backend"`
	Busy       bool   `json:"busy"`
	InFlight   int    `json:"inFlight"`
	LastError  string `json:"lastError"`
	MockMode   bool   `json:"mockMode"`
	Ready      bool   `json:"ready"`
	ReadyError string `json:"readyError"`
	Store      string `json:"store"`
}

// checkBackend probes the analysis backend directly, for when the server
// is not running.
func checkBackend(ctx context.Context, baseURL string) *bool {
	ok := analysis.New(baseURL, analysis.Options{}).CheckHealth(ctx)
	return &ok
}

func backendLabel(healthy *bool) string {
	switch {
	case healthy == nil:
		return colorize(colorYellow, "unknown")
	case *healthy:
		return colorize(colorGreen, "연결됨")
	default:
		return colorize(colorRed, "연결 안됨")
	}
}

func printServerStatus(cfg config.Config, st serverStatus) {
	printStatus("Server", "%s", colorize(colorGreen, "running"))

	backend := backendLabel(st.Backend.Healthy)
	if st.Backend.URL != "" {
		backend += " (" + st.Backend.URL + ")"
	}
	printStatus("Backend", "%s", backend)
	if st.Backend.LastChecked != nil {
		printStatus("Checked", "%s", st.Backend.LastChecked.Local().Format(time.DateTime))
	}

	switch {
	case !st.Ready:
		printStatus("Uploads", "%s", colorize(colorRed, "blocked: "+st.ReadyError))
	case st.MockMode:
		printStatus("Uploads", "%s", colorize(colorYellow, "mock mode"))
	default:
		printStatus("Uploads", "%s", colorize(colorGreen, "ready"))
	}
	if st.Busy {
		printStatus("Analyzing", "%d in flight", st.InFlight)
	}
	if st.LastError != "" {
		printStatus("Last error", "%s", colorize(colorRed, st.LastError))
	}
	printStatus("Store", "%s", st.Store)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
}
