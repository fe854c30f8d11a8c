package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/urfave/cli/v2"
)

type statsSnapshot struct {
	Connections   int    `json:"connections"`
	Registered    uint64 `json:"registered_total"`
	Replaced      uint64 `json:"replaced_total"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func monitorCmd() *cli.Command {
	return &cli.Command{
		Name:    "monitor",
		Aliases: []string{"m"},
		Usage:   "Render live hub stats from a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: "http://127.0.0.1:8086",
				Usage: "Base URL of the server to monitor",
			},
			&cli.StringFlag{
				Name:     "token",
				Usage:    "Session token for the stats endpoint",
				Required: true,
			},
			&cli.DurationFlag{
				Name:  "interval",
				Value: 2 * time.Second,
				Usage: "Polling interval",
			},
		},
		Action: func(c *cli.Context) error {
			return runMonitor(c.String("addr"), c.String("token"), c.Duration("interval"))
		},
	}
}

func runMonitor(baseURL, token string, interval time.Duration) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("monitor: terminal init: %w", err)
	}
	defer ui.Close()

	summary := widgets.NewParagraph()
	summary.Title = "Delivery Hub"
	summary.SetRect(0, 0, 60, 8)

	history := widgets.NewSparkline()
	history.Title = "connections"
	group := widgets.NewSparklineGroup(history)
	group.SetRect(0, 8, 60, 16)

	client := &http.Client{Timeout: 5 * time.Second}
	var series []float64

	draw := func() {
		snap, err := fetchStats(client, baseURL, token)
		if err != nil {
			summary.Text = fmt.Sprintf("unreachable: %v", err)
			ui.Render(summary, group)
			return
		}

		series = append(series, float64(snap.Connections))
		if len(series) > 58 {
			series = series[len(series)-58:]
		}
		history.Data = series

		summary.Text = fmt.Sprintf(
			"connections:  %d\nregistered:   %d\nreplaced:     %d\nuptime:       %s",
			snap.Connections,
			snap.Registered,
			snap.Replaced,
			time.Duration(snap.UptimeSeconds)*time.Second,
		)
		ui.Render(summary, group)
	}

	draw()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	events := ui.PollEvents()

	for {
		select {
		case e := <-events:
			if e.Type == ui.KeyboardEvent {
				return nil
			}
		case <-ticker.C:
			draw()
		}
	}
}

func fetchStats(client *http.Client, baseURL, token string) (*statsSnapshot, error) {
	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/stats", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stats endpoint returned %s", resp.Status)
	}

	snap := new(statsSnapshot)
	if err := json.NewDecoder(resp.Body).Decode(snap); err != nil {
		return nil, err
	}
	return snap, nil
}
