package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/e7canasta/scanview/modules/progress"
	"github.com/e7canasta/scanview/modules/session"
	"github.com/e7canasta/scanview/modules/transport"
)

const (
	statsSubscriber = "stats"
	statsFeedBuffer = 64
)

// subscribeProgress registers the stats display on the bus. Updates beyond
// the buffer are dropped rather than slowing the painter.
func subscribeProgress(bus progress.Bus) (<-chan progress.Progress, error) {
	ch := make(chan progress.Progress, statsFeedBuffer)
	if err := bus.Subscribe(statsSubscriber, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// latestProgress drains ch without blocking and returns the newest update,
// or last when nothing is pending.
func latestProgress(ch <-chan progress.Progress, last progress.Progress) progress.Progress {
	for {
		select {
		case p := <-ch:
			last = p
		default:
			return last
		}
	}
}

// reportStats periodically prints viewer statistics
func reportStats(
	ctx context.Context,
	interval time.Duration,
	ctrl session.Controller,
	client func() *transport.Client,
	bus progress.Bus,
	emitter *progress.MQTTEmitter,
) {
	updates, err := subscribeProgress(bus)
	if err != nil {
		slog.Warn("Progress feed unavailable for stats", "error", err)
	}
	defer func() { _ = bus.Unsubscribe(statsSubscriber) }()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	startTime := time.Now()
	var last progress.Progress

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if updates != nil {
				last = latestProgress(updates, last)
			}
			printLiveStats(time.Since(startTime), ctrl, client(), bus, emitter, last)
		}
	}
}

// printLiveStats prints current viewer statistics
func printLiveStats(
	uptime time.Duration,
	ctrl session.Controller,
	client *transport.Client,
	bus progress.Bus,
	emitter *progress.MQTTEmitter,
	last progress.Progress,
) {
	stats := ctrl.Stats()

	fmt.Println()
	fmt.Println("┌─────────────────────────────────────────────────────────────┐")
	fmt.Printf("│ Viewer Stats (uptime: %v)%s│\n", uptime.Round(time.Second), padding(uptime))
	fmt.Println("├─────────────────────────────────────────────────────────────┤")

	fmt.Println("│ SESSION                                                     │")
	fmt.Printf("│   State:          %-42s│\n", stats.State)
	if stats.JobID != "" {
		fmt.Printf("│   Job:            %-42s│\n", shortID(stats.JobID))
		fmt.Printf("│   Image:          %-42s│\n", fmt.Sprintf("%dx%d", stats.Width, stats.Height))
		fmt.Printf("│   Rows:           %-42s│\n",
			fmt.Sprintf("%d/%d (%.1f%%)", stats.RowsPainted, stats.Height,
				progress.CompletionRatio(progress.Progress{RowsPainted: stats.RowsPainted, Height: stats.Height})*100))
	}
	fmt.Printf("│   Jobs:           %-42d│\n", stats.Jobs)
	fmt.Println("│                                                             │")

	fmt.Println("│ INGEST                                                      │")
	fmt.Printf("│   Received:       %-42d│\n", stats.Received)
	fmt.Printf("│   Queue:          %-42s│\n", fmt.Sprintf("%d (high water %d)", stats.QueueDepth, stats.QueueHighWater))
	fmt.Printf("│   Dropped:        %-42s│\n",
		fmt.Sprintf("%d (malformed %d, out of range %d, late %d)",
			stats.Dropped(), stats.Malformed, stats.OutOfRange, stats.Late))
	if stats.Arrival.Rows > 1 {
		steady := "bursty"
		if stats.Arrival.IsSteady {
			steady = "steady"
		}
		fmt.Printf("│   Arrival:        %-42s│\n",
			fmt.Sprintf("%.1f rows/s, jitter %.1fms (%s)",
				stats.Arrival.RateMean, stats.Arrival.JitterMean*1000, steady))
	}
	fmt.Println("│                                                             │")

	fmt.Println("│ PAINT                                                       │")
	fmt.Printf("│   Ticks:          %-42d│\n", stats.Ticks)
	fmt.Printf("│   Presented:      %-42d│\n", stats.Presented)
	if stats.PresentErrors > 0 {
		fmt.Printf("│   Present Errors: %-42d│\n", stats.PresentErrors)
	}
	fmt.Println("│                                                             │")

	if client != nil {
		cs := client.Stats()
		fmt.Println("│ TRANSPORT                                                   │")
		fmt.Printf("│   Connected:      %-42v│\n", cs.IsConnected)
		fmt.Printf("│   Frames:         %-42s│\n",
			fmt.Sprintf("%d (text %d, binary %d)", cs.Messages, cs.TextMessages, cs.BinaryMessages))
		fmt.Printf("│   Bytes:          %-42d│\n", cs.BytesRead)
		fmt.Printf("│   End Seen:       %-42v│\n", cs.EndSeen)
		for _, category := range sortedKeys(cs.Errors) {
			fmt.Printf("│   Errors [%-7s]: %-41d│\n", category, cs.Errors[category])
		}
		fmt.Println("│                                                             │")
	}

	bs := bus.Stats()
	fmt.Println("│ PROGRESS                                                    │")
	fmt.Printf("│   Published:      %-42d│\n", bs.TotalPublished)
	fmt.Printf("│   Drop Rate:      %-42s│\n", fmt.Sprintf("%.1f%%", progress.CalculateDropRate(bs)))
	if last.Seq > 0 {
		fmt.Printf("│   Last Update:    %-42s│\n",
			fmt.Sprintf("#%d %s %d/%d rows (%s ago)", last.Seq, last.State, last.RowsPainted, last.Height,
				time.Since(last.At).Round(time.Millisecond)))
	}
	if emitter != nil {
		es := emitter.Stats()
		fmt.Printf("│   MQTT:           %-42s│\n",
			fmt.Sprintf("%d sent, %d errors (connected %v)", es.Published, es.Errors, es.Connected))
	}

	fmt.Println("└─────────────────────────────────────────────────────────────┘")
}

// printFinalStats prints final statistics on shutdown
func printFinalStats(
	ctrl session.Controller,
	client *transport.Client,
	bus progress.Bus,
	emitter *progress.MQTTEmitter,
	saver *ImageSaver,
) {
	stats := ctrl.Stats()

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println("                     FINAL STATISTICS")
	fmt.Println("═══════════════════════════════════════════════════════════════")

	fmt.Println()
	fmt.Println("Session:")
	fmt.Printf("  Jobs:              %d\n", stats.Jobs)
	fmt.Printf("  Terminated Early:  %d\n", stats.TerminatedEarly)
	fmt.Printf("  Last Job:          %s (%dx%d, %s)\n", shortID(stats.JobID), stats.Width, stats.Height, stats.State)
	fmt.Printf("  Rows Painted:      %d\n", stats.RowsPainted)

	fmt.Println()
	fmt.Println("Ingest (last job):")
	fmt.Printf("  Received:          %d\n", stats.Received)
	fmt.Printf("  Written:           %d\n", stats.Written)
	fmt.Printf("  Dropped:           %d\n", stats.Dropped())
	fmt.Printf("  Queue High Water:  %d\n", stats.QueueHighWater)

	fmt.Println()
	fmt.Println("Paint (last job):")
	fmt.Printf("  Ticks:             %d\n", stats.Ticks)
	fmt.Printf("  Presented:         %d\n", stats.Presented)
	fmt.Printf("  Present Errors:    %d\n", stats.PresentErrors)

	if client != nil {
		cs := client.Stats()
		fmt.Println()
		fmt.Println("Transport (last connection):")
		fmt.Printf("  Frames:            %d\n", cs.Messages)
		fmt.Printf("  Bytes:             %d\n", cs.BytesRead)
		fmt.Printf("  Dial Retries:      %d\n", cs.Reconnects)
	}

	bs := bus.Stats()
	fmt.Println()
	fmt.Println("Progress:")
	fmt.Printf("  Published:         %d\n", bs.TotalPublished)
	fmt.Printf("  Dropped:           %d\n", bs.TotalDropped)
	if emitter != nil {
		es := emitter.Stats()
		fmt.Printf("  MQTT Sent:         %d\n", es.Published)
		fmt.Printf("  MQTT Errors:       %d\n", es.Errors)
	}

	if saver != nil {
		saved, failed := saver.Stats()
		fmt.Println()
		fmt.Println("Output:")
		fmt.Printf("  Images Saved:      %d\n", saved)
		fmt.Printf("  Images Failed:     %d\n", failed)
	}

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════════")
}

// padding returns spaces to align the uptime header
func padding(uptime time.Duration) string {
	n := 37 - len(uptime.Round(time.Second).String())
	if n < 0 {
		n = 0
	}
	return fmt.Sprintf("%*s", n, "")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
