package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"shopfiles/pkg/models"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
	barWidth      = 20
)

// Progress receives pagination events for display
type Progress interface {
	PageStarted(page int)
	// PageFetched reports how many downloads the page will start
	PageFetched(page, downloads int)
	ItemFinished(page int, outcome models.DownloadOutcome)
	PageFinished(summary models.PageSummary)
}

// NopProgress discards all events
type NopProgress struct{}

func (NopProgress) PageStarted(int)                          {}
func (NopProgress) PageFetched(int, int)                     {}
func (NopProgress) ItemFinished(int, models.DownloadOutcome) {}
func (NopProgress) PageFinished(models.PageSummary)          {}

// StatusTracker prints per-page progress and keeps running totals
type StatusTracker struct {
	printer    *Printer
	mu         sync.Mutex
	pageItems  int
	pageDone   int
	Pages      int
	Downloaded int
	Failed     int
	Skipped    int
	StartTime  time.Time
}

// NewStatusTracker creates a new status tracker
func NewStatusTracker(p *Printer) *StatusTracker {
	return &StatusTracker{printer: p, StartTime: time.Now()}
}

// PageStarted announces a page request
func (st *StatusTracker) PageStarted(page int) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.pageItems, st.pageDone = 0, 0
	fmt.Fprintf(st.printer.out, "%s Fetching page %d...\n", st.printer.paint(Magenta, "[PAGE]"), page)
}

// PageFetched sets the number of downloads expected for the page
func (st *StatusTracker) PageFetched(page, downloads int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.pageItems = downloads
}

// ItemFinished records one outcome and redraws the bar
func (st *StatusTracker) ItemFinished(page int, outcome models.DownloadOutcome) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.pageDone++
	if outcome.Success {
		st.Downloaded++
	} else {
		st.Failed++
	}
	if st.printer.color {
		fmt.Fprintf(st.printer.out, "\r  %s", st.bar())
	}
}

// PageFinished prints the page totals
func (st *StatusTracker) PageFinished(summary models.PageSummary) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.Pages++
	st.Skipped += len(summary.Skipped)
	if st.printer.color && st.pageDone > 0 {
		fmt.Fprintln(st.printer.out)
	}

	line := fmt.Sprintf("  page %d: %d items, %d downloaded, %d failed, %d skipped | total %d (%.1f/min)",
		summary.Number, summary.Items, summary.Downloaded(), summary.Failed(), len(summary.Skipped),
		st.Downloaded, st.rate())
	if summary.Failed() > 0 {
		fmt.Fprintln(st.printer.out, st.printer.paint(Yellow, line))
		return
	}
	fmt.Fprintln(st.printer.out, st.printer.paint(Green, line))
}

// bar renders the current page's progress
func (st *StatusTracker) bar() string {
	total := st.pageItems
	if total < st.pageDone {
		total = st.pageDone
	}
	filled := 0
	if total > 0 {
		filled = st.pageDone * barWidth / total
	}
	return fmt.Sprintf("[%s%s] %d/%d",
		strings.Repeat(ProgressBar, filled), strings.Repeat(ProgressEmpty, barWidth-filled),
		st.pageDone, total)
}

// rate returns downloads per minute since start
func (st *StatusTracker) rate() float64 {
	elapsed := time.Since(st.StartTime).Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(st.Downloaded) / elapsed
}

// Elapsed returns the time since tracking started
func (st *StatusTracker) Elapsed() time.Duration {
	return time.Since(st.StartTime)
}
