package models

import (
	"time"

	errs "shopfiles/pkg/errors"
)

// AssetKind is the declared media kind of a remote file
type AssetKind string

const (
	KindGenericFile AssetKind = "GenericFile"
	KindMediaImage  AssetKind = "MediaImage"
)

// AssetDescriptor is the remote metadata for one downloadable file.
// Optional fields are empty strings when absent.
type AssetDescriptor struct {
	ID               string    `json:"id"`
	Kind             AssetKind `json:"kind"`
	Alt              string    `json:"alt,omitempty"`
	MimeType         string    `json:"mime_type,omitempty"`
	OriginalFilename string    `json:"original_filename,omitempty"`
	URL              string    `json:"url,omitempty"`
	ImageURL         string    `json:"image_url,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	Status           string    `json:"status,omitempty"`
	Cursor           string    `json:"cursor,omitempty"`
}

// SourceURL returns the URL to download for this descriptor, or "" when the
// kind is unknown or the kind's URL is missing.
func (d AssetDescriptor) SourceURL() string {
	switch d.Kind {
	case KindGenericFile:
		return d.URL
	case KindMediaImage:
		return d.ImageURL
	default:
		return ""
	}
}

// PageRequest is sent to the remote source for each page
type PageRequest struct {
	PageSize int
	After    string
}

// Page is one page of the remote listing
type Page struct {
	HasNextPage bool
	Items       []AssetDescriptor
	// LastCursor is the listing's end cursor; empty when the source did not supply one
	LastCursor string
}

// PageCursor is the paginator's position in the remote listing
type PageCursor struct {
	After   string `json:"after"`
	HasMore bool   `json:"has_more"`
}

// DownloadOutcome is the result of fetching one asset
type DownloadOutcome struct {
	URL       string         `json:"url"`
	Path      string         `json:"path"`
	Success   bool           `json:"success"`
	Attempts  int            `json:"attempts"`
	ErrorType errs.ErrorType `json:"error_type,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Bytes     int64          `json:"bytes"`
	Duration  time.Duration  `json:"duration"`
}

// SkippedItem is a descriptor dropped before download because it had no URL
type SkippedItem struct {
	ID   string    `json:"id"`
	Kind AssetKind `json:"kind"`
}

// PageSummary collects the outcomes of one processed page
type PageSummary struct {
	Number   int               `json:"page"`
	Items    int               `json:"items"`
	Skipped  []SkippedItem     `json:"skipped,omitempty"`
	Outcomes []DownloadOutcome `json:"outcomes"`
}

// Downloaded returns the number of successful outcomes
func (p PageSummary) Downloaded() int {
	n := 0
	for _, o := range p.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}

// Failed returns the number of failed outcomes
func (p PageSummary) Failed() int {
	return len(p.Outcomes) - p.Downloaded()
}

// RunSummary aggregates all processed pages. Err is set when pagination
// ended early because the remote source failed.
type RunSummary struct {
	Pages      []PageSummary `json:"pages"`
	Err        error         `json:"-"`
	Completed  bool          `json:"completed"`
	LastCursor string        `json:"last_cursor,omitempty"`
}

// Totals returns items, skipped, downloaded and failed counts across pages
func (r *RunSummary) Totals() (items, skipped, downloaded, failed int) {
	for _, p := range r.Pages {
		items += p.Items
		skipped += len(p.Skipped)
		downloaded += p.Downloaded()
		failed += p.Failed()
	}
	return
}

// Degraded reports whether pagination stopped because of a source failure
func (r *RunSummary) Degraded() bool {
	return r.Err != nil
}
