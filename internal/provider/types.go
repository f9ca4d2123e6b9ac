package provider

import "time"

// SourceItem is one article as a news source reports it. Err is set when the
// item could not be decoded; the collector skips such items.
type SourceItem struct {
	URL         string
	Title       string
	Body        string
	Author      string
	Source      string
	PublishedAt time.Time
	Err         error
}

// Page is one fetch of a paginated source. NextCursor is empty when the
// source has no further pages.
type Page struct {
	Items      []SourceItem
	NextCursor string
	Filtered   int
}
