package main

import (
	"fmt"

	"github.com/norbert12x/parasol/pkg/parasol/feed"
	"github.com/norbert12x/parasol/pkg/parasol/job"
)

// openSource prefers a JSONL dump when given, otherwise the HTTP feed.
func (a *app) openSource(feedFile string) (job.Source, error) {
	if feedFile != "" {
		return feed.OpenFile(feedFile, a.logger)
	}
	if a.settings.FeedURL == "" {
		return nil, fmt.Errorf("no source: set PARASOL_FEED_URL or pass --feed-file")
	}
	return &feed.HTTPSource{BaseURL: a.settings.FeedURL, HTTPClient: a.httpClient}, nil
}
