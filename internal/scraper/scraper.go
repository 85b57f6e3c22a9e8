// Package scraper visits product pages and collects the image candidates
// to download.
package scraper

import (
	"context"

	"ImageHarvester/internal/browser"
)

// SessionSource hands out automation sessions. *browser.Pool satisfies it.
type SessionSource interface {
	Acquire(ctx context.Context) (*browser.Session, error)
	Release(s *browser.Session)
}

// Strategy selects how tasks are spread over workers.
type Strategy string

const (
	// StrategyQueue lets every worker pull the next task from a shared queue.
	StrategyQueue Strategy = "queue"
	// StrategyShards gives each worker a fixed contiguous slice of tasks.
	StrategyShards Strategy = "shards"
)

// DefaultImageSelector matches the product images of makeshop storefronts.
const DefaultImageSelector = `img[src*="makeshop-multi-images.akamaized.net"]`
