package scraper

import "ImageHarvester/internal/models"

// Shard splits tasks into n contiguous shards of ceil(len/n); the last one may
// be shorter and empty shards are not returned.
func Shard(tasks []models.ProductTask, n int) [][]models.ProductTask {
	if n < 1 {
		n = 1
	}
	if len(tasks) == 0 {
		return nil
	}
	size := (len(tasks) + n - 1) / n

	shards := make([][]models.ProductTask, 0, n)
	for start := 0; start < len(tasks); start += size {
		end := start + size
		if end > len(tasks) {
			end = len(tasks)
		}
		shards = append(shards, tasks[start:end])
	}
	return shards
}

// Dedup keeps the first candidate for each distinct URL, preserving order,
// and reports how many were dropped.
func Dedup(candidates []models.ImageCandidate) ([]models.ImageCandidate, int) {
	seen := make(map[string]bool, len(candidates))
	unique := make([]models.ImageCandidate, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		unique = append(unique, c)
	}
	return unique, len(candidates) - len(unique)
}
