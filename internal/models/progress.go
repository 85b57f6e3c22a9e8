package models

// Stage names the phase a ProgressEvent belongs to.
type Stage string

const (
	StageChecking    Stage = "checking"
	StageDownloading Stage = "downloading"
)

// ProgressEvent is emitted fire-and-forget to progress listeners.
type ProgressEvent struct {
	Stage       Stage  `json:"stage"`
	Current     int    `json:"current"`
	Total       int    `json:"total"`
	ProgressPct int    `json:"progress"`
	Message     string `json:"message"`
}

// Percent returns round(current/total*100), or 0 for an empty run.
func Percent(current, total int) int {
	if total <= 0 {
		return 0
	}
	return (current*200 + total) / (total * 2)
}
