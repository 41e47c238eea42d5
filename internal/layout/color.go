package layout

import "github.com/p-n-ai/pai-course/internal/curriculum"

const (
	ColorCompleted = "#10b981"
	ColorLocked    = "#94a3b8"
	ColorAvailable = "#6366f1"
)

// StatusColor returns the fill colour for a node status.
func StatusColor(status curriculum.NodeStatus) string {
	switch status {
	case curriculum.StatusCompleted:
		return ColorCompleted
	case curriculum.StatusLocked:
		return ColorLocked
	default:
		return ColorAvailable
	}
}
