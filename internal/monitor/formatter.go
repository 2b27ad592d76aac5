package monitor

import (
	"fmt"
	"time"
)

// FormatSteps formats step usage as "used/budget".
func FormatSteps(used, budget int) string {
	if budget <= 0 {
		return fmt.Sprintf("%d", used)
	}
	return fmt.Sprintf("%d/%d", used, budget)
}

// StepRatio returns used/budget clamped to [0, 1].
func StepRatio(used, budget int) float64 {
	if budget <= 0 || used <= 0 {
		return 0
	}
	r := float64(used) / float64(budget)
	if r > 1 {
		return 1
	}
	return r
}

// FormatPercentage formats a ratio (0-1) as percentage
func FormatPercentage(ratio float64) string {
	return fmt.Sprintf("%.0f%%", ratio*100)
}

// FormatElapsed formats a duration as "Xm Ys", or "X.Ys" under a minute.
func FormatElapsed(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d / time.Minute)
	seconds := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
