package timeline

import (
	"math"
	"time"

	"github.com/showcaselive/showtime/internal/models"
)

// Schedule turns an ordered contestant list into back-to-back performance
// slots anchored at anchor. Input order is significant: contest order is the
// caller's concern (raffle position), and order numbers are assigned
// 1-based in the order supplied. A contestant with a missing, non-finite, or
// non-positive duration gets fallbackSeconds so that no entrant is ever
// silently dropped. Re-invocation fully replaces the slot list.
func Schedule(contestants []models.Contestant, fallbackSeconds float64, anchor time.Time) []models.Performance {
	perfs := make([]models.Performance, 0, len(contestants))
	cursor := anchor
	for i, c := range contestants {
		seconds := slotSeconds(c, fallbackSeconds)
		start := cursor
		end := start.Add(time.Duration(seconds * float64(time.Second)))
		perfs = append(perfs, models.Performance{
			ContestantID:         c.ID,
			ContestantName:       c.Name,
			PerformanceTitle:     c.PerformanceTitle,
			MediaRef:             c.MediaRef,
			Order:                i + 1,
			VideoDurationSeconds: seconds,
			StartTime:            start,
			EndTime:              end,
			Status:               models.StatusPending,
		})
		cursor = end
	}
	return perfs
}

// slotSeconds picks a usable slot length for a contestant.
func slotSeconds(c models.Contestant, fallbackSeconds float64) float64 {
	d := c.VideoDurationSeconds
	if d == nil || math.IsNaN(*d) || math.IsInf(*d, 0) || *d <= 0 {
		return fallbackSeconds
	}
	return *d
}

// TotalSeconds sums the slot lengths of all performances.
func TotalSeconds(perfs []models.Performance) float64 {
	var total float64
	for i := range perfs {
		total += perfs[i].VideoDurationSeconds
	}
	return total
}

// Reanchor rewrites the windows of all non-completed performances
// back-to-back from anchor, in order. Completed slots keep their historical
// windows.
func Reanchor(perfs []models.Performance, anchor time.Time) {
	cursor := anchor
	for i := range perfs {
		if perfs[i].Status == models.StatusCompleted {
			continue
		}
		perfs[i].StartTime = cursor
		perfs[i].EndTime = cursor.Add(time.Duration(perfs[i].VideoDurationSeconds * float64(time.Second)))
		cursor = perfs[i].EndTime
	}
}
