package analytics

import (
	"time"

	"foodseer/internal/storage"
)

// DailyStats aggregates one day of assistant interactions.
type DailyStats struct {
	Date               string              `json:"date"`
	TotalMessages      int                 `json:"total_messages"`
	UniqueUsers        int                 `json:"unique_users"`
	Recommendations    int                 `json:"recommendations"`
	RecommendationRate float64             `json:"recommendation_rate"`
	UserStats          map[int64]UserStats `json:"user_stats"`
}

// UserStats aggregates one user's share of a day.
type UserStats struct {
	UserID          int64 `json:"user_id"`
	Messages        int   `json:"messages"`
	Recommendations int   `json:"recommendations"`
}

// AnalyzeDailyLogs summarizes the events that fall on targetDate's day.
func AnalyzeDailyLogs(events []storage.Event, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	stats := &DailyStats{
		Date:      startOfDay.Format("2006-01-02"),
		UserStats: make(map[int64]UserStats),
	}

	uniqueUsers := make(map[int64]bool)

	for _, event := range events {
		if event.Timestamp.Before(startOfDay) || !event.Timestamp.Before(endOfDay) {
			continue
		}
		if event.UserMessage == "" {
			continue
		}

		stats.TotalMessages++
		uniqueUsers[event.UserID] = true

		userStat := stats.UserStats[event.UserID]
		userStat.UserID = event.UserID
		userStat.Messages++
		if event.RecommendedFoodID != nil {
			stats.Recommendations++
			userStat.Recommendations++
		}
		stats.UserStats[event.UserID] = userStat
	}

	stats.UniqueUsers = len(uniqueUsers)
	if stats.TotalMessages > 0 {
		stats.RecommendationRate = float64(stats.Recommendations) / float64(stats.TotalMessages)
	}
	return stats
}
