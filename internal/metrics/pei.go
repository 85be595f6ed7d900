package metrics

import (
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"pulse-bot/internal/models"
)

// minMessagesForPEI is the minimum message count a channel needs before its
// participation equity is worth reporting.
const minMessagesForPEI = 10

var logger = log.With().Str("component", "metrics").Logger()

// ComputePEI computes the Participation Equity Index per channel from a flat
// message list. Only plain messages and thread broadcasts count. The index is
// 1 minus the Gini coefficient of per-user message counts, so 1.0 means
// everyone contributed equally and values near 0 mean one voice dominates.
// Channels with fewer than two active users or fewer than minMessagesForPEI
// messages are left out of the result.
func ComputePEI(rows []models.ChannelMessage) map[string]float64 {
	userCounts := make(map[string]map[string]int)
	for _, row := range rows {
		if row.SubType != "message" && row.SubType != "thread_broadcast" {
			continue
		}
		if userCounts[row.ChannelName] == nil {
			userCounts[row.ChannelName] = make(map[string]int)
		}
		userCounts[row.ChannelName][row.UserID]++
	}

	result := make(map[string]float64)
	for channel, counts := range userCounts {
		if len(counts) < 2 {
			logger.Info().Str("channel", channel).Msg("Not enough users for a meaningful equity index")
			continue
		}

		sorted := make([]int, 0, len(counts))
		total := 0
		for _, c := range counts {
			sorted = append(sorted, c)
			total += c
		}
		sort.Ints(sorted)

		if total < minMessagesForPEI {
			logger.Info().Str("channel", channel).Int("messages", total).Msg("Too few messages, skipping equity index")
			continue
		}

		n := len(sorted)
		weighted := 0
		for i, x := range sorted {
			rank := i + 1
			weighted += (2*rank - n - 1) * x
		}
		gini := math.Abs(float64(weighted) / float64(n*total))
		pei := 1 - gini
		result[channel] = pei

		logger.Debug().Str("channel", channel).Float64("pei", pei).Int("users", n).Msg("Computed participation equity index")
	}
	return result
}
