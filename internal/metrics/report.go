package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/slack-go/slack"

	"pulse-bot/internal/models"
)

// ComputeStats folds a flat message list plus the per-channel metric maps
// into one ChannelStats entry per channel, sorted by channel name.
func ComputeStats(rows []models.ChannelMessage, pei, dcr map[string]float64) []models.ChannelStats {
	byChannel := make(map[string]*models.ChannelStats)
	for _, row := range rows {
		stat, ok := byChannel[row.ChannelName]
		if !ok {
			stat = &models.ChannelStats{
				ChannelID:    row.ChannelID,
				ChannelName:  row.ChannelName,
				SubtypeCount: make(map[string]int),
			}
			byChannel[row.ChannelName] = stat
		}
		stat.SubtypeCount[row.SubType]++
		stat.Total++
	}

	stats := make([]models.ChannelStats, 0, len(byChannel))
	for name, stat := range byChannel {
		if v, ok := pei[name]; ok {
			stat.PEI = v
			stat.HasPEI = true
		}
		if v, ok := dcr[name]; ok {
			stat.DCR = v
			stat.HasDCR = true
		}
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].ChannelName < stats[j].ChannelName })
	return stats
}

// ReportBlocks renders channel stats as Block Kit blocks: a report header,
// then per channel its name, metrics where available, and message counts by
// subtype in descending order.
func ReportBlocks(days int, stats []models.ChannelStats) []slack.Block {
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(
			slack.PlainTextType,
			fmt.Sprintf("📊 Channel Pulse Report (Last %d days)", days),
			true, false,
		)),
		slack.NewDividerBlock(),
	}

	for _, stat := range stats {
		blocks = append(blocks, mrkdwnSection(fmt.Sprintf("*#%s*", stat.ChannelName)))
		if stat.HasPEI {
			blocks = append(blocks, mrkdwnSection(fmt.Sprintf("• Participation Equity Index: %.2f", stat.PEI)))
		}
		if stat.HasDCR {
			blocks = append(blocks, mrkdwnSection(fmt.Sprintf("• Decision Closure Rate: %.1f%%", stat.DCR)))
		}

		type subtypeCount struct {
			subtype string
			count   int
		}
		counts := make([]subtypeCount, 0, len(stat.SubtypeCount))
		for subtype, count := range stat.SubtypeCount {
			counts = append(counts, subtypeCount{subtype, count})
		}
		sort.Slice(counts, func(i, j int) bool {
			if counts[i].count != counts[j].count {
				return counts[i].count > counts[j].count
			}
			return counts[i].subtype < counts[j].subtype
		})
		for _, sc := range counts {
			blocks = append(blocks, mrkdwnSection(fmt.Sprintf("• %s: %d", displaySubtype(sc.subtype), sc.count)))
		}

		blocks = append(blocks, slack.NewDividerBlock())
	}
	return blocks
}

func mrkdwnSection(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil)
}

// displaySubtype turns a raw subtype like "thread_broadcast" into a
// display label like "Thread Broadcast".
func displaySubtype(subtype string) string {
	words := strings.Split(strings.ReplaceAll(subtype, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
