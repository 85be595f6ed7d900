package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"pulse-bot/internal/llm"
	"pulse-bot/internal/models"
)

const (
	// minThreadParticipants is the minimum number of distinct users a thread
	// needs before it is analyzed for decisions.
	minThreadParticipants = 2
	// minInitiatedDecisions is the minimum number of initiated decisions a
	// channel needs before its closure rate is reported.
	minInitiatedDecisions = 1
)

const dcrPrompt = `You are an expert in analyzing workplace conversations.
Given the messages of a single Slack thread, determine whether the thread raises a decision that needs to be made, and whether that decision is clearly closed by the end of the thread.
Base your answer only on the provided messages.
Return your answer as a JSON object with exactly these fields and no extra text:
{"decision_initiation": <1 if the thread raises a decision to be made, otherwise 0>, "decision_closure": <1 if the thread reaches a clear decision, otherwise 0>, "confidence": <your confidence between 0 and 1>}

Thread messages:
%s`

type decisionAnalysis struct {
	Initiation *int     `json:"decision_initiation"`
	Closure    *int     `json:"decision_closure"`
	Confidence *float64 `json:"confidence"`
}

type threadKey struct {
	channel string
	thread  string
}

// ComputeDCR computes the Decision Closure Rate per channel: of the threads
// that raised a decision, the percentage that also closed one, judged by the
// language model. Threads with fewer than minThreadParticipants distinct users
// are ignored, and a thread whose analysis fails is skipped rather than
// sinking the whole report. Channels without an initiated decision are left
// out of the result.
func ComputeDCR(ctx context.Context, gen llm.Generator, rows []models.ChannelMessage) map[string]float64 {
	threads := make(map[threadKey][]models.ChannelMessage)
	for _, row := range rows {
		if !row.IsThread {
			continue
		}
		key := threadKey{channel: row.ChannelName, thread: row.ThreadID}
		threads[key] = append(threads[key], row)
	}

	initiated := make(map[string]int)
	closed := make(map[string]int)
	for key, msgs := range threads {
		users := make(map[string]struct{})
		for _, m := range msgs {
			users[m.UserID] = struct{}{}
		}
		if len(users) < minThreadParticipants {
			continue
		}

		prompt := fmt.Sprintf(dcrPrompt, formatThread(msgs))
		analysis, err := analyzeThread(ctx, gen, prompt)
		if err != nil {
			logger.Error().Err(err).Str("channel", key.channel).Str("thread", key.thread).Msg("Failed to analyze thread, skipping")
			continue
		}
		initiated[key.channel] += *analysis.Initiation
		closed[key.channel] += *analysis.Closure
	}

	result := make(map[string]float64)
	for channel, count := range initiated {
		if count < minInitiatedDecisions {
			logger.Debug().Str("channel", channel).Int("initiated", count).Msg("Too few initiated decisions for a closure rate")
			continue
		}
		dcr := float64(closed[channel]) / float64(count) * 100
		result[channel] = dcr
		logger.Debug().Str("channel", channel).Float64("dcr", dcr).Msgf("Closure rate from %d/%d decisions", closed[channel], count)
	}
	return result
}

// formatThread renders a thread as a bulleted transcript, one message per
// line in timestamp order, for inclusion in the analysis prompt.
func formatThread(msgs []models.ChannelMessage) string {
	sorted := make([]models.ChannelMessage, len(msgs))
	copy(sorted, msgs)
	sort.Slice(sorted, func(i, j int) bool {
		return tsSeconds(sorted[i].Timestamp) < tsSeconds(sorted[j].Timestamp)
	})

	escaper := strings.NewReplacer(`"`, `\"`, "\n", " ")
	lines := make([]string, 0, len(sorted))
	for _, m := range sorted {
		when := time.Unix(int64(tsSeconds(m.Timestamp)), 0).UTC().Format("2006-01-02 15:04:05")
		lines = append(lines, fmt.Sprintf("- User %s (%s): %s", m.UserID, when, escaper.Replace(m.Text)))
	}
	return strings.Join(lines, "\n")
}

func tsSeconds(ts string) float64 {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return 0
	}
	return f
}

func analyzeThread(ctx context.Context, gen llm.Generator, prompt string) (*decisionAnalysis, error) {
	raw, err := gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating analysis: %w", err)
	}

	var analysis decisionAnalysis
	if err := json.Unmarshal([]byte(llm.CleanJSON(raw)), &analysis); err != nil {
		return nil, fmt.Errorf("parsing analysis %q: %w", raw, err)
	}
	if analysis.Initiation == nil || analysis.Closure == nil || analysis.Confidence == nil {
		return nil, fmt.Errorf("analysis %q is missing required fields", raw)
	}

	// A decision cannot close in a thread that never raised one.
	if *analysis.Initiation == 0 && *analysis.Closure == 1 {
		logger.Warn().Msg("Model reported a closure without an initiation, correcting closure to 0")
		*analysis.Closure = 0
	}
	return &analysis, nil
}
