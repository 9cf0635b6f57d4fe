package access

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/medtrust/ehr/pkg/interfaces"
	"github.com/medtrust/ehr/pkg/logger"
	"github.com/medtrust/ehr/pkg/monitoring"
	"github.com/medtrust/ehr/pkg/types"
)

// TrustEngine recomputes trust scores from recent audit history. Scores are
// never nudged incrementally: every recalculation starts from the systemic
// default and replays the actor's recent entries, so identical histories
// always produce identical scores and concurrent recalculations converge.
type TrustEngine struct {
	repo              interfaces.AccessRepository
	logger            *logger.Logger
	historyWindow     int
	emergencyLookback time.Duration
}

// NewTrustEngine creates a trust engine over the given repository.
func NewTrustEngine(repo interfaces.AccessRepository, log *logger.Logger, historyWindow int, emergencyLookback time.Duration) *TrustEngine {
	if historyWindow <= 0 {
		historyWindow = 20
	}
	if emergencyLookback <= 0 {
		emergencyLookback = 24 * time.Hour
	}
	return &TrustEngine{
		repo:              repo,
		logger:            log,
		historyWindow:     historyWindow,
		emergencyLookback: emergencyLookback,
	}
}

// Recalculate recomputes and persists the actor's trust score from their
// most recent audit entries. Returns the new score.
func (te *TrustEngine) Recalculate(ctx context.Context, actorName string) (int, error) {
	entries, err := te.repo.GetRecentLogsByActor(ctx, actorName, te.historyWindow)
	if err != nil {
		monitoring.RecordTrustRecalculation(actorName, 0, err)
		return 0, fmt.Errorf("failed to load audit history for %s: %w", actorName, err)
	}

	score := te.scoreFromHistory(entries, time.Now())

	if err := te.repo.UpdateTrustScore(ctx, actorName, score); err != nil {
		monitoring.RecordTrustRecalculation(actorName, 0, err)
		return 0, fmt.Errorf("failed to persist trust score for %s: %w", actorName, err)
	}

	monitoring.RecordTrustRecalculation(actorName, score, nil)
	te.logger.WithComponent("trust_engine").WithFields(map[string]interface{}{
		"actor": actorName,
		"score": score,
	}).Info("Trust score recomputed")

	return score, nil
}

// scoreFromHistory is the pure scoring function. Entries arrive newest
// first (as the repository returns them); the walk applies deltas oldest to
// newest, clamping after every step.
func (te *TrustEngine) scoreFromHistory(entries []*types.AccessLogEntry, now time.Time) int {
	recentEmergencies := 0
	cutoff := now.Add(-te.emergencyLookback)
	for _, e := range entries {
		if strings.Contains(e.Action, "EMERGENCY") && e.Timestamp.After(cutoff) {
			recentEmergencies++
		}
	}

	score := types.DefaultTrustScore
	for i := len(entries) - 1; i >= 0; i-- {
		score = clamp(score + te.deltaFor(entries[i], recentEmergencies))
	}
	return score
}

// deltaFor applies the fixed rule table; the first matching rule wins.
func (te *TrustEngine) deltaFor(e *types.AccessLogEntry, recentEmergencies int) int {
	switch {
	case strings.EqualFold(e.Status, types.LogStatusDenied):
		return -10

	case strings.Contains(e.Action, "EMERGENCY"):
		delta := -5
		if !InsideNetwork(e.IPAddress) {
			delta -= 15
		}
		if recentEmergencies >= 2 {
			delta -= 10
		}
		return delta

	case strings.Contains(e.Action, "RESTRICTED"):
		return -8

	case strings.Contains(e.Action, "NORMAL"):
		if InsideNetwork(e.IPAddress) {
			return 5
		}
		return 0

	case strings.Contains(e.Action, "TEMP"):
		return 1

	case strings.Contains(e.Action, "LOGIN"):
		return 2

	default:
		return 0
	}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
