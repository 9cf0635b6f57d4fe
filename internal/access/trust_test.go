package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/medtrust/ehr/pkg/logger"
	"github.com/medtrust/ehr/pkg/types"
)

func newTestTrustEngine(repo *MockAccessRepository) *TrustEngine {
	return NewTrustEngine(repo, logger.New("error"), 20, 24*time.Hour)
}

// histEntry builds one audit row aged the given duration before now.
func histEntry(action, status, ip string, age time.Duration, now time.Time) *types.AccessLogEntry {
	return &types.AccessLogEntry{
		ActorName: "dr.patel",
		Action:    action,
		Status:    status,
		IPAddress: ip,
		Timestamp: now.Add(-age),
	}
}

func TestScoreFromHistory_EmptyHistory(t *testing.T) {
	te := newTestTrustEngine(&MockAccessRepository{})
	score := te.scoreFromHistory(nil, time.Now())
	assert.Equal(t, types.DefaultTrustScore, score)
}

func TestScoreFromHistory_Deterministic(t *testing.T) {
	te := newTestTrustEngine(&MockAccessRepository{})
	now := time.Now()
	entries := []*types.AccessLogEntry{
		histEntry(types.ActionEmergencyAccess, types.LogStatusEmergency, insideIP, time.Hour, now),
		histEntry(types.ActionNormalAccess, types.LogStatusSuccess, insideIP, 2*time.Hour, now),
		histEntry(types.ActionLogin, types.LogStatusSuccess, insideIP, 3*time.Hour, now),
	}

	first := te.scoreFromHistory(entries, now)
	second := te.scoreFromHistory(entries, now)
	assert.Equal(t, first, second)
}

func TestScoreFromHistory_DeltaTable(t *testing.T) {
	te := newTestTrustEngine(&MockAccessRepository{})
	now := time.Now()

	tests := []struct {
		name  string
		entry *types.AccessLogEntry
		want  int
	}{
		{"denied outweighs action", histEntry(types.ActionNormalAccess, types.LogStatusDenied, insideIP, time.Hour, now), 40},
		{"emergency inside", histEntry(types.ActionEmergencyAccess, types.LogStatusEmergency, insideIP, time.Hour, now), 45},
		{"emergency outside", histEntry(types.ActionEmergencyAccess, types.LogStatusEmergency, outsideIP, time.Hour, now), 30},
		{"restricted request", histEntry(types.ActionRestrictedRequest, types.LogStatusPending, outsideIP, time.Hour, now), 42},
		{"normal inside", histEntry(types.ActionNormalAccess, types.LogStatusSuccess, insideIP, time.Hour, now), 55},
		{"normal outside is neutral", histEntry(types.ActionNormalAccess, types.LogStatusSuccess, outsideIP, time.Hour, now), 50},
		{"temp access", histEntry(types.ActionTempAccess, types.LogStatusSuccess, insideIP, time.Hour, now), 51},
		{"login", histEntry(types.ActionLogin, types.LogStatusSuccess, insideIP, time.Hour, now), 52},
		{"unknown action is neutral", histEntry("PROFILE_VIEW", types.LogStatusSuccess, insideIP, time.Hour, now), 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := te.scoreFromHistory([]*types.AccessLogEntry{tt.entry}, now)
			assert.Equal(t, tt.want, score)
		})
	}
}

func TestScoreFromHistory_DeniedStatusCaseInsensitive(t *testing.T) {
	te := newTestTrustEngine(&MockAccessRepository{})
	now := time.Now()
	entry := histEntry(types.ActionNormalAccess, "DENIED", insideIP, time.Hour, now)
	assert.Equal(t, 40, te.scoreFromHistory([]*types.AccessLogEntry{entry}, now))
}

func TestScoreFromHistory_RepeatEmergenciesPenalized(t *testing.T) {
	te := newTestTrustEngine(&MockAccessRepository{})
	now := time.Now()

	// Two break-glass uses within the lookback window: both carry the
	// repeat penalty on top of the base deduction.
	entries := []*types.AccessLogEntry{
		histEntry(types.ActionEmergencyAccess, types.LogStatusEmergency, insideIP, time.Hour, now),
		histEntry(types.ActionEmergencyAccess, types.LogStatusEmergency, insideIP, 2*time.Hour, now),
	}
	assert.Equal(t, 20, te.scoreFromHistory(entries, now))
}

func TestScoreFromHistory_OldEmergenciesDoNotCountAsRepeat(t *testing.T) {
	te := newTestTrustEngine(&MockAccessRepository{})
	now := time.Now()

	entries := []*types.AccessLogEntry{
		histEntry(types.ActionEmergencyAccess, types.LogStatusEmergency, insideIP, time.Hour, now),
		histEntry(types.ActionEmergencyAccess, types.LogStatusEmergency, insideIP, 48*time.Hour, now),
	}
	// Only one emergency is inside the 24h window, so no repeat penalty.
	assert.Equal(t, 40, te.scoreFromHistory(entries, now))
}

func TestScoreFromHistory_ClampsAtZero(t *testing.T) {
	te := newTestTrustEngine(&MockAccessRepository{})
	now := time.Now()

	var entries []*types.AccessLogEntry
	for i := 0; i < 10; i++ {
		entries = append(entries, histEntry(types.ActionNormalAccess, types.LogStatusDenied, outsideIP, time.Duration(i+1)*time.Hour, now))
	}
	assert.Equal(t, 0, te.scoreFromHistory(entries, now))
}

func TestScoreFromHistory_ClampsAtHundred(t *testing.T) {
	te := newTestTrustEngine(&MockAccessRepository{})
	now := time.Now()

	var entries []*types.AccessLogEntry
	for i := 0; i < 20; i++ {
		entries = append(entries, histEntry(types.ActionNormalAccess, types.LogStatusSuccess, insideIP, time.Duration(i+1)*time.Hour, now))
	}
	assert.Equal(t, 100, te.scoreFromHistory(entries, now))
}

func TestScoreFromHistory_OutsideEmergencyNeverScoresHigher(t *testing.T) {
	te := newTestTrustEngine(&MockAccessRepository{})
	now := time.Now()

	inside := te.scoreFromHistory([]*types.AccessLogEntry{
		histEntry(types.ActionEmergencyAccess, types.LogStatusEmergency, insideIP, time.Hour, now),
	}, now)
	outside := te.scoreFromHistory([]*types.AccessLogEntry{
		histEntry(types.ActionEmergencyAccess, types.LogStatusEmergency, outsideIP, time.Hour, now),
	}, now)

	assert.LessOrEqual(t, outside, inside)
}

func TestRecalculate_PersistsScore(t *testing.T) {
	repo := &MockAccessRepository{}
	te := newTestTrustEngine(repo)
	now := time.Now()

	history := []*types.AccessLogEntry{
		histEntry(types.ActionNormalAccess, types.LogStatusSuccess, insideIP, time.Hour, now),
	}
	repo.On("GetRecentLogsByActor", mock.Anything, "dr.patel", 20).Return(history, nil)
	repo.On("UpdateTrustScore", mock.Anything, "dr.patel", 55).Return(nil)

	score, err := te.Recalculate(context.Background(), "dr.patel")
	require.NoError(t, err)
	assert.Equal(t, 55, score)
	repo.AssertExpectations(t)
}

func TestRecalculate_HistoryLoadFailure(t *testing.T) {
	repo := &MockAccessRepository{}
	te := newTestTrustEngine(repo)

	repo.On("GetRecentLogsByActor", mock.Anything, "dr.patel", 20).
		Return([]*types.AccessLogEntry(nil), errors.New("connection refused"))

	_, err := te.Recalculate(context.Background(), "dr.patel")
	require.Error(t, err)
	repo.AssertNotCalled(t, "UpdateTrustScore", mock.Anything, mock.Anything, mock.Anything)
}
