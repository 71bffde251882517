package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lei/matrix-ci/internal/models"
)

func pushEvent() models.TriggerEvent {
	return models.TriggerEvent{Kind: models.TriggerPush, Branch: "main", Commit: "abc123"}
}

func TestStore_CreateAndGet(t *testing.T) {
	s := New()

	run := s.Create("ci", pushEvent())
	require.NotEmpty(t, run.RunID)
	assert.Equal(t, models.RunQueued, run.Status)
	assert.Equal(t, "ci", run.Pipeline)
	assert.False(t, run.CreatedAt.IsZero())

	got, err := s.Get(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.RunID, got.RunID)
}

func TestStore_GetUnknown(t *testing.T) {
	s := New()
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := New()
	first := s.Create("ci", pushEvent())
	second := s.Create("ci", pushEvent())

	runs := s.List()
	require.Len(t, runs, 2)
	assert.Equal(t, second.RunID, runs[0].RunID)
	assert.Equal(t, first.RunID, runs[1].RunID)
}

func TestStore_Lifecycle(t *testing.T) {
	s := New()
	run := s.Create("ci", pushEvent())

	require.NoError(t, s.Start(run.RunID))
	got, err := s.Get(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunRunning, got.Status)
	require.NotNil(t, got.StartedAt)

	verdict := &models.PipelineVerdict{
		Jobs:   []models.JobVerdict{{Status: models.JobPassed}},
		Status: models.PipelinePassed,
	}
	require.NoError(t, s.Finish(run.RunID, verdict, nil))

	got, err = s.Get(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunPassed, got.Status)
	require.NotNil(t, got.FinishedAt)
	require.NotNil(t, got.Verdict)
	assert.Empty(t, got.Error)
}

func TestStore_FinishStatuses(t *testing.T) {
	tests := []struct {
		name    string
		verdict *models.PipelineVerdict
		runErr  error
		want    models.RunStatus
	}{
		{
			name:    "failed verdict",
			verdict: &models.PipelineVerdict{Status: models.PipelineFailed},
			want:    models.RunFailed,
		},
		{
			name:    "unstable verdict",
			verdict: &models.PipelineVerdict{Status: models.PipelineUnstable},
			want:    models.RunUnstable,
		},
		{
			name:   "no verdict",
			runErr: errors.New("config error: dimension has no values"),
			want:   models.RunFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			run := s.Create("ci", pushEvent())
			require.NoError(t, s.Finish(run.RunID, tt.verdict, tt.runErr))

			got, err := s.Get(run.RunID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
			if tt.runErr != nil {
				assert.Equal(t, tt.runErr.Error(), got.Error)
			}
		})
	}
}

func TestStore_CancelKeepsNoVerdict(t *testing.T) {
	s := New()
	run := s.Create("ci", pushEvent())
	require.NoError(t, s.Start(run.RunID))

	require.NoError(t, s.Cancel(run.RunID))

	got, err := s.Get(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunCanceled, got.Status)
	assert.Nil(t, got.Verdict)
	require.NotNil(t, got.FinishedAt)
}

func TestStore_CancelAfterFinishIsNoop(t *testing.T) {
	s := New()
	run := s.Create("ci", pushEvent())
	verdict := &models.PipelineVerdict{Status: models.PipelinePassed}
	require.NoError(t, s.Finish(run.RunID, verdict, nil))

	require.NoError(t, s.Cancel(run.RunID))

	got, err := s.Get(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunPassed, got.Status)
	assert.NotNil(t, got.Verdict)
}
