package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TMG-TheMoneyGame/AShareData/internal/compositor"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/logger"
)

type fakeRunner struct {
	report *compositor.RunReport
	err    error
}

func (r fakeRunner) Run(context.Context) (*compositor.RunReport, error) {
	return r.report, r.err
}

func TestCompositeJob_Run(t *testing.T) {
	builds := 0
	job := NewCompositeJob(func(context.Context) (Runner, error) {
		builds++
		return fakeRunner{report: &compositor.RunReport{RunID: "r1", Completed: []string{"limit_board"}}}, nil
	}, "", logger.Nop())

	assert.Equal(t, "compose", job.Name())
	assert.Equal(t, DefaultSchedule, job.Schedule())
	assert.Nil(t, job.LastReport())

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 2, builds, "pipeline is rebuilt for every run")
	assert.Equal(t, "r1", job.LastReport().RunID)
}

func TestCompositeJob_Failures(t *testing.T) {
	job := NewCompositeJob(func(context.Context) (Runner, error) {
		return nil, errors.New("calendar empty")
	}, "@daily", logger.Nop())
	assert.Equal(t, "@daily", job.Schedule())
	assert.ErrorContains(t, job.Run(context.Background()), "build pipeline")

	cause := errors.New("boom")
	job = NewCompositeJob(func(context.Context) (Runner, error) {
		return fakeRunner{report: &compositor.RunReport{RunID: "r2", Failed: "limit_board"}, err: cause}, nil
	}, "", logger.Nop())
	assert.ErrorIs(t, job.Run(context.Background()), cause)
	assert.Equal(t, "limit_board", job.LastReport().Failed)
}
