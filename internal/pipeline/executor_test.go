// Copyright 2025 James Ross
package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/videoforge/engine/internal/domain"
)

type mockExecutionUpdater struct {
	mock.Mock
}

func (m *mockExecutionUpdater) TransitionTo(ctx context.Context, id int64, from, to domain.ExecutionStatus, detail string) error {
	args := m.Called(ctx, id, from, to, detail)
	return args.Error(0)
}

func (m *mockExecutionUpdater) TouchRunning(ctx context.Context, id int64, detail string) error {
	args := m.Called(ctx, id, detail)
	return args.Error(0)
}

func (m *mockExecutionUpdater) SetExecutionMetadata(ctx context.Context, id int64, records []domain.StepExecutionRecord) error {
	args := m.Called(ctx, id, records)
	return args.Error(0)
}

type mockResultPersister struct {
	mock.Mock
}

func (m *mockResultPersister) PersistResults(ctx context.Context, executionID int64, results map[string]StepResult) error {
	args := m.Called(ctx, executionID, results)
	return args.Error(0)
}

type fakeStep struct {
	name    string
	execErr error
}

func (s *fakeStep) Name() string                          { return s.name }
func (s *fakeStep) Description() string                    { return "fake" }
func (s *fakeStep) Validate(_ *PipelineContext) error       { return nil }
func (s *fakeStep) PostProcess(_ *PipelineContext, _ StepResult) {}
func (s *fakeStep) Execute(_ context.Context, _ *PipelineContext, _ StepInputs) (StepResult, error) {
	if s.execErr != nil {
		return nil, s.execErr
	}
	return fakeResult{newBase(s.name, nil)}, nil
}

type fakeConditionalStep struct {
	fakeStep
	shouldRun bool
}

func (s *fakeConditionalStep) ShouldExecute(_ *PipelineContext) bool { return s.shouldRun }

func testContext() *PipelineContext {
	return &PipelineContext{JobID: 1, Execution: &domain.JobExecution{ID: 7, Status: domain.StatusPending}}
}

func TestExecutorRunSucceedsAndTransitionsToSuccess(t *testing.T) {
	updater := new(mockExecutionUpdater)
	updater.On("TransitionTo", mock.Anything, int64(7), domain.StatusPending, domain.StatusRunning, mock.Anything).Return(nil).Once()
	updater.On("TouchRunning", mock.Anything, int64(7), mock.Anything).Return(nil).Twice()
	updater.On("TransitionTo", mock.Anything, int64(7), domain.StatusRunning, domain.StatusSuccess, mock.Anything).Return(nil).Once()
	updater.On("SetExecutionMetadata", mock.Anything, int64(7), mock.Anything).Return(nil).Once()

	p := New().AddSteps(&fakeStep{name: "StepA"}, &fakeStep{name: "StepB"})
	exec := NewExecutor(updater, zap.NewNop())

	results, err := exec.Run(context.Background(), p, testContext())

	require.NoError(t, err)
	assert.Len(t, results, 2)
	updater.AssertExpectations(t)
}

func TestExecutorRunTouchesProgressDetailPerStep(t *testing.T) {
	updater := new(mockExecutionUpdater)
	updater.On("TransitionTo", mock.Anything, int64(7), domain.StatusPending, domain.StatusRunning, mock.Anything).Return(nil).Once()
	updater.On("TouchRunning", mock.Anything, int64(7), "Running: StepA (1/2)").Return(nil).Once()
	updater.On("TouchRunning", mock.Anything, int64(7), "Running: StepB (2/2)").Return(nil).Once()
	updater.On("TransitionTo", mock.Anything, int64(7), domain.StatusRunning, domain.StatusSuccess, mock.Anything).Return(nil).Once()
	updater.On("SetExecutionMetadata", mock.Anything, int64(7), mock.Anything).Return(nil).Once()

	p := New().AddSteps(&fakeStep{name: "StepA"}, &fakeStep{name: "StepB"})
	exec := NewExecutor(updater, zap.NewNop())

	_, err := exec.Run(context.Background(), p, testContext())

	require.NoError(t, err)
	updater.AssertExpectations(t)
}

func TestExecutorRunPersistsResultsBeforeSuccessTransition(t *testing.T) {
	updater := new(mockExecutionUpdater)
	persister := new(mockResultPersister)

	updater.On("TransitionTo", mock.Anything, int64(7), domain.StatusPending, domain.StatusRunning, mock.Anything).Return(nil).Once()
	updater.On("TouchRunning", mock.Anything, int64(7), mock.Anything).Return(nil).Twice()
	persister.On("PersistResults", mock.Anything, int64(7), mock.Anything).
		Run(func(mock.Arguments) {
			updater.AssertNotCalled(t, "TransitionTo", mock.Anything, int64(7), domain.StatusRunning, domain.StatusSuccess, mock.Anything)
		}).
		Return(nil).Once()
	updater.On("TransitionTo", mock.Anything, int64(7), domain.StatusRunning, domain.StatusSuccess, mock.Anything).Return(nil).Once()
	updater.On("SetExecutionMetadata", mock.Anything, int64(7), mock.Anything).Return(nil).Once()

	p := New().AddSteps(&fakeStep{name: "StepA"}, &fakeStep{name: "StepB"})
	exec := NewExecutor(updater, zap.NewNop(), WithResultPersister(persister))

	results, err := exec.Run(context.Background(), p, testContext())

	require.NoError(t, err)
	assert.Len(t, results, 2)
	updater.AssertExpectations(t)
	persister.AssertExpectations(t)
}

func TestExecutorRunSkipsSuccessTransitionWhenPersistFails(t *testing.T) {
	updater := new(mockExecutionUpdater)
	persister := new(mockResultPersister)

	updater.On("TransitionTo", mock.Anything, int64(7), domain.StatusPending, domain.StatusRunning, mock.Anything).Return(nil).Once()
	updater.On("TouchRunning", mock.Anything, int64(7), mock.Anything).Return(nil).Twice()
	persister.On("PersistResults", mock.Anything, int64(7), mock.Anything).Return(fmt.Errorf("upload keys unavailable")).Once()
	updater.On("TransitionTo", mock.Anything, int64(7), domain.StatusRunning, domain.StatusFailed, mock.Anything).Return(nil).Once()
	updater.On("SetExecutionMetadata", mock.Anything, int64(7), mock.Anything).Return(nil).Once()

	p := New().AddSteps(&fakeStep{name: "StepA"}, &fakeStep{name: "StepB"})
	exec := NewExecutor(updater, zap.NewNop(), WithResultPersister(persister))

	_, err := exec.Run(context.Background(), p, testContext())

	require.Error(t, err)
	updater.AssertExpectations(t)
	persister.AssertExpectations(t)
	updater.AssertNotCalled(t, "TransitionTo", mock.Anything, int64(7), domain.StatusRunning, domain.StatusSuccess, mock.Anything)
}

func TestExecutorRunFailsStepMarksExecutionFailed(t *testing.T) {
	updater := new(mockExecutionUpdater)
	updater.On("TransitionTo", mock.Anything, int64(7), domain.StatusPending, domain.StatusRunning, mock.Anything).Return(nil).Once()
	updater.On("TransitionTo", mock.Anything, int64(7), domain.StatusRunning, domain.StatusFailed, mock.Anything).Return(nil).Once()
	updater.On("SetExecutionMetadata", mock.Anything, int64(7), mock.Anything).Return(nil).Once()

	p := New().AddSteps(&fakeStep{name: "StepA", execErr: fmt.Errorf("boom")})
	exec := NewExecutor(updater, zap.NewNop())

	_, err := exec.Run(context.Background(), p, testContext())

	require.Error(t, err)
	updater.AssertExpectations(t)
}

func TestExecutorRunSkipsConditionalStepWhenShouldExecuteFalse(t *testing.T) {
	updater := new(mockExecutionUpdater)
	updater.On("TransitionTo", mock.Anything, int64(7), domain.StatusPending, domain.StatusRunning, mock.Anything).Return(nil).Once()
	updater.On("TransitionTo", mock.Anything, int64(7), domain.StatusRunning, domain.StatusSuccess, mock.Anything).Return(nil).Once()
	updater.On("SetExecutionMetadata", mock.Anything, int64(7), mock.Anything).Return(nil).Once()

	conditional := &fakeConditionalStep{fakeStep: fakeStep{name: "DigitalHuman"}, shouldRun: false}
	p := New().AddSteps(conditional)
	exec := NewExecutor(updater, zap.NewNop())

	results, err := exec.Run(context.Background(), p, testContext())

	require.NoError(t, err)
	assert.Empty(t, results)
	updater.AssertExpectations(t)
}
