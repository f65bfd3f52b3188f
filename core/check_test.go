package core

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/openpreserve/flint/internal/iocache"
	"github.com/openpreserve/flint/schema"
)

func TestRunCheckCoreRecordsHistory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.stub"), "STUB")
	writeFile(t, filepath.Join(dir, "b.stub"), "bad")
	writeFile(t, filepath.Join(dir, "readme.txt"), "text")
	cfg := testConfig(dir)

	history := &iocache.MockHistoryStore{}
	history.On("BeginRun", mock.AnythingOfType("time.Time"), cfg.ConfigParams()).Return("run-1", nil)
	history.On("RecordResult", "run-1", mock.AnythingOfType("*schema.CheckResult"), mock.AnythingOfType("time.Time")).Return(nil).Times(2)
	history.On("EndRun", "run-1", mock.AnythingOfType("time.Time"), 2).Return(nil)

	results, err := runCheckCore(context.Background(), cfg, newStubFlint(t, cfg), history)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a.stub", results[0].Filename)
	assert.Equal(t, "b.stub", results[1].Filename)
	history.AssertExpectations(t)
}

func TestRunCheckCoreTrackingFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.stub"), "STUB")
	cfg := testConfig(dir)

	history := &iocache.MockHistoryStore{}
	history.On("BeginRun", mock.Anything, mock.Anything).Return("", errors.New("db down"))

	results, err := runCheckCore(context.Background(), cfg, newStubFlint(t, cfg), history)
	require.NoError(t, err)
	require.Len(t, results, 1)
	history.AssertExpectations(t)
	history.AssertNotCalled(t, "RecordResult", mock.Anything, mock.Anything, mock.Anything)
	history.AssertNotCalled(t, "EndRun", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunCheckCoreRecordFailureContinues(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.stub"), "STUB")
	writeFile(t, filepath.Join(dir, "b.stub"), "STUB")
	cfg := testConfig(dir)

	history := &iocache.MockHistoryStore{}
	history.On("BeginRun", mock.Anything, mock.Anything).Return("run-2", nil)
	history.On("RecordResult", "run-2", mock.Anything, mock.Anything).Return(errors.New("constraint"))
	history.On("EndRun", "run-2", mock.Anything, 2).Return(nil)

	results, err := runCheckCore(context.Background(), cfg, newStubFlint(t, cfg), history)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	history.AssertNumberOfCalls(t, "RecordResult", 2)
	history.AssertExpectations(t)
}

func TestRunCheckCoreWithoutHistory(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, filepath.Join(dir, "only.stub"), "STUB")
	cfg := testConfig(file)

	results, err := runCheckCore(context.Background(), cfg, newStubFlint(t, cfg), nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, schema.PassedResult, results[0].Result())
}

func TestRunCheckCoreMissingInput(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "missing"))
	_, err := runCheckCore(context.Background(), cfg, newStubFlint(t, cfg), nil)
	assert.Error(t, err)
}

func TestHelpersWithoutManager(t *testing.T) {
	assert.Nil(t, historyStore(nil))
	assert.NotNil(t, newPolicyCache(nil))

	mgr := &iocache.MockCacheManager{}
	mgr.On("GetPolicyStore").Return(nil)
	assert.NotNil(t, newPolicyCache(mgr))
	mgr.AssertExpectations(t)
}

func TestCheckPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "notes.txt"), "plain text")
	cfg := testConfig(dir)
	cfg.Formats = []string{"PDF"}

	mgr := &iocache.MockCacheManager{}
	mgr.On("GetPolicyStore").Return(nil)
	mgr.On("GetHistoryStore").Return(nil)

	results, err := CheckPath(context.Background(), cfg, mgr)
	require.NoError(t, err)
	assert.Empty(t, results)
	mgr.AssertExpectations(t)

	cfg.Formats = []string{"DOCX"}
	_, err = CheckPath(context.Background(), cfg, nil)
	assert.Error(t, err)
}
