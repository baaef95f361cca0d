package services

import (
	"context"
	"testing"

	"github.com/codecrack-oj/apiserver/internal/store"
	"github.com/codecrack-oj/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateStoresContentAddressedSet(t *testing.T) {
	problems, _, objects := newTestProblemService()

	created, err := problems.Create(context.Background(), types.Problem{
		Title:            "Echo",
		Description:      "Print the input.",
		Difficulty:       "easy",
		TimeLimitSeconds: 1,
		MemoryLimitKB:    65536,
	}, sampleCases())
	require.NoError(t, err)

	ref := created.TestcaseSet
	assert.NotEmpty(t, ref.ObjectKey)
	assert.Contains(t, ref.ObjectKey, ref.SHA256)
	assert.Equal(t, 2, ref.VisibleCount)
	assert.Equal(t, 2, ref.HiddenCount)

	set, err := problems.LoadTestcaseSet(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, sampleCases(), set.Cases)

	// Identical cases hash to the identical document.
	second, err := problems.Create(context.Background(), types.Problem{
		Title:            "Echo 2",
		Description:      "Print the input again.",
		Difficulty:       "easy",
		TimeLimitSeconds: 1,
		MemoryLimitKB:    65536,
	}, sampleCases())
	require.NoError(t, err)
	assert.Equal(t, ref.ObjectKey, second.TestcaseSet.ObjectKey)
	assert.Len(t, objects.objects, 1)
}

func TestCreateRequiresTestcases(t *testing.T) {
	problems, _, _ := newTestProblemService()

	_, err := problems.Create(context.Background(), types.Problem{Title: "Empty"}, nil)
	assert.ErrorIs(t, err, ErrNoTestcases)

	hiddenOnly := []types.TestCase{{Input: "1", ExpectedOutput: "1"}}
	_, err = problems.Create(context.Background(), types.Problem{Title: "Hidden"}, hiddenOnly)
	assert.ErrorIs(t, err, ErrNoVisibleTestcases)
}

func TestUpdateWithoutCasesKeepsExistingSet(t *testing.T) {
	problems, _, _ := newTestProblemService()

	created, err := problems.Create(context.Background(), types.Problem{
		Title:            "Echo",
		Description:      "Print the input.",
		Difficulty:       "easy",
		TimeLimitSeconds: 1,
		MemoryLimitKB:    65536,
	}, sampleCases())
	require.NoError(t, err)

	updated, err := problems.Update(context.Background(), types.Problem{
		ID:               created.ID,
		Title:            "Echo (revised)",
		Description:      "Print the input, revised.",
		Difficulty:       "medium",
		TimeLimitSeconds: 2,
		MemoryLimitKB:    65536,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Echo (revised)", updated.Title)
	assert.Equal(t, created.TestcaseSet, updated.TestcaseSet)
}

func TestUpdateWithCasesSwapsReference(t *testing.T) {
	problems, _, objects := newTestProblemService()

	created, err := problems.Create(context.Background(), types.Problem{
		Title:            "Echo",
		Description:      "Print the input.",
		Difficulty:       "easy",
		TimeLimitSeconds: 1,
		MemoryLimitKB:    65536,
	}, sampleCases())
	require.NoError(t, err)

	newCases := []types.TestCase{
		{Input: "9 9", ExpectedOutput: "18", Visible: true},
	}
	updated, err := problems.Update(context.Background(), types.Problem{
		ID:               created.ID,
		Title:            "Echo",
		Description:      "Print the input.",
		Difficulty:       "easy",
		TimeLimitSeconds: 1,
		MemoryLimitKB:    65536,
	}, newCases)
	require.NoError(t, err)

	assert.NotEqual(t, created.TestcaseSet.ObjectKey, updated.TestcaseSet.ObjectKey)
	assert.Equal(t, 1, updated.TestcaseSet.VisibleCount)
	assert.Equal(t, 0, updated.TestcaseSet.HiddenCount)

	// The old document stays put for judgments already holding its
	// reference.
	assert.Len(t, objects.objects, 2)
	old, err := problems.LoadTestcaseSet(context.Background(), created.TestcaseSet)
	require.NoError(t, err)
	assert.Equal(t, sampleCases(), old.Cases)
}

func TestDeleteRemovesStoredSet(t *testing.T) {
	problems, _, objects := newTestProblemService()

	created, err := problems.Create(context.Background(), types.Problem{
		Title:            "Echo",
		Description:      "Print the input.",
		Difficulty:       "easy",
		TimeLimitSeconds: 1,
		MemoryLimitKB:    65536,
	}, sampleCases())
	require.NoError(t, err)

	require.NoError(t, problems.Delete(context.Background(), created.ID))

	_, err = problems.Get(context.Background(), created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, objects.objects)
}

func TestDeleteUnknownProblem(t *testing.T) {
	problems, _, _ := newTestProblemService()
	assert.ErrorIs(t, problems.Delete(context.Background(), 42), store.ErrNotFound)
}
