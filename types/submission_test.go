package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJudgeStatusJSON(t *testing.T) {
	data, err := json.Marshal(StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, `"AC"`, string(data))

	var status JudgeStatus
	require.NoError(t, json.Unmarshal([]byte(`"TLE"`), &status))
	assert.Equal(t, StatusTimeLimitExceeded, status)

	assert.Error(t, json.Unmarshal([]byte(`"???"`), &status))
}

func TestJudgeStatusZeroValueIsJudgeError(t *testing.T) {
	// A result slot that was never filled in must read as a failure.
	var status JudgeStatus
	assert.Equal(t, StatusJudgeError, status)
	assert.Equal(t, "JE", status.String())
}

func TestTestcaseSetOrdering(t *testing.T) {
	set := TestcaseSet{Cases: []TestCase{
		{Input: "h1"},
		{Input: "v1", Visible: true},
		{Input: "h2"},
		{Input: "v2", Visible: true},
	}}

	visible := set.VisibleCases()
	require.Len(t, visible, 2)
	assert.Equal(t, "v1", visible[0].Input)
	assert.Equal(t, "v2", visible[1].Input)

	ordered := set.JudgingOrder()
	require.Len(t, ordered, 4)
	assert.Equal(t, []string{"v1", "v2", "h1", "h2"}, []string{
		ordered[0].Input, ordered[1].Input, ordered[2].Input, ordered[3].Input,
	})
}
