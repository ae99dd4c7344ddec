package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointsValue_Coercion(t *testing.T) {
	testCases := []struct {
		name     string
		payload  string
		expected PointsValue
	}{
		{name: "plain number", payload: `{"rider_id":1,"main":25,"sprint":12}`, expected: 25},
		{name: "numeric string", payload: `{"rider_id":1,"main":"20","sprint":0}`, expected: 20},
		{name: "decimal comma", payload: `{"rider_id":1,"main":"12,5"}`, expected: 12.5},
		{name: "garbage string", payload: `{"rider_id":1,"main":"DNF"}`, expected: 0},
		{name: "empty string", payload: `{"rider_id":1,"main":""}`, expected: 0},
		{name: "null", payload: `{"rider_id":1,"main":null}`, expected: 0},
		{name: "boolean", payload: `{"rider_id":1,"main":true}`, expected: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var in PointsInput
			require.NoError(t, json.Unmarshal([]byte(tc.payload), &in))
			assert.Equal(t, tc.expected, in.Main)
		})
	}
}

func TestPointsInput_ToRoundPoints(t *testing.T) {
	in := PointsInput{RiderID: 7, Main: 20, Sprint: 9}

	got := in.ToRoundPoints(3)

	assert.Equal(t, RiderRoundPoints{RaceID: 3, RiderID: 7, Main: 20, Sprint: 9, Total: 29}, got)
}

func TestTeamSubmission_Validate(t *testing.T) {
	valid := TeamSubmission{RaceID: 1, RiderIDs: []int64{1, 2, 3, 4}, ConstructorID: 2}
	assert.NoError(t, valid.Validate())

	duplicate := TeamSubmission{RaceID: 1, RiderIDs: []int64{1, 1, 3, 4}, ConstructorID: 2}
	assert.Error(t, duplicate.Validate())

	noConstructor := TeamSubmission{RaceID: 1, RiderIDs: []int64{1, 2}}
	assert.Error(t, noConstructor.Validate())

	empty := TeamSubmission{RaceID: 1, ConstructorID: 2}
	assert.Error(t, empty.Validate())
}

func TestRiderPatch_Apply(t *testing.T) {
	price := int64(120)
	none := RiderCondition("none")
	ctor := int64(4)
	rider := Rider{ID: 1, Price: 100, Condition: ConditionInjured, TeamName: "Ducati"}

	patched := RiderPatch{Price: &price, Condition: &none, ConstructorID: &ctor}.Apply(rider)

	assert.Equal(t, int64(120), patched.Price)
	assert.False(t, patched.Unavailable())
	assert.Equal(t, "Ducati", patched.TeamName)
	require.NotNil(t, patched.ConstructorID)
	assert.Equal(t, int64(4), *patched.ConstructorID)
	assert.Equal(t, int64(100), rider.Price)
}

func TestRiderPatch_ClearConstructor(t *testing.T) {
	ctor := int64(4)
	rider := Rider{ID: 1, TeamName: "Ducati", ConstructorID: &ctor}

	patch := RiderPatch{ClearConstructor: true}
	require.NoError(t, patch.Validate())
	patched := patch.Apply(rider)
	assert.Nil(t, patched.ConstructorID)
	assert.Equal(t, "Ducati", patched.TeamName)
	assert.NotNil(t, rider.ConstructorID)

	conflicting := RiderPatch{ClearConstructor: true, ConstructorID: &ctor}
	assert.Error(t, conflicting.Validate())
}

func TestParseSport(t *testing.T) {
	s, err := ParseSport(" MotoGP ")
	require.NoError(t, err)
	assert.Equal(t, SportMotoGP, s)

	_, err = ParseSport("nascar")
	assert.ErrorIs(t, err, ErrUnknownSport)
}
