package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sectionKeys(sections []Section) []string {
	keys := make([]string, 0, len(sections))
	for _, s := range sections {
		keys = append(keys, s.Key)
	}
	return keys
}

func itemKeys(sections []Section, section string) []string {
	for _, s := range sections {
		if s.Key != section {
			continue
		}
		keys := make([]string, 0, len(s.Items))
		for _, item := range s.Items {
			keys = append(keys, item.Key)
		}
		return keys
	}
	return nil
}

func TestSectionsForPowertrain(t *testing.T) {
	electric := SectionsFor(PowertrainElectric)
	assert.NotContains(t, sectionKeys(electric), "exhaust")
	assert.NotContains(t, sectionKeys(electric), "engine")
	assert.Contains(t, itemKeys(electric, "high_voltage"), "charging_port")

	hybrid := SectionsFor(PowertrainHybrid)
	assert.Contains(t, sectionKeys(hybrid), "exhaust")
	assert.Contains(t, sectionKeys(hybrid), "high_voltage")
	assert.NotContains(t, itemKeys(hybrid, "high_voltage"), "charging_port")

	diesel := SectionsFor(PowertrainDiesel)
	assert.NotContains(t, sectionKeys(diesel), "high_voltage")
	assert.Contains(t, itemKeys(diesel, "exhaust"), "dpf")
	assert.Contains(t, itemKeys(diesel, "engine"), "glow_plugs")
	assert.NotContains(t, itemKeys(SectionsFor(PowertrainPetrol), "exhaust"), "dpf")
}

func TestScoreWeightsSections(t *testing.T) {
	summary, err := Score(PowertrainPetrol, Answers{
		"tyres": {"front_left": AnswerGood, "front_right": AnswerGood, "rear_left": AnswerGood, "rear_right": AnswerGood, "wheel_nuts": AnswerGood},
		"brakes": {"front_pads": AnswerUrgent, "rear_pads": AnswerGood, "discs": AnswerGood, "fluid": AnswerGood, "handbrake": AnswerGood},
		"engine": {"oil_level": AnswerAdvisory, "coolant": AnswerGood, "drive_belts": AnswerNA},
	})
	require.NoError(t, err)
	require.True(t, summary.Scored)
	assert.Equal(t, 86.3, summary.Score)
	assert.Equal(t, RatingGreen, summary.Rating)

	byKey := map[string]SectionScore{}
	for _, s := range summary.Sections {
		byKey[s.Key] = s
	}
	require.NotNil(t, byKey["brakes"].Score)
	assert.Equal(t, 80.0, *byKey["brakes"].Score)
	assert.Equal(t, 1, byKey["brakes"].Urgent)
	assert.Equal(t, 75.0, *byKey["engine"].Score)
	assert.Equal(t, 2, byKey["engine"].Answered)
	assert.Equal(t, 1, byKey["engine"].Advisory)
	assert.Nil(t, byKey["visibility"].Score)
}

func TestScoreRatings(t *testing.T) {
	amber, err := Score(PowertrainDiesel, Answers{
		"tyres":  {"front_left": AnswerGood},
		"brakes": {"front_pads": AnswerUrgent},
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, amber.Score)
	assert.Equal(t, RatingAmber, amber.Rating)

	red, err := Score(PowertrainElectric, Answers{
		"high_voltage": {"battery_health": AnswerUrgent, "charging_port": AnswerAdvisory},
	})
	require.NoError(t, err)
	assert.Equal(t, 25.0, red.Score)
	assert.Equal(t, RatingRed, red.Rating)

	assert.Equal(t, RatingGreen, RatingFor(80))
	assert.Equal(t, RatingAmber, RatingFor(79.9))
	assert.Equal(t, RatingRed, RatingFor(49.9))
}

func TestScoreWithoutAnswers(t *testing.T) {
	summary, err := Score(PowertrainPetrol, Answers{"tyres": {"front_left": AnswerNA}})
	require.NoError(t, err)
	assert.False(t, summary.Scored)
	assert.Zero(t, summary.Score)
	assert.Equal(t, RatingNone, summary.Rating)
}

func TestScoreRejectsInapplicableAnswers(t *testing.T) {
	cases := []struct {
		name       string
		powertrain Powertrain
		answers    Answers
	}{
		{"exhaust on electric", PowertrainElectric, Answers{"exhaust": {"system": AnswerGood}}},
		{"charging port on hybrid", PowertrainHybrid, Answers{"high_voltage": {"charging_port": AnswerGood}}},
		{"dpf on petrol", PowertrainPetrol, Answers{"exhaust": {"dpf": AnswerGood}}},
		{"unknown section", PowertrainPetrol, Answers{"interior": {"seats": AnswerGood}}},
		{"unknown answer", PowertrainPetrol, Answers{"tyres": {"front_left": "excellent"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Score(tc.powertrain, tc.answers)
			assert.ErrorIs(t, err, ErrInvalidAnswers)
		})
	}

	_, err := Score("steam", Answers{})
	assert.ErrorIs(t, err, ErrInvalidPowertrain)
}
