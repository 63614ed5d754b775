package domain

import (
	"fmt"
	"math"
)

var answerPoints = map[Answer]float64{
	AnswerGood:     100,
	AnswerAdvisory: 50,
	AnswerUrgent:   0,
}

// Summary is the scored outcome of one questionnaire.
type Summary struct {
	Sections []SectionScore `json:"sections"`
	Score    float64        `json:"score"`
	Rating   Rating         `json:"rating"`
	Scored   bool           `json:"scored"`
}

// Score validates answers against the sections a powertrain uses and scores
// them. A section scores the mean of its answered items; n/a answers are left
// out. The overall score is the weight-averaged score of sections with at
// least one answer.
func Score(p Powertrain, answers Answers) (Summary, error) {
	if !p.Valid() {
		return Summary{}, ErrInvalidPowertrain
	}
	sections := SectionsFor(p)
	if err := validateAnswers(sections, answers); err != nil {
		return Summary{}, err
	}

	summary := Summary{Sections: make([]SectionScore, 0, len(sections))}
	var weighted, weights float64
	for _, section := range sections {
		result := SectionScore{Key: section.Key, Name: section.Name, Weight: section.Weight}
		var points float64
		for _, item := range section.Items {
			answer, ok := answers[section.Key][item.Key]
			if !ok || answer == AnswerNA {
				continue
			}
			points += answerPoints[answer]
			result.Answered++
			switch answer {
			case AnswerAdvisory:
				result.Advisory++
			case AnswerUrgent:
				result.Urgent++
			}
		}
		if result.Answered > 0 {
			mean := round1(points / float64(result.Answered))
			result.Score = &mean
			weighted += mean * float64(section.Weight)
			weights += float64(section.Weight)
		}
		summary.Sections = append(summary.Sections, result)
	}

	if weights > 0 {
		summary.Scored = true
		summary.Score = round1(weighted / weights)
		summary.Rating = RatingFor(summary.Score)
	}
	return summary, nil
}

// RatingFor buckets an overall score.
func RatingFor(score float64) Rating {
	switch {
	case score >= 80:
		return RatingGreen
	case score >= 50:
		return RatingAmber
	default:
		return RatingRed
	}
}

func validateAnswers(sections []Section, answers Answers) error {
	known := make(map[string]map[string]struct{}, len(sections))
	for _, section := range sections {
		items := make(map[string]struct{}, len(section.Items))
		for _, item := range section.Items {
			items[item.Key] = struct{}{}
		}
		known[section.Key] = items
	}
	for sectionKey, items := range answers {
		allowed, ok := known[sectionKey]
		if !ok {
			return fmt.Errorf("%w: section %q does not apply", ErrInvalidAnswers, sectionKey)
		}
		for itemKey, answer := range items {
			if _, ok := allowed[itemKey]; !ok {
				return fmt.Errorf("%w: item %q not in section %q", ErrInvalidAnswers, itemKey, sectionKey)
			}
			if _, ok := answerPoints[answer]; !ok && answer != AnswerNA {
				return fmt.Errorf("%w: answer %q for %s.%s", ErrInvalidAnswers, answer, sectionKey, itemKey)
			}
		}
	}
	return nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
