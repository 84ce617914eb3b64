package quiz

import (
	"regexp"
	"strings"

	"github.com/xxxsen/studymate/internal/model"
)

const minQuestionTextLen = 10

var truthSuffix = regexp.MustCompile(`(?i)\s*\((true|false)\)\s*$`)

func stripTruthMarker(s string) string {
	return strings.TrimSpace(truthSuffix.ReplaceAllString(s, ""))
}

func stripTruthMarkers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = stripTruthMarker(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// validateQuestions keeps the questions that are usable for questionType. The
// checks are lenient: fewer options than asked for are accepted as long as
// the question can still be answered.
func validateQuestions(questions []model.Question, questionType string) []model.Question {
	out := make([]model.Question, 0, len(questions))
	for _, q := range questions {
		if len([]rune(strings.TrimSpace(q.QuestionText))) < minQuestionTextLen {
			continue
		}
		switch questionType {
		case model.QuestionTypeMCQ:
			q.Options = stripTruthMarkers(q.Options)
			q.CorrectAnswers = stripTruthMarkers(q.CorrectAnswers)
			if len(q.Options) < 3 || len(q.CorrectAnswers) < 1 {
				continue
			}
			q.CorrectAnswer = ""
		case model.QuestionTypeObjective:
			q.Options = stripTruthMarkers(q.Options)
			q.CorrectAnswer = stripTruthMarker(q.CorrectAnswer)
			if len(q.Options) < 2 || q.CorrectAnswer == "" {
				continue
			}
			q.CorrectAnswers = nil
		case model.QuestionTypeTrueFalse:
			answer := strings.ToLower(strings.TrimSpace(q.CorrectAnswer))
			if answer != "true" && answer != "false" {
				continue
			}
			q.CorrectAnswer = answer
			q.Options = nil
			q.CorrectAnswers = nil
		case model.QuestionTypeShortAnswer:
			q.Options = nil
			q.CorrectAnswers = nil
		}
		if questionType != "" {
			q.QuestionType = questionType
		}
		if q.Points <= 0 {
			q.Points = 1
		}
		out = append(out, q)
	}
	return out
}
