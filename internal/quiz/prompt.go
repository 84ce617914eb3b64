package quiz

import (
	"fmt"

	"github.com/xxxsen/studymate/internal/model"
)

func typeInstructions(questionType string) string {
	switch questionType {
	case model.QuestionTypeMCQ:
		return `MULTIPLE CHOICE QUESTIONS (MCQ):
- Generate exactly 5 options per question
- 3 options must be TRUE (correct answers)
- 2 options must be FALSE but plausible
- TRUE options: use exact phrases from the material (6 words or less)
- Vary the position of correct answers across questions`
	case model.QuestionTypeObjective:
		return `OBJECTIVE QUESTIONS:
- Generate exactly 4 options per question
- 1 correct answer, 3 plausible distractors
- Use clear, concise language
- Vary the position of correct answers`
	case model.QuestionTypeTrueFalse:
		return `TRUE/FALSE QUESTIONS:
- Provide clear, unambiguous statements
- correctAnswer must be "true" or "false"
- Balance true and false statements across the set`
	case model.QuestionTypeShortAnswer:
		return `SHORT ANSWER QUESTIONS:
- Ask for specific, concise responses
- Put the expected answer in correctAnswer
- Include key points in explanations`
	default:
		return ""
	}
}

func responseFormat(questionType string) string {
	return fmt.Sprintf(`RESPONSE FORMAT (JSON):
{
  "questions": [
    {
      "questionText": "...",
      "questionType": "%s",
      "options": ["..."],
      "correctAnswer": "...",
      "correctAnswers": ["..."],
      "explanation": "...",
      "points": 1,
      "sourceUsed": "SOURCE X"
    }
  ]
}`, questionType)
}

func topicClause(topic string) string {
	if topic == "" {
		return ""
	}
	return " focusing specifically on " + topic
}

// diversityPrompt is used for the first attempt: it assigns every question to
// a different numbered source.
func diversityPrompt(req Request, attempt int) string {
	return fmt.Sprintf(`You are an expert exam setter for %s - %s at %s level.

Using the following DIVERSE course material sources%s, generate exactly %d %s questions of %s difficulty.

IMPORTANT: The material below comes from %d DIFFERENT SOURCES. Each question MUST use a different source.

COURSE MATERIAL:
%s

ASSIGNMENT INSTRUCTIONS:
- Question 1 uses SOURCE 1, question 2 uses SOURCE 2, and so on
- If you run out of sources, cycle back but keep variety
- Each question tests a different concept

%s

%s

CRITICAL INSTRUCTIONS:
1. The sourceUsed field is REQUIRED and names the source, e.g. "SOURCE 3"
2. Do NOT use the same source for multiple questions
3. Return ONLY valid JSON, no extra text, no comments, no trailing commas

Generate %d questions based on the material. Attempt %d.`,
		req.CourseCode, req.CourseTitle, req.Level, topicClause(req.Topic), req.NumQuestions, req.QuestionType, req.Difficulty,
		req.SourceCount, req.Context, typeInstructions(req.QuestionType), responseFormat(req.QuestionType),
		req.NumQuestions, attempt)
}

// simplifiedPrompt is used on retries.
func simplifiedPrompt(req Request, attempt int) string {
	return fmt.Sprintf(`You are an expert exam setter for %s - %s at %s level.

Using the following course material%s, generate %d questions of type %s. The difficulty level should be %s.

COURSE MATERIAL:
%s

REQUIREMENTS:
1. Generate exactly %d questions
2. Each question should test understanding of the material
3. Include brief explanations for correct answers
4. Take each question from a different SOURCE and name it in sourceUsed
5. Vary your questions, never ask about the same concept twice

%s

%s

Return ONLY valid JSON, no extra text.

Generate %d questions based on the material. Attempt %d.`,
		req.CourseCode, req.CourseTitle, req.Level, topicClause(req.Topic), req.NumQuestions, req.QuestionType, req.Difficulty,
		req.Context, req.NumQuestions, typeInstructions(req.QuestionType), responseFormat(req.QuestionType),
		req.NumQuestions, attempt)
}
