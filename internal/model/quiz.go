package model

const (
	QuestionTypeMCQ         = "MCQ"
	QuestionTypeObjective   = "OBJECTIVE"
	QuestionTypeTrueFalse   = "TRUE_FALSE"
	QuestionTypeShortAnswer = "SHORT_ANSWER"
)

type Question struct {
	QuestionText   string   `json:"questionText"`
	QuestionType   string   `json:"questionType"`
	Options        []string `json:"options,omitempty"`
	CorrectAnswer  string   `json:"correctAnswer,omitempty"`
	CorrectAnswers []string `json:"correctAnswers,omitempty"`
	Explanation    string   `json:"explanation"`
	Points         int      `json:"points"`
	SourceUsed     string   `json:"sourceUsed,omitempty"`
}

type Quiz struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	CourseCode   string     `json:"course_code"`
	CourseTitle  string     `json:"course_title"`
	Topic        string     `json:"topic"`
	Level        string     `json:"level"`
	Difficulty   string     `json:"difficulty"`
	QuestionType string     `json:"question_type"`
	Questions    []Question `json:"questions"`
	Ctime        int64      `json:"ctime"`
}
