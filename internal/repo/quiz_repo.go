package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/studymate/internal/model"
	"github.com/xxxsen/studymate/internal/pkg/dbutil"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
)

var quizColumns = []string{
	"id", "title", "course_code", "course_title", "topic", "level", "difficulty", "question_type", "questions", "ctime",
}

type QuizRepo struct {
	db *sql.DB
}

func NewQuizRepo(db *sql.DB) *QuizRepo {
	return &QuizRepo{db: db}
}

func (r *QuizRepo) Create(ctx context.Context, quiz *model.Quiz) error {
	questions, err := json.Marshal(quiz.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	data := map[string]interface{}{
		"id":            quiz.ID,
		"title":         quiz.Title,
		"course_code":   quiz.CourseCode,
		"course_title":  quiz.CourseTitle,
		"topic":         quiz.Topic,
		"level":         quiz.Level,
		"difficulty":    quiz.Difficulty,
		"question_type": quiz.QuestionType,
		"questions":     string(questions),
		"ctime":         quiz.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("quizzes", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *QuizRepo) GetByID(ctx context.Context, id string) (*model.Quiz, error) {
	sqlStr, args, err := builder.BuildSelect("quizzes", map[string]interface{}{"id": id}, quizColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var (
		quiz      model.Quiz
		questions []byte
	)
	err = r.db.QueryRowContext(ctx, sqlStr, args...).Scan(
		&quiz.ID, &quiz.Title, &quiz.CourseCode, &quiz.CourseTitle, &quiz.Topic, &quiz.Level,
		&quiz.Difficulty, &quiz.QuestionType, &questions, &quiz.Ctime,
	)
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &quiz.Questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return &quiz, nil
}
