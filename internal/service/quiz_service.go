package service

import (
	"context"
	"strings"

	"quizicle_backend/internal/model"
	"quizicle_backend/internal/repository"
	"quizicle_backend/internal/util"
	"quizicle_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type QuizService struct {
	DB       *gorm.DB
	QuizRepo *repository.QuizRepository
	Blobs    BlobStore
}

func NewQuizService(db *gorm.DB, quizRepo *repository.QuizRepository, blobs BlobStore) *QuizService {
	return &QuizService{DB: db, QuizRepo: quizRepo, Blobs: blobs}
}

// AnswerView 未授权时 Correct 为 nil，不向答题者泄露正确选项
type AnswerView struct {
	ID       uint   `json:"id"`
	Text     string `json:"text"`
	Position int    `json:"position"`
	Correct  *bool  `json:"correct,omitempty"`
}

type DescriptionView struct {
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type QuestionView struct {
	ID          uint             `json:"id"`
	Text        string           `json:"text"`
	Points      int              `json:"points"`
	Position    int              `json:"position"`
	ImageURL    string           `json:"imageUrl,omitempty"`
	Answers     []AnswerView     `json:"answers"`
	Description *DescriptionView `json:"description,omitempty"`
}

type QuizView struct {
	QuizSummary
	CreatorName string         `json:"creatorName"`
	Questions   []QuestionView `json:"questions"`
}

func (s *QuizService) ListQuizzes(ctx context.Context, query string, page, limit int) ([]QuizSummary, int64, error) {
	quizzes, total, err := s.QuizRepo.WithContext(ctx).List(strings.TrimSpace(query), page, limit)
	if err != nil {
		return nil, 0, err
	}

	out := make([]QuizSummary, 0, len(quizzes))
	for i := range quizzes {
		out = append(out, *summarize(&quizzes[i]))
	}
	return out, total, nil
}

// GetQuiz 返回测验及有序题目；解析仅在 reveal 时返回
func (s *QuizService) GetQuiz(ctx context.Context, quizID uint, actor *Actor) (*QuizView, error) {
	quiz, err := s.QuizRepo.WithContext(ctx).FindWithQuestions(quizID)
	if err != nil {
		return nil, notFound(err, "quiz", quizID)
	}

	reveal := actor != nil && canManage(quiz, *actor)

	view := &QuizView{
		QuizSummary: *summarize(quiz),
		Questions:   make([]QuestionView, 0, len(quiz.Questions)),
	}
	if quiz.Creator != nil {
		view.CreatorName = quiz.Creator.Username
	}

	for _, q := range quiz.Questions {
		qv := QuestionView{
			ID:       q.ID,
			Text:     q.Text,
			Points:   q.Points,
			Position: q.Position,
			ImageURL: q.ImageURL,
			Answers:  make([]AnswerView, 0, len(q.Answers)),
		}
		for _, a := range q.Answers {
			av := AnswerView{ID: a.ID, Text: a.Text, Position: a.Position}
			if reveal {
				correct := a.Correct
				av.Correct = &correct
			}
			qv.Answers = append(qv.Answers, av)
		}
		if reveal && q.Description != nil {
			qv.Description = &DescriptionView{Text: q.Description.Text, ImageURL: q.Description.ImageURL}
		}
		view.Questions = append(view.Questions, qv)
	}
	return view, nil
}

// Authorize 检查 actor 是否可以编辑或删除测验
func (s *QuizService) Authorize(ctx context.Context, quizID uint, actor Actor) error {
	quiz, err := s.QuizRepo.WithContext(ctx).FindByID(quizID)
	if err != nil {
		return notFound(err, "quiz", quizID)
	}
	if !canManage(quiz, actor) {
		return util.ErrPermissionDenied
	}
	return nil
}

// DeleteQuiz 级联删除整棵题目树，提交后清理图片
func (s *QuizService) DeleteQuiz(ctx context.Context, quizID uint) error {
	var keys []string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.QuizRepo.WithTx(tx)
		if _, err := repo.FindByID(quizID); err != nil {
			return notFound(err, "quiz", quizID)
		}

		ids, err := repo.QuestionIDs(quizID)
		if err != nil {
			return err
		}
		keys, err = repo.ImageKeys(ids)
		if err != nil {
			return err
		}
		return repo.Delete(quizID)
	})
	if err != nil {
		return err
	}

	deleteBlobs(ctx, s.Blobs, keys)
	logger.Log.Info("quiz deleted", zap.Uint("quizID", quizID), zap.Int("blobs", len(keys)))
	return nil
}

func canManage(quiz *model.Quiz, actor Actor) bool {
	return actor.IsSuperuser || quiz.CreatorID == actor.UserID
}
