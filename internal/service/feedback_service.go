package service

import (
	"context"
	"strings"

	"quizicle_backend/internal/model"
	"quizicle_backend/internal/repository"
	"quizicle_backend/internal/util"
	"quizicle_backend/pkg/logger"

	"go.uber.org/zap"
)

type FeedbackService struct {
	QuizRepo    *repository.QuizRepository
	CommentRepo *repository.CommentRepository
	ReportRepo  *repository.ReportRepository
}

func NewFeedbackService(quizRepo *repository.QuizRepository, commentRepo *repository.CommentRepository, reportRepo *repository.ReportRepository) *FeedbackService {
	return &FeedbackService{QuizRepo: quizRepo, CommentRepo: commentRepo, ReportRepo: reportRepo}
}

const maxFeedbackLength = 2000

func feedbackText(field, raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", util.NewValidationError(field, "%s must not be blank", field)
	}
	if len(text) > maxFeedbackLength {
		return "", util.NewValidationError(field, "%s is longer than %d characters", field, maxFeedbackLength)
	}
	return text, nil
}

func (s *FeedbackService) AddComment(ctx context.Context, quizID uint, actor Actor, content string) (*model.Comment, error) {
	text, err := feedbackText("content", content)
	if err != nil {
		return nil, err
	}
	if _, err := s.QuizRepo.WithContext(ctx).FindByID(quizID); err != nil {
		return nil, notFound(err, "quiz", quizID)
	}

	comment := &model.Comment{QuizID: quizID, UserID: actor.UserID, Content: text}
	if err := s.CommentRepo.Create(comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *FeedbackService) ListComments(ctx context.Context, quizID uint, page, limit int) ([]model.Comment, int64, error) {
	if _, err := s.QuizRepo.WithContext(ctx).FindByID(quizID); err != nil {
		return nil, 0, notFound(err, "quiz", quizID)
	}
	return s.CommentRepo.ListByQuiz(quizID, page, limit)
}

// DeleteComment 仅评论作者或超级用户可删除
func (s *FeedbackService) DeleteComment(ctx context.Context, commentID uint, actor Actor) error {
	comment, err := s.CommentRepo.FindByID(commentID)
	if err != nil {
		return notFound(err, "comment", commentID)
	}
	if comment.UserID != actor.UserID && !actor.IsSuperuser {
		return util.ErrPermissionDenied
	}
	return s.CommentRepo.Delete(commentID)
}

func (s *FeedbackService) ReportQuiz(ctx context.Context, quizID uint, actor Actor, reason string) (*model.Report, error) {
	text, err := feedbackText("reason", reason)
	if err != nil {
		return nil, err
	}
	if _, err := s.QuizRepo.WithContext(ctx).FindByID(quizID); err != nil {
		return nil, notFound(err, "quiz", quizID)
	}

	report := &model.Report{QuizID: quizID, UserID: actor.UserID, Reason: text}
	if err := s.ReportRepo.Create(report); err != nil {
		return nil, err
	}
	logger.Log.Info("quiz reported", zap.Uint("quizID", quizID), zap.Uint("userID", actor.UserID))
	return report, nil
}

func (s *FeedbackService) ListReports(ctx context.Context, page, limit int) ([]repository.ReportRow, int64, error) {
	return s.ReportRepo.List(page, limit)
}
