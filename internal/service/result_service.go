package service

import (
	"context"
	"sync/atomic"

	"quizicle_backend/internal/model"
	"quizicle_backend/internal/repository"
	"quizicle_backend/internal/util"
)

type ResultService struct {
	QuizRepo   *repository.QuizRepository
	ResultRepo *repository.ResultRepository

	// 排行榜默认条数
	leaderboardSize atomic.Int64
}

func NewResultService(quizRepo *repository.QuizRepository, resultRepo *repository.ResultRepository, leaderboardSize int) *ResultService {
	s := &ResultService{QuizRepo: quizRepo, ResultRepo: resultRepo}
	s.SetLeaderboardSize(leaderboardSize)
	return s
}

func (s *ResultService) SetLeaderboardSize(n int) {
	if n <= 0 {
		n = 10
	}
	s.leaderboardSize.Store(int64(n))
}

type AttemptHistory struct {
	QuizID    uint            `json:"quizId"`
	BestScore *int            `json:"bestScore"`
	MaxPoints int             `json:"maxPoints"`
	Attempts  []model.Results `json:"attempts"`
}

func (s *ResultService) ListAttempts(ctx context.Context, quizID, userID uint) (*AttemptHistory, error) {
	quiz, err := s.QuizRepo.WithContext(ctx).FindByID(quizID)
	if err != nil {
		return nil, notFound(err, "quiz", quizID)
	}

	results, err := s.ResultRepo.WithContext(ctx).ListByUserAndQuiz(quizID, userID)
	if err != nil {
		return nil, err
	}

	history := &AttemptHistory{QuizID: quizID, MaxPoints: quiz.MaxPoints, Attempts: results}
	for _, r := range results {
		if history.BestScore == nil || r.Score > *history.BestScore {
			score := r.Score
			history.BestScore = &score
		}
	}
	return history, nil
}

// GetAttempt 仅本人或超级用户可查看
func (s *ResultService) GetAttempt(ctx context.Context, resultID uint, actor Actor) (*model.Results, error) {
	result, err := s.ResultRepo.WithContext(ctx).FindWithAnswers(resultID)
	if err != nil {
		return nil, notFound(err, "attempt", resultID)
	}
	if result.UserID != actor.UserID && !actor.IsSuperuser {
		return nil, util.ErrPermissionDenied
	}
	return result, nil
}

func (s *ResultService) Leaderboard(ctx context.Context, quizID uint, limit int) ([]repository.LeaderboardRow, error) {
	if _, err := s.QuizRepo.WithContext(ctx).FindByID(quizID); err != nil {
		return nil, notFound(err, "quiz", quizID)
	}
	if limit <= 0 || limit > 100 {
		limit = int(s.leaderboardSize.Load())
	}
	return s.ResultRepo.WithContext(ctx).Leaderboard(quizID, limit)
}
