package service

import (
	"context"

	"quizicle_backend/internal/model"
	"quizicle_backend/internal/repository"
	"quizicle_backend/internal/util"
	"quizicle_backend/pkg/logger"
	"quizicle_backend/pkg/monitoring"
	"quizicle_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Classification string

const (
	NewHighScore Classification = "new_high_score"
	TiedBest     Classification = "tied_best"
	BelowBest    Classification = "below_best"
)

// Classify 与历史最高分比较；prior 为 nil 表示首次作答
func Classify(score int, prior *int) Classification {
	switch {
	case prior == nil || score > *prior:
		return NewHighScore
	case score == *prior:
		return TiedBest
	default:
		return BelowBest
	}
}

// Actor 发起请求的用户
type Actor struct {
	UserID      uint
	Username    string
	IsSuperuser bool
}

type AuditEntry struct {
	QuestionID    uint `json:"questionId"`
	AnswerID      uint `json:"answerId"`
	Correct       bool `json:"correct"`
	PointsAwarded int  `json:"pointsAwarded"`
}

type AttemptOutcome struct {
	ResultID       uint           `json:"resultId"`
	QuizID         uint           `json:"quizId"`
	Score          int            `json:"score"`
	MaxPoints      int            `json:"maxPoints"`
	Classification Classification `json:"classification"`
	PriorBest      *int           `json:"priorBest"`
	Audit          []AuditEntry   `json:"audit"`
}

type GradingService struct {
	DB         *gorm.DB
	QuizRepo   *repository.QuizRepository
	ResultRepo *repository.ResultRepository
	Notifier   AttemptNotifier
}

func NewGradingService(db *gorm.DB, quizRepo *repository.QuizRepository, resultRepo *repository.ResultRepository) *GradingService {
	return &GradingService{DB: db, QuizRepo: quizRepo, ResultRepo: resultRepo}
}

// SubmitQuizAttempt 判分并写入 Results 与逐题明细。
// selections: questionID -> answerID，未作答的题目不出现。
func (s *GradingService) SubmitQuizAttempt(ctx context.Context, quizID uint, actor Actor, selections map[uint]uint) (*AttemptOutcome, error) {
	ctx, span := tracing.Tracer.Start(ctx, "GradingService.SubmitQuizAttempt")
	defer span.End()
	span.SetAttributes(attribute.Int("quiz.id", int(quizID)), attribute.Int("user.id", int(actor.UserID)))

	quiz, err := s.QuizRepo.WithContext(ctx).FindByID(quizID)
	if err != nil {
		return nil, notFound(err, "quiz", quizID)
	}

	questions, err := s.QuizRepo.WithContext(ctx).ListQuestions(quizID)
	if err != nil {
		return nil, err
	}

	selected, err := resolveSelections(quizID, questions, selections)
	if err != nil {
		return nil, err
	}

	outcome := &AttemptOutcome{
		QuizID:    quizID,
		MaxPoints: quiz.MaxPoints,
		Audit:     make([]AuditEntry, 0, len(selected)),
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.ResultRepo.WithTx(tx)

		// 先落一条 0 分记录，再逐题写明细并回填分数
		result := &model.Results{
			QuizID:   quizID,
			UserID:   actor.UserID,
			Username: actor.Username,
			Score:    0,
		}
		if err := repo.Create(result); err != nil {
			return err
		}
		outcome.ResultID = result.ID

		rows := make([]model.QuizResultAnswer, 0, len(selected))
		total := 0
		for _, q := range questions {
			answer, ok := selected[q.ID]
			if !ok {
				continue
			}
			awarded := 0
			if answer.Correct {
				awarded = q.Points
			}
			total += awarded

			answerID := answer.ID
			rows = append(rows, model.QuizResultAnswer{
				ResultID:      result.ID,
				QuestionID:    q.ID,
				AnswerID:      &answerID,
				AnswerText:    answer.Text,
				Correct:       answer.Correct,
				PointsAwarded: awarded,
			})
			outcome.Audit = append(outcome.Audit, AuditEntry{
				QuestionID:    q.ID,
				AnswerID:      answer.ID,
				Correct:       answer.Correct,
				PointsAwarded: awarded,
			})
		}

		if err := repo.CreateAnswers(rows); err != nil {
			return err
		}
		if err := repo.UpdateScore(result.ID, total); err != nil {
			return err
		}
		outcome.Score = total

		prior, err := repo.PriorBest(quizID, actor.UserID, result.ID)
		if err != nil {
			return err
		}
		outcome.PriorBest = prior
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome.Classification = Classify(outcome.Score, outcome.PriorBest)

	monitoring.QuizAttempts.WithLabelValues(string(outcome.Classification)).Inc()
	logger.Log.Info("quiz attempt graded",
		zap.Uint("quizID", quizID),
		zap.Uint("userID", actor.UserID),
		zap.Uint("resultID", outcome.ResultID),
		zap.Int("score", outcome.Score),
		zap.String("classification", string(outcome.Classification)))

	if s.Notifier != nil {
		s.Notifier.QuizAttempted(ctx, quizID)
	}
	return outcome, nil
}

// resolveSelections 在服务端重新核对题目与选项的归属关系，不信任客户端提交的 ID
func resolveSelections(quizID uint, questions []model.Question, selections map[uint]uint) (map[uint]model.Answer, error) {
	byID := make(map[uint]*model.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	selected := make(map[uint]model.Answer, len(selections))
	for questionID, answerID := range selections {
		q, ok := byID[questionID]
		if !ok {
			return nil, util.NewValidationError("answers", "question %d does not belong to quiz %d", questionID, quizID)
		}

		found := false
		for _, a := range q.Answers {
			if a.ID == answerID {
				selected[questionID] = a
				found = true
				break
			}
		}
		if !found {
			return nil, util.NewValidationError("answers", "answer %d does not belong to question %d", answerID, questionID)
		}
	}
	return selected, nil
}
