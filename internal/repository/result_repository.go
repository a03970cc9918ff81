package repository

import (
	"context"
	"database/sql"

	"quizicle_backend/internal/model"

	"gorm.io/gorm"
)

type ResultRepository struct {
	DB *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{DB: db}
}

func (r *ResultRepository) WithTx(tx *gorm.DB) *ResultRepository {
	return &ResultRepository{DB: tx}
}

func (r *ResultRepository) WithContext(ctx context.Context) *ResultRepository {
	return &ResultRepository{DB: r.DB.WithContext(ctx)}
}

func (r *ResultRepository) Create(result *model.Results) error {
	return r.DB.Omit("Answers").Create(result).Error
}

func (r *ResultRepository) CreateAnswers(answers []model.QuizResultAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	return r.DB.Create(&answers).Error
}

func (r *ResultRepository) UpdateScore(resultID uint, score int) error {
	return r.DB.Model(&model.Results{}).Where("id = ?", resultID).Update("score", score).Error
}

// PriorBest 用户在该测验上除 excludeID 外的最高分，无记录时返回 nil
func (r *ResultRepository) PriorBest(quizID, userID, excludeID uint) (*int, error) {
	var best sql.NullInt64
	err := r.DB.Model(&model.Results{}).
		Select("MAX(score)").
		Where("quiz_id = ? AND user_id = ? AND id <> ?", quizID, userID, excludeID).
		Row().Scan(&best)
	if err != nil {
		return nil, err
	}
	if !best.Valid {
		return nil, nil
	}
	v := int(best.Int64)
	return &v, nil
}

func (r *ResultRepository) ListByUserAndQuiz(quizID, userID uint) ([]model.Results, error) {
	var results []model.Results
	err := r.DB.Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Order("id desc").
		Find(&results).Error
	return results, err
}

func (r *ResultRepository) FindWithAnswers(id uint) (*model.Results, error) {
	var result model.Results
	err := r.DB.Preload("Answers", func(db *gorm.DB) *gorm.DB {
		return db.Order("quiz_result_answers.id asc")
	}).First(&result, id).Error
	return &result, err
}

type LeaderboardRow struct {
	UserID    uint   `json:"userId"`
	Username  string `json:"username"`
	BestScore int    `json:"bestScore"`
	Attempts  int    `json:"attempts"`
}

func (r *ResultRepository) Leaderboard(quizID uint, limit int) ([]LeaderboardRow, error) {
	var rows []LeaderboardRow
	err := r.DB.Model(&model.Results{}).
		Select("user_id, MAX(username) AS username, MAX(score) AS best_score, COUNT(*) AS attempts").
		Where("quiz_id = ?", quizID).
		Group("user_id").
		Order("best_score desc, user_id asc").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
