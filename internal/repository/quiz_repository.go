package repository

import (
	"context"
	"database/sql"
	"strings"

	"quizicle_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

// WithTx 返回绑定到事务的仓库
func (r *QuizRepository) WithTx(tx *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: tx}
}

func (r *QuizRepository) WithContext(ctx context.Context) *QuizRepository {
	return &QuizRepository{DB: r.DB.WithContext(ctx)}
}

func (r *QuizRepository) Create(quiz *model.Quiz) error {
	return r.DB.Omit(clause.Associations).Create(quiz).Error
}

func (r *QuizRepository) FindByID(id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.First(&quiz, id).Error
	return &quiz, err
}

// FindWithQuestions 加载题目、选项和解析，按录入顺序排列
func (r *QuizRepository) FindWithQuestions(id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.
		Preload("Creator").
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.position asc, questions.id asc")
		}).
		Preload("Questions.Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("answers.position asc, answers.id asc")
		}).
		Preload("Questions.Description").
		First(&quiz, id).Error
	return &quiz, err
}

func (r *QuizRepository) UpdateMeta(quiz *model.Quiz) error {
	return r.DB.Model(&model.Quiz{}).Where("id = ?", quiz.ID).Updates(map[string]interface{}{
		"name":        quiz.Name,
		"description": quiz.Description,
	}).Error
}

// '!' 在 MySQL 与 SQLite 的字符串字面量中都无需转义
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func (r *QuizRepository) List(query string, page, limit int) ([]model.Quiz, int64, error) {
	db := r.DB.Model(&model.Quiz{})
	if query != "" {
		db = db.Where("LOWER(name) LIKE LOWER(?) ESCAPE '!'", "%"+likeEscaper.Replace(query)+"%")
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var quizzes []model.Quiz
	offset := (page - 1) * limit
	err := db.Preload("Creator").Order("id desc").Offset(offset).Limit(limit).Find(&quizzes).Error
	return quizzes, total, err
}

func (r *QuizRepository) ListQuestions(quizID uint) ([]model.Question, error) {
	var qs []model.Question
	err := r.DB.Where("quiz_id = ?", quizID).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("answers.position asc, answers.id asc")
		}).
		Preload("Description").
		Order("position asc, id asc").
		Find(&qs).Error
	return qs, err
}

func (r *QuizRepository) NextPosition(quizID uint) (int, error) {
	var maxPos sql.NullInt64
	err := r.DB.Model(&model.Question{}).
		Where("quiz_id = ?", quizID).
		Select("MAX(position)").
		Row().Scan(&maxPos)
	if err != nil || !maxPos.Valid {
		return 0, err
	}
	return int(maxPos.Int64) + 1, nil
}

// CreateQuestion 连同 Answers 和 Description 一起写入
func (r *QuizRepository) CreateQuestion(question *model.Question) error {
	return r.DB.Create(question).Error
}

func (r *QuizRepository) UpdateQuestion(question *model.Question) error {
	return r.DB.Model(&model.Question{}).Where("id = ?", question.ID).Updates(map[string]interface{}{
		"text":      question.Text,
		"points":    question.Points,
		"position":  question.Position,
		"image_key": question.ImageKey,
		"image_url": question.ImageURL,
	}).Error
}

// ReplaceAnswers 整体替换选项。引用旧选项的答题记录保留快照，answer_id 置空。
func (r *QuizRepository) ReplaceAnswers(questionID uint, answers []model.Answer) error {
	oldIDs := r.DB.Model(&model.Answer{}).Select("id").Where("question_id = ?", questionID)
	if err := r.DB.Model(&model.QuizResultAnswer{}).
		Where("answer_id IN (?)", oldIDs).
		Update("answer_id", nil).Error; err != nil {
		return err
	}
	if err := r.DB.Where("question_id = ?", questionID).Delete(&model.Answer{}).Error; err != nil {
		return err
	}
	if len(answers) == 0 {
		return nil
	}
	for i := range answers {
		answers[i].QuestionID = questionID
	}
	return r.DB.Create(&answers).Error
}

func (r *QuizRepository) SaveDescription(desc *model.Description) error {
	if desc.ID == 0 {
		return r.DB.Create(desc).Error
	}
	return r.DB.Model(&model.Description{}).Where("id = ?", desc.ID).Updates(map[string]interface{}{
		"text":      desc.Text,
		"image_key": desc.ImageKey,
		"image_url": desc.ImageURL,
	}).Error
}

// DeleteQuestions 级联删除题目及其选项、解析、答题明细
func (r *QuizRepository) DeleteQuestions(ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.DB.Where("question_id IN ?", ids).Delete(&model.QuizResultAnswer{}).Error; err != nil {
		return err
	}
	if err := r.DB.Where("question_id IN ?", ids).Delete(&model.Description{}).Error; err != nil {
		return err
	}
	if err := r.DB.Where("question_id IN ?", ids).Delete(&model.Answer{}).Error; err != nil {
		return err
	}
	return r.DB.Where("id IN ?", ids).Delete(&model.Question{}).Error
}

// ImageKeys 返回题目及解析引用的所有对象存储 key
func (r *QuizRepository) ImageKeys(questionIDs []uint) ([]string, error) {
	if len(questionIDs) == 0 {
		return nil, nil
	}
	var keys []string
	if err := r.DB.Model(&model.Question{}).
		Where("id IN ? AND image_key <> ''", questionIDs).
		Pluck("image_key", &keys).Error; err != nil {
		return nil, err
	}
	var descKeys []string
	if err := r.DB.Model(&model.Description{}).
		Where("question_id IN ? AND image_key <> ''", questionIDs).
		Pluck("image_key", &descKeys).Error; err != nil {
		return nil, err
	}
	return append(keys, descKeys...), nil
}

func (r *QuizRepository) QuestionIDs(quizID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.Question{}).Where("quiz_id = ?", quizID).Pluck("id", &ids).Error
	return ids, err
}

// Delete 级联删除测验；调用方负责在事务中执行
func (r *QuizRepository) Delete(quizID uint) error {
	questionIDs, err := r.QuestionIDs(quizID)
	if err != nil {
		return err
	}
	resultIDs := r.DB.Model(&model.Results{}).Select("id").Where("quiz_id = ?", quizID)
	if err := r.DB.Where("result_id IN (?)", resultIDs).Delete(&model.QuizResultAnswer{}).Error; err != nil {
		return err
	}
	if err := r.DB.Where("quiz_id = ?", quizID).Delete(&model.Results{}).Error; err != nil {
		return err
	}
	if err := r.DB.Unscoped().Where("quiz_id = ?", quizID).Delete(&model.Comment{}).Error; err != nil {
		return err
	}
	if err := r.DB.Unscoped().Where("quiz_id = ?", quizID).Delete(&model.Report{}).Error; err != nil {
		return err
	}
	if err := r.DeleteQuestions(questionIDs); err != nil {
		return err
	}
	return r.DB.Delete(&model.Quiz{}, quizID).Error
}

type QuizStats struct {
	QuestionCount int
	MaxPoints     int
}

// RecomputeStats 依据现存题目重算缓存字段，可重复执行
func (r *QuizRepository) RecomputeStats(quizID uint) (QuizStats, error) {
	var stats QuizStats
	err := r.DB.Model(&model.Question{}).
		Select("COUNT(*) AS question_count, COALESCE(SUM(points), 0) AS max_points").
		Where("quiz_id = ?", quizID).
		Scan(&stats).Error
	if err != nil {
		return stats, err
	}

	err = r.DB.Model(&model.Quiz{}).
		Where("id = ?", quizID).
		Updates(map[string]interface{}{
			"question_count": stats.QuestionCount,
			"max_points":     stats.MaxPoints,
		}).Error
	return stats, err
}
