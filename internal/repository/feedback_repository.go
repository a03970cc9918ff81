package repository

import (
	"quizicle_backend/internal/model"

	"gorm.io/gorm"
)

type CommentRepository struct {
	DB *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{DB: db}
}

func (r *CommentRepository) Create(comment *model.Comment) error {
	return r.DB.Create(comment).Error
}

func (r *CommentRepository) FindByID(id uint) (*model.Comment, error) {
	var c model.Comment
	err := r.DB.First(&c, id).Error
	return &c, err
}

func (r *CommentRepository) ListByQuiz(quizID uint, page, limit int) ([]model.Comment, int64, error) {
	var total int64
	query := r.DB.Model(&model.Comment{}).Where("quiz_id = ?", quizID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var comments []model.Comment
	offset := (page - 1) * limit
	err := query.Preload("User").Order("created_at desc, id desc").Offset(offset).Limit(limit).Find(&comments).Error
	return comments, total, err
}

func (r *CommentRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Comment{}, id).Error
}

type ReportRepository struct {
	DB *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{DB: db}
}

func (r *ReportRepository) Create(report *model.Report) error {
	return r.DB.Create(report).Error
}

type ReportRow struct {
	model.Report
	QuizName string `json:"quizName"`
}

func (r *ReportRepository) List(page, limit int) ([]ReportRow, int64, error) {
	var total int64
	if err := r.DB.Model(&model.Report{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []ReportRow
	offset := (page - 1) * limit
	err := r.DB.Table("reports r").
		Select("r.*, q.name AS quiz_name").
		Joins("JOIN quizzes q ON q.id = r.quiz_id").
		Where("r.deleted_at IS NULL").
		Order("r.created_at desc, r.id desc").
		Offset(offset).Limit(limit).
		Scan(&rows).Error
	return rows, total, err
}
