package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"quizicle_backend/internal/config"
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

// BlobStore 图片存储，StorageService 实现该接口
type BlobStore interface {
	Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, filename string) error
}

// QuizSummary 创建/编辑后返回给调用方的测验概要
type QuizSummary struct {
	ID            uint      `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	QuestionCount int       `json:"questionCount"`
	MaxPoints     int       `json:"maxPoints"`
	CreatorID     uint      `json:"creatorId"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func summarize(q *model.Quiz) *QuizSummary {
	return &QuizSummary{
		ID:            q.ID,
		Name:          q.Name,
		Description:   q.Description,
		QuestionCount: q.QuestionCount,
		MaxPoints:     q.MaxPoints,
		CreatorID:     q.CreatorID,
		UpdatedAt:     q.UpdatedAt,
	}
}

type AuthoringService struct {
	DB       *gorm.DB
	QuizRepo *repository.QuizRepository
	Blobs    BlobStore
	Locker   EditLocker

	requireCorrect atomic.Bool
	maxImageBytes  atomic.Int64
	lockTTL        atomic.Int64
}

func NewAuthoringService(db *gorm.DB, quizRepo *repository.QuizRepository, blobs BlobStore, locker EditLocker, cfg config.QuizConfig) *AuthoringService {
	if locker == nil {
		locker = NoopLocker{}
	}
	s := &AuthoringService{
		DB:       db,
		QuizRepo: quizRepo,
		Blobs:    blobs,
		Locker:   locker,
	}
	s.ApplyConfig(cfg)
	return s
}

// ApplyConfig 支持配置热更新
func (s *AuthoringService) ApplyConfig(cfg config.QuizConfig) {
	s.requireCorrect.Store(cfg.RequireCorrectAnswer)
	maxBytes := cfg.MaxImageBytes
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	s.maxImageBytes.Store(maxBytes)
	ttl := cfg.EditLockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	s.lockTTL.Store(int64(ttl))
}

func (s *AuthoringService) rules() batchRules {
	return batchRules{
		requireCorrect: s.requireCorrect.Load(),
		maxImageBytes:  s.maxImageBytes.Load(),
	}
}

// CreateQuiz 在同一事务中创建测验并录入题目
func (s *AuthoringService) CreateQuiz(ctx context.Context, creatorID uint, draft QuizDraft, batch AuthoringBatch) (*QuizSummary, error) {
	ctx, span := tracing.Tracer.Start(ctx, "AuthoringService.CreateQuiz")
	defer span.End()

	name, err := normalizeQuizName(draft.Name)
	if err != nil {
		return nil, err
	}

	prepared, err := prepareBatch(batch, s.rules())
	if err != nil {
		return nil, err
	}

	quiz := &model.Quiz{
		Name:        name,
		Description: strings.TrimSpace(draft.Description),
		CreatorID:   creatorID,
	}

	err = s.withUploads(ctx, prepared, func(repo *repository.QuizRepository, images []uploadedImages) (uint, error) {
		if err := repo.Create(quiz); err != nil {
			return 0, err
		}
		return quiz.ID, createQuestions(repo, quiz.ID, 0, prepared, images)
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("quiz.id", int(quiz.ID)), attribute.Int("quiz.questions", len(prepared)))
	monitoring.QuizAuthoring.WithLabelValues("create").Inc()
	logger.Log.Info("quiz created",
		zap.Uint("quizID", quiz.ID),
		zap.Uint("creatorID", creatorID),
		zap.Int("questions", len(prepared)))

	return s.reload(ctx, quiz.ID)
}

// SubmitQuizAuthoring 为已有测验追加题目
func (s *AuthoringService) SubmitQuizAuthoring(ctx context.Context, quizID uint, batch AuthoringBatch) (*QuizSummary, error) {
	ctx, span := tracing.Tracer.Start(ctx, "AuthoringService.SubmitQuizAuthoring")
	defer span.End()
	span.SetAttributes(attribute.Int("quiz.id", int(quizID)))

	if _, err := s.QuizRepo.WithContext(ctx).FindByID(quizID); err != nil {
		return nil, notFound(err, "quiz", quizID)
	}

	prepared, err := prepareBatch(batch, s.rules())
	if err != nil {
		return nil, err
	}

	release, err := s.lockQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.withUploads(ctx, prepared, func(repo *repository.QuizRepository, images []uploadedImages) (uint, error) {
		start, err := repo.NextPosition(quizID)
		if err != nil {
			return 0, err
		}
		return quizID, createQuestions(repo, quizID, start, prepared, images)
	})
	if err != nil {
		return nil, err
	}

	monitoring.QuizAuthoring.WithLabelValues("append").Inc()
	logger.Log.Info("questions appended", zap.Uint("quizID", quizID), zap.Int("questions", len(prepared)))

	return s.reload(ctx, quizID)
}

// SubmitQuizEdit 按位置原地更新题目：第 i 个非空题目覆盖第 i 道现有题目，
// 多出的追加，不足的删除。选项整体重建。
func (s *AuthoringService) SubmitQuizEdit(ctx context.Context, quizID uint, batch AuthoringBatch) (*QuizSummary, error) {
	ctx, span := tracing.Tracer.Start(ctx, "AuthoringService.SubmitQuizEdit")
	defer span.End()
	span.SetAttributes(attribute.Int("quiz.id", int(quizID)))

	quiz, err := s.QuizRepo.WithContext(ctx).FindByID(quizID)
	if err != nil {
		return nil, notFound(err, "quiz", quizID)
	}

	if batch.Name != nil {
		name, err := normalizeQuizName(*batch.Name)
		if err != nil {
			return nil, err
		}
		quiz.Name = name
	}
	if batch.Description != nil {
		quiz.Description = strings.TrimSpace(*batch.Description)
	}

	prepared, err := prepareBatch(batch, s.rules())
	if err != nil {
		return nil, err
	}

	release, err := s.lockQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	defer release()

	// 提交成功后才删除的旧图片
	var orphaned []string

	err = s.withUploads(ctx, prepared, func(repo *repository.QuizRepository, images []uploadedImages) (uint, error) {
		orphaned = orphaned[:0]

		if err := repo.UpdateMeta(quiz); err != nil {
			return 0, err
		}

		existing, err := repo.ListQuestions(quizID)
		if err != nil {
			return 0, err
		}

		for i, p := range prepared {
			if i >= len(existing) {
				if err := createQuestion(repo, quizID, i, p, images[i]); err != nil {
					return 0, err
				}
				continue
			}

			old, err := updateQuestion(repo, &existing[i], i, p, images[i])
			if err != nil {
				return 0, err
			}
			orphaned = append(orphaned, old...)
		}

		if len(existing) > len(prepared) {
			surplus := make([]uint, 0, len(existing)-len(prepared))
			for _, q := range existing[len(prepared):] {
				surplus = append(surplus, q.ID)
			}
			keys, err := repo.ImageKeys(surplus)
			if err != nil {
				return 0, err
			}
			orphaned = append(orphaned, keys...)
			if err := repo.DeleteQuestions(surplus); err != nil {
				return 0, err
			}
		}
		return quizID, nil
	})
	if err != nil {
		return nil, err
	}

	deleteBlobs(ctx, s.Blobs, orphaned)

	monitoring.QuizAuthoring.WithLabelValues("edit").Inc()
	logger.Log.Info("quiz edited",
		zap.Uint("quizID", quizID),
		zap.Int("questions", len(prepared)),
		zap.Int("orphanedBlobs", len(orphaned)))

	return s.reload(ctx, quizID)
}

// lockQuiz 追加与编辑共用同一把 quiz:edit:<id> 锁
func (s *AuthoringService) lockQuiz(ctx context.Context, quizID uint) (func(), error) {
	release, ok, err := s.Locker.Acquire(ctx, fmt.Sprintf("quiz:edit:%d", quizID), time.Duration(s.lockTTL.Load()))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &util.ConflictError{Message: fmt.Sprintf("quiz %d is being edited by another request", quizID), Err: util.ErrEditInProgress}
	}
	return release, nil
}

// RecomputeQuizStats 重算缓存的题目数与总分，可随时执行以修复偏差
func (s *AuthoringService) RecomputeQuizStats(ctx context.Context, quizID uint) (*QuizSummary, error) {
	repo := s.QuizRepo.WithContext(ctx)
	if _, err := repo.FindByID(quizID); err != nil {
		return nil, notFound(err, "quiz", quizID)
	}
	if _, err := repo.RecomputeStats(quizID); err != nil {
		return nil, err
	}
	return s.reload(ctx, quizID)
}

// withUploads 先上传图片，再在单个事务内写库并重算统计；事务失败时删除已上传的图片
func (s *AuthoringService) withUploads(ctx context.Context, prepared []preparedQuestion, fn func(repo *repository.QuizRepository, images []uploadedImages) (uint, error)) error {
	tracker := &blobTracker{blobs: s.Blobs}
	images, err := uploadImages(ctx, tracker, prepared)
	if err != nil {
		tracker.rollback(ctx)
		return err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.QuizRepo.WithTx(tx)
		quizID, err := fn(repo, images)
		if err != nil {
			return err
		}
		_, err = repo.RecomputeStats(quizID)
		return err
	})
	if err != nil {
		tracker.rollback(ctx)
		return err
	}
	return nil
}

func (s *AuthoringService) reload(ctx context.Context, quizID uint) (*QuizSummary, error) {
	quiz, err := s.QuizRepo.WithContext(ctx).FindByID(quizID)
	if err != nil {
		return nil, notFound(err, "quiz", quizID)
	}
	return summarize(quiz), nil
}

func createQuestions(repo *repository.QuizRepository, quizID uint, start int, prepared []preparedQuestion, images []uploadedImages) error {
	for i, p := range prepared {
		if err := createQuestion(repo, quizID, start+i, p, images[i]); err != nil {
			return err
		}
	}
	return nil
}

func createQuestion(repo *repository.QuizRepository, quizID uint, position int, p preparedQuestion, img uploadedImages) error {
	q := &model.Question{
		QuizID:   quizID,
		Text:     p.text,
		Points:   p.points,
		Position: position,
		Answers:  cloneAnswers(p.answers),
	}
	if img.question != nil {
		q.ImageKey = img.question.key
		q.ImageURL = img.question.url
	}
	if p.hasDescription() {
		q.Description = &model.Description{Text: p.descriptionText}
		if img.description != nil {
			q.Description.ImageKey = img.description.key
			q.Description.ImageURL = img.description.url
		}
	}
	return repo.CreateQuestion(q)
}

// updateQuestion 原地更新题目，返回被替换掉的旧图片 key
func updateQuestion(repo *repository.QuizRepository, q *model.Question, position int, p preparedQuestion, img uploadedImages) ([]string, error) {
	var orphaned []string

	q.Text = p.text
	q.Points = p.points
	q.Position = position
	if img.question != nil {
		if q.ImageKey != "" {
			orphaned = append(orphaned, q.ImageKey)
		}
		q.ImageKey = img.question.key
		q.ImageURL = img.question.url
	}
	if err := repo.UpdateQuestion(q); err != nil {
		return nil, err
	}

	if err := repo.ReplaceAnswers(q.ID, cloneAnswers(p.answers)); err != nil {
		return nil, err
	}

	if p.hasDescription() {
		desc := q.Description
		if desc == nil {
			desc = &model.Description{QuestionID: q.ID}
		}
		if p.descriptionText != "" {
			desc.Text = p.descriptionText
		}
		if img.description != nil {
			if desc.ImageKey != "" {
				orphaned = append(orphaned, desc.ImageKey)
			}
			desc.ImageKey = img.description.key
			desc.ImageURL = img.description.url
		}
		if err := repo.SaveDescription(desc); err != nil {
			return nil, err
		}
	}
	return orphaned, nil
}

func cloneAnswers(in []model.Answer) []model.Answer {
	out := make([]model.Answer, len(in))
	copy(out, in)
	return out
}

func notFound(err error, resource string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &util.NotFoundError{Resource: resource, ID: id, Err: err}
	}
	return err
}
