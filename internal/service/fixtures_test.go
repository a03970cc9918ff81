package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"quizicle_backend/internal/config"
	"quizicle_backend/internal/model"
	"quizicle_backend/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "quizicle.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id uint, name string, superuser bool) Actor {
	t.Helper()
	_, err := repository.NewUserRepository(db).Touch(repository.Identity{
		UserID:      id,
		Username:    name,
		Email:       name + "@example.com",
		IsSuperuser: superuser,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return Actor{UserID: id, Username: name, IsSuperuser: superuser}
}

// fakeBlobStore 内存对象存储，可注入上传失败
type fakeBlobStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	deleted    []string
	failOnCall int
	calls      int
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (f *fakeBlobStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.failOnCall > 0 && f.calls == f.failOnCall {
		return "", errors.New("upload failed")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.objects[key] = data
	return "/uploads/" + key, nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeBlobStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func (f *fakeBlobStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

// busyLocker 模拟锁已被其他请求持有
type busyLocker struct{}

func (busyLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	return nil, false, nil
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func pngUpload(name string) *ImageUpload {
	return rawUpload(name, pngHeader)
}

func rawUpload(name string, data []byte) *ImageUpload {
	return &ImageUpload{
		Filename: name,
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func intPtr(v int) *int {
	return &v
}

func strPtr(s string) *string {
	return &s
}

func testQuizConfig(strict bool) config.QuizConfig {
	return config.QuizConfig{
		RequireCorrectAnswer: strict,
		MaxImageBytes:        1 << 20,
		EditLockTTL:          time.Second,
		LeaderboardSize:      10,
	}
}

type testEnv struct {
	db        *gorm.DB
	blobs     *fakeBlobStore
	quizRepo  *repository.QuizRepository
	authoring *AuthoringService
	grading   *GradingService
	results   *ResultService
	quizzes   *QuizService
	feedback  *FeedbackService
	owner     Actor
}

func newTestEnv(t *testing.T, strict bool) *testEnv {
	t.Helper()
	db := newTestDB(t)
	blobs := newFakeBlobStore()
	quizRepo := repository.NewQuizRepository(db)
	resultRepo := repository.NewResultRepository(db)

	return &testEnv{
		db:        db,
		blobs:     blobs,
		quizRepo:  quizRepo,
		authoring: NewAuthoringService(db, quizRepo, blobs, nil, testQuizConfig(strict)),
		grading:   NewGradingService(db, quizRepo, resultRepo),
		results:   NewResultService(quizRepo, resultRepo, 10),
		quizzes:   NewQuizService(db, quizRepo, blobs),
		feedback:  NewFeedbackService(quizRepo, repository.NewCommentRepository(db), repository.NewReportRepository(db)),
		owner:     seedUser(t, db, 1, "author", false),
	}
}

// twoQuestionQuiz 5 分题正确答案在 0，10 分题正确答案在 1
func (e *testEnv) twoQuestionQuiz(t *testing.T) *QuizSummary {
	t.Helper()
	summary, err := e.authoring.CreateQuiz(context.Background(), e.owner.UserID,
		QuizDraft{Name: "Arithmetic"},
		AuthoringBatch{Questions: []QuestionDraft{
			{Text: "1+1?", Points: 5, Answers: []string{"2", "3"}, CorrectIndex: intPtr(0)},
			{Text: "2+2?", Points: 10, Answers: []string{"3", "4"}, CorrectIndex: intPtr(1)},
		}})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	return summary
}

func (e *testEnv) questions(t *testing.T, quizID uint) []model.Question {
	t.Helper()
	qs, err := e.quizRepo.ListQuestions(quizID)
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	return qs
}

func countRows(t *testing.T, db *gorm.DB, m interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(m).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
