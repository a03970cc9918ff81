package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"quizicle_backend/internal/model"
	"quizicle_backend/internal/util"

	"gorm.io/gorm"
)

func assertStats(t *testing.T, e *testEnv, quizID uint) {
	t.Helper()
	quiz, err := e.quizRepo.FindByID(quizID)
	if err != nil {
		t.Fatalf("find quiz: %v", err)
	}
	qs := e.questions(t, quizID)
	sum := 0
	for _, q := range qs {
		sum += q.Points
	}
	if quiz.QuestionCount != len(qs) || quiz.MaxPoints != sum {
		t.Fatalf("cached stats = (%d, %d), want (%d, %d)", quiz.QuestionCount, quiz.MaxPoints, len(qs), sum)
	}
}

func TestCreateQuizSkipsBlankSlots(t *testing.T) {
	e := newTestEnv(t, true)

	summary, err := e.authoring.CreateQuiz(context.Background(), e.owner.UserID,
		QuizDraft{Name: "  Maths  ", Description: "basics"},
		AuthoringBatch{Questions: []QuestionDraft{
			{Text: "   ", Points: 3, Answers: []string{"x"}},
			{Text: "What is 2+2?", Points: 4, Answers: []string{"3", "4"}, CorrectIndex: intPtr(1)},
			{Text: "", Points: 7},
		}})
	if err != nil {
		t.Fatalf("CreateQuiz: %v", err)
	}
	if summary.Name != "Maths" {
		t.Errorf("name = %q, want trimmed", summary.Name)
	}

	qs := e.questions(t, summary.ID)
	if len(qs) != 1 {
		t.Fatalf("questions = %d, want 1", len(qs))
	}
	if qs[0].Text != "What is 2+2?" {
		t.Errorf("text = %q", qs[0].Text)
	}
	if len(qs[0].Answers) != 2 {
		t.Fatalf("answers = %d, want 2", len(qs[0].Answers))
	}
	if qs[0].Answers[0].Correct || !qs[0].Answers[1].Correct {
		t.Errorf("correct flags = %v/%v, want false/true", qs[0].Answers[0].Correct, qs[0].Answers[1].Correct)
	}
	if summary.QuestionCount != 1 || summary.MaxPoints != 4 {
		t.Errorf("summary stats = (%d, %d), want (1, 4)", summary.QuestionCount, summary.MaxPoints)
	}
	assertStats(t, e, summary.ID)
}

func TestCreateQuizSkipsBlankAnswersButKeepsRawPositions(t *testing.T) {
	e := newTestEnv(t, true)

	summary, err := e.authoring.CreateQuiz(context.Background(), e.owner.UserID,
		QuizDraft{Name: "Gaps"},
		AuthoringBatch{Questions: []QuestionDraft{
			{Text: "Pick c", Points: 1, Answers: []string{"a", "  ", "c"}, CorrectIndex: intPtr(2)},
		}})
	if err != nil {
		t.Fatalf("CreateQuiz: %v", err)
	}

	answers := e.questions(t, summary.ID)[0].Answers
	if len(answers) != 2 {
		t.Fatalf("answers = %d, want 2", len(answers))
	}
	if answers[1].Text != "c" || !answers[1].Correct || answers[0].Correct {
		t.Errorf("unexpected answers: %+v", answers)
	}
}

func TestCreateQuizAtMostOneCorrectAnswer(t *testing.T) {
	e := newTestEnv(t, true)
	summary := e.twoQuestionQuiz(t)

	for _, q := range e.questions(t, summary.ID) {
		correct := 0
		for _, a := range q.Answers {
			if a.Correct {
				correct++
			}
		}
		if correct != 1 {
			t.Errorf("question %d has %d correct answers, want 1", q.ID, correct)
		}
	}
	assertStats(t, e, summary.ID)
}

func TestCreateQuizValidation(t *testing.T) {
	tests := []struct {
		name   string
		strict bool
		draft  QuizDraft
		batch  AuthoringBatch
		field  string
	}{
		{
			name:  "missing name",
			draft: QuizDraft{Name: "  "},
			batch: AuthoringBatch{Questions: []QuestionDraft{{Text: "q", Answers: []string{"a"}, CorrectIndex: intPtr(0)}}},
			field: "name",
		},
		{
			name:  "name too long",
			draft: QuizDraft{Name: strings.Repeat("测", 151)},
			batch: AuthoringBatch{Questions: []QuestionDraft{{Text: "q", Answers: []string{"a"}, CorrectIndex: intPtr(0)}}},
			field: "name",
		},
		{
			name:  "no questions",
			draft: QuizDraft{Name: "Empty"},
			batch: AuthoringBatch{Questions: []QuestionDraft{{Text: " "}}},
			field: "questions",
		},
		{
			name:  "negative points late in batch",
			draft: QuizDraft{Name: "Neg"},
			batch: AuthoringBatch{Questions: []QuestionDraft{
				{Text: "ok", Points: 1, Answers: []string{"a"}, CorrectIndex: intPtr(0)},
				{Text: "bad", Points: -1, Answers: []string{"a"}, CorrectIndex: intPtr(0)},
			}},
			field: "questions[1]",
		},
		{
			name:   "missing correct index in strict mode",
			strict: true,
			draft:  QuizDraft{Name: "Strict"},
			batch:  AuthoringBatch{Questions: []QuestionDraft{{Text: "q", Answers: []string{"a", "b"}}}},
			field:  "questions[0]",
		},
		{
			name:   "correct index out of range",
			strict: true,
			draft:  QuizDraft{Name: "Strict"},
			batch:  AuthoringBatch{Questions: []QuestionDraft{{Text: "q", Answers: []string{"a", "b"}, CorrectIndex: intPtr(5)}}},
			field:  "questions[0]",
		},
		{
			name:   "correct index on blank answer",
			strict: true,
			draft:  QuizDraft{Name: "Strict"},
			batch:  AuthoringBatch{Questions: []QuestionDraft{{Text: "q", Answers: []string{"a", " "}, CorrectIndex: intPtr(1)}}},
			field:  "questions[0]",
		},
		{
			name:   "answer too long",
			draft:  QuizDraft{Name: "Long"},
			batch:  AuthoringBatch{Questions: []QuestionDraft{{Text: "q", Answers: []string{strings.Repeat("x", 256)}}}},
			field:  "questions[0]",
			strict: false,
		},
		{
			name:  "image not an image",
			draft: QuizDraft{Name: "Img"},
			batch: AuthoringBatch{Questions: []QuestionDraft{{
				Text: "q", Answers: []string{"a"}, CorrectIndex: intPtr(0),
				Image: rawUpload("notes.png", []byte("just some text, not a picture")),
			}}},
			field: "questions[0]",
		},
		{
			name:  "image wrong extension",
			draft: QuizDraft{Name: "Img"},
			batch: AuthoringBatch{Questions: []QuestionDraft{{
				Text: "q", Answers: []string{"a"}, CorrectIndex: intPtr(0),
				DescriptionImg: pngUpload("diagram.exe"),
			}}},
			field: "questions[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, tt.strict)

			_, err := e.authoring.CreateQuiz(context.Background(), e.owner.UserID, tt.draft, tt.batch)
			var verr *util.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
			if n := countRows(t, e.db, &model.Quiz{}); n != 0 {
				t.Errorf("quizzes = %d, want 0", n)
			}
			if n := countRows(t, e.db, &model.Question{}); n != 0 {
				t.Errorf("questions = %d, want 0", n)
			}
			if e.blobs.calls != 0 {
				t.Errorf("blob uploads = %d, want 0", e.blobs.calls)
			}
		})
	}
}

func TestCreateQuizLengthLimitsCountCharacters(t *testing.T) {
	e := newTestEnv(t, true)
	name := strings.Repeat("测", 60)
	answer := strings.Repeat("答", 100)

	summary, err := e.authoring.CreateQuiz(context.Background(), e.owner.UserID,
		QuizDraft{Name: name},
		AuthoringBatch{Questions: []QuestionDraft{
			{Text: "选哪个？", Points: 1, Answers: []string{answer, "错"}, CorrectIndex: intPtr(0)},
		}})
	if err != nil {
		t.Fatalf("CreateQuiz: %v", err)
	}
	if summary.Name != name {
		t.Errorf("name = %q", summary.Name)
	}
	qs := e.questions(t, summary.ID)
	if qs[0].Answers[0].Text != answer {
		t.Errorf("answer stored as %q", qs[0].Answers[0].Text)
	}
}

func TestCreateQuizLenientModeAllowsNoCorrectAnswer(t *testing.T) {
	e := newTestEnv(t, false)

	summary, err := e.authoring.CreateQuiz(context.Background(), e.owner.UserID,
		QuizDraft{Name: "Lenient"},
		AuthoringBatch{Questions: []QuestionDraft{
			{Text: "no key", Points: 2, Answers: []string{"a", "b"}},
			{Text: "out of range", Points: 3, Answers: []string{"a"}, CorrectIndex: intPtr(9)},
		}})
	if err != nil {
		t.Fatalf("CreateQuiz: %v", err)
	}

	for _, q := range e.questions(t, summary.ID) {
		for _, a := range q.Answers {
			if a.Correct {
				t.Errorf("question %q answer %q marked correct", q.Text, a.Text)
			}
		}
	}
	assertStats(t, e, summary.ID)
}

func TestCreateQuizStoresImagesAndDescriptions(t *testing.T) {
	e := newTestEnv(t, true)

	summary, err := e.authoring.CreateQuiz(context.Background(), e.owner.UserID,
		QuizDraft{Name: "Pictures"},
		AuthoringBatch{Questions: []QuestionDraft{
			{
				Text: "Which shape?", Points: 2, Answers: []string{"circle", "square"}, CorrectIndex: intPtr(0),
				Image: pngUpload("shape.png"), DescriptionText: "Round things", DescriptionImg: pngUpload("circle.PNG"),
			},
			{Text: "No picture", Points: 1, Answers: []string{"yes"}, CorrectIndex: intPtr(0)},
		}})
	if err != nil {
		t.Fatalf("CreateQuiz: %v", err)
	}

	qs := e.questions(t, summary.ID)
	if !strings.HasPrefix(qs[0].ImageKey, "question_images/") || !e.blobs.has(qs[0].ImageKey) {
		t.Errorf("question image key = %q", qs[0].ImageKey)
	}
	if qs[0].ImageURL == "" {
		t.Error("question image url is empty")
	}
	if qs[0].Description == nil || qs[0].Description.Text != "Round things" {
		t.Fatalf("description = %+v", qs[0].Description)
	}
	if !strings.HasPrefix(qs[0].Description.ImageKey, "description_images/") {
		t.Errorf("description image key = %q", qs[0].Description.ImageKey)
	}
	if qs[1].ImageKey != "" || qs[1].Description != nil {
		t.Errorf("second question should have no image or description: %+v", qs[1])
	}
	if e.blobs.count() != 2 {
		t.Errorf("stored blobs = %d, want 2", e.blobs.count())
	}
}

func TestCreateQuizUploadFailureRemovesEarlierBlobs(t *testing.T) {
	e := newTestEnv(t, true)
	e.blobs.failOnCall = 2

	_, err := e.authoring.CreateQuiz(context.Background(), e.owner.UserID,
		QuizDraft{Name: "Broken"},
		AuthoringBatch{Questions: []QuestionDraft{
			{Text: "one", Answers: []string{"a"}, CorrectIndex: intPtr(0), Image: pngUpload("one.png")},
			{Text: "two", Answers: []string{"a"}, CorrectIndex: intPtr(0), Image: pngUpload("two.png")},
		}})
	if err == nil {
		t.Fatal("expected upload error")
	}
	if e.blobs.count() != 0 {
		t.Errorf("stored blobs = %d, want 0", e.blobs.count())
	}
	if len(e.blobs.deleted) != 1 {
		t.Errorf("deleted blobs = %d, want 1", len(e.blobs.deleted))
	}
	if n := countRows(t, e.db, &model.Quiz{}); n != 0 {
		t.Errorf("quizzes = %d, want 0", n)
	}
}

func TestCreateQuizTransactionFailureRollsBack(t *testing.T) {
	e := newTestEnv(t, true)

	// 第二道题写入时失败
	created := 0
	err := e.db.Callback().Create().Before("gorm:create").Register("test:fail_second_question", func(tx *gorm.DB) {
		if tx.Statement.Table != "questions" {
			return
		}
		created++
		if created == 2 {
			tx.AddError(errors.New("disk full"))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	_, err = e.authoring.CreateQuiz(context.Background(), e.owner.UserID,
		QuizDraft{Name: "Atomic"},
		AuthoringBatch{Questions: []QuestionDraft{
			{Text: "one", Points: 1, Answers: []string{"a"}, CorrectIndex: intPtr(0), Image: pngUpload("one.png")},
			{Text: "two", Points: 2, Answers: []string{"a"}, CorrectIndex: intPtr(0)},
		}})
	if err == nil {
		t.Fatal("expected error")
	}

	for _, m := range []interface{}{&model.Quiz{}, &model.Question{}, &model.Answer{}} {
		if n := countRows(t, e.db, m); n != 0 {
			t.Errorf("%T rows = %d, want 0", m, n)
		}
	}
	if e.blobs.count() != 0 {
		t.Errorf("stored blobs = %d, want 0 after rollback", e.blobs.count())
	}
}

func TestSubmitQuizAuthoringAppends(t *testing.T) {
	e := newTestEnv(t, true)
	summary := e.twoQuestionQuiz(t)

	updated, err := e.authoring.SubmitQuizAuthoring(context.Background(), summary.ID, AuthoringBatch{
		Questions: []QuestionDraft{
			{Text: "3+3?", Points: 7, Answers: []string{"6"}, CorrectIndex: intPtr(0)},
		},
	})
	if err != nil {
		t.Fatalf("SubmitQuizAuthoring: %v", err)
	}
	if updated.QuestionCount != 3 || updated.MaxPoints != 22 {
		t.Errorf("stats = (%d, %d), want (3, 22)", updated.QuestionCount, updated.MaxPoints)
	}

	qs := e.questions(t, summary.ID)
	if qs[2].Text != "3+3?" || qs[2].Position != 2 {
		t.Errorf("appended question = %q at %d", qs[2].Text, qs[2].Position)
	}
	assertStats(t, e, summary.ID)
}

// recordingLocker 记录申请过的锁
type recordingLocker struct {
	keys []string
}

func (l *recordingLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.keys = append(l.keys, key)
	return func() {}, true, nil
}

func TestSubmitQuizAuthoringTakesEditLock(t *testing.T) {
	e := newTestEnv(t, true)
	summary := e.twoQuestionQuiz(t)
	locker := &recordingLocker{}
	e.authoring.Locker = locker

	batch := AuthoringBatch{Questions: []QuestionDraft{{Text: "q", Answers: []string{"a"}, CorrectIndex: intPtr(0)}}}
	if _, err := e.authoring.SubmitQuizAuthoring(context.Background(), summary.ID, batch); err != nil {
		t.Fatalf("SubmitQuizAuthoring: %v", err)
	}
	want := fmt.Sprintf("quiz:edit:%d", summary.ID)
	if len(locker.keys) != 1 || locker.keys[0] != want {
		t.Errorf("lock keys = %v, want [%s]", locker.keys, want)
	}

	e.authoring.Locker = busyLocker{}
	_, err := e.authoring.SubmitQuizAuthoring(context.Background(), summary.ID, batch)
	if !util.IsConflict(err) || !errors.Is(err, util.ErrEditInProgress) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if got := len(e.questions(t, summary.ID)); got != 3 {
		t.Errorf("questions = %d, want 3", got)
	}
}

func TestSubmitQuizAuthoringUnknownQuiz(t *testing.T) {
	e := newTestEnv(t, true)

	_, err := e.authoring.SubmitQuizAuthoring(context.Background(), 404, AuthoringBatch{
		Questions: []QuestionDraft{{Text: "q", Answers: []string{"a"}, CorrectIndex: intPtr(0)}},
	})
	if !util.IsNotFound(err) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func threeQuestionQuiz(t *testing.T, e *testEnv) *QuizSummary {
	t.Helper()
	summary, err := e.authoring.CreateQuiz(context.Background(), e.owner.UserID,
		QuizDraft{Name: "Three"},
		AuthoringBatch{Questions: []QuestionDraft{
			{Text: "q1", Points: 1, Answers: []string{"a", "b"}, CorrectIndex: intPtr(0), DescriptionText: "d1", Image: pngUpload("q1.png")},
			{Text: "q2", Points: 2, Answers: []string{"a", "b"}, CorrectIndex: intPtr(1), DescriptionText: "d2", DescriptionImg: pngUpload("d2.png")},
			{Text: "q3", Points: 3, Answers: []string{"a", "b"}, CorrectIndex: intPtr(0), DescriptionText: "d3"},
		}})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	return summary
}

func TestSubmitQuizEditShrinksWithCascade(t *testing.T) {
	e := newTestEnv(t, true)
	summary := threeQuestionQuiz(t, e)
	before := e.questions(t, summary.ID)
	d2Key := before[1].Description.ImageKey

	updated, err := e.authoring.SubmitQuizEdit(context.Background(), summary.ID, AuthoringBatch{
		Questions: []QuestionDraft{
			{Text: "q1 edited", Points: 5, Answers: []string{"x", "y", "z"}, CorrectIndex: intPtr(2)},
		},
	})
	if err != nil {
		t.Fatalf("SubmitQuizEdit: %v", err)
	}
	if updated.QuestionCount != 1 || updated.MaxPoints != 5 {
		t.Errorf("stats = (%d, %d), want (1, 5)", updated.QuestionCount, updated.MaxPoints)
	}

	qs := e.questions(t, summary.ID)
	if len(qs) != 1 || qs[0].ID != before[0].ID {
		t.Fatalf("questions after edit = %+v", qs)
	}
	if qs[0].Text != "q1 edited" || len(qs[0].Answers) != 3 || !qs[0].Answers[2].Correct {
		t.Errorf("edited question = %+v", qs[0])
	}
	// 没有新图片时保留原图
	if qs[0].ImageKey != before[0].ImageKey || !e.blobs.has(qs[0].ImageKey) {
		t.Errorf("image key changed: %q -> %q", before[0].ImageKey, qs[0].ImageKey)
	}
	// 没有提交新解析时保留原解析
	if qs[0].Description == nil || qs[0].Description.Text != "d1" {
		t.Errorf("description = %+v, want untouched d1", qs[0].Description)
	}

	if n := countRows(t, e.db, &model.Answer{}); n != 3 {
		t.Errorf("answers = %d, want 3", n)
	}
	if n := countRows(t, e.db, &model.Description{}); n != 1 {
		t.Errorf("descriptions = %d, want 1", n)
	}
	if e.blobs.has(d2Key) {
		t.Errorf("blob %q of deleted question still stored", d2Key)
	}
	assertStats(t, e, summary.ID)
}

func TestSubmitQuizEditUpdatesInPlaceAndGrows(t *testing.T) {
	e := newTestEnv(t, true)
	summary := e.twoQuestionQuiz(t)
	before := e.questions(t, summary.ID)

	_, err := e.authoring.SubmitQuizEdit(context.Background(), summary.ID, AuthoringBatch{
		Name:        strPtr("Arithmetic II"),
		Description: strPtr("harder"),
		Questions: []QuestionDraft{
			{Text: " ", Points: 99},
			{Text: "1+2?", Points: 6, Answers: []string{"3"}, CorrectIndex: intPtr(0), DescriptionText: "count"},
			{Text: "2+3?", Points: 8, Answers: []string{"4", "5"}, CorrectIndex: intPtr(1)},
			{Text: "new", Points: 1, Answers: []string{"a"}, CorrectIndex: intPtr(0)},
		},
	})
	if err != nil {
		t.Fatalf("SubmitQuizEdit: %v", err)
	}

	quiz, _ := e.quizRepo.FindByID(summary.ID)
	if quiz.Name != "Arithmetic II" || quiz.Description != "harder" {
		t.Errorf("meta = %q/%q", quiz.Name, quiz.Description)
	}

	qs := e.questions(t, summary.ID)
	if len(qs) != 3 {
		t.Fatalf("questions = %d, want 3", len(qs))
	}
	// 空槽位被跳过，非空题目按顺序覆盖现有题目
	if qs[0].ID != before[0].ID || qs[0].Text != "1+2?" || qs[0].Points != 6 {
		t.Errorf("first question = %+v", qs[0])
	}
	if qs[0].Description == nil || qs[0].Description.Text != "count" {
		t.Errorf("description not created: %+v", qs[0].Description)
	}
	if qs[1].ID != before[1].ID || qs[1].Text != "2+3?" {
		t.Errorf("second question = %+v", qs[1])
	}
	if qs[2].Text != "new" || qs[2].Position != 2 {
		t.Errorf("third question = %+v", qs[2])
	}
	assertStats(t, e, summary.ID)
}

func TestSubmitQuizEditReplacesImage(t *testing.T) {
	e := newTestEnv(t, true)
	summary := threeQuestionQuiz(t, e)
	before := e.questions(t, summary.ID)
	oldKey := before[0].ImageKey
	oldDescKey := before[1].Description.ImageKey

	_, err := e.authoring.SubmitQuizEdit(context.Background(), summary.ID, AuthoringBatch{
		Questions: []QuestionDraft{
			{Text: "q1", Points: 1, Answers: []string{"a"}, CorrectIndex: intPtr(0), Image: pngUpload("new.png")},
			{Text: "q2", Points: 2, Answers: []string{"a"}, CorrectIndex: intPtr(0), DescriptionImg: pngUpload("d2-new.png")},
			{Text: "q3", Points: 3, Answers: []string{"a"}, CorrectIndex: intPtr(0)},
		},
	})
	if err != nil {
		t.Fatalf("SubmitQuizEdit: %v", err)
	}

	qs := e.questions(t, summary.ID)
	if qs[0].ImageKey == oldKey || !e.blobs.has(qs[0].ImageKey) {
		t.Errorf("image not replaced: %q", qs[0].ImageKey)
	}
	if e.blobs.has(oldKey) {
		t.Errorf("old image %q not deleted", oldKey)
	}
	if qs[1].Description.ImageKey == oldDescKey || e.blobs.has(oldDescKey) {
		t.Errorf("description image not replaced: %q", qs[1].Description.ImageKey)
	}
	// 只提交图片时保留原解析文字
	if qs[1].Description.Text != "d2" {
		t.Errorf("description text = %q, want d2", qs[1].Description.Text)
	}
}

func TestSubmitQuizEditRejectsEmptyingQuiz(t *testing.T) {
	e := newTestEnv(t, true)
	summary := e.twoQuestionQuiz(t)

	_, err := e.authoring.SubmitQuizEdit(context.Background(), summary.ID, AuthoringBatch{
		Questions: []QuestionDraft{{Text: "  "}},
	})
	if !util.IsValidation(err) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if got := len(e.questions(t, summary.ID)); got != 2 {
		t.Errorf("questions = %d, want 2", got)
	}
}

func TestSubmitQuizEditValidatesName(t *testing.T) {
	for name, raw := range map[string]string{
		"blank":          "   ",
		"too long ascii": strings.Repeat("n", 400),
		"too long cjk":   strings.Repeat("测", 151),
	} {
		t.Run(name, func(t *testing.T) {
			e := newTestEnv(t, true)
			summary := e.twoQuestionQuiz(t)

			_, err := e.authoring.SubmitQuizEdit(context.Background(), summary.ID, AuthoringBatch{
				Name:      strPtr(raw),
				Questions: []QuestionDraft{{Text: "q", Answers: []string{"a"}, CorrectIndex: intPtr(0)}},
			})
			var verr *util.ValidationError
			if !errors.As(err, &verr) || verr.Field != "name" {
				t.Fatalf("err = %v, want ValidationError on name", err)
			}
			quiz, err := e.quizRepo.FindByID(summary.ID)
			if err != nil {
				t.Fatalf("find quiz: %v", err)
			}
			if quiz.Name != "Arithmetic" {
				t.Errorf("name = %q, want unchanged", quiz.Name)
			}
			if got := len(e.questions(t, summary.ID)); got != 2 {
				t.Errorf("questions = %d, want 2", got)
			}
		})
	}
}

func TestSubmitQuizEditConflictWhenLocked(t *testing.T) {
	e := newTestEnv(t, true)
	summary := e.twoQuestionQuiz(t)
	e.authoring.Locker = busyLocker{}

	_, err := e.authoring.SubmitQuizEdit(context.Background(), summary.ID, AuthoringBatch{
		Questions: []QuestionDraft{{Text: "q", Answers: []string{"a"}, CorrectIndex: intPtr(0)}},
	})
	if !util.IsConflict(err) || !errors.Is(err, util.ErrEditInProgress) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
}

func TestSubmitQuizEditUnknownQuiz(t *testing.T) {
	e := newTestEnv(t, true)

	_, err := e.authoring.SubmitQuizEdit(context.Background(), 77, AuthoringBatch{
		Questions: []QuestionDraft{{Text: "q", Answers: []string{"a"}, CorrectIndex: intPtr(0)}},
	})
	if !util.IsNotFound(err) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestRecomputeQuizStatsRepairsDrift(t *testing.T) {
	e := newTestEnv(t, true)
	summary := e.twoQuestionQuiz(t)

	if err := e.db.Model(&model.Quiz{}).Where("id = ?", summary.ID).
		Updates(map[string]interface{}{"max_points": 999, "question_count": 42}).Error; err != nil {
		t.Fatalf("corrupt stats: %v", err)
	}

	for i := 0; i < 2; i++ {
		repaired, err := e.authoring.RecomputeQuizStats(context.Background(), summary.ID)
		if err != nil {
			t.Fatalf("RecomputeQuizStats: %v", err)
		}
		if repaired.QuestionCount != 2 || repaired.MaxPoints != 15 {
			t.Errorf("run %d: stats = (%d, %d), want (2, 15)", i, repaired.QuestionCount, repaired.MaxPoints)
		}
	}
}

func TestApplyConfigSwitchesStrictMode(t *testing.T) {
	e := newTestEnv(t, true)
	batch := AuthoringBatch{Questions: []QuestionDraft{{Text: "q", Answers: []string{"a"}}}}

	if _, err := e.authoring.CreateQuiz(context.Background(), e.owner.UserID, QuizDraft{Name: "A"}, batch); !util.IsValidation(err) {
		t.Fatalf("strict: err = %v, want ValidationError", err)
	}

	e.authoring.ApplyConfig(testQuizConfig(false))
	if _, err := e.authoring.CreateQuiz(context.Background(), e.owner.UserID, QuizDraft{Name: "A"}, batch); err != nil {
		t.Fatalf("lenient: %v", err)
	}
}
