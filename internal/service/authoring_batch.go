package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"quizicle_backend/internal/model"
	"quizicle_backend/internal/util"
	"quizicle_backend/pkg/logger"

	"go.uber.org/zap"
)

const (
	maxQuizNameLength = 150
	maxAnswerLength   = 255
)

// normalizeQuizName 去掉首尾空白并校验非空与长度（按字符计）
func normalizeQuizName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", util.NewValidationError("name", "quiz name is required")
	}
	if utf8.RuneCountInString(name) > maxQuizNameLength {
		return "", util.NewValidationError("name", "quiz name is longer than %d characters", maxQuizNameLength)
	}
	return name, nil
}

// ImageUpload 上传的图片，内容在校验通过后才写入存储
type ImageUpload struct {
	Filename    string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// QuestionDraft 一道题的录入内容
type QuestionDraft struct {
	Text            string       `json:"text"`
	Points          int          `json:"points"`
	Answers         []string     `json:"answers"`
	CorrectIndex    *int         `json:"correctIndex"`
	DescriptionText string       `json:"descriptionText"`
	Image           *ImageUpload `json:"-"`
	DescriptionImg  *ImageUpload `json:"-"`
}

// AuthoringBatch 一次创建或编辑提交的全部题目。Name/Description 仅编辑时使用。
type AuthoringBatch struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Questions   []QuestionDraft `json:"questions"`
}

// QuizDraft 新建测验的基本信息
type QuizDraft struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type preparedQuestion struct {
	slot            int
	text            string
	points          int
	answers         []model.Answer
	descriptionText string
	image           *ImageUpload
	descriptionImg  *ImageUpload
}

func (p preparedQuestion) hasDescription() bool {
	return p.descriptionText != "" || p.descriptionImg != nil
}

type batchRules struct {
	requireCorrect bool
	maxImageBytes  int64
}

// prepareBatch 校验整个批次，任何写入之前完成
func prepareBatch(batch AuthoringBatch, rules batchRules) ([]preparedQuestion, error) {
	prepared := make([]preparedQuestion, 0, len(batch.Questions))

	for slot, draft := range batch.Questions {
		text := strings.TrimSpace(draft.Text)
		if text == "" {
			continue
		}
		field := fmt.Sprintf("questions[%d]", slot)

		if draft.Points < 0 {
			return nil, util.NewValidationError(field, "points must not be negative")
		}

		correct := -1
		if draft.CorrectIndex != nil {
			correct = *draft.CorrectIndex
		}

		answers := make([]model.Answer, 0, len(draft.Answers))
		correctCount := 0
		for pos, raw := range draft.Answers {
			answerText := strings.TrimSpace(raw)
			if answerText == "" {
				continue
			}
			if utf8.RuneCountInString(answerText) > maxAnswerLength {
				return nil, util.NewValidationError(field, "answer %d is longer than %d characters", pos, maxAnswerLength)
			}
			isCorrect := pos == correct
			if isCorrect {
				correctCount++
			}
			answers = append(answers, model.Answer{
				Text:     answerText,
				Correct:  isCorrect,
				Position: len(answers),
			})
		}

		if rules.requireCorrect && correctCount != 1 {
			if draft.CorrectIndex == nil {
				return nil, util.NewValidationError(field, "a correct answer must be selected")
			}
			return nil, util.NewValidationError(field, "correct answer index %d does not point at a non-blank answer", correct)
		}

		for _, img := range []*ImageUpload{draft.Image, draft.DescriptionImg} {
			if err := checkImage(img, field, rules.maxImageBytes); err != nil {
				return nil, err
			}
		}

		prepared = append(prepared, preparedQuestion{
			slot:            slot,
			text:            text,
			points:          draft.Points,
			answers:         answers,
			descriptionText: strings.TrimSpace(draft.DescriptionText),
			image:           draft.Image,
			descriptionImg:  draft.DescriptionImg,
		})
	}

	if len(prepared) == 0 {
		return nil, util.NewValidationError("questions", "at least one non-blank question is required")
	}
	return prepared, nil
}

func checkImage(img *ImageUpload, field string, maxBytes int64) error {
	if img == nil {
		return nil
	}
	if img.Size > maxBytes {
		return util.NewValidationError(field, "image %q exceeds %d bytes", img.Filename, maxBytes)
	}
	if !util.HasAllowedExtension(img.Filename, util.AllowedImageExtensions) {
		return util.NewValidationError(field, "image %q has an unsupported extension", img.Filename)
	}
	if img.Open == nil {
		return util.NewValidationError(field, "image %q has no content", img.Filename)
	}

	f, err := img.Open()
	if err != nil {
		return util.NewValidationError(field, "image %q cannot be read", img.Filename)
	}
	defer f.Close()

	mimeType, err := util.ValidateMimeType(f, []string{util.MimeImage})
	if err != nil {
		return util.NewValidationError(field, "image %q: %v", img.Filename, err)
	}
	img.ContentType = mimeType
	return nil
}

// storedImage 已写入存储的图片
type storedImage struct {
	key string
	url string
}

// blobTracker 记录本次请求上传的对象，事务失败时回收
type blobTracker struct {
	blobs    BlobStore
	uploaded []string
}

func (t *blobTracker) put(ctx context.Context, prefix string, img *ImageUpload) (*storedImage, error) {
	if img == nil {
		return nil, nil
	}
	if t.blobs == nil {
		return nil, fmt.Errorf("no blob store configured for image uploads")
	}

	f, err := img.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	key := ObjectKey(prefix, img.Filename)
	url, err := t.blobs.Upload(ctx, key, f, img.Size, img.ContentType)
	if err != nil {
		return nil, err
	}
	t.uploaded = append(t.uploaded, key)
	return &storedImage{key: key, url: url}, nil
}

func (t *blobTracker) rollback(ctx context.Context) {
	deleteBlobs(ctx, t.blobs, t.uploaded)
}

func deleteBlobs(ctx context.Context, blobs BlobStore, keys []string) {
	if blobs == nil {
		return
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := blobs.Delete(ctx, key); err != nil {
			logger.Log.Warn("failed to delete blob", zap.String("key", key), zap.Error(err))
		}
	}
}

// uploadedImages 每道题的题目图与解析图
type uploadedImages struct {
	question    *storedImage
	description *storedImage
}

func uploadImages(ctx context.Context, tracker *blobTracker, prepared []preparedQuestion) ([]uploadedImages, error) {
	out := make([]uploadedImages, len(prepared))
	for i, p := range prepared {
		img, err := tracker.put(ctx, "question_images", p.image)
		if err != nil {
			return nil, err
		}
		desc, err := tracker.put(ctx, "description_images", p.descriptionImg)
		if err != nil {
			return nil, err
		}
		out[i] = uploadedImages{question: img, description: desc}
	}
	return out, nil
}
