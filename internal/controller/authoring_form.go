package controller

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"quizicle_backend/internal/service"
	"quizicle_backend/internal/util"

	"github.com/gin-gonic/gin"
)

const maxFormMemory = 32 << 20

// 表单中的平行数组字段
const (
	fieldQuestions         = "questions[]"
	fieldPoints            = "points[]"
	fieldQuestionImages    = "question_images[]"
	fieldDescriptions      = "descriptions[]"
	fieldDescriptionImages = "description_images[]"
	prefixCorrectAnswer    = "correct_answer_"
	prefixAttemptQuestion  = "question_"
)

// bindAuthoringBatch 在入口处把 JSON 或表单解码为 AuthoringBatch
func bindAuthoringBatch(ctx *gin.Context) (service.AuthoringBatch, error) {
	var batch service.AuthoringBatch

	if ctx.ContentType() == gin.MIMEJSON {
		if err := ctx.ShouldBindJSON(&batch); err != nil {
			return batch, util.NewValidationError("body", "invalid JSON: %v", err)
		}
		return batch, nil
	}

	files, err := parseForm(ctx.Request)
	if err != nil {
		return batch, err
	}
	return decodeAuthoringForm(ctx.Request.PostForm, files)
}

func parseForm(r *http.Request) (map[string][]*multipart.FileHeader, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			return nil, util.NewValidationError("body", "invalid multipart form: %v", err)
		}
		return r.MultipartForm.File, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, util.NewValidationError("body", "invalid form: %v", err)
	}
	return nil, nil
}

// decodeAuthoringForm 按下标对齐 questions[] / points[] / all_answers[i][] 等字段。
// 缺少的尾部元素视为未提供，但非空题目必须有分值；空题目所在的槽位不做校验。
func decodeAuthoringForm(values url.Values, files map[string][]*multipart.FileHeader) (service.AuthoringBatch, error) {
	var batch service.AuthoringBatch

	if _, ok := values["name"]; ok {
		name := values.Get("name")
		batch.Name = &name
	}
	if _, ok := values["description"]; ok {
		desc := values.Get("description")
		batch.Description = &desc
	}

	correct, err := correctAnswerIndexes(values)
	if err != nil {
		return batch, err
	}

	questions := values[fieldQuestions]
	points := values[fieldPoints]
	descriptions := values[fieldDescriptions]
	images := files[fieldQuestionImages]
	descImages := files[fieldDescriptionImages]

	batch.Questions = make([]service.QuestionDraft, len(questions))
	for i, text := range questions {
		draft := service.QuestionDraft{
			Text:    text,
			Answers: values[fmt.Sprintf("all_answers[%d][]", i)],
		}

		if strings.TrimSpace(text) != "" {
			if i >= len(points) {
				return batch, util.NewValidationError(fmt.Sprintf("points[%d]", i), "points are required")
			}
			p, err := strconv.Atoi(strings.TrimSpace(points[i]))
			if err != nil {
				return batch, util.NewValidationError(fmt.Sprintf("points[%d]", i), "%q is not an integer", points[i])
			}
			draft.Points = p
			if idx, ok := correct[i]; ok {
				if idx.err != nil {
					return batch, idx.err
				}
				v := idx.value
				draft.CorrectIndex = &v
			}
		}

		if i < len(descriptions) {
			draft.DescriptionText = descriptions[i]
		}
		if i < len(images) {
			draft.Image = uploadFromHeader(images[i])
		}
		if i < len(descImages) {
			draft.DescriptionImg = uploadFromHeader(descImages[i])
		}
		batch.Questions[i] = draft
	}
	return batch, nil
}

type correctIndex struct {
	value int
	err   error
}

// correctAnswerIndexes 解析 correct_answer_<i>；非整数的值延迟到该题非空时才报错
func correctAnswerIndexes(values url.Values) (map[int]correctIndex, error) {
	out := make(map[int]correctIndex)
	for key, vals := range values {
		if !strings.HasPrefix(key, prefixCorrectAnswer) || len(vals) == 0 {
			continue
		}
		slot, err := strconv.Atoi(strings.TrimPrefix(key, prefixCorrectAnswer))
		if err != nil || slot < 0 {
			return nil, util.NewValidationError(key, "invalid question index")
		}
		raw := strings.TrimSpace(vals[0])
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			out[slot] = correctIndex{err: util.NewValidationError(key, "%q is not an integer", raw)}
			continue
		}
		out[slot] = correctIndex{value: v}
	}
	return out, nil
}

func uploadFromHeader(fh *multipart.FileHeader) *service.ImageUpload {
	if fh == nil || fh.Filename == "" || fh.Size == 0 {
		return nil
	}
	return &service.ImageUpload{
		Filename:    fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

type attemptRequest struct {
	Answers map[uint]uint `json:"answers"`
}

// bindAttemptSelections 解码 {"answers":{"<qid>":<aid>}} 或表单 question_<qid>=<aid>
func bindAttemptSelections(ctx *gin.Context) (map[uint]uint, error) {
	if ctx.ContentType() == gin.MIMEJSON {
		var req attemptRequest
		if err := ctx.ShouldBindJSON(&req); err != nil {
			return nil, util.NewValidationError("answers", "invalid JSON: %v", err)
		}
		if req.Answers == nil {
			req.Answers = map[uint]uint{}
		}
		return req.Answers, nil
	}

	if _, err := parseForm(ctx.Request); err != nil {
		return nil, err
	}
	return decodeAttemptForm(ctx.Request.PostForm)
}

func decodeAttemptForm(values url.Values) (map[uint]uint, error) {
	selections := make(map[uint]uint)
	for key, vals := range values {
		if !strings.HasPrefix(key, prefixAttemptQuestion) || len(vals) == 0 {
			continue
		}
		questionID, ok := util.ParseID(strings.TrimPrefix(key, prefixAttemptQuestion))
		if !ok {
			return nil, util.NewValidationError(key, "invalid question id")
		}
		raw := strings.TrimSpace(vals[0])
		if raw == "" {
			continue
		}
		answerID, ok := util.ParseID(raw)
		if !ok {
			return nil, util.NewValidationError(key, "%q is not a valid answer id", raw)
		}
		selections[questionID] = answerID
	}
	return selections, nil
}
