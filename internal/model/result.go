package model

// Results 一次答题记录
type Results struct {
	HardModel
	QuizID   uint               `gorm:"index;not null" json:"quizId"`
	UserID   uint               `gorm:"index;not null" json:"userId"`
	Username string             `gorm:"size:150;not null" json:"username"`
	Score    int                `gorm:"not null;default:0" json:"score"`
	Answers  []QuizResultAnswer `gorm:"foreignKey:ResultID;constraint:OnDelete:CASCADE" json:"answers,omitempty"`
}

func (Results) TableName() string {
	return "results"
}

// QuizResultAnswer 记录一次答题中每道题的选项。
// AnswerID 在题目被编辑、选项被重建后置空，快照字段保留当时的作答内容。
type QuizResultAnswer struct {
	HardModel
	ResultID      uint   `gorm:"index;not null" json:"resultId"`
	QuestionID    uint   `gorm:"index;not null" json:"questionId"`
	AnswerID      *uint  `gorm:"index" json:"answerId"`
	AnswerText    string `gorm:"size:255" json:"answerText"`
	Correct       bool   `gorm:"default:false" json:"correct"`
	PointsAwarded int    `gorm:"default:0" json:"pointsAwarded"`
}

func (QuizResultAnswer) TableName() string {
	return "quiz_result_answers"
}
