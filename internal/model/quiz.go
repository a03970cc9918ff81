package model

// swagger:model Quiz
type Quiz struct {
	HardModel
	Name          string     `gorm:"size:150;not null;index" json:"name"`
	Description   string     `gorm:"type:text" json:"description"`
	MaxPoints     int        `gorm:"default:0" json:"maxPoints"`     // 缓存字段，由 Questions 重算
	QuestionCount int        `gorm:"default:0" json:"questionCount"` // 缓存字段，由 Questions 重算
	CreatorID     uint       `gorm:"index;not null" json:"creatorId"`
	Creator       *User      `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Questions     []Question `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// swagger:model Question
type Question struct {
	HardModel
	QuizID      uint         `gorm:"index;not null" json:"quizId"`
	Text        string       `gorm:"type:text;not null" json:"text"`
	Points      int          `gorm:"not null;default:0" json:"points"`
	Position    int          `gorm:"default:0" json:"position"`
	ImageKey    string       `gorm:"size:255" json:"-"`
	ImageURL    string       `gorm:"size:255" json:"imageUrl,omitempty"`
	Answers     []Answer     `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"answers,omitempty"`
	Description *Description `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"description,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// swagger:model Answer
type Answer struct {
	HardModel
	QuestionID uint   `gorm:"index;not null" json:"questionId"`
	Text       string `gorm:"size:255;not null" json:"text"`
	Correct    bool   `gorm:"default:false" json:"correct"`
	Position   int    `gorm:"default:0" json:"position"`
}

func (Answer) TableName() string {
	return "answers"
}

// Description 答题后展示的解析
type Description struct {
	HardModel
	QuestionID uint   `gorm:"uniqueIndex;not null" json:"questionId"`
	Text       string `gorm:"type:text" json:"text"`
	ImageKey   string `gorm:"size:255" json:"-"`
	ImageURL   string `gorm:"size:255" json:"imageUrl,omitempty"`
}

func (Description) TableName() string {
	return "descriptions"
}
