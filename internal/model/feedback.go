package model

type Comment struct {
	BaseModel
	QuizID  uint   `gorm:"index;not null" json:"quizId"`
	UserID  uint   `gorm:"index;not null" json:"userId"`
	User    *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Content string `gorm:"type:text;not null" json:"content"`
}

func (Comment) TableName() string {
	return "comments"
}

// Report 用户对测验的举报
type Report struct {
	BaseModel
	QuizID uint   `gorm:"index;not null" json:"quizId"`
	UserID uint   `gorm:"index;not null" json:"userId"`
	User   *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Reason string `gorm:"type:text;not null" json:"reason"`
}

func (Report) TableName() string {
	return "reports"
}
