package repository

import (
	"errors"
	"time"

	"quizicle_backend/internal/model"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// Identity 来自外部认证的用户身份
type Identity struct {
	UserID      uint
	Username    string
	Email       string
	IsSuperuser bool
}

// Touch 按身份同步 users 行并保证 user_profiles 一对一存在
func (r *UserRepository) Touch(id Identity) (*model.User, error) {
	var user model.User
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&user, id.UserID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = model.User{
				BaseModel:   model.BaseModel{ID: id.UserID},
				Username:    id.Username,
				Email:       id.Email,
				IsSuperuser: id.IsSuperuser,
				LastSeen:    time.Now(),
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := tx.Model(&user).Updates(map[string]interface{}{
				"username":     id.Username,
				"email":        id.Email,
				"is_superuser": id.IsSuperuser,
				"last_seen":    time.Now(),
			}).Error; err != nil {
				return err
			}
		}

		profile := model.UserProfile{UserID: user.ID}
		if err := tx.Where(model.UserProfile{UserID: user.ID}).FirstOrCreate(&profile).Error; err != nil {
			return err
		}
		user.Profile = &profile
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByID(id uint) (*model.User, error) {
	var user model.User
	err := r.DB.Preload("Profile").First(&user, id).Error
	return &user, err
}
