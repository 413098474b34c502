package repository

import (
	"context"
	"errors"

	"grading_backend/internal/model"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) CreateAccount(ctx context.Context, account *model.Account) error {
	return r.DB.WithContext(ctx).Create(account).Error
}

func (r *UserRepository) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindAccountByID(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := r.DB.WithContext(ctx).First(&account, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *UserRepository) IsCourseFaculty(ctx context.Context, courseID, userID string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.CourseFaculty{}).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) AddCourseFaculty(ctx context.Context, courseID, userID string) error {
	return r.DB.WithContext(ctx).Create(&model.CourseFaculty{CourseID: courseID, UserID: userID}).Error
}
