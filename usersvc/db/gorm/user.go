package gorm

import (
	"context"
	"errors"

	"github.com/ichigozero/todokit/usersvc"
	libgorm "gorm.io/gorm"
)

type userRepository struct {
	db *libgorm.DB
}

func NewUserRepository(db *libgorm.DB) usersvc.UserRepository {
	return &userRepository{db}
}

func AutoMigrate(db *libgorm.DB) error {
	return db.AutoMigrate(&usersvc.User{})
}

func (u *userRepository) Find(ctx context.Context, uid string) (usersvc.User, error) {
	var user usersvc.User
	err := u.db.WithContext(ctx).Where("uid = ?", uid).First(&user).Error
	if errors.Is(err, libgorm.ErrRecordNotFound) {
		return usersvc.User{}, usersvc.ErrUserNotFound
	}
	return user, err
}

// Save inserts user or replaces the row with the same uid.
func (u *userRepository) Save(ctx context.Context, user usersvc.User) error {
	return u.db.WithContext(ctx).Save(&user).Error
}
