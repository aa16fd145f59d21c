package auth

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"wheel/internal/profile"
)

var (
	ErrEmailTaken   = errors.New("email already used")
	ErrUserNotFound = errors.New("user not found")
)

// Store reads and writes accounts.
type Store struct {
	DB *gorm.DB
}

// Create inserts a user and its default profile in one transaction. The
// profile shares the user's id.
func (s *Store) Create(ctx context.Context, email, passwordHash string) (User, error) {
	u := User{Email: email, PasswordHash: passwordHash, Role: RoleUser}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&User{}).Where("email = ?", email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrEmailTaken
		}
		if err := tx.Create(&u).Error; err != nil {
			return err
		}
		return (&profile.Store{DB: tx}).Ensure(ctx, u.ID)
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Store) ByEmail(ctx context.Context, email string) (User, error) {
	var u User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return u, nil
}
