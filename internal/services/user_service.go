package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Gopher0727/LockDeal/internal/models"
	"github.com/Gopher0727/LockDeal/internal/repositories"
	logger "github.com/Gopher0727/LockDeal/middleware/log"
)

// ErrEmailTaken 邮箱已被注册
var ErrEmailTaken = errors.New("email already registered")

// UserService 用户档案. 凭证校验由外部身份服务完成, 这里只登记姓名/邮箱/角色
type UserService struct {
	store *repositories.Store
	log   *logger.Logger
}

func NewUserService(store *repositories.Store, log *logger.Logger) *UserService {
	return &UserService{store: store, log: log}
}

type RegisterUserRequest struct {
	Name  string      `json:"name" binding:"required"`
	Email string      `json:"email" binding:"required"`
	Role  models.Role `json:"role" binding:"required"`
}

// Register 登记用户
func (s *UserService) Register(ctx context.Context, req RegisterUserRequest) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validationf("name is required")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return nil, validationf("invalid email %q", req.Email)
	}
	email := strings.ToLower(addr.Address)
	if !req.Role.Valid() {
		return nil, validationf("unknown role %q", req.Role)
	}

	_, err = s.store.Users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrEmailTaken
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, dbErr(err, "user")
	}

	user := &models.User{Name: name, Email: email, Role: req.Role}
	if err := s.store.Users.Create(ctx, user); err != nil {
		return nil, dbErr(err, "user")
	}
	s.log.InfoContext(ctx, "user registered", zap.Uint("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

func (s *UserService) Get(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, dbErr(err, "user")
	}
	return user, nil
}

type UpdateProfileRequest struct {
	Name string `json:"name" binding:"required"`
}

// UpdateProfile 修改姓名. 邮箱与角色登记后不可改
func (s *UserService) UpdateProfile(ctx context.Context, actor Actor, req UpdateProfileRequest) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validationf("name is required")
	}
	user, err := s.Get(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if user.Name == name {
		return user, nil
	}
	user.Name = name
	if err := s.store.Users.Update(ctx, user); err != nil {
		return nil, dbErr(err, "user")
	}
	return user, nil
}
