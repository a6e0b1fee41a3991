package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"treehub/internal/model"
	"treehub/internal/repository"
	"treehub/pkg/hash"
	"treehub/pkg/log"
	"treehub/pkg/token"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// UserService 提供认证与用户身份查询。
// 用户在本系统中只承担“操作人”角色：登录拿令牌，令牌里的用户名作为审计主体。
type UserService interface {
	Register(username, password string) (*model.User, error)
	Login(username, password string) (accessToken, refreshToken string, err error)
	// Logout 把令牌写入 Redis 黑名单，存活期与令牌剩余有效期一致。
	Logout(tokenString string, expiresAt time.Time) error
	GetProfile(username string) (*model.User, error)
}

type userService struct {
	userRepo   repository.UserRepository
	jwtManager *token.JWTManager
	rdb        *redis.Client
}

func NewUserService(userRepo repository.UserRepository, jwtManager *token.JWTManager, rdb *redis.Client) UserService {
	return &userService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		rdb:        rdb,
	}
}

func (s *userService) Register(username, password string) (*model.User, error) {
	if s.userRepo == nil {
		return nil, ErrInternal
	}
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	// 先检查用户是否存在；查无记录是正常分支，继续注册
	existingUser, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	} else if existingUser != nil {
		return nil, ErrUserAlreadyExists
	}

	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser := &model.User{
		Username: username,
		Password: hashedPassword,
		Role:     "USER",
	}
	if err := s.userRepo.Create(newUser); err != nil {
		return nil, err
	}
	return newUser, nil
}

func (s *userService) Login(username, password string) (accessToken, refreshToken string, err error) {
	if s.userRepo == nil || s.jwtManager == nil {
		return "", "", ErrInternal
	}

	existingUser, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 用户不存在与密码错误返回同一错误，防止用户枚举
			return "", "", ErrInvalidCredentials
		}
		log.Errorf("Login: failed to query user %q: %v", username, err)
		return "", "", ErrInternal
	}
	if existingUser == nil {
		return "", "", ErrInvalidCredentials
	}

	if !hash.CheckPasswordHash(password, existingUser.Password) {
		return "", "", ErrInvalidCredentials
	}

	// 使用数据库中的 Username，避免大小写/规范化不一致
	accessToken, refreshToken, err = s.jwtManager.GenerateToken(existingUser.ID, existingUser.Username, existingUser.Role)
	if err != nil {
		log.Errorf("Login: failed to generate token for user %q: %v", existingUser.Username, err)
		return "", "", ErrInternal
	}
	return accessToken, refreshToken, nil
}

// Logout 黑名单 key 与 AuthMiddleware 读取的前缀保持一致。
// 令牌已过期时无需入黑名单。
func (s *userService) Logout(tokenString string, expiresAt time.Time) error {
	if s.rdb == nil {
		return ErrInternal
	}
	if tokenString == "" {
		return ErrInvalidInput
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	key := "token_blacklist:" + tokenString
	if err := s.rdb.Set(context.Background(), key, "1", ttl).Err(); err != nil {
		log.Errorf("Logout: failed to blacklist token: %v", err)
		return ErrInternal
	}
	return nil
}

func (s *userService) GetProfile(username string) (*model.User, error) {
	if s.userRepo == nil {
		return nil, ErrInternal
	}

	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		log.Errorf("GetProfile: failed to query user %q: %v", username, err)
		return nil, ErrInternal
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
