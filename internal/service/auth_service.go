package service

import (
	"context"
	"credahead_backend/internal/config"
	"credahead_backend/internal/model"
	"credahead_backend/internal/repository"
	"credahead_backend/internal/util"
	"credahead_backend/pkg/logger"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type RegisterRequest struct {
	Name       string `json:"name" binding:"required,max=100"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8,max=72"`
	AgeRange   string `json:"ageRange"`
	Location   string `json:"location"`
	Occupation string `json:"occupation"`
}

type LoginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type AuthService struct {
	UserRepo *repository.UserRepository
	Cache    *HistoryCache
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, cache *HistoryCache, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cache:    cache,
		Cfg:      cfg,
	}
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	_, err := s.UserRepo.FindByEmail(ctx, email)
	if err == nil {
		return nil, util.ErrEmailRegistered
	} else if !repository.IsNotFound(err) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Name:                req.Name,
		Email:               email,
		Password:            string(hashedPassword),
		Role:                model.Student,
		LiteracyLevel:       1,
		CurrentPathwayLevel: 1,
		AgeRange:            req.AgeRange,
		Location:            req.Location,
		Occupation:          req.Occupation,
		SurveyCompleted:     req.AgeRange != "" || req.Occupation != "",
		LastLogin:           time.Now(),
	}
	if err := s.UserRepo.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, util.ErrEmailRegistered
		}
		return nil, err
	}
	return user, nil
}

// Login 校验密码并签发 token，同时从镜像预热该用户的题目历史缓存
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.UserRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, util.ErrInvalidCredentials
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}

	if err := s.UserRepo.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		logger.Log.Warn("failed to update last login", zap.Uint("userId", user.ID), zap.Error(err))
	}
	if n, err := s.Cache.Warm(ctx, user.ID); err != nil {
		logger.Log.Warn("history cache warm-up failed", zap.Uint("userId", user.ID), zap.Error(err))
	} else if n > 0 {
		logger.Log.Debug("history cache warmed", zap.Uint("userId", user.ID), zap.Int("contexts", n))
	}

	return &LoginResult{Token: token, User: user}, nil
}

func (s *AuthService) Profile(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
