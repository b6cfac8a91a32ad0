package service_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	apperrors "github.com/ecofinds/marketplace/internal/errors"
	"github.com/ecofinds/marketplace/internal/models"
	"github.com/ecofinds/marketplace/internal/repositories/mocks"
	service "github.com/ecofinds/marketplace/internal/services"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

var testJWTKey = []byte("test-signing-key")

func hashPassword(t *testing.T, password string) string {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	return string(hashed)
}

func TestUserService_Register(t *testing.T) {
	ctx := context.Background()

	req := &models.RegisterRequest{
		Username: "ecouser",
		Email:    "eco@example.com",
		Password: "secret123",
	}

	t.Run("Success", func(t *testing.T) {
		// Arrange
		mockRepo := new(mocks.UserRepository)
		mockRateRepo := new(mocks.RateLimitRepository)
		userService := service.NewUserService(mockRepo, mockRateRepo, testJWTKey)

		mockRepo.On("GetUserByEmail", ctx, req.Email).Return(nil, sql.ErrNoRows).Once()
		mockRepo.On("CreateUser", ctx, mock.MatchedBy(func(u *models.User) bool {
			// stored password must be a hash, never the clear text
			return u.Username == "ecouser" &&
				u.Email == "eco@example.com" &&
				u.Password != "secret123" &&
				bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("secret123")) == nil
		})).Return(nil).Once()

		// Act
		user, err := userService.Register(ctx, req)

		// Assert
		assert.NoError(t, err)
		assert.NotNil(t, user)
		assert.Equal(t, "ecouser", user.Username)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Failure - Email Already Registered", func(t *testing.T) {
		// Arrange
		mockRepo := new(mocks.UserRepository)
		mockRateRepo := new(mocks.RateLimitRepository)
		userService := service.NewUserService(mockRepo, mockRateRepo, testJWTKey)

		existing := &models.User{ID: uuid.New(), Email: req.Email}
		mockRepo.On("GetUserByEmail", ctx, req.Email).Return(existing, nil).Once()

		// Act
		user, err := userService.Register(ctx, req)

		// Assert
		assert.Error(t, err)
		assert.Nil(t, user)
		appErr, ok := apperrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeDuplicateEntry, appErr.Code)
		assert.Equal(t, "Email already registered", appErr.Message)
		mockRepo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})

	t.Run("Failure - Database Error", func(t *testing.T) {
		// Arrange
		mockRepo := new(mocks.UserRepository)
		mockRateRepo := new(mocks.RateLimitRepository)
		userService := service.NewUserService(mockRepo, mockRateRepo, testJWTKey)

		dbError := errors.New("insert failed")
		mockRepo.On("GetUserByEmail", ctx, req.Email).Return(nil, sql.ErrNoRows).Once()
		mockRepo.On("CreateUser", ctx, mock.AnythingOfType("*models.User")).Return(dbError).Once()

		// Act
		user, err := userService.Register(ctx, req)

		// Assert
		assert.Error(t, err)
		assert.Nil(t, user)
		appErr, ok := apperrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeDatabaseError, appErr.Code)
		assert.ErrorIs(t, err, dbError)
	})
}

func TestUserService_Login(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	req := &models.LoginRequest{
		Email:    "eco@example.com",
		Password: "secret123",
	}

	t.Run("Success", func(t *testing.T) {
		// Arrange
		mockRepo := new(mocks.UserRepository)
		mockRateRepo := new(mocks.RateLimitRepository)
		userService := service.NewUserService(mockRepo, mockRateRepo, testJWTKey)

		user := &models.User{
			ID:       userID,
			Username: "ecouser",
			Email:    req.Email,
			Password: hashPassword(t, "secret123"),
		}
		mockRateRepo.On("CheckLoginRateLimit", ctx, req.Email).Return(true, 4, 0, nil).Once()
		mockRepo.On("GetUserByEmail", ctx, req.Email).Return(user, nil).Once()

		// Act
		resp, err := userService.Login(ctx, req)

		// Assert
		assert.NoError(t, err)
		assert.True(t, resp.Success)
		assert.NotEmpty(t, resp.Token)
		assert.Positive(t, resp.ExpiresIn)

		// token must parse with the same key and carry the user's claims
		claims := &models.Claims{}
		parsed, err := jwt.ParseWithClaims(resp.Token, claims, func(token *jwt.Token) (any, error) {
			return testJWTKey, nil
		})
		assert.NoError(t, err)
		assert.True(t, parsed.Valid)
		assert.Equal(t, userID, claims.UserID)
		assert.Equal(t, req.Email, claims.Email)
		mockRateRepo.AssertExpectations(t)
	})

	t.Run("Failure - Rate Limited", func(t *testing.T) {
		// Arrange
		mockRepo := new(mocks.UserRepository)
		mockRateRepo := new(mocks.RateLimitRepository)
		userService := service.NewUserService(mockRepo, mockRateRepo, testJWTKey)

		mockRateRepo.On("CheckLoginRateLimit", ctx, req.Email).Return(false, 0, 42, nil).Once()

		// Act
		resp, err := userService.Login(ctx, req)

		// Assert
		assert.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Equal(t, 42, resp.RetryAfter)
		assert.Empty(t, resp.Token)
		mockRepo.AssertNotCalled(t, "GetUserByEmail", mock.Anything, mock.Anything)
	})

	t.Run("Failure - Wrong Password", func(t *testing.T) {
		// Arrange
		mockRepo := new(mocks.UserRepository)
		mockRateRepo := new(mocks.RateLimitRepository)
		userService := service.NewUserService(mockRepo, mockRateRepo, testJWTKey)

		user := &models.User{
			ID:       userID,
			Email:    req.Email,
			Password: hashPassword(t, "other-password"),
		}
		mockRateRepo.On("CheckLoginRateLimit", ctx, req.Email).Return(true, 2, 0, nil).Once()
		mockRepo.On("GetUserByEmail", ctx, req.Email).Return(user, nil).Once()

		// Act
		resp, err := userService.Login(ctx, req)

		// Assert
		assert.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Equal(t, "Invalid email or password", resp.Message)
		assert.Equal(t, 2, resp.RemainingTries)
		assert.Empty(t, resp.Token)
	})

	t.Run("Failure - Unknown Email", func(t *testing.T) {
		// Arrange
		mockRepo := new(mocks.UserRepository)
		mockRateRepo := new(mocks.RateLimitRepository)
		userService := service.NewUserService(mockRepo, mockRateRepo, testJWTKey)

		mockRateRepo.On("CheckLoginRateLimit", ctx, req.Email).Return(true, 3, 0, nil).Once()
		mockRepo.On("GetUserByEmail", ctx, req.Email).Return(nil, sql.ErrNoRows).Once()

		// Act
		resp, err := userService.Login(ctx, req)

		// Assert
		assert.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Equal(t, "Invalid email or password", resp.Message)
	})

	t.Run("Failure - Rate Limiter Unavailable", func(t *testing.T) {
		// Arrange
		mockRepo := new(mocks.UserRepository)
		mockRateRepo := new(mocks.RateLimitRepository)
		userService := service.NewUserService(mockRepo, mockRateRepo, testJWTKey)

		redisError := errors.New("redis connection refused")
		mockRateRepo.On("CheckLoginRateLimit", ctx, req.Email).Return(false, 0, 0, redisError).Once()

		// Act
		resp, err := userService.Login(ctx, req)

		// Assert
		assert.Error(t, err)
		assert.Nil(t, resp)
		appErr, ok := apperrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeThirdPartyError, appErr.Code)
		assert.ErrorIs(t, err, redisError)
	})
}

func TestUserService_GetProfile(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		mockRepo := new(mocks.UserRepository)
		mockRateRepo := new(mocks.RateLimitRepository)
		userService := service.NewUserService(mockRepo, mockRateRepo, testJWTKey)

		user := &models.User{ID: userID, Username: "ecouser", Email: "eco@example.com"}
		mockRepo.On("GetUserByID", ctx, userID).Return(user, nil).Once()

		// Act
		got, err := userService.GetProfile(ctx, userID)

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, user, got)
	})

	t.Run("Failure - Not Found", func(t *testing.T) {
		// Arrange
		mockRepo := new(mocks.UserRepository)
		mockRateRepo := new(mocks.RateLimitRepository)
		userService := service.NewUserService(mockRepo, mockRateRepo, testJWTKey)

		mockRepo.On("GetUserByID", ctx, userID).Return(nil, sql.ErrNoRows).Once()

		// Act
		got, err := userService.GetProfile(ctx, userID)

		// Assert
		assert.Error(t, err)
		assert.Nil(t, got)
		appErr, ok := apperrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeNotFound, appErr.Code)
		assert.Equal(t, "User not found", appErr.Message)
	})
}

func TestUserService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	newUser := func() *models.User {
		return &models.User{
			ID:       userID,
			Username: "ecouser",
			Email:    "eco@example.com",
			Password: hashPassword(t, "oldpassword"),
		}
	}

	t.Run("Success - Updates Only Provided Fields", func(t *testing.T) {
		// Arrange
		mockRepo := new(mocks.UserRepository)
		mockRateRepo := new(mocks.RateLimitRepository)
		userService := service.NewUserService(mockRepo, mockRateRepo, testJWTKey)

		mockRepo.On("GetUserByID", ctx, userID).Return(newUser(), nil).Once()
		mockRepo.On("UpdateUser", ctx, mock.MatchedBy(func(u *models.User) bool {
			return u.Username == "renamed" && u.Email == "eco@example.com"
		})).Return(nil).Once()

		// Act
		err := userService.UpdateProfile(ctx, userID, &models.UpdateProfileRequest{Username: strPtr("renamed")})

		// Assert
		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Success - Rehashes New Password", func(t *testing.T) {
		// Arrange
		mockRepo := new(mocks.UserRepository)
		mockRateRepo := new(mocks.RateLimitRepository)
		userService := service.NewUserService(mockRepo, mockRateRepo, testJWTKey)

		mockRepo.On("GetUserByID", ctx, userID).Return(newUser(), nil).Once()
		mockRepo.On("UpdateUser", ctx, mock.MatchedBy(func(u *models.User) bool {
			return u.Password != "newpassword" &&
				bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("newpassword")) == nil
		})).Return(nil).Once()

		// Act
		err := userService.UpdateProfile(ctx, userID, &models.UpdateProfileRequest{Password: strPtr("newpassword")})

		// Assert
		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Failure - Email Taken", func(t *testing.T) {
		// Arrange
		mockRepo := new(mocks.UserRepository)
		mockRateRepo := new(mocks.RateLimitRepository)
		userService := service.NewUserService(mockRepo, mockRateRepo, testJWTKey)

		mockRepo.On("GetUserByID", ctx, userID).Return(newUser(), nil).Once()
		mockRepo.On("UpdateUser", ctx, mock.AnythingOfType("*models.User")).
			Return(&pq.Error{Code: "23505"}).Once()

		// Act
		err := userService.UpdateProfile(ctx, userID, &models.UpdateProfileRequest{Email: strPtr("taken@example.com")})

		// Assert
		assert.Error(t, err)
		appErr, ok := apperrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeDuplicateEntry, appErr.Code)
	})

	t.Run("Failure - Not Found", func(t *testing.T) {
		// Arrange
		mockRepo := new(mocks.UserRepository)
		mockRateRepo := new(mocks.RateLimitRepository)
		userService := service.NewUserService(mockRepo, mockRateRepo, testJWTKey)

		mockRepo.On("GetUserByID", ctx, userID).Return(nil, sql.ErrNoRows).Once()

		// Act
		err := userService.UpdateProfile(ctx, userID, &models.UpdateProfileRequest{Username: strPtr("x")})

		// Assert
		assert.Error(t, err)
		appErr, ok := apperrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeNotFound, appErr.Code)
	})
}
