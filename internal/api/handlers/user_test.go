package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ecofinds/marketplace/internal/api/handlers"
	apperrors "github.com/ecofinds/marketplace/internal/errors"
	"github.com/ecofinds/marketplace/internal/models"
	"github.com/ecofinds/marketplace/internal/services/mocks"
	"github.com/ecofinds/marketplace/internal/testutils"
	"github.com/ecofinds/marketplace/internal/utils/response"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func setupUserTest() (*mocks.UserService, *handlers.UserHandler) {
	mockUserService := new(mocks.UserService)
	userHandler := handlers.NewUserHandler(mockUserService)

	return mockUserService, userHandler
}

func TestUserHandler_Register(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		mockUserService, userHandler := setupUserTest()
		body, _ := json.Marshal(models.RegisterRequest{
			Username: "ecouser",
			Email:    "eco@example.com",
			Password: "secret123",
		})
		req := testutils.CreateTestRequestWithoutContext("POST", "/api/v1/auth/register", bytes.NewBuffer(body), nil)
		recorder := httptest.NewRecorder()

		created := &models.User{ID: uuid.New(), Username: "ecouser", Email: "eco@example.com"}
		mockUserService.On("Register", mock.Anything, mock.AnythingOfType("*models.RegisterRequest")).
			Return(created, nil).Once()

		// Act
		userHandler.Register()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusCreated, recorder.Code)

		var resp response.APIResponse
		err := json.Unmarshal(recorder.Body.Bytes(), &resp)
		assert.NoError(t, err)
		assert.True(t, resp.Success)
		// password never serializes
		assert.NotContains(t, recorder.Body.String(), "secret123")
		mockUserService.AssertExpectations(t)
	})

	t.Run("Failure - Invalid Email", func(t *testing.T) {
		// Arrange
		mockUserService, userHandler := setupUserTest()
		req := testutils.CreateTestRequestWithoutContext("POST", "/api/v1/auth/register",
			bytes.NewBufferString(`{"username": "ecouser", "email": "not-an-email", "password": "secret123"}`), nil)
		recorder := httptest.NewRecorder()

		// Act
		userHandler.Register()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, recorder.Code)

		var resp response.APIResponse
		err := json.Unmarshal(recorder.Body.Bytes(), &resp)
		assert.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Equal(t, apperrors.ErrCodeValidation, resp.Error.Code)
		assert.Contains(t, resp.Error.Details, "Field Email must be a valid email address")

		mockUserService.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
	})

	t.Run("Failure - Email Taken", func(t *testing.T) {
		// Arrange
		mockUserService, userHandler := setupUserTest()
		body, _ := json.Marshal(models.RegisterRequest{
			Username: "ecouser",
			Email:    "eco@example.com",
			Password: "secret123",
		})
		req := testutils.CreateTestRequestWithoutContext("POST", "/api/v1/auth/register", bytes.NewBuffer(body), nil)
		recorder := httptest.NewRecorder()

		mockUserService.On("Register", mock.Anything, mock.Anything).
			Return(nil, apperrors.DuplicateEntryError("Email already registered")).Once()

		// Act
		userHandler.Register()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusConflict, recorder.Code)
	})
}

func TestUserHandler_Login(t *testing.T) {
	body := func() *bytes.Buffer {
		b, _ := json.Marshal(models.LoginRequest{Email: "eco@example.com", Password: "secret123"})
		return bytes.NewBuffer(b)
	}

	t.Run("Success", func(t *testing.T) {
		// Arrange
		mockUserService, userHandler := setupUserTest()
		req := testutils.CreateTestRequestWithoutContext("POST", "/api/v1/auth/login", body(), nil)
		recorder := httptest.NewRecorder()

		mockUserService.On("Login", mock.Anything, mock.AnythingOfType("*models.LoginRequest")).
			Return(&models.LoginResponse{Success: true, Token: "a.b.c", ExpiresIn: 86400}, nil).Once()

		// Act
		userHandler.Login()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusOK, recorder.Code)

		var resp models.LoginResponse
		err := json.Unmarshal(recorder.Body.Bytes(), &resp)
		assert.NoError(t, err)
		assert.True(t, resp.Success)
		assert.Equal(t, "a.b.c", resp.Token)
		mockUserService.AssertExpectations(t)
	})

	t.Run("Failure - Invalid Credentials", func(t *testing.T) {
		// Arrange
		mockUserService, userHandler := setupUserTest()
		req := testutils.CreateTestRequestWithoutContext("POST", "/api/v1/auth/login", body(), nil)
		recorder := httptest.NewRecorder()

		mockUserService.On("Login", mock.Anything, mock.Anything).
			Return(&models.LoginResponse{Success: false, Message: "Invalid email or password", RemainingTries: 2}, nil).Once()

		// Act
		userHandler.Login()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)

		var resp models.LoginResponse
		err := json.Unmarshal(recorder.Body.Bytes(), &resp)
		assert.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Equal(t, 2, resp.RemainingTries)
	})

	t.Run("Failure - Rate Limited", func(t *testing.T) {
		// Arrange
		mockUserService, userHandler := setupUserTest()
		req := testutils.CreateTestRequestWithoutContext("POST", "/api/v1/auth/login", body(), nil)
		recorder := httptest.NewRecorder()

		mockUserService.On("Login", mock.Anything, mock.Anything).
			Return(&models.LoginResponse{Success: false, RetryAfter: 30}, nil).Once()

		// Act
		userHandler.Login()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusTooManyRequests, recorder.Code)

		var resp models.LoginResponse
		err := json.Unmarshal(recorder.Body.Bytes(), &resp)
		assert.NoError(t, err)
		assert.Equal(t, 30, resp.RetryAfter)
	})

	t.Run("Failure - Missing Password", func(t *testing.T) {
		// Arrange
		mockUserService, userHandler := setupUserTest()
		req := testutils.CreateTestRequestWithoutContext("POST", "/api/v1/auth/login",
			bytes.NewBufferString(`{"email": "eco@example.com"}`), nil)
		recorder := httptest.NewRecorder()

		// Act
		userHandler.Login()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		mockUserService.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
	})
}

func TestUserHandler_Profile(t *testing.T) {
	userID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		mockUserService, userHandler := setupUserTest()
		req := testutils.CreateTestRequestWithContext("GET", "/api/v1/users/me", nil, userID, nil)
		recorder := httptest.NewRecorder()

		user := &models.User{ID: userID, Username: "ecouser", Email: "eco@example.com"}
		mockUserService.On("GetProfile", mock.Anything, userID).Return(user, nil).Once()

		// Act
		userHandler.Profile()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "ecouser")
		mockUserService.AssertExpectations(t)
	})

	t.Run("Failure - Unauthorized", func(t *testing.T) {
		// Arrange
		mockUserService, userHandler := setupUserTest()
		req := testutils.CreateTestRequestWithoutContext("GET", "/api/v1/users/me", nil, nil)
		recorder := httptest.NewRecorder()

		// Act
		userHandler.Profile()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		mockUserService.AssertNotCalled(t, "GetProfile", mock.Anything, mock.Anything)
	})
}

func TestUserHandler_UpdateProfile(t *testing.T) {
	userID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		mockUserService, userHandler := setupUserTest()
		req := testutils.CreateTestRequestWithContext("PUT", "/api/v1/users/me",
			bytes.NewBufferString(`{"username": "renamed"}`), userID, nil)
		recorder := httptest.NewRecorder()

		mockUserService.On("UpdateProfile", mock.Anything, userID, mock.AnythingOfType("*models.UpdateProfileRequest")).
			Return(nil).Once()

		// Act
		userHandler.UpdateProfile()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "Profile updated successfully")
		mockUserService.AssertExpectations(t)
	})

	t.Run("Failure - Username Too Short", func(t *testing.T) {
		// Arrange
		mockUserService, userHandler := setupUserTest()
		req := testutils.CreateTestRequestWithContext("PUT", "/api/v1/users/me",
			bytes.NewBufferString(`{"username": "ab"}`), userID, nil)
		recorder := httptest.NewRecorder()

		// Act
		userHandler.UpdateProfile()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		mockUserService.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Failure - Email Taken", func(t *testing.T) {
		// Arrange
		mockUserService, userHandler := setupUserTest()
		req := testutils.CreateTestRequestWithContext("PUT", "/api/v1/users/me",
			bytes.NewBufferString(`{"email": "taken@example.com"}`), userID, nil)
		recorder := httptest.NewRecorder()

		mockUserService.On("UpdateProfile", mock.Anything, userID, mock.Anything).
			Return(apperrors.DuplicateEntryError("Username or email already taken")).Once()

		// Act
		userHandler.UpdateProfile()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusConflict, recorder.Code)
	})
}
