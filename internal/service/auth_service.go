package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/afbrilian/mincommerce-sub000/internal/auth"
	"github.com/afbrilian/mincommerce-sub000/internal/model"
)

// UserRepositoryInterface defines the interface for user data access.
type UserRepositoryInterface interface {
	CreateIfAbsent(ctx context.Context, email, role string) (*model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// TokenManagerInterface defines the token operations the service needs.
type TokenManagerInterface interface {
	Issue(user *model.User) (string, error)
	Verify(token string) (*auth.Claims, uuid.UUID, error)
}

// AuthService provides login and token verification. Users are created on
// first login; the admin role is granted only to configured emails.
type AuthService struct {
	users       UserRepositoryInterface
	tokens      TokenManagerInterface
	adminEmails map[string]struct{}
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserRepositoryInterface, tokens TokenManagerInterface, adminEmails []string) *AuthService {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(email))] = struct{}{}
	}
	return &AuthService{users: users, tokens: tokens, adminEmails: admins}
}

// Login resolves or creates the user for the email and issues a token.
// Returns ErrAdminMismatch when an admin login is requested for an email
// that is not an admin account.
func (s *AuthService) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	if req == nil || req.Email == "" {
		return nil, ErrInvalidRequest
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	role := model.RoleRegular
	if _, ok := s.adminEmails[email]; ok {
		role = model.RoleAdmin
	}
	if req.UserType == "admin" && role != model.RoleAdmin {
		return nil, ErrAdminMismatch
	}

	user, err := s.users.CreateIfAbsent(ctx, email, role)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	// The stored role wins; it never changes after creation.
	if req.UserType == "admin" && user.Role != model.RoleAdmin {
		return nil, ErrAdminMismatch
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &model.LoginResponse{
		Token:    token,
		UserType: userTypeFor(user.Role),
		Email:    user.Email,
		UserID:   user.ID,
	}, nil
}

// Verify validates a token and returns its identity.
// Returns ErrInvalidToken for malformed or expired tokens.
func (s *AuthService) Verify(token string) (*model.VerifyResponse, error) {
	claims, userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &model.VerifyResponse{
		Valid:    true,
		UserID:   userID,
		Email:    claims.Email,
		UserType: userTypeFor(claims.Role),
	}, nil
}

func userTypeFor(role string) string {
	if role == model.RoleAdmin {
		return "admin"
	}
	return "user"
}
