//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
)

type IAuthService interface {
	Login(email, password string) (auth.Token, error)
	Register(name, email, password string) (auth.Token, error)
	SeedAdmin(name, email, password string) (repositories.Account, error)
	CreateUser(name, email, password string) (repositories.Account, error)
	ListUsers() ([]repositories.Account, error)
	SetSuspended(id string, suspended bool) (repositories.Account, error)
}

var (
	_ IAuthService                    = (*AuthService)(nil)
	_ contract.IdentityVerifier       = (*AuthService)(nil)
	_ contract.ConversationAuthorizer = (*AuthService)(nil)
)

type AuthService struct {
	log                  *slog.Logger
	accountRepository    repositories.IAccountRepository
	tokens               auth.Tokens
	requireIdentifyToken bool
}

func NewAuthService(log *slog.Logger, repo repositories.IAccountRepository, tokens auth.Tokens, requireIdentifyToken bool) *AuthService {
	return &AuthService{
		log:                  log,
		accountRepository:    repo,
		tokens:               tokens,
		requireIdentifyToken: requireIdentifyToken,
	}
}

// Register creates a user account and returns its first session token.
func (s *AuthService) Register(name, email, password string) (auth.Token, error) {
	account, err := s.create(domain.KindUser, name, email, password)
	if err != nil {
		return "", err
	}
	return s.issue(account)
}

// SeedAdmin creates the admin account once. An existing account with the
// same email is returned untouched.
func (s *AuthService) SeedAdmin(name, email, password string) (repositories.Account, error) {
	existing, err := s.accountRepository.GetAccountByEmail(email)
	switch {
	case err == nil:
		s.log.Debug("Admin account already present", "identity_id", existing.ID)
		return existing, nil
	case !stderrors.Is(err, errors.ErrAccountNotFound):
		return repositories.Account{}, err
	}
	account, err := s.create(domain.KindAdmin, name, email, password)
	if err != nil {
		return repositories.Account{}, err
	}
	s.log.Info("Admin account seeded", "identity_id", account.ID)
	return account, nil
}

// CreateUser lets an admin open a user account without issuing a token.
func (s *AuthService) CreateUser(name, email, password string) (repositories.Account, error) {
	account, err := s.create(domain.KindUser, name, email, password)
	if err != nil {
		return repositories.Account{}, err
	}
	s.log.Info("User account created", "identity_id", account.ID)
	return account, nil
}

func (s *AuthService) ListUsers() ([]repositories.Account, error) {
	return s.accountRepository.ListAccounts(domain.KindUser)
}

// SetSuspended suspends or restores a user account. Admin accounts cannot
// be suspended.
func (s *AuthService) SetSuspended(id string, suspended bool) (repositories.Account, error) {
	account, err := s.accountRepository.GetAccount(id)
	if err != nil {
		return repositories.Account{}, err
	}
	if account.Kind != domain.KindUser {
		return repositories.Account{}, fmt.Errorf("%w: only user accounts can be suspended", errors.ErrInvalidRequest)
	}
	if err := s.accountRepository.SetSuspended(id, suspended); err != nil {
		return repositories.Account{}, err
	}
	account.Suspended = suspended
	s.log.Info("Account suspension changed", "identity_id", id, "suspended", suspended)
	return account, nil
}

func (s *AuthService) create(kind domain.Kind, name, email, password string) (repositories.Account, error) {
	// Business rules are checked before any expensive hashing
	if err := auth.ValidateRegister(auth.RegisterRequest{Name: name, Email: email, Password: password}); err != nil {
		return repositories.Account{}, err
	}
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return repositories.Account{}, fmt.Errorf("hashing failed: %w", err)
	}
	return s.accountRepository.CreateAccount(kind, name, email, hashedPassword)
}

func (s *AuthService) Login(email, password string) (auth.Token, error) {
	if err := auth.ValidateLogin(auth.LoginRequest{Email: email, Password: password}); err != nil {
		return "", err
	}
	account, err := s.accountRepository.GetAccountByEmail(email)
	if err != nil {
		// Same error as a wrong password to prevent user enumeration
		return "", errors.ErrInvalidCredentials
	}
	match, err := auth.ComparePassword(password, account.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}
	if account.Suspended {
		return "", errors.ErrAccountSuspended
	}
	return s.issue(account)
}

func (s *AuthService) issue(account repositories.Account) (auth.Token, error) {
	token, err := s.tokens.Generate(account.Identity())
	if err != nil {
		return "", err
	}
	return auth.Token(token), nil
}

// VerifyIdentify checks the token sent with a websocket identify event.
// Without the token requirement the claimed identity is trusted.
func (s *AuthService) VerifyIdentify(token string, identity domain.Identity) error {
	if !s.requireIdentifyToken {
		return nil
	}
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return err
	}
	if claims.Identity() != identity {
		return errors.ErrIdentityToken
	}
	return nil
}

// IsAuthorizedForConversation allows an identity into a conversation it is
// part of, unless its account is suspended.
func (s *AuthService) IsAuthorizedForConversation(_ context.Context, identity domain.Identity, conversationID domain.ConversationID) bool {
	if identity.IsZero() || !conversationID.Includes(identity.ID) {
		return false
	}
	account, err := s.accountRepository.GetAccount(identity.ID)
	if err != nil {
		s.log.Debug("Conversation authorization lookup failed",
			"identity_id", identity.ID,
			"conversation_id", conversationID,
			"error", err)
		return false
	}
	return !account.Suspended
}
