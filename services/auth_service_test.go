package services

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/repositories"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var testTokens = auth.NewTokens("test-secret", 24*time.Hour)

func newAuthService(t *testing.T, requireToken bool) (*AuthService, *mocks.MockIAccountRepository) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockIAccountRepository(ctrl)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return NewAuthService(log, repo, testTokens, requireToken), repo
}

func TestAuthService_Register(t *testing.T) {
	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		svc, repo := newAuthService(t, false)
		email := "test@example.com"

		// Expect CreateAccount to be called with a hashed password, never the plain one
		repo.EXPECT().
			CreateAccount(domain.KindUser, "Test", email, gomock.Not("ComplexPass123!")).
			Return(repositories.Account{ID: "user-uuid", Kind: domain.KindUser}, nil).
			Times(1)

		token, err := svc.Register("Test", email, "ComplexPass123!")

		req.NoError(err)
		claims, err := testTokens.Validate(token.String())
		req.NoError(err)
		req.Equal(domain.Identity{ID: "user-uuid", Kind: domain.KindUser}, claims.Identity())
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)
		svc, repo := newAuthService(t, false)

		// Repository should never be called
		repo.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		token, err := svc.Register("Test", "test@example.com", "simplepassword")

		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(token)
	})

	t.Run("should report a malformed email as an invalid request", func(t *testing.T) {
		req := require.New(t)
		svc, repo := newAuthService(t, false)
		repo.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Register("Test", "not-an-email", "ComplexPass123!")

		req.ErrorIs(err, errors.ErrInvalidRequest)
		req.NotErrorIs(err, errors.ErrInvalidPassword)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)
		svc, repo := newAuthService(t, false)

		repo.EXPECT().
			CreateAccount(domain.KindUser, "Test", "duplicate@example.com", gomock.Any()).
			Return(repositories.Account{}, errors.ErrUserAlreadyExists)

		_, err := svc.Register("Test", "duplicate@example.com", "ComplexPass123!")

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	hash, err := auth.HashPassword("ComplexPass123!")
	require.NoError(t, err)
	account := repositories.Account{ID: "admin-uuid", Kind: domain.KindAdmin, Email: "admin@example.com", PasswordHash: hash}

	t.Run("should issue a token for valid credentials", func(t *testing.T) {
		req := require.New(t)
		svc, repo := newAuthService(t, false)
		repo.EXPECT().GetAccountByEmail("admin@example.com").Return(account, nil)

		token, err := svc.Login("admin@example.com", "ComplexPass123!")

		req.NoError(err)
		claims, err := testTokens.Validate(token.String())
		req.NoError(err)
		req.Equal(domain.KindAdmin, claims.Kind)
	})

	t.Run("should not tell unknown email from wrong password", func(t *testing.T) {
		req := require.New(t)
		svc, repo := newAuthService(t, false)
		repo.EXPECT().GetAccountByEmail("ghost@example.com").Return(repositories.Account{}, errors.ErrAccountNotFound)
		repo.EXPECT().GetAccountByEmail("admin@example.com").Return(account, nil)

		_, errUnknown := svc.Login("ghost@example.com", "ComplexPass123!")
		_, errWrong := svc.Login("admin@example.com", "WrongPass123!")

		req.ErrorIs(errUnknown, errors.ErrInvalidCredentials)
		req.ErrorIs(errWrong, errors.ErrInvalidCredentials)
	})

	t.Run("should refuse suspended accounts", func(t *testing.T) {
		req := require.New(t)
		svc, repo := newAuthService(t, false)
		suspended := account
		suspended.Suspended = true
		repo.EXPECT().GetAccountByEmail("admin@example.com").Return(suspended, nil)

		_, err := svc.Login("admin@example.com", "ComplexPass123!")

		req.ErrorIs(err, errors.ErrAccountSuspended)
	})
}

func TestAuthService_SeedAdmin(t *testing.T) {
	t.Run("should create the admin once", func(t *testing.T) {
		req := require.New(t)
		svc, repo := newAuthService(t, false)
		repo.EXPECT().GetAccountByEmail("admin@example.com").Return(repositories.Account{}, errors.ErrAccountNotFound)
		repo.EXPECT().CreateAccount(domain.KindAdmin, "Admin", "admin@example.com", gomock.Any()).
			Return(repositories.Account{ID: "admin-uuid", Kind: domain.KindAdmin}, nil)

		account, err := svc.SeedAdmin("Admin", "admin@example.com", "ComplexPass123!")

		req.NoError(err)
		req.Equal("admin-uuid", account.ID)
	})

	t.Run("should keep an existing admin", func(t *testing.T) {
		req := require.New(t)
		svc, repo := newAuthService(t, false)
		existing := repositories.Account{ID: "admin-uuid", Kind: domain.KindAdmin}
		repo.EXPECT().GetAccountByEmail("admin@example.com").Return(existing, nil)
		repo.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		account, err := svc.SeedAdmin("Admin", "admin@example.com", "ComplexPass123!")

		req.NoError(err)
		req.Equal(existing, account)
	})
}

func TestAuthService_VerifyIdentify(t *testing.T) {
	identity := domain.Identity{ID: "u1", Kind: domain.KindUser}
	token, err := testTokens.Generate(identity)
	require.NoError(t, err)

	t.Run("should trust the payload when tokens are not required", func(t *testing.T) {
		svc, _ := newAuthService(t, false)
		require.NoError(t, svc.VerifyIdentify("", identity))
	})

	t.Run("should check the token against the claimed identity", func(t *testing.T) {
		req := require.New(t)
		svc, _ := newAuthService(t, true)

		req.NoError(svc.VerifyIdentify(token, identity))
		req.ErrorIs(svc.VerifyIdentify(token, domain.Identity{ID: "u2", Kind: domain.KindUser}), errors.ErrIdentityToken)
		req.ErrorIs(svc.VerifyIdentify(token, domain.Identity{ID: "u1", Kind: domain.KindAdmin}), errors.ErrIdentityToken)
		req.ErrorIs(svc.VerifyIdentify("", identity), errors.ErrInvalidToken)
	})
}

func TestAuthService_IsAuthorizedForConversation(t *testing.T) {
	ctx := context.Background()
	alice := domain.Identity{ID: "alice", Kind: domain.KindUser}
	conversationID := domain.NewConversationID("alice", "bob")

	t.Run("should allow a participant", func(t *testing.T) {
		svc, repo := newAuthService(t, false)
		repo.EXPECT().GetAccount("alice").Return(repositories.Account{ID: "alice"}, nil)

		require.True(t, svc.IsAuthorizedForConversation(ctx, alice, conversationID))
	})

	t.Run("should refuse an outsider without a lookup", func(t *testing.T) {
		svc, repo := newAuthService(t, false)
		repo.EXPECT().GetAccount(gomock.Any()).Times(0)

		require.False(t, svc.IsAuthorizedForConversation(ctx, alice, domain.NewConversationID("bob", "clara")))
		require.False(t, svc.IsAuthorizedForConversation(ctx, domain.Identity{}, conversationID))
	})

	t.Run("should refuse a suspended participant", func(t *testing.T) {
		svc, repo := newAuthService(t, false)
		repo.EXPECT().GetAccount("alice").Return(repositories.Account{ID: "alice", Suspended: true}, nil)

		require.False(t, svc.IsAuthorizedForConversation(ctx, alice, conversationID))
	})

	t.Run("should refuse an unknown account", func(t *testing.T) {
		svc, repo := newAuthService(t, false)
		repo.EXPECT().GetAccount("alice").Return(repositories.Account{}, errors.ErrAccountNotFound)

		require.False(t, svc.IsAuthorizedForConversation(ctx, alice, conversationID))
	})
}

func TestAuthService_CreateUser(t *testing.T) {
	req := require.New(t)
	svc, repo := newAuthService(t, false)
	repo.EXPECT().
		CreateAccount(domain.KindUser, "Bob", "bob@example.com", gomock.Not("ComplexPass123!")).
		Return(repositories.Account{ID: "bob", Kind: domain.KindUser, Name: "Bob"}, nil)

	account, err := svc.CreateUser("Bob", "bob@example.com", "ComplexPass123!")

	req.NoError(err)
	req.Equal("bob", account.ID)
}

func TestAuthService_SetSuspended(t *testing.T) {
	t.Run("should suspend a user and return it refreshed", func(t *testing.T) {
		req := require.New(t)
		svc, repo := newAuthService(t, false)
		repo.EXPECT().GetAccount("bob").Return(repositories.Account{ID: "bob", Kind: domain.KindUser}, nil)
		repo.EXPECT().SetSuspended("bob", true).Return(nil)

		account, err := svc.SetSuspended("bob", true)

		req.NoError(err)
		req.True(account.Suspended)
	})

	t.Run("should never suspend an admin", func(t *testing.T) {
		req := require.New(t)
		svc, repo := newAuthService(t, false)
		repo.EXPECT().GetAccount("support").Return(repositories.Account{ID: "support", Kind: domain.KindAdmin}, nil)
		repo.EXPECT().SetSuspended(gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.SetSuspended("support", true)

		req.ErrorIs(err, errors.ErrInvalidRequest)
	})

	t.Run("should report an unknown account", func(t *testing.T) {
		req := require.New(t)
		svc, repo := newAuthService(t, false)
		repo.EXPECT().GetAccount("ghost").Return(repositories.Account{}, errors.ErrAccountNotFound)

		_, err := svc.SetSuspended("ghost", true)

		req.ErrorIs(err, errors.ErrAccountNotFound)
	})
}
