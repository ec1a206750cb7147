//go:generate go run go.uber.org/mock/mockgen -source=account.go -destination=../mocks/mock_account_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IAccountRepository interface {
	CreateAccount(kind domain.Kind, name, email, hashedPassword string) (Account, error)
	GetAccount(id string) (Account, error)
	GetAccountByEmail(email string) (Account, error)
	SetSuspended(id string, suspended bool) error
	ListAccounts(kind domain.Kind) ([]Account, error)
}

type AccountRepository struct {
	db *badger.DB
}

func NewAccountRepository(db *badger.DB) AccountRepository {
	return AccountRepository{db: db}
}

// Account is a chat participant as stored on disk. Its ID and Kind form the
// Identity used by the realtime layer.
type Account struct {
	ID           string      `json:"id"`
	Kind         domain.Kind `json:"kind"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"passwordHash"`
	Suspended    bool        `json:"suspended"`
	CreatedAt    time.Time   `json:"createdAt"`
}

func (a Account) Identity() domain.Identity {
	return domain.Identity{ID: a.ID, Kind: a.Kind}
}

func accountKey(id string) []byte {
	return []byte("account:" + id)
}

// The email index stores the account id.
func emailKey(email string) []byte {
	return []byte("account_email:" + strings.ToLower(email))
}

// CreateAccount persists a new account and its email index in one transaction.
func (r AccountRepository) CreateAccount(kind domain.Kind, name, email, hashedPassword string) (Account, error) {
	if !kind.Valid() {
		return Account{}, errors.ErrInvalidKind
	}
	account := Account{
		ID:           uuid.NewString(),
		Kind:         kind,
		Name:         name,
		Email:        email,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(account)
	if err != nil {
		return Account{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(emailKey(email), []byte(account.ID)); err != nil {
			return err
		}
		return txn.Set(accountKey(account.ID), data)
	})
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

func (r AccountRepository) GetAccount(id string) (Account, error) {
	var account Account
	err := r.db.View(func(txn *badger.Txn) error {
		return readAccount(txn, id, &account)
	})
	return account, err
}

func (r AccountRepository) GetAccountByEmail(email string) (Account, error) {
	var account Account
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return notFound(err)
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return readAccount(txn, string(id), &account)
	})
	return account, err
}

// SetSuspended flips the suspension flag. Suspended users cannot join
// conversations nor send messages.
func (r AccountRepository) SetSuspended(id string, suspended bool) error {
	return r.db.Update(func(txn *badger.Txn) error {
		var account Account
		if err := readAccount(txn, id, &account); err != nil {
			return err
		}
		account.Suspended = suspended
		data, err := json.Marshal(account)
		if err != nil {
			return err
		}
		return txn.Set(accountKey(id), data)
	})
}

// ListAccounts returns the accounts of the given kind, ordered by id.
func (r AccountRepository) ListAccounts(kind domain.Kind) ([]Account, error) {
	accounts := []Account{}
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := accountKey("")
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var account Account
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &account)
			}); err != nil {
				return err
			}
			if account.Kind == kind {
				accounts = append(accounts, account)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func readAccount(txn *badger.Txn, id string, account *Account) error {
	item, err := txn.Get(accountKey(id))
	if err != nil {
		return notFound(err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, account)
	})
}

func notFound(err error) error {
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrAccountNotFound
	}
	return err
}
