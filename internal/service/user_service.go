package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mtodo/internal/model"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
	"github.com/xxxsen/mtodo/internal/pkg/jwt"
	"github.com/xxxsen/mtodo/internal/pkg/password"
)

const (
	// bcrypt refuses input longer than this many bytes.
	maxPasswordBytes = 72
	// passwordRule counts the minimum in characters and the maximum in bytes.
	passwordRule = "min=6,bcryptmax"
)

type credentialInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"min=6,bcryptmax"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("bcryptmax", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})
	return v
}

// UserService is the user directory: it owns user records, mints and revokes
// tokens and resolves tokens or credentials back to users.
type UserService struct {
	users    UserStore
	todos    TodoPurger
	hasher   *password.Hasher
	codec    *jwt.Codec
	validate *validator.Validate
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(users UserStore, todos TodoPurger, hasher *password.Hasher, codec *jwt.Codec) *UserService {
	return &UserService{
		users:    users,
		todos:    todos,
		hasher:   hasher,
		codec:    codec,
		validate: newValidator(),
		now:      time.Now,
	}
}

// CreateUser validates and persists a new user. The password is hashed here,
// once, before the first write.
func (s *UserService) CreateUser(ctx context.Context, email, plainPassword string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if err := s.validate.Struct(credentialInput{Email: email, Password: plainPassword}); err != nil {
		return nil, fmt.Errorf("%w: %s", appErr.ErrInvalid, err.Error())
	}
	hash, err := s.hasher.Hash(plainPassword)
	if err != nil {
		return nil, err
	}
	now := s.now().Unix()
	user := &model.User{
		ID:           newID(),
		Email:        email,
		PasswordHash: hash,
		Tokens:       []model.Token{},
		Ctime:        now,
		Mtime:        now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GenerateAuthToken mints an "auth" token for user and appends it to the
// stored token list. Existing tokens stay valid.
func (s *UserService) GenerateAuthToken(ctx context.Context, user *model.User) (string, error) {
	token, err := s.codec.Issue(user.ID, jwt.AccessAuth)
	if err != nil {
		return "", err
	}
	entry := model.Token{Access: jwt.AccessAuth, Token: token}
	if err := s.users.AppendToken(ctx, user.ID, entry); err != nil {
		return "", err
	}
	user.Tokens = append(user.Tokens, entry)
	return token, nil
}

// FindByToken resolves a token to its user. Storage is consulted only for
// tokens whose signature verifies, and the user must still hold the token.
func (s *UserService) FindByToken(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		logutil.GetLogger(ctx).Debug("token rejected", zap.Error(err))
		return nil, appErr.ErrUnauthorized
	}
	if claims.Access != jwt.AccessAuth {
		return nil, appErr.ErrUnauthorized
	}
	user, err := s.users.GetByToken(ctx, claims.UserID, jwt.AccessAuth, token)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.ErrUnauthorized
		}
		return nil, err
	}
	return user, nil
}

// FindByCredentials looks the user up by email and checks the password against
// the stored hash. Unknown email and wrong password are both ErrUnauthorized.
func (s *UserService) FindByCredentials(ctx context.Context, email, plainPassword string) (*model.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if appErr.IsNotFound(err) {
			s.hasher.Verify(plainPassword, s.fallbackHash())
			return nil, appErr.ErrUnauthorized
		}
		return nil, err
	}
	if !s.hasher.Verify(plainPassword, user.PasswordHash) {
		return nil, appErr.ErrUnauthorized
	}
	return user, nil
}

// RemoveToken revokes token for user. The token's signature keeps verifying
// but FindByToken no longer resolves it.
func (s *UserService) RemoveToken(ctx context.Context, user *model.User, token string) (*model.User, error) {
	if err := s.users.RemoveToken(ctx, user.ID, token); err != nil {
		return nil, err
	}
	kept := make([]model.Token, 0, len(user.Tokens))
	for _, t := range user.Tokens {
		if t.Token != token {
			kept = append(kept, t)
		}
	}
	user.Tokens = kept
	return user, nil
}

func (s *UserService) Signup(ctx context.Context, email, plainPassword string) (*model.User, string, error) {
	user, err := s.CreateUser(ctx, email, plainPassword)
	if err != nil {
		return nil, "", err
	}
	token, err := s.GenerateAuthToken(ctx, user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *UserService) Login(ctx context.Context, email, plainPassword string) (*model.User, string, error) {
	user, err := s.FindByCredentials(ctx, email, plainPassword)
	if err != nil {
		return nil, "", err
	}
	token, err := s.GenerateAuthToken(ctx, user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

type UserUpdateInput struct {
	Email    *string
	Password *string
}

// UpdateUser changes email and/or password. The password is hashed only when
// it is part of the update; the stored hash is otherwise left untouched.
func (s *UserService) UpdateUser(ctx context.Context, user *model.User, input UserUpdateInput) (*model.User, error) {
	patch := model.UserPatch{Mtime: s.now().Unix()}
	if input.Email != nil {
		email := strings.TrimSpace(*input.Email)
		if err := s.validate.Var(email, "required,email"); err != nil {
			return nil, fmt.Errorf("%w: %s", appErr.ErrInvalid, err.Error())
		}
		patch.Email = &email
	}
	if input.Password != nil {
		if err := s.validate.Var(*input.Password, passwordRule); err != nil {
			return nil, fmt.Errorf("%w: %s", appErr.ErrInvalid, err.Error())
		}
		hash, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return nil, err
		}
		patch.PasswordHash = &hash
	}
	if patch.Email == nil && patch.PasswordHash == nil {
		return user, nil
	}
	if err := s.users.Update(ctx, user.ID, patch); err != nil {
		return nil, err
	}
	if patch.Email != nil {
		user.Email = *patch.Email
	}
	if patch.PasswordHash != nil {
		user.PasswordHash = *patch.PasswordHash
	}
	user.Mtime = patch.Mtime
	return user, nil
}

// DeleteUser removes the account and every todo it owns.
func (s *UserService) DeleteUser(ctx context.Context, user *model.User) error {
	if s.todos != nil {
		removed, err := s.todos.DeleteAll(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("delete todos: %w", err)
		}
		logutil.GetLogger(ctx).Info("user todos removed", zap.String("user_id", user.ID), zap.Int64("count", removed))
	}
	if err := s.users.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return appErr.ErrUnauthorized
		}
		return err
	}
	return nil
}

// fallbackHash is compared against when the email is unknown so that a miss
// costs as much as a wrong password.
func (s *UserService) fallbackHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(newID())
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}
