package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/iliyamo/notes-marketplace/internal/model"
	"github.com/iliyamo/notes-marketplace/internal/repository"
	"github.com/iliyamo/notes-marketplace/internal/utils"
)

// UserService handles accounts, sessions and profiles.
type UserService struct{ d Deps }

func NewUserService(d Deps) *UserService { return &UserService{d: d.withDefaults()} }

type RegisterInput struct {
	Email      string
	Password   string
	Name       string
	University string
}

// Session is the result of a successful register, login or refresh.
type Session struct {
	User    model.User
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// Register creates the account and returns a fresh session.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.University = strings.TrimSpace(in.University)
	if in.Email == "" || in.Password == "" || in.Name == "" {
		return Session{}, validation("email, password and name are required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return Session{}, validation("invalid email")
	}
	if err := utils.CheckPassword(in.Password); err != nil {
		return Session{}, validation("password must be at least %d characters", utils.MinPasswordLength)
	}
	hash, err := utils.HashPassword(in.Password, s.d.Auth.BcryptCost)
	if err != nil {
		return Session{}, err
	}
	u := model.User{Email: in.Email, PasswordHash: hash, Name: in.Name, University: in.University}
	if err := s.d.Repos.Users(s.d.Tx.Conn()).Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return Session{}, ErrEmailTaken
		}
		return Session{}, err
	}
	s.d.Log.Info(ctx, "user registered", "user_id", u.ID)
	return s.issue(ctx, u)
}

// Login verifies credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, validation("email/password required")
	}
	u, err := s.d.Repos.Users(s.d.Tx.Conn()).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, invalidCredentials
		}
		return Session{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return Session{}, invalidCredentials
	}
	return s.issue(ctx, u)
}

var (
	invalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	invalidRefresh     = fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
)

// Refresh validates by hash, revokes the old token and issues a new pair.
func (s *UserService) Refresh(ctx context.Context, raw string) (Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Session{}, validation("refresh_token required")
	}
	hash := utils.HashRefreshRaw(raw)
	tokens := s.d.Repos.Tokens(s.d.Tx.Conn())
	userID, err := tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, invalidRefresh
		}
		return Session{}, err
	}
	if err := tokens.RevokeByHash(ctx, hash); err != nil {
		return Session{}, err
	}
	u, err := s.d.Repos.Users(s.d.Tx.Conn()).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, invalidRefresh
		}
		return Session{}, err
	}
	return s.issue(ctx, u)
}

// Logout revokes one refresh token when raw is given, otherwise every
// refresh token of userID.
func (s *UserService) Logout(ctx context.Context, userID uint64, raw string) error {
	tokens := s.d.Repos.Tokens(s.d.Tx.Conn())
	if raw = strings.TrimSpace(raw); raw != "" {
		return tokens.RevokeByHash(ctx, utils.HashRefreshRaw(raw))
	}
	if userID == 0 {
		return validation("refresh_token required")
	}
	return tokens.RevokeAllForUser(ctx, userID)
}

func (s *UserService) issue(ctx context.Context, u model.User) (Session, error) {
	access, err := utils.NewAccessToken(s.d.Auth.JWTSecret, u.ID, s.d.Auth.AccessTTLMin)
	if err != nil {
		return Session{}, err
	}
	refresh, err := utils.NewRefreshToken(s.d.Auth.RefreshTTLDays)
	if err != nil {
		return Session{}, err
	}
	if err := s.d.Repos.Tokens(s.d.Tx.Conn()).StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, err
	}
	return Session{User: u, Access: access, Refresh: refresh}, nil
}

// Profile is the account view with ledger-derived money fields.
type Profile struct {
	User           model.User
	Balance        model.Balance
	NotesUploaded  int64
	NotesPurchased int64
}

func (s *UserService) Profile(ctx context.Context, userID uint64) (Profile, error) {
	db := s.d.Tx.Conn()
	u, err := s.d.Repos.Users(db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	bal, err := s.d.Repos.Ledger(db).Balance(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	uploaded, err := s.d.Repos.Notes(db).CountByOwner(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	purchased, err := s.d.Repos.Purchases(db).CountByBuyer(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{User: u, Balance: bal, NotesUploaded: uploaded, NotesPurchased: purchased}, nil
}

// ProfileUpdate carries optional changes. Nil fields are left alone. A
// password change needs CurrentPassword plus matching New/Confirm.
type ProfileUpdate struct {
	Name            *string
	University      *string
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uint64, in ProfileUpdate) (model.User, error) {
	users := s.d.Repos.Users(s.d.Tx.Conn())
	u, err := users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}

	name, university := u.Name, u.University
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
		if name == "" {
			return model.User{}, validation("name must not be empty")
		}
	}
	if in.University != nil {
		university = strings.TrimSpace(*in.University)
	}

	var newHash string
	if in.NewPassword != "" || in.ConfirmPassword != "" || in.CurrentPassword != "" {
		if in.CurrentPassword == "" {
			return model.User{}, validation("current_password required")
		}
		if in.NewPassword != in.ConfirmPassword {
			return model.User{}, validation("new password and confirmation do not match")
		}
		if err := utils.CheckPassword(in.NewPassword); err != nil {
			return model.User{}, validation("password must be at least %d characters", utils.MinPasswordLength)
		}
		if !utils.VerifyPassword(u.PasswordHash, in.CurrentPassword) {
			return model.User{}, validation("current password is incorrect")
		}
		if newHash, err = utils.HashPassword(in.NewPassword, s.d.Auth.BcryptCost); err != nil {
			return model.User{}, err
		}
	}

	if name != u.Name || university != u.University {
		if err := users.UpdateProfile(ctx, userID, name, university); err != nil {
			return model.User{}, err
		}
		u.Name, u.University = name, university
	}
	if newHash != "" {
		if err := users.UpdatePassword(ctx, userID, newHash); err != nil {
			return model.User{}, err
		}
		u.PasswordHash = newHash
		s.d.Log.Info(ctx, "password changed", "user_id", userID)
	}
	return u, nil
}
