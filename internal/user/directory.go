// Package user provisions and maintains user profile documents.
package user

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/batterydied/chatter/internal/apperr"
	"github.com/batterydied/chatter/internal/store"
)

// DefaultTheme is applied to new users that do not pick one.
const DefaultTheme = "light"

// Directory manages user documents.
type Directory struct {
	db  *store.DB
	log *zap.Logger
}

// New creates a user directory backed by db.
func New(db *store.DB, log *zap.Logger) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{db: db, log: log}
}

// Profile carries the fields a user may set. Nil fields are left unchanged.
type Profile struct {
	Username    *string
	Email       *string
	PfpFilePath *string
	Theme       *string
}

// Create provisions a new user. Usernames are unique.
func (d *Directory) Create(ctx context.Context, username, email string) (*store.User, error) {
	const op = "create user"
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperr.Validation(op, "username is required")
	}

	var u *store.User
	err := d.db.Write(ctx, op, func(tx *store.Tx) error {
		u = &store.User{
			ID:        uuid.NewString(),
			Username:  username,
			Email:     strings.TrimSpace(email),
			Theme:     DefaultTheme,
			CreatedAt: tx.Now(),
		}
		return tx.InsertUser(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	d.log.Info("user created", zap.String("user", u.ID), zap.String("username", u.Username))
	return u, nil
}

// Get returns a user by id.
func (d *Directory) Get(ctx context.Context, id string) (*store.User, error) {
	u, err := d.db.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("get user", "user %s", id)
	}
	return u, nil
}

// UpdateProfile applies p to the user.
func (d *Directory) UpdateProfile(ctx context.Context, id string, p Profile) (*store.User, error) {
	const op = "update profile"
	if p.Username != nil && strings.TrimSpace(*p.Username) == "" {
		return nil, apperr.Validation(op, "username cannot be empty")
	}
	return d.modify(ctx, op, id, func(u *store.User) {
		if p.Username != nil {
			u.Username = strings.TrimSpace(*p.Username)
		}
		if p.Email != nil {
			u.Email = strings.TrimSpace(*p.Email)
		}
		if p.PfpFilePath != nil {
			u.PfpFilePath = *p.PfpFilePath
		}
		if p.Theme != nil {
			u.Theme = *p.Theme
		}
	})
}

// MarkRequestsSeen moves the user's request badge watermark to now. Requests
// created before the watermark no longer count as unread.
func (d *Directory) MarkRequestsSeen(ctx context.Context, id string) (*store.User, error) {
	return d.modify(ctx, "mark requests seen", id, func(u *store.User) {
		u.LastSeenRequest = d.db.Now()
	})
}

func (d *Directory) modify(ctx context.Context, op, id string, fn func(u *store.User)) (*store.User, error) {
	var u *store.User
	err := d.db.Write(ctx, op, func(tx *store.Tx) error {
		var err error
		u, err = tx.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.NotFound(op, "user %s", id)
		}
		fn(u)
		return tx.UpdateUser(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Delete removes a user together with every relation edge touching them and
// all of their presence sessions.
func (d *Directory) Delete(ctx context.Context, id string) error {
	const op = "delete user"
	err := d.db.Write(ctx, op, func(tx *store.Tx) error {
		u, err := tx.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.NotFound(op, "user %s", id)
		}
		if err := tx.DeleteRelationsOf(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteSessionsOf(ctx, id); err != nil {
			return err
		}
		return tx.DeleteUser(ctx, u)
	})
	if err != nil {
		return err
	}
	d.log.Info("user deleted", zap.String("user", id))
	return nil
}
