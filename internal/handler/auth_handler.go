package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"meeting-scheduler-api/internal/apperr"
	"meeting-scheduler-api/internal/auth"
	"meeting-scheduler-api/internal/model"
	"meeting-scheduler-api/internal/store"
)

type RegisterInput struct {
	Name     string `json:"name" validate:"min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"min=6,max=72"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"min=6"`
}

// ProfileInput is a partial update; nil fields are left alone and an empty
// dob or imageUrl clears the stored value.
type ProfileInput struct {
	Name     *string `json:"name"`
	Address  *string `json:"address"`
	DOB      *string `json:"dob"`
	ImageURL *string `json:"imageUrl"`
}

type AuthPayload struct {
	Token string
	User  *model.User
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func emailTaken() error {
	return apperr.BadInput("Email already in use", apperr.FieldError{Field: "email", Message: "Email already in use"})
}

// Register creates an account. It returns the new user, not a session;
// callers log in separately.
func (h *Handler) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	if err := h.throttle(ctx, "register"); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := h.check(in); err != nil {
		return nil, err
	}

	switch _, err := h.store.UserByEmail(ctx, in.Email); {
	case err == nil:
		return nil, emailTaken()
	case !errors.Is(err, store.ErrNotFound):
		return nil, internal("register", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, internal("register", err)
	}

	now := h.now().UTC()
	u := &model.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.store.CreateUser(ctx, u); err != nil {
		// lost a race with a concurrent register; the unique index caught it
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, emailTaken()
		}
		return nil, internal("register", err)
	}
	return u, nil
}

func (h *Handler) Login(ctx context.Context, in LoginInput) (*AuthPayload, error) {
	if err := h.throttle(ctx, "login"); err != nil {
		return nil, err
	}
	in.Email = normalizeEmail(in.Email)
	if err := h.check(in); err != nil {
		return nil, err
	}

	u, err := h.store.UserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.checkPassword(auth.DummyHash(), in.Password)
			return nil, apperr.InvalidCredentials()
		}
		return nil, internal("login", err)
	}
	if !h.checkPassword(u.PasswordHash, in.Password) {
		return nil, apperr.InvalidCredentials()
	}

	tok, err := h.tokens.Issue(u.ID)
	if err != nil {
		return nil, internal("login", err)
	}
	return &AuthPayload{Token: tok, User: u}, nil
}

// Me returns the caller, or nil when their record no longer exists.
func (h *Handler) Me(ctx context.Context) (*model.User, error) {
	id, err := uid(ctx)
	if err != nil {
		return nil, err
	}
	return h.userOrNil(ctx, id, "me")
}

func (h *Handler) MyProfile(ctx context.Context) (*model.User, error) {
	id, err := uid(ctx)
	if err != nil {
		return nil, err
	}
	return h.userOrNil(ctx, id, "myProfile")
}

func (h *Handler) User(ctx context.Context, id string) (*model.User, error) {
	if _, err := uid(ctx); err != nil {
		return nil, err
	}
	return h.userOrNil(ctx, id, "user")
}

func (h *Handler) userOrNil(ctx context.Context, id, op string) (*model.User, error) {
	u, err := h.store.UserByID(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, internal(op, err)
	}
	return u, nil
}

// Users lists everyone. Any signed-in user may call it.
func (h *Handler) Users(ctx context.Context) ([]model.User, error) {
	if _, err := uid(ctx); err != nil {
		return nil, err
	}
	users, err := h.store.ListUsers(ctx)
	if err != nil {
		return nil, internal("users", err)
	}
	return users, nil
}

func (h *Handler) UpdateMyProfile(ctx context.Context, in ProfileInput) (*model.User, error) {
	id, err := uid(ctx)
	if err != nil {
		return nil, err
	}
	p, err := h.profileUpdate(in)
	if err != nil {
		return nil, err
	}
	p.UpdatedAt = h.now().UTC()

	u, err := h.store.UpdateUser(ctx, id, p)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Unauthenticated()
		}
		return nil, internal("updateMyProfile", err)
	}
	return u, nil
}

func (h *Handler) profileUpdate(in ProfileInput) (model.ProfileUpdate, error) {
	var (
		p       model.ProfileUpdate
		details []apperr.FieldError
	)
	bad := func(field, msg string) {
		details = append(details, apperr.FieldError{Field: field, Message: msg})
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := h.validate.Var(name, "min=2"); err != nil {
			bad("name", "Must contain at least 2 character(s)")
		}
		p.Name = &name
	}
	if in.Address != nil {
		addr := strings.TrimSpace(*in.Address)
		if err := h.validate.Var(addr, "max=500"); err != nil {
			bad("address", "Must contain at most 500 character(s)")
		}
		p.Address = &addr
	}
	if in.ImageURL != nil {
		img := strings.TrimSpace(*in.ImageURL)
		if img != "" {
			if err := h.validate.Var(img, "url"); err != nil {
				bad("imageUrl", "Invalid url")
			}
		}
		p.ImageURL = &img
	}
	if in.DOB != nil {
		raw := strings.TrimSpace(*in.DOB)
		if raw == "" {
			p.ClearDOB = true
		} else if d, ok := parseDOB(raw); ok {
			p.DOB = &d
		} else {
			bad("dob", "Invalid dob")
		}
	}

	if len(details) > 0 {
		return p, apperr.BadInput("Invalid input", details...)
	}
	return p, nil
}

// parseDOB accepts a calendar date or a full RFC 3339 instant and keeps only the date.
func parseDOB(s string) (time.Time, bool) {
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		return d, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		y, m, d := t.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}
