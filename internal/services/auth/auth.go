// Package auth реализует регистрацию и аутентификацию пользователей.
// Регистрация с идентификатором гостевой сессии оплаты дополнительно
// привязывает оплаченную подписку к новому аккаунту.
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/notevault/internal/errs"
	jwtlib "github.com/magabrotheeeer/notevault/internal/lib/jwt"
	"github.com/magabrotheeeer/notevault/internal/lib/password"
	"github.com/magabrotheeeer/notevault/internal/lib/sl"
	"github.com/magabrotheeeer/notevault/internal/models"
)

// Repository описывает хранилище пользователей.
type Repository interface {
	RegisterUser(ctx context.Context, user models.User) (string, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// GuestLinker привязывает гостевую оплату к зарегистрированному пользователю.
type GuestLinker interface {
	LinkGuestCheckout(ctx context.Context, userUID, sessionID string) error
}

// Service регистрирует и аутентифицирует пользователей.
type Service struct {
	repo     Repository
	linker   GuestLinker
	jwtMaker jwtlib.Maker
	log      *slog.Logger
}

// New создает сервис аутентификации.
func New(repo Repository, linker GuestLinker, jwtMaker jwtlib.Maker, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		linker:   linker,
		jwtMaker: jwtMaker,
		log:      log,
	}
}

// Register создает пользователя и возвращает JWT. Непустой checkoutSessionID
// привязывает гостевую оплату; ошибка привязки не мешает регистрации.
func (s *Service) Register(ctx context.Context, email, username, rawPassword,
	checkoutSessionID string) (string, error) {
	const op = "auth.Register"

	hash, err := password.GetHash(rawPassword)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	uid, err := s.repo.RegisterUser(ctx, models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         models.RoleUser,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	role := models.RoleUser
	if checkoutSessionID != "" {
		if err := s.linker.LinkGuestCheckout(ctx, uid, checkoutSessionID); err != nil {
			s.log.Error("failed to link guest checkout", sl.Err(err))
		} else if linked, err := s.repo.GetUserByUsername(ctx, username); err != nil {
			// Привязка могла повысить роль; токен выдаём с актуальной.
			s.log.Error("failed to reread user after guest link", sl.Err(err))
		} else {
			role = linked.Role
		}
	}

	token, err := s.jwtMaker.GenerateToken(username, role, uid)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// Login проверяет пароль и возвращает JWT. Неизвестное имя пользователя
// и неверный пароль неразличимы для вызывающего.
func (s *Service) Login(ctx context.Context, username, rawPassword string) (string, error) {
	const op = "auth.Login"

	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, errs.ErrUnauthorized)
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return "", fmt.Errorf("%s: %w", op, errs.ErrUnauthorized)
	}

	token, err := s.jwtMaker.GenerateToken(user.Username, user.Role, user.UID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}
