// Package service holds the business rules. Handlers translate HTTP into
// calls here; stores behind repository.Store do the persistence.
//
//	Handler (HTTP) → AuthService / RepoService / FollowService → repository.Store
//	                ↘ auth.TokenService, auth.PasswordService, storage.AvatarStore
//
// Services return apperror values for every failure a client can cause,
// and wrap everything else with "service/<name>: ..." context.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/onemployment/api/internal/apperror"
	"github.com/onemployment/api/internal/auth"
	"github.com/onemployment/api/internal/model"
	"github.com/onemployment/api/internal/repository"
	"github.com/onemployment/api/internal/storage"
)

// DefaultMaxAvatarBytes is the avatar upload ceiling when none is configured.
const DefaultMaxAvatarBytes int64 = 5 << 20

// errBadCredentials is shared by every login failure so the response
// never tells an unknown email apart from a wrong password.
const errBadCredentials = "invalid email or password"

// errNoPassword answers password checks on accounts created through GitHub.
const errNoPassword = "account has no password; sign in with GitHub"

// sniffLen is how much of an upload http.DetectContentType looks at.
const sniffLen = 512

var avatarTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// AuthService handles accounts: registration, login, profile and
// credentials, avatars and GitHub sign-in.
type AuthService struct {
	store          repository.Store
	tokens         *auth.TokenService
	passwords      *auth.PasswordService
	avatars        storage.AvatarStore
	maxAvatarBytes int64
	logger         *slog.Logger
}

func NewAuthService(
	store repository.Store,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	avatars storage.AvatarStore,
	maxAvatarBytes int64,
	logger *slog.Logger,
) *AuthService {
	if maxAvatarBytes <= 0 {
		maxAvatarBytes = DefaultMaxAvatarBytes
	}
	return &AuthService{
		store:          store,
		tokens:         tokens,
		passwords:      passwords,
		avatars:        avatars,
		maxAvatarBytes: maxAvatarBytes,
		logger:         logger,
	}
}

// AuthResult bundles the issued token with the signed-in user's summary.
type AuthResult struct {
	Token string            `json:"token"`
	User  model.UserSummary `json:"user"`
}

// ProfileUpdate is a partial profile edit. An absent field is left alone;
// null or "" clears it. Password is only read when Email changes.
type ProfileUpdate struct {
	Name     Optional[string] `json:"name"`
	Bio      Optional[string] `json:"bio"`
	Company  Optional[string] `json:"company"`
	Location Optional[string] `json:"location"`
	Website  Optional[string] `json:"website"`
	Twitter  Optional[string] `json:"twitter"`
	LinkedIn Optional[string] `json:"linkedin"`
	GitHub   Optional[string] `json:"github"`
	Email    Optional[string] `json:"email"`
	Password *string          `json:"password"`
}

// AvatarUpload is one uploaded avatar file. Size is the length the
// client declared; Content is still read through a limit.
type AvatarUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

func (s *AuthService) issue(u *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(u.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", u.ID, err)
	}
	summary := u.Summary()
	summary.Email = u.Email
	return &AuthResult{Token: token, User: summary}, nil
}

// Register creates a password account and signs it in.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)

	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword("password", password); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: registering %q: %w", username, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return s.issue(user)
}

// Login checks email and password. Every credential failure is the same
// Unauthorized error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("email", "email and password are required")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(errBadCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up %q: %w", email, err)
	}

	if !user.HasPassword() {
		return nil, apperror.Unauthorized(errBadCredentials)
	}
	if err := s.passwords.Verify(ctx, user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.Unauthorized(errBadCredentials)
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	return s.issue(user)
}

// CurrentUser returns the caller's full profile, email included.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}
	if err := decorateUser(ctx, s.store, user, false); err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	return user, nil
}

// UpdateProfile applies a partial edit. Changing the email requires the
// current password in the same request.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*model.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}

	fields := []struct {
		name string
		in   Optional[string]
		dst  *string
		max  int
	}{
		{"name", in.Name, &user.Name, maxNameLen},
		{"bio", in.Bio, &user.Bio, maxBioLen},
		{"company", in.Company, &user.Company, maxProfileLen},
		{"location", in.Location, &user.Location, maxProfileLen},
		{"website", in.Website, &user.Website, maxProfileLen},
		{"twitter", in.Twitter, &user.Socials.Twitter, maxProfileLen},
		{"linkedin", in.LinkedIn, &user.Socials.LinkedIn, maxProfileLen},
		{"github", in.GitHub, &user.Socials.GitHub, maxProfileLen},
	}
	for _, f := range fields {
		if !f.in.Set {
			continue
		}
		v := strings.TrimSpace(f.in.Get())
		if err := checkLen(f.name, v, f.max); err != nil {
			return nil, err
		}
		*f.dst = v
	}

	if in.Email.Set {
		email := normalizeEmail(in.Email.Get())
		if email != user.Email {
			if err := validateEmail(email); err != nil {
				return nil, err
			}
			if !user.HasPassword() {
				return nil, apperror.ValidationFailed("password", errNoPassword)
			}
			if in.Password == nil || *in.Password == "" {
				return nil, apperror.ValidationFailed("password", "password is required to change email")
			}
			if err := s.passwords.Verify(ctx, user.PasswordHash, *in.Password); err != nil {
				if errors.Is(err, auth.ErrPasswordMismatch) {
					return nil, apperror.Unauthorized("incorrect password")
				}
				return nil, fmt.Errorf("service/auth: verifying password: %w", err)
			}
			user.Email = email
		}
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: updating user %s: %w", userID, err)
	}
	if err := decorateUser(ctx, s.store, user, false); err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" || next == "" {
		return apperror.ValidationFailed("password", "currentPassword and newPassword are required")
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}
	if !user.HasPassword() {
		return apperror.ValidationFailed("password", errNoPassword)
	}

	if err := s.passwords.Verify(ctx, user.PasswordHash, current); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return apperror.Unauthorized("current password is incorrect")
		}
		return fmt.Errorf("service/auth: verifying password: %w", err)
	}
	if err := validatePassword("newPassword", next); err != nil {
		return err
	}

	hash, err := s.passwords.Hash(ctx, next)
	if err != nil {
		return fmt.Errorf("service/auth: hashing password: %w", err)
	}
	user.PasswordHash = hash
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("service/auth: updating user %s: %w", userID, err)
	}

	s.logger.Info("password changed", slog.String("userID", userID))
	return nil
}

// UploadAvatar stores a new avatar image and points the profile at it.
// The previous file is removed on a best-effort basis.
func (s *AuthService) UploadAvatar(ctx context.Context, userID string, up AvatarUpload) (*model.User, error) {
	if up.Size > s.maxAvatarBytes {
		return nil, apperror.PayloadTooLarge(s.maxAvatarBytes)
	}
	if up.Content == nil {
		return nil, apperror.ValidationFailed("avatar", "avatar file is required")
	}

	// One byte past the ceiling tells a lying Size apart from an exact fit.
	limited := io.LimitReader(up.Content, s.maxAvatarBytes+1)
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(limited, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("service/auth: reading avatar: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, apperror.ValidationFailed("avatar", "avatar file is empty")
	}

	ext, ok := avatarTypes[http.DetectContentType(head)]
	if !ok {
		return nil, apperror.ValidationFailed("avatar", "avatar must be a PNG, JPEG, GIF or WebP image")
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}

	counted := &countingReader{r: io.MultiReader(bytes.NewReader(head), limited)}
	url, err := s.avatars.Save(ctx, ext, counted)
	if err != nil {
		return nil, fmt.Errorf("service/auth: saving avatar: %w", err)
	}
	if counted.n > s.maxAvatarBytes {
		s.removeAvatar(ctx, url)
		return nil, apperror.PayloadTooLarge(s.maxAvatarBytes)
	}

	previous := user.AvatarURL
	user.AvatarURL = url
	if err := s.store.UpdateUser(ctx, user); err != nil {
		s.removeAvatar(ctx, url)
		return nil, fmt.Errorf("service/auth: updating user %s: %w", userID, err)
	}
	if previous != "" {
		s.removeAvatar(ctx, previous)
	}

	s.logger.Info("avatar uploaded",
		slog.String("userID", userID),
		slog.String("filename", up.Filename),
		slog.Int64("bytes", counted.n),
	)

	if err := decorateUser(ctx, s.store, user, false); err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	return user, nil
}

func (s *AuthService) removeAvatar(ctx context.Context, url string) {
	if err := s.avatars.Delete(ctx, url); err != nil {
		s.logger.Warn("removing avatar file",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// maxUsernameAttempts bounds the -2, -3, ... suffix search for new
// GitHub accounts.
const maxUsernameAttempts = 50

// LoginWithGitHub signs in a GitHub identity.
//
//  1. an account already linked to the GitHub id signs in
//  2. otherwise an account with the same email is linked and signs in
//  3. otherwise a new password-less account is created
func (s *AuthService) LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil || gh.ID == 0 {
		return nil, fmt.Errorf("service/auth: GitHub user must not be empty")
	}

	user, err := s.store.GetUserByGitHubID(ctx, gh.ID)
	if err == nil {
		return s.issue(user)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up GitHub id %d: %w", gh.ID, err)
	}

	email := normalizeEmail(gh.Email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "GitHub account has no verified email")
	}

	user, err = s.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return s.linkGitHub(ctx, user, gh)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: looking up %q: %w", email, err)
	}

	id := gh.ID
	user = &model.User{
		Email:     email,
		GitHubID:  &id,
		Name:      truncate(gh.Name, maxNameLen),
		AvatarURL: gh.AvatarURL,
		Socials:   model.Socials{GitHub: gh.Login},
	}

	base := githubUsername(gh.Login)
	for attempt := 1; attempt <= maxUsernameAttempts; attempt++ {
		user.Username = withSuffix(base, attempt)
		err = s.store.CreateUser(ctx, user)
		if err == nil {
			s.logger.Info("user registered via GitHub",
				slog.String("userID", user.ID),
				slog.String("username", user.Username),
			)
			return s.issue(user)
		}
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) || appErr.Field != "username" {
			return nil, fmt.Errorf("service/auth: creating GitHub user: %w", err)
		}
	}
	return nil, apperror.Conflict("username")
}

func (s *AuthService) linkGitHub(ctx context.Context, user *model.User, gh *auth.GitHubUser) (*AuthResult, error) {
	id := gh.ID
	user.GitHubID = &id
	if user.AvatarURL == "" {
		user.AvatarURL = gh.AvatarURL
	}
	if user.Socials.GitHub == "" {
		user.Socials.GitHub = gh.Login
	}
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: linking GitHub id %d: %w", gh.ID, err)
	}

	s.logger.Info("GitHub account linked",
		slog.String("userID", user.ID),
		slog.Int64("githubID", gh.ID),
	)
	return s.issue(user)
}

// githubUsername maps a GitHub login onto the username rules.
func githubUsername(login string) string {
	var b strings.Builder
	for _, r := range login {
		if r < 128 && usernamePattern.MatchString(string(r)) {
			b.WriteRune(r)
		}
	}
	name := b.String()
	for len(name) < minUsernameLen {
		name += "_"
	}
	return name
}

// withSuffix returns base for attempt 1 and base-N after that, trimming
// base so the result stays within maxUsernameLen.
func withSuffix(base string, attempt int) string {
	if attempt == 1 {
		return truncate(base, maxUsernameLen)
	}
	suffix := "-" + strconv.Itoa(attempt)
	return truncate(base, maxUsernameLen-len(suffix)) + suffix
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
