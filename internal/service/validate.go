package service

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/onemployment/api/internal/apperror"
	"github.com/onemployment/api/internal/auth"
)

// Field limits, in characters.
const (
	minUsernameLen = 3
	maxUsernameLen = 39
	minPasswordLen = 3

	maxNameLen     = 50
	maxBioLen      = 160
	maxProfileLen  = 100 // company, location, website, socials
	maxRepoNameLen = 100
	maxSummaryLen  = 280
	maxSeasonLen   = 20
	maxReadmeLen   = 50000
	maxCommitLen   = 200
	maxCommentLen  = 2000
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	switch {
	case username == "":
		return apperror.ValidationFailed("username", "username is required")
	case n < minUsernameLen || n > maxUsernameLen:
		return apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d to %d characters", minUsernameLen, maxUsernameLen))
	case !usernamePattern.MatchString(username):
		return apperror.ValidationFailed("username",
			"username may only contain letters, digits, '-' and '_'")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperror.ValidationFailed("email", "email is not a valid address")
	}
	return nil
}

func validatePassword(field, password string) error {
	if password == "" {
		return apperror.ValidationFailed(field, field+" is required")
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return apperror.ValidationFailed(field,
			fmt.Sprintf("%s must be at least %d characters", field, minPasswordLen))
	}
	if len(password) > auth.MaxPasswordBytes {
		return apperror.ValidationFailed(field,
			fmt.Sprintf("%s must be %d bytes or fewer", field, auth.MaxPasswordBytes))
	}
	return nil
}

func checkLen(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return apperror.ValidationFailed(field,
			fmt.Sprintf("%s must be %d characters or fewer", field, max))
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
