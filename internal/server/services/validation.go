package services

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/todoauth/internal/common"
)

const (
	maxUsernameLength  = 150
	maxNameLength      = 30
	minPasswordLength  = 8
	msgRequired        = "This field is required."
	msgInvalidEmail    = "Enter a valid email address."
	msgEmailTaken      = "A user with that email already exists."
	msgUsernameTaken   = "A user with that username already exists."
	msgUsernameInvalid = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	msgUsernameLength  = "Ensure this field has no more than 150 characters."
	msgNameLength      = "Ensure this field has no more than 30 characters."
	msgPasswordShort   = "This password is too short. It must contain at least 8 characters."
	msgPasswordNumeric = "This password is entirely numeric."
	msgPasswordMatch   = "Passwords don't match."
	msgAvatarKey       = "This key does not belong to your account."
	msgAvatarMissing   = "No object has been uploaded under this key."
)

func validateUsername(v *common.ValidationError, username string) {
	switch {
	case username == "":
		v.Add("username", msgRequired)
	case utf8.RuneCountInString(username) > maxUsernameLength:
		v.Add("username", msgUsernameLength)
	case !isValidUsername(username):
		v.Add("username", msgUsernameInvalid)
	}
}

func isValidUsername(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("@.+-_", r) {
			continue
		}
		return false
	}
	return true
}

func validateName(v *common.ValidationError, field, value string) {
	if utf8.RuneCountInString(value) > maxNameLength {
		v.Add(field, msgNameLength)
	}
}

func validatePassword(v *common.ValidationError, password, confirm string, confirmSet bool) {
	switch {
	case password == "":
		v.Add("password", msgRequired)
		return
	case utf8.RuneCountInString(password) < minPasswordLength:
		v.Add("password", msgPasswordShort)
	case isNumeric(password):
		v.Add("password", msgPasswordNumeric)
	}
	if confirmSet && confirm != password {
		v.Add("password_confirm", msgPasswordMatch)
	}
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
