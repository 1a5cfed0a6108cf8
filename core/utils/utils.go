package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"regexp"
	"time"
)

var usernameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._@-]{1,63}$`)

func NowUTC() time.Time {
	return time.Now().UTC()
}

func RandString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:n], nil
}

func ValidateUsername(username string) error {
	if !usernameRe.MatchString(username) {
		return errors.New("invalid username")
	}
	return nil
}
