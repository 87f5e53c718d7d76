package common

import (
	"net/mail"
	"net/url"
)

func IsValidURL(rawurl string) bool {
	_, err := url.ParseRequestURI(rawurl)
	return err == nil
}

func IsValidEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}
