package validate

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

var (
	ErrInvalidProductURL = errors.New("invalid dampfi.ch URL")
	ErrInvalidUserID     = errors.New("invalid user ID")
)

// Validator checks operator input against the configured shop and user range.
type Validator struct {
	hosts     map[string]struct{}
	maxUserID int
}

// New accepts product URLs on siteHost and on its bare or www-prefixed twin.
func New(siteHost string, maxUserID int) *Validator {
	host := strings.ToLower(strings.TrimPrefix(siteHost, "www."))
	return &Validator{
		hosts: map[string]struct{}{
			host:          {},
			"www." + host: {},
		},
		maxUserID: maxUserID,
	}
}

// ProductURL returns the trimmed URL if it points at a page of the shop.
func (v *Validator) ProductURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidProductURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidProductURL
	}
	if _, ok := v.hosts[strings.ToLower(u.Host)]; !ok {
		return "", ErrInvalidProductURL
	}
	if u.Path == "" || u.Path == "/" {
		return "", ErrInvalidProductURL
	}
	return raw, nil
}

func (v *Validator) UserID(id int) error {
	if id < 1 || id > v.maxUserID {
		return ErrInvalidUserID
	}
	return nil
}

// ParseUserID parses a path parameter and checks its range.
func (v *Validator) ParseUserID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, ErrInvalidUserID
	}
	if err := v.UserID(id); err != nil {
		return 0, err
	}
	return id, nil
}
