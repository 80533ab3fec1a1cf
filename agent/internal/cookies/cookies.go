// Package cookies exposes the host cookie jar to the popup.
package cookies

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"tracker-guard/agent/internal/db"

	"gorm.io/gorm"
)

var ErrBadURL = errors.New("cookie url has no host")

type Cookie struct {
	Domain    string
	Path      string
	Name      string
	Value     string
	Secure    bool
	ExpiresAt *time.Time
}

// URL is the address a cookie is removed through.
func (c Cookie) URL() string {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	path := c.Path
	if path == "" {
		path = "/"
	}
	return scheme + "://" + strings.TrimPrefix(c.Domain, ".") + path
}

// Store enumerates and removes cookies.
type Store interface {
	GetAll(ctx context.Context, domain string) ([]Cookie, error)
	Remove(ctx context.Context, rawURL, name string) error
}

// DB keeps cookies in the cookies table.
type DB struct {
	db *gorm.DB
}

func NewDB(gdb *gorm.DB) *DB { return &DB{db: gdb} }

// GetAll returns cookies for domain and its subdomains.
func (s *DB) GetAll(ctx context.Context, domain string) ([]Cookie, error) {
	domain = strings.TrimPrefix(strings.ToLower(domain), ".")
	var rows []db.Cookie
	err := s.db.WithContext(ctx).
		Where("domain = ? OR domain = ? OR domain LIKE ?", domain, "."+domain, "%."+domain).
		Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list cookies for %s: %w", domain, err)
	}
	out := make([]Cookie, 0, len(rows))
	for _, r := range rows {
		out = append(out, Cookie{Domain: r.Domain, Path: r.Path, Name: r.Name, Value: r.Value, Secure: r.Secure, ExpiresAt: r.ExpiresAt})
	}
	return out, nil
}

func (s *DB) Remove(ctx context.Context, rawURL, name string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ErrBadURL
	}
	host := strings.ToLower(u.Hostname())
	path := u.Path
	if path == "" {
		path = "/"
	}
	err = s.db.WithContext(ctx).
		Where("(domain = ? OR domain = ?) AND path = ? AND name = ?", host, "."+host, path, name).
		Delete(&db.Cookie{}).Error
	if err != nil {
		return fmt.Errorf("remove cookie %s: %w", name, err)
	}
	return nil
}

// Put stores c, replacing any cookie with the same domain, path and name.
func (s *DB) Put(ctx context.Context, c Cookie) error {
	if c.Path == "" {
		c.Path = "/"
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("domain = ? AND path = ? AND name = ?", c.Domain, c.Path, c.Name).Delete(&db.Cookie{}).Error; err != nil {
			return err
		}
		return tx.Create(&db.Cookie{Domain: c.Domain, Path: c.Path, Name: c.Name, Value: c.Value, Secure: c.Secure, ExpiresAt: c.ExpiresAt}).Error
	})
}
