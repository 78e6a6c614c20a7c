// Package services – ApplicationService
//
// This file implements the ApplicationService, which manages application
// entities: creation with token generation, lookup by token, and renames.
// Applications are the CRUD edge of the system; the allocation pipeline
// never creates one.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-journal/internal/domain"
	"github.com/tbourn/go-chat-journal/internal/repo"
)

// ApplicationService provides application-level CRUD operations.
type ApplicationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// NameMaxLen caps stored names by rune length.
	NameMaxLen int
}

// NewApplicationService constructs an ApplicationService with sane defaults.
func NewApplicationService(db *gorm.DB) *ApplicationService {
	return &ApplicationService{DB: db, NameMaxLen: 255}
}

// Create inserts a new application with a freshly generated token.
// Empty names are rejected; names are normalized and clipped.
func (s *ApplicationService) Create(ctx context.Context, name string) (*domain.Application, error) {
	name = normalizeName(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	return repo.CreateApplication(ctx, s.DB, s.clip(name))
}

// Get fetches an application by its public token.
func (s *ApplicationService) Get(ctx context.Context, token string) (*domain.Application, error) {
	app, err := repo.GetApplicationByToken(ctx, s.DB, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}
	return app, nil
}

// UpdateName renames the application identified by token.
func (s *ApplicationService) UpdateName(ctx context.Context, token, name string) error {
	name = normalizeName(name)
	if name == "" {
		return ErrEmptyName
	}
	err := repo.UpdateApplicationName(ctx, s.DB, token, s.clip(name))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrApplicationNotFound
	}
	return err
}

// clip truncates a name to the configured maximum rune length.
func (s *ApplicationService) clip(name string) string {
	if s.NameMaxLen > 0 && utf8.RuneCountInString(name) > s.NameMaxLen {
		return string([]rune(name)[:s.NameMaxLen])
	}
	return name
}

// normalizeName trims whitespace and collapses multiple spaces to one.
func normalizeName(s string) string {
	s = whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
	return s
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
