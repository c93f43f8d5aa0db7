package submissions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMissingField is returned when name or email is blank
var ErrMissingField = errors.New("name and email are required")

// Submission is one form post
type Submission struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Document is what a Writer persists. Timestamp is left zero for writers
// that let the store assign it.
type Document struct {
	Name      string
	Email     string
	Timestamp time.Time
}

// Writer appends a document and returns its id
type Writer interface {
	Add(ctx context.Context, doc Document) (string, error)
}

// Service accepts form submissions
type Service struct {
	writer Writer
}

// NewService creates a Service writing through writer
func NewService(writer Writer) *Service {
	return &Service{writer: writer}
}

// Submit trims the fields, requires both and writes one new document
func (s *Service) Submit(ctx context.Context, sub Submission) (string, error) {
	doc := Document{
		Name:  strings.TrimSpace(sub.Name),
		Email: strings.TrimSpace(sub.Email),
	}
	if doc.Name == "" || doc.Email == "" {
		return "", ErrMissingField
	}

	id, err := s.writer.Add(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("store submission: %w", err)
	}
	return id, nil
}
