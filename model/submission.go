package model

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a Submission.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusCancelled || s == StatusExpired
}

// Decision is the author's answer to the confirmation prompt.
type Decision string

const (
	Confirm Decision = "confirm"
	Cancel  Decision = "cancel"
)

// Author identifies the user who sent the direct message.
type Author struct {
	ID          string
	Username    string
	DisplayName string
	AvatarURL   string
}

// Attachment is a file attached to the original direct message. Either URL
// or Data carries the payload; Data wins when both are set.
type Attachment struct {
	ID          string
	URL         string
	Filename    string
	ContentType string
	Size        int
	Data        []byte
}

// Submission is one user's candidate anonymous post, tracked from receipt to resolution.
type Submission struct {
	Handle          string
	Author          Author
	Content         string
	Attachments     []Attachment
	Status          Status
	CreatedAt       time.Time
	SourceChannelID string
	SourceMessageID string
}

// NewSubmission creates a pending Submission. Blank content with no attachments is rejected.
func NewSubmission(author Author, content string, attachments []Attachment, createdAt time.Time) (*Submission, error) {
	if author.ID == "" {
		return nil, ErrNoAuthor
	}
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return nil, ErrEmptySubmission
	}

	return &Submission{
		Author:      author,
		Content:     content,
		Attachments: attachments,
		Status:      StatusPending,
		CreatedAt:   createdAt,
	}, nil
}

// Resolve applies the author's decision. Only a pending submission can be resolved.
func (s *Submission) Resolve(decision Decision) error {
	if s.Status != StatusPending {
		return ErrInvalidTransition
	}

	switch decision {
	case Confirm:
		s.Status = StatusConfirmed
	case Cancel:
		s.Status = StatusCancelled
	default:
		return ErrUnknownDecision
	}
	return nil
}

// Expire moves a pending submission to expired. It returns false when the
// submission had already reached a terminal status.
func (s *Submission) Expire() bool {
	if s.Status != StatusPending {
		return false
	}
	s.Status = StatusExpired
	return true
}

// HasContent reports whether the submission carries a non-blank text body.
func (s *Submission) HasContent() bool {
	return strings.TrimSpace(s.Content) != ""
}
