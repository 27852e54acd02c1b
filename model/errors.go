package model

import "errors"

// ErrEmptySubmission indicates a direct message with neither text nor attachments.
var ErrEmptySubmission = errors.New("submission must contain text or an attachment")

// ErrInvalidTransition indicates a resolution attempted on a submission that is no longer pending.
var ErrInvalidTransition = errors.New("submission is not pending")

// ErrUnknownDecision indicates a decision other than Confirm or Cancel.
var ErrUnknownDecision = errors.New("unknown decision")

// ErrNoAuthor indicates a message without an author.
var ErrNoAuthor = errors.New("message has no author")
