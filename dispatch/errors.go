package dispatch

import "errors"

// ErrPublishFailed indicates that the platform rejected the public post.
var ErrPublishFailed = errors.New("failed to publish anonymous post")

// ErrNothingToPublish indicates that the text was empty and every attachment failed to load.
var ErrNothingToPublish = errors.New("nothing left to publish")

// ErrLogFailed indicates that the moderator log could not be written after a retry.
var ErrLogFailed = errors.New("failed to write moderator log")
