package platform

import "errors"

// ErrAttachmentTooLarge indicates an attachment above the configured download cap.
var ErrAttachmentTooLarge = errors.New("attachment exceeds size limit")
