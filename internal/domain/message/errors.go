package message

import "errors"

var (
	ErrMessageNotFound  = errors.New("message not found")
	ErrEmptyBody        = errors.New("message body is required")
	ErrRecipientInvalid = errors.New("recipient does not exist or is inactive")
	ErrSelfMessage      = errors.New("cannot send a message to yourself")
)
