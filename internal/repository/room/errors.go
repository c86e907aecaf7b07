package room

import "errors"

var (
	ErrMemberNotFound = errors.New("member not found")
	ErrOwnerNotFound  = errors.New("owner not found")
	ErrStateNotFound  = errors.New("room state not found")
)
