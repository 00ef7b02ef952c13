package database

import "errors"

var (
	// ErrSlugExists is returned when an attempt is made to create or rename
	// a link with a slug that is already taken.
	ErrSlugExists = errors.New("slug exists")
	// ErrLinkNotFound is returned when no link matches the given slug or id.
	ErrLinkNotFound = errors.New("link not found")
	// ErrGroupNotFound is returned when no group matches the given id.
	ErrGroupNotFound = errors.New("group not found")
)
