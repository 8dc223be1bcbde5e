// Package model contains domain models passed between layers.
package model

import "time"

// Post is a forum post submitted for tag processing.
// PostID is the idempotency key.
type Post struct {
	PostID     string
	AuthorID   int64
	AuthorName string
	TopicID    string
	Content    string
	PostedAt   time.Time
}

// ActivitySample is one participant's activity over an evaluation window.
type ActivitySample struct {
	PostCount        int `json:"postCount"`
	UniqueTopicCount int `json:"uniqueTopicCount"`
}
