package model

import "time"

// Bookmark はユーザーが保存したURLを表す。
// OwnerIDには所有ユーザーのusernameを保持する。
type Bookmark struct {
	ID        string
	URL       string
	Tags      []string
	Content   string
	Slug      string
	OwnerID   string
	Notes     []BookmarkNote
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BookmarkNote はブックマークに付与されたメモを表す。
type BookmarkNote struct {
	ID         string
	BookmarkID string
	Content    string
	Slug       string
	CreatedAt  time.Time
}
