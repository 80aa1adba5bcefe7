package model

import "time"

// Collection はブックマークを束ねる共有可能なコレクションを表す。
// Itemsにはブックマークのスラグを追加順に保持する。
type Collection struct {
	ID          string
	Title       string
	Description string
	Slug        string
	OwnerID     string
	Items       []string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
