package model

import "time"

// Article はユーザーが執筆した記事を表す。
// AuthorIDにはユーザーの公開識別子（User.Identifier）を保持する。
type Article struct {
	ID                string
	Title             string
	Description       string
	Image             string
	Slug              string
	ContentInMarkdown string
	AuthorID          string
	Status            Status
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
