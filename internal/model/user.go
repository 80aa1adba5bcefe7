// Package model はドメインモデルを定義する。
package model

import "time"

// Status はレコードの有効状態を表す。
// ソフトデリートをnullableなタイムスタンプではなく明示的な状態として扱う。
type Status string

const (
	// StatusActive は有効なレコード。
	StatusActive Status = "active"
	// StatusDeleted はソフトデリートされたレコード。
	StatusDeleted Status = "deleted"
)

// User はサービス利用ユーザーを表す。
// Identifierはストレージのキーとは独立した不変の公開識別子で、JWTのsubjectに使用する。
type User struct {
	ID              string
	Email           string
	Name            string
	Picture         string
	Username        string
	Provider        string
	ProviderUserIDs []string
	Identifier      string
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsDeleted はユーザーがソフトデリート済みかどうかを返す。
func (u *User) IsDeleted() bool {
	return u.Status == StatusDeleted
}
