package model

import "time"

// AuthSession は外部IdPとのログイン1回分のハンドシェイク状態を表す。
// ライフサイクル: ログインURL発行時に作成 → コールバックでプロバイダー情報を記録
// → 交換コード発行 → 交換コード消費（1回限り）。
type AuthSession struct {
	ID        string
	Nonce     string
	Extra     string // クライアント指定の不透明なJSON文字列。リダイレクト時にそのまま返す。
	IP        string
	UserAgent string

	Provider            string
	ProviderUserID      string
	ProviderAccessToken string
	Profile             string // プロバイダーから取得した生プロフィール（JSON）

	ExchangeCode       string
	ExchangeCodeUsedAt *time.Time

	ExpiresAt time.Time
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TokenPair はアクセストークンとリフレッシュトークンの組を表す。
// 永続化せず、発行のたびに導出する。
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
