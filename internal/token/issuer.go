// Package token はJWTアクセストークン・リフレッシュトークンの発行と検証を提供する。
//
// アクセストークンはRS256署名のJWTで、subjectにユーザーの公開識別子を持つ。
// リフレッシュトークンも同じ鍵で署名されたJWTで、ath claim（対となる
// アクセストークンのSHA-256ハッシュ）により発行時のアクセストークンに
// 暗号的にコミットする。リフレッシュトークンはローテーションしない。
package token

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/melly/internal/model"
)

// Claims はアクセストークンの検証済みclaimsを表す。
type Claims struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// accessClaims はアクセストークンのJWT claims。
type accessClaims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// refreshClaims はリフレッシュトークンのJWT claims。
// athは対となるアクセストークンのSHA-256ハッシュ（base64url）。
type refreshClaims struct {
	jwt.RegisteredClaims
	AccessTokenHash string `json:"ath"`
}

// IssuerConfig はIssuerの設定。
type IssuerConfig struct {
	PrivateKeyPEM string
	PublicKeyPEM  string
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Issuer はトークンの発行と検証を行う。
type Issuer struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration

	// now はテストで時刻を固定するためのフック。
	now func() time.Time
}

// NewIssuer はPEM鍵を解析してIssuerを生成する。
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.PrivateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}

	return &Issuer{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// IssueAccessToken はユーザーのアクセストークンを発行する。
// subjectはユーザーの公開識別子。jtiは発行ごとに一意。
func (i *Issuer) IssueAccessToken(user *model.User) (string, error) {
	now := i.now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			Subject:   user.Identifier,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
			ID:        uuid.New().String(),
		},
		Email:   user.Email,
		Name:    user.Name,
		Picture: user.Picture,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// IssueRefreshToken はアクセストークンに紐付くリフレッシュトークンを発行する。
// subjectはアクセストークンから引き継ぎ、athでアクセストークン本体にコミットする。
func (i *Issuer) IssueRefreshToken(accessToken string) (string, error) {
	access, err := i.VerifyAccessToken(accessToken)
	if err != nil {
		return "", fmt.Errorf("failed to verify access token for refresh issuance: %w", err)
	}

	hash := sha256.Sum256([]byte(accessToken))
	now := i.now()
	claims := refreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			Subject:   access.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.refreshTTL)),
			ID:        uuid.New().String(),
		},
		AccessTokenHash: base64.RawURLEncoding.EncodeToString(hash[:]),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken はアクセストークンの署名・発行者・オーディエンス・期限を検証し、
// claimsを返す。検証失敗はAPIError(INVALID_TOKEN)を返す。
func (i *Issuer) VerifyAccessToken(tokenString string) (*Claims, error) {
	var claims accessClaims
	if err := i.verify(tokenString, &claims); err != nil {
		return nil, err
	}
	return &Claims{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}

// VerifyRefreshToken はリフレッシュトークンを検証し、subject（ユーザー識別子）を返す。
// 検証失敗はAPIError(INVALID_TOKEN)を返す。
func (i *Issuer) VerifyRefreshToken(tokenString string) (string, error) {
	var claims refreshClaims
	if err := i.verify(tokenString, &claims); err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// verify は署名と標準claimsを検証する。
func (i *Issuer) verify(tokenString string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.publicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return i.now() }),
	)
	if err != nil {
		return model.NewInvalidTokenError()
	}
	return nil
}
