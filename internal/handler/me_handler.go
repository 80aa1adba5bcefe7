package handler

import (
	"net/http"
	"time"

	"github.com/hitoshi/melly/internal/model"
)

// MeHandler は認証済みユーザーのプロフィールに関するHTTPハンドラー。
type MeHandler struct {
	accounts AccountServiceInterface
}

// NewMeHandler はMeHandlerを生成する。
func NewMeHandler(accounts AccountServiceInterface) *MeHandler {
	return &MeHandler{accounts: accounts}
}

// userResponse はユーザープロフィールのAPIレスポンス。
type userResponse struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Picture    string `json:"picture,omitempty"`
	Username   string `json:"username"`
	Identifier string `json:"identifier"`
	CreatedAt  string `json:"createdAt"`
}

// updateUsernameRequest はユーザー名変更リクエストのボディ。
type updateUsernameRequest struct {
	Username string `json:"username"`
}

// Me は認証済みユーザーのプロフィールを返す。
// GET /v1/me
func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := resolveUser(r.Context(), h.accounts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdateUsername は認証済みユーザーのユーザー名を変更する。
// PUT /v1/me/username
func (h *MeHandler) UpdateUsername(w http.ResponseWriter, r *http.Request) {
	user, err := resolveUser(r.Context(), h.accounts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req updateUsernameRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	updated, err := h.accounts.UpdateUsername(r.Context(), user.Identifier, req.Username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(user *model.User) userResponse {
	return userResponse{
		Email:      user.Email,
		Name:       user.Name,
		Picture:    user.Picture,
		Username:   user.Username,
		Identifier: user.Identifier,
		CreatedAt:  user.CreatedAt.UTC().Format(time.RFC3339),
	}
}
