// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/chatman/internal/middleware"
	"github.com/hitoshi/chatman/internal/model"
	"github.com/hitoshi/chatman/internal/thread"
)

// ThreadServiceInterface はスレッドハンドラーが必要とするサービスインターフェース。
type ThreadServiceInterface interface {
	// ListThreads はユーザーが参加するスレッド一覧をページ指定付きで返す。
	ListThreads(ctx context.Context, userID string, limit, offset int) (*thread.ListResult, error)
	// CreateOrGetThread は参加者ペアのスレッドを取得または作成する。
	CreateOrGetThread(ctx context.Context, requestingUserID string, participantIDs []string) (*model.Thread, bool, error)
	// DeleteThread はスレッドを削除する。メッセージもCASCADE削除される。
	DeleteThread(ctx context.Context, requestingUserID, threadID string) error
}

// PageConfig はページネーションの設定。
type PageConfig struct {
	DefaultLimit int
	MaxLimit     int
	// BaseURL はnext/previousリンクの絶対URL化に使用する
	// （例: "http://localhost:8080"）。空の場合は相対URLになる。
	BaseURL string
}

// ThreadHandler はスレッド管理のHTTPハンドラー。
type ThreadHandler struct {
	service ThreadServiceInterface
	pages   PageConfig
}

// NewThreadHandler はThreadHandlerを生成する。
func NewThreadHandler(service ThreadServiceInterface, pages PageConfig) *ThreadHandler {
	return &ThreadHandler{
		service: service,
		pages:   pages,
	}
}

// --- レスポンス型 ---

// threadResponse はスレッド情報のAPIレスポンス。
// フィールド名は互換性のため参照実装のシリアライザと揃える。
type threadResponse struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
}

// createThreadRequest はスレッド作成リクエストのボディ。
type createThreadRequest struct {
	Participants []string `json:"participants"`
}

// paginatedResponse はlimit/offsetページネーションの統一エンベロープ。
type paginatedResponse struct {
	Count    int         `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  interface{} `json:"results"`
}

// ListThreads は自分が参加するスレッド一覧を取得する。
// GET /chat/threads/?limit=&offset=
func (h *ThreadHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	limit, offset := parsePageParams(r, h.pages)

	result, err := h.service.ListThreads(r.Context(), userID, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]threadResponse, len(result.Threads))
	for i, t := range result.Threads {
		results[i] = toThreadResponse(t)
	}

	writeJSONResponse(w, http.StatusOK, buildEnvelope(r, h.pages, result.Total, limit, offset, results))
}

// CreateOrGetThread は参加者ペアのスレッドを取得または作成する。
// POST /chat/threads/
// 既存スレッドを返す場合は200、新規作成した場合は201を返す。
func (h *ThreadHandler) CreateOrGetThread(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req createThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	for _, id := range req.Participants {
		if !isValidID(id) {
			handleServiceError(w, model.NewInvalidParticipantsError("参加者IDはUUID形式で指定してください"))
			return
		}
	}

	t, created, err := h.service.CreateOrGetThread(r.Context(), userID, req.Participants)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, toThreadResponse(t))
}

// DeleteThread はスレッドを削除する。
// DELETE /chat/threads/{id}/
func (h *ThreadHandler) DeleteThread(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	threadID := chi.URLParam(r, "id")
	if !isValidID(threadID) {
		handleServiceError(w, model.NewThreadNotFoundError(threadID))
		return
	}

	if err := h.service.DeleteThread(r.Context(), userID, threadID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toThreadResponse はモデルをAPIレスポンスに変換する。
func toThreadResponse(t *model.Thread) threadResponse {
	return threadResponse{
		ID:           t.ID,
		Participants: t.ParticipantIDs,
		Created:      t.CreatedAt,
		Updated:      t.UpdatedAt,
	}
}

// --- 共通ヘルパー ---

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// parsePageParams はクエリからlimit/offsetを解析する。
// 不正値・未指定はデフォルトにフォールバックし、limitは上限でクランプする。
func parsePageParams(r *http.Request, pages PageConfig) (limit, offset int) {
	limit = pages.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > pages.MaxLimit {
		limit = pages.MaxLimit
	}

	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// buildEnvelope はcount/next/previous/results形式のエンベロープを構築する。
// next/previousはBaseURLを前置した同一パスへの絶対URLで、
// 該当ページがない場合はnull。
func buildEnvelope(r *http.Request, pages PageConfig, count, limit, offset int, results interface{}) paginatedResponse {
	env := paginatedResponse{
		Count:   count,
		Results: results,
	}

	if offset+limit < count {
		next := pageURL(r, pages, limit, offset+limit)
		env.Next = &next
	}
	if offset > 0 {
		prevOffset := offset - limit
		if prevOffset < 0 {
			prevOffset = 0
		}
		prev := pageURL(r, pages, limit, prevOffset)
		env.Previous = &prev
	}
	return env
}

// pageURL は現在のリクエストURLのlimit/offsetを差し替えたURLを返す。
func pageURL(r *http.Request, pages PageConfig, limit, offset int) string {
	u := &url.URL{Path: r.URL.Path}
	q := r.URL.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()
	return strings.TrimSuffix(pages.BaseURL, "/") + u.String()
}

// isValidID はIDがUUID形式であるかを判定する。
// UUIDでないIDはuuid型カラムの比較がDBエラーになるため、
// ハンドラー境界で存在しないリソースと同じ応答に落とす。
func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// writeJSONResponse はJSONレスポンスを書き込む。
func writeJSONResponse(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSONResponse(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeUnauthorizedResponse は401の統一レスポンスを書き込む。
func writeUnauthorizedResponse(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

// writeInvalidBodyResponse はリクエストボディ解析失敗の統一レスポンスを書き込む。
func writeInvalidBodyResponse(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
//
// メッセージ作成時のスレッド参照エラー（INVALID_THREAD）は、
// スレッドの存在有無を漏らさないため、not-foundと非参加者の両方を400に畳む。
// URLで直接リソースを指定する操作（削除・既読化）は404/403を区別する。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidParticipants, model.ErrCodeInvalidMessageText, model.ErrCodeInvalidThread:
		return http.StatusBadRequest
	case model.ErrCodeNotThreadParticipant:
		return http.StatusForbidden
	case model.ErrCodeThreadNotFound, model.ErrCodeMessageNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
