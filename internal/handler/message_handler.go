package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/chatman/internal/message"
	"github.com/hitoshi/chatman/internal/middleware"
	"github.com/hitoshi/chatman/internal/model"
)

// MessageServiceInterface はメッセージハンドラーが必要とするサービスインターフェース。
type MessageServiceInterface interface {
	// ListMessages は参加スレッドのメッセージ一覧をページ指定付きで返す。
	ListMessages(ctx context.Context, userID, threadID string, limit, offset int) (*message.ListResult, error)
	// CreateMessage はメッセージを送信する。
	CreateMessage(ctx context.Context, userID, threadID, text string) (*model.Message, error)
	// MarkAsRead はメッセージを既読にする。
	MarkAsRead(ctx context.Context, userID, messageID string) (*model.Message, error)
	// UnreadCount は自分宛の未読メッセージ数を返す。
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// MessageHandler はメッセージ管理のHTTPハンドラー。
type MessageHandler struct {
	service MessageServiceInterface
	pages   PageConfig
}

// NewMessageHandler はMessageHandlerを生成する。
func NewMessageHandler(service MessageServiceInterface, pages PageConfig) *MessageHandler {
	return &MessageHandler{
		service: service,
		pages:   pages,
	}
}

// messageResponse はメッセージ情報のAPIレスポンス。
type messageResponse struct {
	ID      string    `json:"id"`
	Thread  string    `json:"thread"`
	Sender  string    `json:"sender"`
	Text    string    `json:"text"`
	IsRead  bool      `json:"is_read"`
	Created time.Time `json:"created"`
}

// createMessageRequest はメッセージ送信リクエストのボディ。
type createMessageRequest struct {
	Thread string `json:"thread"`
	Text   string `json:"text"`
}

// ListMessages はメッセージ一覧を取得する。
// GET /chat/messages/?thread=&limit=&offset=
// thread未指定の場合は参加する全スレッドのメッセージを返す。
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	threadID := r.URL.Query().Get("thread")
	limit, offset := parsePageParams(r, h.pages)

	// UUIDでないフィルタは非参加スレッドと同様に空の結果にする
	if threadID != "" && !isValidID(threadID) {
		writeJSONResponse(w, http.StatusOK, buildEnvelope(r, h.pages, 0, limit, offset, []messageResponse{}))
		return
	}

	result, err := h.service.ListMessages(r.Context(), userID, threadID, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]messageResponse, len(result.Messages))
	for i, m := range result.Messages {
		results[i] = toMessageResponse(m)
	}

	writeJSONResponse(w, http.StatusOK, buildEnvelope(r, h.pages, result.Total, limit, offset, results))
}

// CreateMessage はメッセージを送信する。
// POST /chat/messages/
func (h *MessageHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	// UUIDでないスレッドIDは存在しないスレッドと同じ応答にする
	if !isValidID(req.Thread) {
		handleServiceError(w, model.NewInvalidThreadError())
		return
	}

	msg, err := h.service.CreateMessage(r.Context(), userID, req.Thread, req.Text)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toMessageResponse(msg))
}

// MarkAsRead はメッセージを既読にする。
// POST /chat/messages/{id}/mark_as_read/
func (h *MessageHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	messageID := chi.URLParam(r, "id")
	if !isValidID(messageID) {
		handleServiceError(w, model.NewMessageNotFoundError(messageID))
		return
	}

	if _, err := h.service.MarkAsRead(r.Context(), userID, messageID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{
		"status": "marked as read",
	})
}

// UnreadCount は自分宛の未読メッセージ数を取得する。
// GET /chat/messages/unread/
func (h *MessageHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	count, err := h.service.UnreadCount(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]int{
		"unread_count": count,
	})
}

// toMessageResponse はモデルをAPIレスポンスに変換する。
func toMessageResponse(m *model.Message) messageResponse {
	return messageResponse{
		ID:      m.ID,
		Thread:  m.ThreadID,
		Sender:  m.SenderID,
		Text:    m.Text,
		IsRead:  m.IsRead,
		Created: m.CreatedAt,
	}
}
