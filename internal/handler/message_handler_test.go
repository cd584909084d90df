package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/chatman/internal/message"
	"github.com/hitoshi/chatman/internal/model"
)

// --- モック定義 ---

// mockMessageService はMessageServiceInterfaceのモック実装。
type mockMessageService struct {
	listMessagesFn  func(ctx context.Context, userID, threadID string, limit, offset int) (*message.ListResult, error)
	createMessageFn func(ctx context.Context, userID, threadID, text string) (*model.Message, error)
	markAsReadFn    func(ctx context.Context, userID, messageID string) (*model.Message, error)
	unreadCountFn   func(ctx context.Context, userID string) (int, error)
}

func (m *mockMessageService) ListMessages(ctx context.Context, userID, threadID string, limit, offset int) (*message.ListResult, error) {
	if m.listMessagesFn != nil {
		return m.listMessagesFn(ctx, userID, threadID, limit, offset)
	}
	return &message.ListResult{}, nil
}

func (m *mockMessageService) CreateMessage(ctx context.Context, userID, threadID, text string) (*model.Message, error) {
	if m.createMessageFn != nil {
		return m.createMessageFn(ctx, userID, threadID, text)
	}
	return nil, nil
}

func (m *mockMessageService) MarkAsRead(ctx context.Context, userID, messageID string) (*model.Message, error) {
	if m.markAsReadFn != nil {
		return m.markAsReadFn(ctx, userID, messageID)
	}
	return nil, nil
}

func (m *mockMessageService) UnreadCount(ctx context.Context, userID string) (int, error) {
	if m.unreadCountFn != nil {
		return m.unreadCountFn(ctx, userID)
	}
	return 0, nil
}

// --- GET /chat/messages/ テスト ---

func TestMessageHandler_ListMessages_Success(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	svc := &mockMessageService{
		listMessagesFn: func(ctx context.Context, userID, threadID string, limit, offset int) (*message.ListResult, error) {
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			if threadID != "" {
				t.Errorf("threadID = %q, want empty", threadID)
			}
			return &message.ListResult{
				Messages: []*model.Message{
					{
						ID:        "msg-1",
						ThreadID:  "thread-1",
						SenderID:  "user-456",
						Text:      "こんにちは",
						IsRead:    false,
						CreatedAt: now,
					},
				},
				Total: 1,
			}, nil
		},
	}

	h := NewMessageHandler(svc, testPages)

	req := httptest.NewRequest(http.MethodGet, "/chat/messages/", nil)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.ListMessages(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var body struct {
		Count   int               `json:"count"`
		Results []messageResponse `json:"results"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Count != 1 {
		t.Errorf("count = %d, want 1", body.Count)
	}
	if len(body.Results) != 1 || body.Results[0].Text != "こんにちは" {
		t.Errorf("unexpected results: %+v", body.Results)
	}
}

func TestMessageHandler_ListMessages_ThreadFilter(t *testing.T) {
	var receivedThreadID string
	svc := &mockMessageService{
		listMessagesFn: func(ctx context.Context, userID, threadID string, limit, offset int) (*message.ListResult, error) {
			receivedThreadID = threadID
			return &message.ListResult{}, nil
		},
	}

	h := NewMessageHandler(svc, testPages)

	req := httptest.NewRequest(http.MethodGet, "/chat/messages/?thread="+testThreadUUID, nil)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.ListMessages(w, req)

	if receivedThreadID != testThreadUUID {
		t.Errorf("threadID = %q, want %q", receivedThreadID, testThreadUUID)
	}
}

// --- POST /chat/messages/ テスト ---

func TestMessageHandler_CreateMessage_Success(t *testing.T) {
	svc := &mockMessageService{
		createMessageFn: func(ctx context.Context, userID, threadID, text string) (*model.Message, error) {
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			if threadID != testThreadUUID {
				t.Errorf("threadID = %q, want %q", threadID, testThreadUUID)
			}
			if text != "hello" {
				t.Errorf("text = %q, want %q", text, "hello")
			}
			return &model.Message{
				ID:       "msg-new",
				ThreadID: threadID,
				SenderID: userID,
				Text:     text,
			}, nil
		},
	}

	h := NewMessageHandler(svc, testPages)

	body := bytes.NewBufferString(`{"thread":"` + testThreadUUID + `","text":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/messages/", body)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateMessage(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}

	var resp messageResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Sender != "user-123" {
		t.Errorf("sender = %q, want %q", resp.Sender, "user-123")
	}
	if resp.IsRead {
		t.Error("new message should be unread")
	}
}

func TestMessageHandler_CreateMessage_EmptyText(t *testing.T) {
	svc := &mockMessageService{
		createMessageFn: func(ctx context.Context, userID, threadID, text string) (*model.Message, error) {
			return nil, model.NewInvalidMessageTextError()
		},
	}

	h := NewMessageHandler(svc, testPages)

	body := bytes.NewBufferString(`{"thread":"` + testThreadUUID + `","text":"   "}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/messages/", body)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateMessage(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeInvalidMessageText {
		t.Errorf("error code = %q, want %q", errResp["code"], model.ErrCodeInvalidMessageText)
	}
}

func TestMessageHandler_CreateMessage_ForeignThread(t *testing.T) {
	svc := &mockMessageService{
		createMessageFn: func(ctx context.Context, userID, threadID, text string) (*model.Message, error) {
			return nil, model.NewInvalidThreadError()
		},
	}

	h := NewMessageHandler(svc, testPages)

	body := bytes.NewBufferString(`{"thread":"` + testUnknownUUID + `","text":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/messages/", body)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateMessage(w, req)

	// 存在しないスレッドと非参加スレッドは同じ400（存在有無を漏らさない）
	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeInvalidThread {
		t.Errorf("error code = %q, want %q", errResp["code"], model.ErrCodeInvalidThread)
	}
}

// --- POST /chat/messages/{id}/mark_as_read/ テスト ---

func TestMessageHandler_MarkAsRead_Success(t *testing.T) {
	svc := &mockMessageService{
		markAsReadFn: func(ctx context.Context, userID, messageID string) (*model.Message, error) {
			if messageID != testMessageUUID {
				t.Errorf("messageID = %q, want %q", messageID, testMessageUUID)
			}
			return &model.Message{ID: messageID, IsRead: true}, nil
		},
	}

	h := NewMessageHandler(svc, testPages)

	req := httptest.NewRequest(http.MethodPost, "/chat/messages/"+testMessageUUID+"/mark_as_read/", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", testMessageUUID)
	w := httptest.NewRecorder()

	h.MarkAsRead(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "marked as read" {
		t.Errorf("status message = %q, want %q", resp["status"], "marked as read")
	}
}

func TestMessageHandler_MarkAsRead_NotFound(t *testing.T) {
	svc := &mockMessageService{
		markAsReadFn: func(ctx context.Context, userID, messageID string) (*model.Message, error) {
			return nil, model.NewMessageNotFoundError(messageID)
		},
	}

	h := NewMessageHandler(svc, testPages)

	req := httptest.NewRequest(http.MethodPost, "/chat/messages/"+testUnknownUUID+"/mark_as_read/", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", testUnknownUUID)
	w := httptest.NewRecorder()

	h.MarkAsRead(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

func TestMessageHandler_MarkAsRead_Forbidden(t *testing.T) {
	svc := &mockMessageService{
		markAsReadFn: func(ctx context.Context, userID, messageID string) (*model.Message, error) {
			return nil, model.NewNotThreadParticipantError()
		},
	}

	h := NewMessageHandler(svc, testPages)

	req := httptest.NewRequest(http.MethodPost, "/chat/messages/"+testMessageUUID+"/mark_as_read/", nil)
	req = withUserID(req, "user-999")
	req = withChiURLParam(req, "id", testMessageUUID)
	w := httptest.NewRecorder()

	h.MarkAsRead(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

// --- GET /chat/messages/unread/ テスト ---

func TestMessageHandler_UnreadCount_Success(t *testing.T) {
	svc := &mockMessageService{
		unreadCountFn: func(ctx context.Context, userID string) (int, error) {
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			return 7, nil
		},
	}

	h := NewMessageHandler(svc, testPages)

	req := httptest.NewRequest(http.MethodGet, "/chat/messages/unread/", nil)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.UnreadCount(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var resp map[string]int
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["unread_count"] != 7 {
		t.Errorf("unread_count = %d, want 7", resp["unread_count"])
	}
}

func TestMessageHandler_UnreadCount_Unauthorized(t *testing.T) {
	h := NewMessageHandler(&mockMessageService{}, testPages)

	req := httptest.NewRequest(http.MethodGet, "/chat/messages/unread/", nil)
	w := httptest.NewRecorder()

	h.UnreadCount(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestMessageHandler_ListMessages_MalformedThreadFilter(t *testing.T) {
	svc := &mockMessageService{
		listMessagesFn: func(ctx context.Context, userID, threadID string, limit, offset int) (*message.ListResult, error) {
			t.Error("service should not be called for a malformed thread filter")
			return &message.ListResult{}, nil
		},
	}

	h := NewMessageHandler(svc, testPages)

	req := httptest.NewRequest(http.MethodGet, "/chat/messages/?thread=not-a-uuid", nil)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.ListMessages(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	var body struct {
		Count   int               `json:"count"`
		Results []messageResponse `json:"results"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Count != 0 {
		t.Errorf("count = %d, want 0", body.Count)
	}
	if len(body.Results) != 0 {
		t.Errorf("results length = %d, want 0", len(body.Results))
	}
}

func TestMessageHandler_CreateMessage_MalformedThreadID(t *testing.T) {
	svc := &mockMessageService{
		createMessageFn: func(ctx context.Context, userID, threadID, text string) (*model.Message, error) {
			t.Error("service should not be called for a malformed thread ID")
			return nil, nil
		},
	}

	h := NewMessageHandler(svc, testPages)

	body := bytes.NewBufferString(`{"thread":"not-a-uuid","text":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/messages/", body)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateMessage(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
	resp := parseAPIErrorResponse(t, w)
	if resp["code"] != model.ErrCodeInvalidThread {
		t.Errorf("code = %q, want %q", resp["code"], model.ErrCodeInvalidThread)
	}
}

func TestMessageHandler_MarkAsRead_MalformedID(t *testing.T) {
	svc := &mockMessageService{
		markAsReadFn: func(ctx context.Context, userID, messageID string) (*model.Message, error) {
			t.Error("service should not be called for a malformed message ID")
			return nil, nil
		},
	}

	h := NewMessageHandler(svc, testPages)

	req := httptest.NewRequest(http.MethodPost, "/chat/messages/not-a-uuid/mark_as_read/", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "not-a-uuid")
	w := httptest.NewRecorder()

	h.MarkAsRead(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
	resp := parseAPIErrorResponse(t, w)
	if resp["code"] != model.ErrCodeMessageNotFound {
		t.Errorf("code = %q, want %q", resp["code"], model.ErrCodeMessageNotFound)
	}
}
