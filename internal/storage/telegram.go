package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramStore stores files by sending them to a Telegram chat through the
// Bot API and retrieving them later via getFile.
type TelegramStore struct {
	token     string
	chatID    string
	logChatID string
	client    *http.Client
}

// NewTelegramStore creates a TelegramStore. logChatID may be empty, in which
// case SendLog falls back to the main chat.
func NewTelegramStore(token, chatID, logChatID string) (*TelegramStore, error) {
	if token == "" || chatID == "" {
		return nil, fmt.Errorf("telegram credentials not configured")
	}
	if logChatID == "" {
		logChatID = chatID
	}
	return &TelegramStore{
		token:     token,
		chatID:    chatID,
		logChatID: logChatID,
		client:    &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// telegramFile is the subset of the Bot API file object we care about.
type telegramFile struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FilePath     string `json:"file_path"`
	FileSize     int64  `json:"file_size"`
}

// sendResult is the message payload returned by send* methods.
type sendResult struct {
	Photo     []telegramFile `json:"photo"`
	Video     *telegramFile  `json:"video"`
	Animation *telegramFile  `json:"animation"`
	Document  *telegramFile  `json:"document"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// Upload sends the file to the storage chat, choosing the Bot API method by
// content type, and returns the Telegram file ID.
func (s *TelegramStore) Upload(ctx context.Context, name string, reader io.Reader, size int64, contentType string) (string, error) {
	method, field := methodFor(contentType)

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		var err error
		defer func() { pw.CloseWithError(err) }()
		if err = mw.WriteField("chat_id", s.chatID); err != nil {
			return
		}
		var part io.Writer
		if part, err = mw.CreateFormFile(field, name); err != nil {
			return
		}
		if _, err = io.Copy(part, reader); err != nil {
			return
		}
		err = mw.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/bot%s/%s", telegramAPIBase, s.token, method), pr)
	if err != nil {
		return "", fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return "", fmt.Errorf("decode %s response: %w", method, err)
	}
	if !api.OK {
		return "", fmt.Errorf("telegram api error: %s", api.Description)
	}

	var msg sendResult
	if err := json.Unmarshal(api.Result, &msg); err != nil {
		return "", fmt.Errorf("decode %s result: %w", method, err)
	}

	fileID := pickFileID(msg)
	if fileID == "" {
		return "", fmt.Errorf("telegram response for %s carried no file id", method)
	}
	return fileID, nil
}

// Fetch resolves the file's download path via getFile and streams it back.
func (s *TelegramStore) Fetch(ctx context.Context, fileID string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/bot%s/getFile?file_id=%s", telegramAPIBase, s.token, url.QueryEscape(fileID)), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build getFile request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("getFile: %w", err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return nil, "", fmt.Errorf("decode getFile response: %w", err)
	}
	if !api.OK {
		return nil, "", fmt.Errorf("telegram api error: %s", api.Description)
	}
	var f telegramFile
	if err := json.Unmarshal(api.Result, &f); err != nil {
		return nil, "", fmt.Errorf("decode getFile result: %w", err)
	}

	dlReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/file/bot%s/%s", telegramAPIBase, s.token, f.FilePath), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build download request: %w", err)
	}
	dl, err := s.client.Do(dlReq)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	if dl.StatusCode != http.StatusOK {
		dl.Body.Close()
		return nil, "", fmt.Errorf("download file: status %d", dl.StatusCode)
	}

	contentType := dl.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return dl.Body, contentType, nil
}

// SendLog posts an HTML-formatted message to the operational log channel.
func (s *TelegramStore) SendLog(ctx context.Context, text string) error {
	form := url.Values{
		"chat_id":    {s.logChatID},
		"text":       {text},
		"parse_mode": {"HTML"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/bot%s/sendMessage", telegramAPIBase, s.token),
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sendMessage: %w", err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return fmt.Errorf("decode sendMessage response: %w", err)
	}
	if !api.OK {
		return fmt.Errorf("telegram api error: %s", api.Description)
	}
	return nil
}

// methodFor maps a MIME type to the Bot API send method and form field.
// Photos compress well through sendPhoto; GIFs need sendAnimation to stay
// animated; everything else ships as a document to preserve bytes.
func methodFor(contentType string) (method, field string) {
	switch {
	case contentType == "image/gif":
		return "sendAnimation", "animation"
	case strings.HasPrefix(contentType, "video/"):
		return "sendVideo", "video"
	case strings.HasPrefix(contentType, "image/"):
		return "sendPhoto", "photo"
	default:
		return "sendDocument", "document"
	}
}

// pickFileID extracts the file ID from whichever field the send method
// populated. Photos arrive as an array of sizes; the last is the largest.
func pickFileID(msg sendResult) string {
	switch {
	case len(msg.Photo) > 0:
		return msg.Photo[len(msg.Photo)-1].FileID
	case msg.Video != nil:
		return msg.Video.FileID
	case msg.Animation != nil:
		return msg.Animation.FileID
	case msg.Document != nil:
		return msg.Document.FileID
	}
	return ""
}
