package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/iudanet/tgauth/pkg/api"
)

// BotEvent is the single terminal event of a bot auth stream: either the
// token pair or the final status
type BotEvent struct {
	Tokens *api.TokenResponse
	Status string
}

// ErrStreamClosed означает, что сервер закрыл поток без события
var ErrStreamClosed = errors.New("event stream closed")

// WaitBotAuth открывает SSE поток /bot/events/{token} и ждёт первое событие
func (c *Client) WaitBotAuth(ctx context.Context, token string) (*BotEvent, error) {
	path := authPrefix + "/bot/events/" + url.PathEscape(token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("event stream request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, parseError(resp.StatusCode, body)
	}

	return readBotEvent(resp.Body)
}

// readBotEvent разбирает text/event-stream до первого события auth или status.
// Комментарии (": ping") пропускаются
func readBotEvent(r io.Reader) (*BotEvent, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	var event string
	var data strings.Builder

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if event == "" && data.Len() == 0 {
				continue
			}
			ev, err := decodeBotEvent(event, data.String())
			if err != nil {
				return nil, err
			}
			if ev != nil {
				return ev, nil
			}
			event = ""
			data.Reset()

		case strings.HasPrefix(line, ":"):
			// heartbeat

		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))

		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event stream: %w", err)
	}
	return nil, ErrStreamClosed
}

// decodeBotEvent возвращает nil для неизвестных событий
func decodeBotEvent(event, data string) (*BotEvent, error) {
	switch event {
	case "auth":
		var tokens api.TokenResponse
		if err := json.Unmarshal([]byte(data), &tokens); err != nil {
			return nil, fmt.Errorf("failed to decode auth event: %w", err)
		}
		return &BotEvent{Tokens: &tokens, Status: "USED"}, nil
	case "status":
		var st api.BotStatusResponse
		if err := json.Unmarshal([]byte(data), &st); err != nil {
			return nil, fmt.Errorf("failed to decode status event: %w", err)
		}
		return &BotEvent{Status: st.Status}, nil
	default:
		return nil, nil
	}
}
