package assistant

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"beacon-chat/internal/models"
)

// ErrIncompleteStream is returned when an event stream ends before its done event
var ErrIncompleteStream = errors.New("answer stream ended before completion")

// StreamSink receives the incremental output of one producer call.
// OnChunk always carries the full text so far, never a delta.
type StreamSink interface {
	OnChunk(cumulative string)
	OnSources(sources []models.Source)
}

// SinkFuncs adapts plain functions to StreamSink; nil fields are ignored
type SinkFuncs struct {
	Chunk   func(cumulative string)
	Sources func(sources []models.Source)
}

func (s SinkFuncs) OnChunk(cumulative string) {
	if s.Chunk != nil {
		s.Chunk(cumulative)
	}
}

func (s SinkFuncs) OnSources(sources []models.Source) {
	if s.Sources != nil {
		s.Sources(sources)
	}
}

// AskRequest is the payload of POST /api/ask
type AskRequest struct {
	Question       string   `json:"question"`
	SessionID      string   `json:"session_id"`
	ConversationID string   `json:"conversation_id,omitempty"`
	AttachmentIDs  []string `json:"attachment_ids,omitempty"`
}

// RegenerateRequest is the payload of POST /api/regenerate
type RegenerateRequest struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	SessionID      string `json:"session_id"`
}

// AskResponse is the final answer of an ask or regenerate call
type AskResponse struct {
	Answer     string          `json:"answer"`
	Sources    []models.Source `json:"sources"`
	HasTables  bool            `json:"has_tables"`
	NumSources int             `json:"num_sources"`
	TableCount int             `json:"table_count"`
	DocCount   int             `json:"doc_count"`
	Confidence *float64        `json:"confidence,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// SendMessage asks the backend a question and streams the answer into sink.
// An empty SessionID falls back to the configured session, then to the conversation id.
func (c *Client) SendMessage(ctx context.Context, ask AskRequest, sink StreamSink) (*AskResponse, error) {
	if ask.SessionID == "" {
		ask.SessionID = c.sessionFor(ask.ConversationID)
	}

	start := time.Now()
	c.logger.Info("SendMessage started",
		zap.String("conversation_id", ask.ConversationID),
		zap.Int("question_length", len(ask.Question)))

	answer, err := c.ask(ctx, "/api/ask", ask, sink)
	if err != nil {
		c.logger.Warn("SendMessage failed",
			zap.String("conversation_id", ask.ConversationID), zap.Error(err))
		return nil, err
	}

	c.logger.Info("SendMessage completed",
		zap.String("conversation_id", ask.ConversationID),
		zap.Int("sources", len(answer.Sources)),
		zap.Duration("duration", time.Since(start)))
	return answer, nil
}

// RegenerateMessage asks the backend to answer again for an existing assistant message
func (c *Client) RegenerateMessage(ctx context.Context, regen RegenerateRequest, sink StreamSink) (*AskResponse, error) {
	if regen.SessionID == "" {
		regen.SessionID = c.sessionFor(regen.ConversationID)
	}

	c.logger.Info("RegenerateMessage started",
		zap.String("conversation_id", regen.ConversationID),
		zap.String("message_id", regen.MessageID))

	answer, err := c.ask(ctx, "/api/regenerate", regen, sink)
	if err != nil {
		c.logger.Warn("RegenerateMessage failed",
			zap.String("message_id", regen.MessageID), zap.Error(err))
		return nil, err
	}

	c.logger.Info("RegenerateMessage completed", zap.String("message_id", regen.MessageID))
	return answer, nil
}

func (c *Client) sessionFor(conversationID string) string {
	if c.sessionID != "" {
		return c.sessionID
	}
	return conversationID
}

// ask posts payload to path and reads either an event stream or a JSON answer
func (c *Client) ask(ctx context.Context, path string, payload any, sink StreamSink) (*AskResponse, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleError(resp)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/event-stream" {
		return c.readEventStream(ctx, resp, sink)
	}

	var answer AskResponse
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if answer.Error != "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: answer.Error}
	}

	if answer.Answer != "" {
		sink.OnChunk(answer.Answer)
	}
	if len(answer.Sources) > 0 {
		sink.OnSources(answer.Sources)
	}
	return &answer, nil
}

// readEventStream applies chunk and sources events until done or error arrives.
//
// Events:
//   - chunk   {"content": cumulative text}
//   - sources [Source]
//   - done    AskResponse
//   - error   {"error": reason}
func (c *Client) readEventStream(ctx context.Context, resp *http.Response, sink StreamSink) (*AskResponse, error) {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventType string
	var data strings.Builder
	var content string
	var sources []models.Source
	sourcesSent := false

	// dispatch handles one complete event; a non-nil answer ends the stream
	dispatch := func() (*AskResponse, error) {
		payload := data.String()
		typ := eventType
		eventType = ""
		data.Reset()
		if payload == "" {
			return nil, nil
		}

		switch typ {
		case "chunk", "":
			var chunk struct {
				Content string `json:"content"`
			}
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				c.logger.Debug("Skip unparseable chunk", zap.Error(err))
				return nil, nil
			}
			content = chunk.Content
			sink.OnChunk(content)

		case "sources":
			if sourcesSent {
				return nil, nil
			}
			if err := json.Unmarshal([]byte(payload), &sources); err != nil {
				c.logger.Debug("Skip unparseable sources", zap.Error(err))
				return nil, nil
			}
			sourcesSent = true
			sink.OnSources(sources)

		case "done":
			var answer AskResponse
			if err := json.Unmarshal([]byte(payload), &answer); err != nil {
				return nil, fmt.Errorf("failed to decode final answer: %w", err)
			}
			if answer.Error != "" {
				return nil, &APIError{StatusCode: resp.StatusCode, Message: answer.Error}
			}
			if answer.Answer == "" {
				answer.Answer = content
			}
			if len(answer.Sources) == 0 {
				answer.Sources = sources
			} else if !sourcesSent {
				sink.OnSources(answer.Sources)
			}
			return &answer, nil

		case "error":
			var failure struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal([]byte(payload), &failure); err != nil || failure.Error == "" {
				failure.Error = payload
			}
			return nil, &APIError{StatusCode: resp.StatusCode, Message: failure.Error}

		default:
			c.logger.Debug("Unknown event type", zap.String("type", typ))
		}
		return nil, nil
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		line := scanner.Text()
		switch {
		case line == "":
			answer, err := dispatch()
			if err != nil || answer != nil {
				return answer, err
			}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read answer stream: %w", err)
	}

	// Flush an event not followed by a blank line
	answer, err := dispatch()
	if err != nil || answer != nil {
		return answer, err
	}
	return nil, ErrIncompleteStream
}
