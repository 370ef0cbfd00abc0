package models

import "time"

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MessageStatus is the lifecycle state of a message
type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusStreaming MessageStatus = "streaming"
	StatusComplete  MessageStatus = "complete"
	StatusError     MessageStatus = "error"
)

// DefaultConversationTitle is used until the first user message names the conversation
const DefaultConversationTitle = "New Chat"

// Conversation is an ordered, titled collection of messages
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsPinned  bool      `json:"is_pinned"`
	// IsRenamed is set once the title was chosen explicitly and must no longer be derived
	IsRenamed bool `json:"is_renamed,omitempty"`
}

// Clone returns a deep copy safe to hand out of the store
func (c Conversation) Clone() Conversation {
	out := c
	if c.Messages != nil {
		out.Messages = make([]Message, len(c.Messages))
		for i, m := range c.Messages {
			out.Messages[i] = m.Clone()
		}
	}
	return out
}

// Summary returns the conversation without its messages
func (c Conversation) Summary() ConversationSummary {
	return ConversationSummary{
		ID:           c.ID,
		Title:        c.Title,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		IsPinned:     c.IsPinned,
		MessageCount: len(c.Messages),
	}
}

// ConversationSummary is the sidebar view of a conversation
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	IsPinned     bool      `json:"is_pinned"`
	MessageCount int       `json:"message_count"`
}

// Message represents a single message in a conversation
type Message struct {
	ID              string        `json:"id"`
	ConversationID  string        `json:"conversation_id"`
	Role            Role          `json:"role"`
	Content         string        `json:"content"`
	StreamedContent string        `json:"streamed_content,omitempty"`
	Status          MessageStatus `json:"status"`
	Timestamp       time.Time     `json:"timestamp"`

	Attachments []FileAttachment `json:"attachments,omitempty"`
	Sources     []Source         `json:"sources,omitempty"`
	Tables      []Table          `json:"tables,omitempty"`
	Charts      []Chart          `json:"charts,omitempty"`

	IsStreaming bool     `json:"is_streaming"`
	IsEdited    bool     `json:"is_edited"`
	EditHistory []string `json:"edit_history,omitempty"`

	IsLiked    bool      `json:"is_liked"`
	IsDisliked bool      `json:"is_disliked"`
	Feedback   *Feedback `json:"feedback,omitempty"`

	IsRegeneratedFrom string            `json:"is_regenerated_from,omitempty"`
	Metadata          *ResponseMetadata `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the message
func (m Message) Clone() Message {
	out := m
	out.Attachments = append([]FileAttachment(nil), m.Attachments...)
	out.Sources = append([]Source(nil), m.Sources...)
	out.EditHistory = append([]string(nil), m.EditHistory...)
	if m.Tables != nil {
		out.Tables = make([]Table, len(m.Tables))
		for i, t := range m.Tables {
			out.Tables[i] = t.Clone()
		}
	}
	if m.Charts != nil {
		out.Charts = make([]Chart, len(m.Charts))
		for i, c := range m.Charts {
			out.Charts[i] = c.Clone()
		}
	}
	if m.Feedback != nil {
		fb := *m.Feedback
		out.Feedback = &fb
	}
	if m.Metadata != nil {
		md := *m.Metadata
		out.Metadata = &md
	}
	return out
}

// FileAttachment describes an uploaded file attached to a user message
type FileAttachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// Source is a document or web page the backend cited for an answer
type Source struct {
	Filename   string `json:"filename"`
	Path       string `json:"path"`
	Type       string `json:"type"`
	IsTable    bool   `json:"is_table"`
	ChunksUsed int    `json:"chunks_used"`
}

// Table is tabular data extracted from an assistant answer
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Clone returns a deep copy of the table
func (t Table) Clone() Table {
	out := Table{Headers: append([]string(nil), t.Headers...)}
	if t.Rows != nil {
		out.Rows = make([][]string, len(t.Rows))
		for i, r := range t.Rows {
			out.Rows[i] = append([]string(nil), r...)
		}
	}
	return out
}

// ChartSeries is one named data series of a chart
type ChartSeries struct {
	Name string    `json:"name"`
	Data []float64 `json:"data"`
}

// Chart is chart data extracted from an assistant answer
type Chart struct {
	Type   string        `json:"type"`
	Title  string        `json:"title,omitempty"`
	Labels []string      `json:"labels"`
	Series []ChartSeries `json:"series"`
}

// Clone returns a deep copy of the chart
func (c Chart) Clone() Chart {
	out := c
	out.Labels = append([]string(nil), c.Labels...)
	if c.Series != nil {
		out.Series = make([]ChartSeries, len(c.Series))
		for i, s := range c.Series {
			out.Series[i] = ChartSeries{Name: s.Name, Data: append([]float64(nil), s.Data...)}
		}
	}
	return out
}

// ResponseMetadata holds diagnostics attached to a completed answer
type ResponseMetadata struct {
	ResponseTime  int64   `json:"response_time_ms"`
	Confidence    float64 `json:"confidence"`
	CitationCount int     `json:"citation_count"`
}

// FeedbackType is like or dislike
type FeedbackType string

const (
	FeedbackLike    FeedbackType = "like"
	FeedbackDislike FeedbackType = "dislike"
)

// DislikeReason is the fixed set of reasons offered when disliking an answer
type DislikeReason string

const (
	ReasonNotHelpful DislikeReason = "not-helpful"
	ReasonIncorrect  DislikeReason = "incorrect"
	ReasonOffensive  DislikeReason = "offensive"
	ReasonOther      DislikeReason = "other"
)

// Valid reports whether r is one of the known reasons
func (r DislikeReason) Valid() bool {
	switch r {
	case ReasonNotHelpful, ReasonIncorrect, ReasonOffensive, ReasonOther:
		return true
	}
	return false
}

// Feedback is the payload submitted for a like or dislike
type Feedback struct {
	MessageID string        `json:"message_id"`
	Type      FeedbackType  `json:"type"`
	Reason    DislikeReason `json:"reason,omitempty"`
	Comment   string        `json:"comment,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// NotificationLevel is the severity of a user-visible notification
type NotificationLevel string

const (
	NotificationInfo    NotificationLevel = "info"
	NotificationSuccess NotificationLevel = "success"
	NotificationError   NotificationLevel = "error"
)

// Notification is a toast shown to the user
type Notification struct {
	ID             string            `json:"id"`
	Level          NotificationLevel `json:"level"`
	Title          string            `json:"title"`
	Message        string            `json:"message"`
	ConversationID string            `json:"conversation_id,omitempty"`
	MessageID      string            `json:"message_id,omitempty"`
	FileName       string            `json:"file_name,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}
