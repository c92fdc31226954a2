package chat

import "time"

// MessageType classifies what kind of content a message carries.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeImage    MessageType = "image"
	TypeVideo    MessageType = "video"
	TypeAudio    MessageType = "audio"
	TypeDocument MessageType = "document"
	TypeLocation MessageType = "location"
	TypeContact  MessageType = "contact"
	TypeSticker  MessageType = "sticker"
	TypeSystem   MessageType = "system"
)

// Message is the canonical, parser-agnostic representation of one chat turn.
// Immutable once produced by the normalizer; annotations are attached
// out-of-band, keyed by ID.
type Message struct {
	ID        int64
	SenderKey string
	Timestamp time.Time
	Content   string
	Type      MessageType
	IsDeleted bool
	IsEdited  bool
	ReplyTo   *int64
}

// Participant is one distinct sender within a conversation, keyed by the
// normalized sender string. Exact-equality identity only: two sender strings
// that differ by formatting are distinct participants.
type Participant struct {
	Key          string
	DisplayName  string
	FirstSeen    time.Time
	LastSeen     time.Time
	MessageCount int
}

// SentimentScore is a four-way polarity breakdown. Positive, Negative and
// Neutral each lie in [0,1] and sum to 1 within a small epsilon. Compound is
// the overall polarity rescaled into [0,1] (0.5 is neutral).
type SentimentScore struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
	Compound float64 `json:"compound"`
}

// Entity is one span-tagged named entity found in a message.
type Entity struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Entity type taxonomy.
const (
	EntityPerson       = "PERSON"
	EntityLocation     = "LOCATION"
	EntityOrganization = "ORGANIZATION"
	EntityDate         = "DATE"
	EntityEmail        = "EMAIL"
	EntityURL          = "URL"
	EntityMoney        = "MONEY"
	EntityPhone        = "PHONE"
)

// Keyword is one weighted term. Weights are corpus-relative: comparable
// within a run, not across runs.
type Keyword struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// Annotation is the NLP-derived signal for exactly one message.
type Annotation struct {
	MessageID int64
	Language  string // ISO code, empty when undetectable
	Sentiment SentimentScore
	Entities  []Entity
	Keywords   []Keyword
	WordCount  int
	CharCount  int
	EmojiCount int
	Degraded   bool
}

// Diagnostic records a dropped or degraded input unit. Non-fatal; returned
// alongside a successful run result.
type Diagnostic struct {
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
	Reason    string `json:"reason"`
}

// DateRange is the span of message timestamps in a conversation.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// KeywordCount is an aggregate keyword entry.
type KeywordCount struct {
	Term      string  `json:"term"`
	Count     int     `json:"count"`
	Frequency float64 `json:"frequency"`
}

// EntityCount is an aggregate entity entry within one type bucket.
type EntityCount struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// SentimentPoint is the per-calendar-day sentiment aggregate.
type SentimentPoint struct {
	Date      string         `json:"date"` // YYYY-MM-DD
	Messages  int            `json:"messages"`
	Sentiment SentimentScore `json:"sentiment"`
}

// Timeline holds the temporal histograms. Bucket counts each sum to the total
// message count.
type Timeline struct {
	ByHour    [24]int        `json:"by_hour"`
	ByWeekday [7]int         `json:"by_weekday"` // Sunday = 0
	ByDate    map[string]int `json:"by_date"`
	PeakHours []int          `json:"peak_hours"`
	PeakDays  []string       `json:"peak_days"`
}

// ParticipantStats is the per-participant slice of the aggregate.
type ParticipantStats struct {
	Key             string         `json:"key"`
	DisplayName     string         `json:"display_name"`
	MessageCount    int            `json:"message_count"`
	AvgLength       float64        `json:"avg_length"`
	Sentiment       SentimentScore `json:"sentiment"`
	TopKeywords     []KeywordCount `json:"top_keywords"`
	ActiveHours     []int          `json:"active_hours"`
	ResponseTimeAvg float64        `json:"response_time_avg_seconds"`
	ResponseTimeMed float64        `json:"response_time_median_seconds"`
}

// ConversationAnalytics is the pipeline's terminal output. Built once per run
// by folding all annotations; immutable after construction. Deterministic for
// identical input and configuration: no wall clock feeds any field.
type ConversationAnalytics struct {
	TotalMessages     int                          `json:"total_messages"`
	TotalParticipants int                          `json:"total_participants"`
	DateRange         DateRange                    `json:"date_range"`
	AvgMessagesPerDay float64                      `json:"avg_messages_per_day"`
	Sentiment         SentimentScore               `json:"sentiment"`
	SentimentTimeline []SentimentPoint             `json:"sentiment_timeline"`
	Keywords          []KeywordCount               `json:"keywords"`
	Entities          map[string][]EntityCount     `json:"entities"`
	Timeline          Timeline                     `json:"timeline"`
	Languages         map[string]int               `json:"languages"`
	MediaCounts       map[string]int               `json:"media_counts"`
	Participants      map[string]*ParticipantStats `json:"participants"`
}
