package http

import "time"

// ErrorResponse is the generic error body shared by all endpoints.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// TriggerRequest is the body of the report/slides trigger endpoints.
type TriggerRequest struct {
	EventID          int64  `json:"event_id"`
	EventTitle       string `json:"event_title"`
	EventDescription string `json:"event_description"`
	AttendeeEmail    string `json:"attendee_email"`
}

// TriggerResponse reports the outcome of a trigger attempt.
type TriggerResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	EventID int64  `json:"event_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// StatusResponse is the poll endpoint's answer.
type StatusResponse struct {
	Success bool   `json:"success"`
	Found   bool   `json:"found"`
	Status  string `json:"status,omitempty"`
	URL     string `json:"url,omitempty"`
	Content string `json:"content,omitempty"`
	Source  string `json:"source,omitempty"`
	Stale   bool   `json:"stale,omitempty"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WebhookResponse acknowledges an agent callback.
type WebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JobStatusItem is the per-kind job view embedded in event responses.
type JobStatusItem struct {
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	URL         string     `json:"url,omitempty"`
	GeneratedAt *time.Time `json:"generatedAt,omitempty"`
	Stale       bool       `json:"stale,omitempty"`
}

// EventItem is one calendar event in API responses.
type EventItem struct {
	ID             int64         `json:"id"`
	ProfileID      *int64        `json:"profileId,omitempty"`
	ExternalID     string        `json:"externalId,omitempty"`
	Source         string        `json:"source,omitempty"`
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	AttendeeEmail  string        `json:"attendeeEmail,omitempty"`
	StartsAt       *time.Time    `json:"startsAt,omitempty"`
	EndsAt         *time.Time    `json:"endsAt,omitempty"`
	PresalesReport JobStatusItem `json:"presalesReport"`
	Slides         JobStatusItem `json:"slides"`
}

// ListEventsResponse wraps the event list.
type ListEventsResponse struct {
	Success bool        `json:"success"`
	Code    string      `json:"code,omitempty"`
	Error   string      `json:"error,omitempty"`
	Events  []EventItem `json:"events,omitempty"`
}

// EventDetailResponse wraps a single event.
type EventDetailResponse struct {
	Success bool       `json:"success"`
	Code    string     `json:"code,omitempty"`
	Error   string     `json:"error,omitempty"`
	Event   *EventItem `json:"event,omitempty"`
}

// SyncEvent is one upstream calendar event in a sync request.
type SyncEvent struct {
	ExternalID    string     `json:"external_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	AttendeeEmail string     `json:"attendee_email,omitempty"`
	StartsAt      *time.Time `json:"starts_at,omitempty"`
	EndsAt        *time.Time `json:"ends_at,omitempty"`
}

// SyncRequest upserts a batch of events from a connected calendar.
type SyncRequest struct {
	ProfileEmail string      `json:"profile_email"`
	ProfileName  string      `json:"profile_name,omitempty"`
	Source       string      `json:"source"`
	Events       []SyncEvent `json:"events"`
}

// SyncResponse reports how many events were upserted.
type SyncResponse struct {
	Success bool   `json:"success"`
	Synced  int    `json:"synced"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// FileItem is one uploaded file in API responses.
type FileItem struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	SizeBytes  int64     `json:"sizeBytes"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// FilesResponse wraps file uploads and listings.
type FilesResponse struct {
	Success bool       `json:"success"`
	Code    string     `json:"code,omitempty"`
	Error   string     `json:"error,omitempty"`
	File    *FileItem  `json:"file,omitempty"`
	Files   []FileItem `json:"files,omitempty"`
}

// UsageItem aggregates token usage for one agent.
type UsageItem struct {
	Agent            string `json:"agent"`
	Runs             int64  `json:"runs"`
	PromptTokens     int64  `json:"promptTokens"`
	CompletionTokens int64  `json:"completionTokens"`
	TotalTokens      int64  `json:"totalTokens"`
}

// UsageResponse wraps the token-usage summary.
type UsageResponse struct {
	Success bool        `json:"success"`
	Code    string      `json:"code,omitempty"`
	Error   string      `json:"error,omitempty"`
	Since   time.Time   `json:"since"`
	Usage   []UsageItem `json:"usage,omitempty"`
}
