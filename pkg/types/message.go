package types

// Document is the generic structured form of a JSON object. Lists are []any and
// scalars are string, json.Number, bool or nil, as a json.Decoder with
// UseNumber yields them. Documents built by hand may hold any Go number.
type Document = map[string]any

// Message types.
const (
	MessageTypeMessage = "message"
	MessageTypeEvent   = "event"
)

// Attachment layouts. Any layout other than carousel is rendered as a list.
const (
	LayoutList     = "list"
	LayoutCarousel = "carousel"
)

// Attachment content types.
const (
	ContentTypeAdaptiveCard  = "application/vnd.microsoft.card.adaptive"
	ContentTypeAnimationCard = "application/vnd.microsoft.card.animation"
	ContentTypeAudioCard     = "application/vnd.microsoft.card.audio"
	ContentTypeHeroCard      = "application/vnd.microsoft.card.hero"
	ContentTypeOAuthCard     = "application/vnd.microsoft.card.oauth"
	ContentTypeReceiptCard   = "application/vnd.microsoft.card.receipt"
	ContentTypeSigninCard    = "application/vnd.microsoft.card.signin"
	ContentTypeThumbnailCard = "application/vnd.microsoft.card.thumbnail"
	ContentTypeVideoCard     = "application/vnd.microsoft.card.video"
)

// Card action types.
const (
	ActionOpenURL     = "openUrl"
	ActionImBack      = "imBack"
	ActionPostBack    = "postBack"
	ActionMessageBack = "messageBack"
	ActionSignin      = "signin"
	ActionCall        = "call"
)

// Adaptive card vocabulary used when walking card documents.
const (
	AdaptiveSubmitAction = "Action.Submit"
	AdaptivePropType     = "type"
	AdaptivePropData     = "data"
)

// Message is one outgoing or incoming activity on a channel.
type Message struct {
	ID               string          `json:"id,omitempty"`
	Type             string          `json:"type,omitempty"`
	Conversation     ConversationRef `json:"conversation"`
	Text             string          `json:"text,omitempty"`
	AttachmentLayout string          `json:"attachmentLayout,omitempty"`
	Attachments      []Attachment    `json:"attachments,omitempty"`
	Value            any             `json:"value,omitempty"`
}

// HasAttachments reports whether m carries at least one attachment.
func (m Message) HasAttachments() bool {
	return len(m.Attachments) > 0
}

// Attachment wraps card content. Content is a *RichCard for the rich card
// content types and anything JSON-shaped (Document, json.RawMessage, string,
// or a caller struct) for Adaptive cards.
type Attachment struct {
	ContentType string `json:"contentType"`
	ContentURL  string `json:"contentUrl,omitempty"`
	Name        string `json:"name,omitempty"`
	Content     any    `json:"content,omitempty"`
}

// RichCard covers every non-Adaptive card variant. The variants differ only in
// their display fields; all of them carry their actions as Buttons.
type RichCard struct {
	Title    string       `json:"title,omitempty"`
	Subtitle string       `json:"subtitle,omitempty"`
	Text     string       `json:"text,omitempty"`
	Media    []string     `json:"media,omitempty"`
	Images   []string     `json:"images,omitempty"`
	Buttons  []CardAction `json:"buttons,omitempty"`
}

// CardAction is a button on a rich card.
type CardAction struct {
	Type        string `json:"type"`
	Title       string `json:"title,omitempty"`
	Text        string `json:"text,omitempty"`
	DisplayText string `json:"displayText,omitempty"`
	Value       any    `json:"value,omitempty"`
}

// ToAttachment wraps the card in an attachment with the given rich content type.
func (c *RichCard) ToAttachment(contentType string) Attachment {
	return Attachment{ContentType: contentType, Content: c}
}
