package cardtree

import "strings"

// Kind identifies a node in the message schema.
type Kind int

const (
	KindInvalid Kind = iota
	KindBatch
	KindMessage
	KindAttachmentList
	KindAttachment
	KindAdaptiveCard
	KindAnimationCard
	KindAudioCard
	KindHeroCard
	KindOAuthCard
	KindReceiptCard
	KindSigninCard
	KindThumbnailCard
	KindVideoCard
	KindSubmitActionList
	KindCardActionList
	KindSubmitAction
	KindCardAction
	KindActionPayload
	KindExtensionData
	KindIdentifier

	kindCount
)

var kindNames = [kindCount]string{
	KindInvalid:          "invalid",
	KindBatch:            "batch",
	KindMessage:          "message",
	KindAttachmentList:   "attachment_list",
	KindAttachment:       "attachment",
	KindAdaptiveCard:     "adaptive_card",
	KindAnimationCard:    "animation_card",
	KindAudioCard:        "audio_card",
	KindHeroCard:         "hero_card",
	KindOAuthCard:        "oauth_card",
	KindReceiptCard:      "receipt_card",
	KindSigninCard:       "signin_card",
	KindThumbnailCard:    "thumbnail_card",
	KindVideoCard:        "video_card",
	KindSubmitActionList: "submit_action_list",
	KindCardActionList:   "card_action_list",
	KindSubmitAction:     "submit_action",
	KindCardAction:       "card_action",
	KindActionPayload:    "action_payload",
	KindExtensionData:    "extension_data",
	KindIdentifier:       "identifier",
}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return "unknown"
	}
	return kindNames[k]
}

func (k Kind) Valid() bool {
	return k > KindInvalid && k < kindCount
}

// ParseKind accepts the names produced by Kind.String.
func ParseKind(name string) (Kind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k := KindBatch; k < kindCount; k++ {
		if kindNames[k] == name {
			return k, true
		}
	}
	return KindInvalid, false
}

// Kinds lists every valid kind, outermost first.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := KindBatch; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}
