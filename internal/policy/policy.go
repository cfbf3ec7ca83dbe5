package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gowebpki/jcs"

	"github.com/davidahmann/cardkit/internal/dataid"
)

// TrackingStyle selects what presence in the live set means.
type TrackingStyle string

const (
	// TrackNone never blocks a click.
	TrackNone TrackingStyle = "none"
	// TrackEnabled lets a click through only while one of its ids is live.
	TrackEnabled TrackingStyle = "track-enabled"
	// TrackDisabled blocks a click once one of its ids is live.
	TrackDisabled TrackingStyle = "track-disabled"
)

// Profile is the behavior applied to one class of channel.
type Profile struct {
	AdaptCardActions     bool           `yaml:"adapt_card_actions" json:"adapt_card_actions"`
	ApplyIDs             bool           `yaml:"apply_ids" json:"apply_ids"`
	ConvertAdaptiveCards bool           `yaml:"convert_adaptive_cards" json:"convert_adaptive_cards"`
	IDOptions            dataid.Options `yaml:"id_options" json:"id_options"`
	Tracking             TrackingStyle  `yaml:"tracking" json:"tracking" validate:"required,oneof=none track-enabled track-disabled"`
	ClearEnabledOnSend   bool           `yaml:"clear_enabled_on_send" json:"clear_enabled_on_send"`
	DeactivateOnAction   bool           `yaml:"deactivate_on_action" json:"deactivate_on_action"`
	DeleteOnAction       bool           `yaml:"delete_on_action" json:"delete_on_action"`
	EnableOnSend         bool           `yaml:"enable_on_send" json:"enable_on_send"`
	SaveMessagesOnSend   bool           `yaml:"save_messages_on_send" json:"save_messages_on_send"`
}

// Tracks reports whether clicks are checked against the live set.
func (p Profile) Tracks() bool {
	return p.Tracking == TrackEnabled || p.Tracking == TrackDisabled
}

// Config holds both profiles and the channels that can edit sent messages.
type Config struct {
	Version          string   `yaml:"version" json:"version"`
	Updating         Profile  `yaml:"updating" json:"updating"`
	NonUpdating      Profile  `yaml:"non_updating" json:"non_updating"`
	UpdatingChannels []string `yaml:"updating_channels" json:"updating_channels" validate:"dive,required"`
}

// Default channels able to update and delete what the bot sent.
var DefaultUpdatingChannels = []string{"msteams", "skype", "slack", "telegram"}

// Default returns the built-in policy. Channels that can delete messages get
// their used cards removed; the others track ids and drop used clicks.
func Default() Config {
	return Config{
		Version: "v1",
		Updating: Profile{
			AdaptCardActions:     true,
			ApplyIDs:             true,
			ConvertAdaptiveCards: true,
			IDOptions:            dataid.NewOptions(dataid.ScopeAction),
			Tracking:             TrackNone,
			DeleteOnAction:       true,
			SaveMessagesOnSend:   true,
		},
		NonUpdating: Profile{
			AdaptCardActions:     true,
			ApplyIDs:             true,
			ConvertAdaptiveCards: true,
			IDOptions:            dataid.NewOptions(dataid.ScopeAction),
			Tracking:             TrackEnabled,
			ClearEnabledOnSend:   true,
			DeactivateOnAction:   true,
			EnableOnSend:         true,
		},
		UpdatingChannels: slices.Clone(DefaultUpdatingChannels),
	}
}

// IsUpdating reports whether channelID is configured as an updating channel.
func (c Config) IsUpdating(channelID string) bool {
	channelID = strings.ToLower(strings.TrimSpace(channelID))
	for _, ch := range c.UpdatingChannels {
		if strings.ToLower(ch) == channelID {
			return true
		}
	}
	return false
}

// ForChannel returns the profile in effect for a channel.
func (c Config) ForChannel(channelID string) Profile {
	if c.IsUpdating(channelID) {
		return c.Updating
	}
	return c.NonUpdating
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	for name, p := range map[string]Profile{"updating": c.Updating, "non_updating": c.NonUpdating} {
		if err := p.IDOptions.Validate(); err != nil {
			return fmt.Errorf("invalid policy: %s: %w", name, err)
		}
	}
	return nil
}

// Hash is the hex SHA-256 of the policy's canonical JSON form.
func (c Config) Hash() (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
