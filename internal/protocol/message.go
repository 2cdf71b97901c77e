package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	UserAddressSuffix = "@s.whatsapp.net"

	unknownContent        = "unknown"
	conversationKey       = "conversation"
	senderKeyDistribution = "senderKeyDistributionMessage"
)

// UnmarshalJSON decodes the modelled fields and records the keys in the
// order they appear in the payload
func (mc *MessageContent) UnmarshalJSON(data []byte) error {
	type plain MessageContent
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	keys, err := objectKeys(data)
	if err != nil {
		return err
	}

	*mc = MessageContent(decoded)
	mc.keys = keys

	return nil
}

func objectKeys(data []byte) ([]string, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))

	if _, err := decoder.Token(); err != nil {
		return nil, err
	}

	var keys []string
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}

		key, ok := token.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected message content key %v", token)
		}
		keys = append(keys, key)

		var skipped json.RawMessage
		if err := decoder.Decode(&skipped); err != nil {
			return nil, err
		}
	}

	return keys, nil
}

func isContentKey(key string) bool {
	return key != senderKeyDistribution && (key == conversationKey || strings.Contains(key, "Message"))
}

// ContentType names the first content field of the message, e.g.
// "conversation", "imageMessage" or "stickerMessage"
func (mc *MessageContent) ContentType() string {
	if mc == nil {
		return ""
	}

	for _, key := range mc.keys {
		if isContentKey(key) {
			return key
		}
	}

	switch {
	case mc.Conversation != nil:
		return conversationKey
	case mc.ExtendedTextMessage != nil:
		return "extendedTextMessage"
	case mc.ImageMessage != nil:
		return "imageMessage"
	case mc.VideoMessage != nil:
		return "videoMessage"
	case mc.DocumentMessage != nil:
		return "documentMessage"
	case mc.AudioMessage != nil:
		return "audioMessage"
	}
	return unknownContent
}

// Text returns the first non-empty of the plain text, the extended text and
// the media captions
func (mc *MessageContent) Text() string {
	if mc == nil {
		return ""
	}

	if mc.Conversation != nil && *mc.Conversation != "" {
		return *mc.Conversation
	}

	if mc.ExtendedTextMessage != nil && mc.ExtendedTextMessage.Text != "" {
		return mc.ExtendedTextMessage.Text
	}

	for _, media := range []*Media{mc.ImageMessage, mc.VideoMessage, mc.DocumentMessage} {
		if media != nil && media.Caption != "" {
			return media.Caption
		}
	}

	return ""
}

// NormalizeAddress turns a bare phone number into a user address
func NormalizeAddress(recipient string) string {
	if strings.Contains(recipient, "@") {
		return recipient
	}
	return recipient + UserAddressSuffix
}
