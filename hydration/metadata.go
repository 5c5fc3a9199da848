package hydration

import (
	"bytes"
	"encoding/json"

	"github.com/cartel-sh/box/models"
)

// The protocol's metadata union is inconsistently tagged across content
// kinds, so classification is structural: the variant is decided by which
// fields are present, in a fixed priority order (image, video,
// attachments, content). Classification is total and never panics.

type mediaItem struct {
	Item  string `json:"item"`
	Cover string `json:"cover"`
	Type  string `json:"type"`
}

func metadataFields(raw json.RawMessage) map[string]json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	return fields
}

func fieldPresent(fields map[string]json.RawMessage, key string) bool {
	v, ok := fields[key]
	if !ok {
		return false
	}
	return !bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func fieldIsArray(fields map[string]json.RawMessage, key string) bool {
	v, ok := fields[key]
	if !ok {
		return false
	}
	trimmed := bytes.TrimSpace(v)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func fieldIsString(fields map[string]json.RawMessage, key string) bool {
	v, ok := fields[key]
	if !ok {
		return false
	}
	trimmed := bytes.TrimSpace(v)
	return len(trimmed) > 0 && trimmed[0] == '"'
}

// ClassifyMetadata decides the metadata variant of an opaque metadata
// object.
func ClassifyMetadata(raw json.RawMessage) models.MetadataKind {
	fields := metadataFields(raw)
	if fields == nil {
		return models.MetadataUnknown
	}

	switch {
	case fieldPresent(fields, "image"):
		return models.MetadataImage
	case fieldPresent(fields, "video"):
		return models.MetadataVideo
	case fieldIsArray(fields, "attachments"):
		return models.MetadataMedia
	case fieldIsString(fields, "content") &&
		!fieldPresent(fields, "image") &&
		!fieldPresent(fields, "video") &&
		!fieldPresent(fields, "attachments"):
		return models.MetadataMarkdown
	}
	return models.MetadataUnknown
}

func decodeItem(fields map[string]json.RawMessage, key string) *mediaItem {
	v, ok := fields[key]
	if !ok {
		return nil
	}
	var item mediaItem
	if err := json.Unmarshal(v, &item); err != nil {
		return nil
	}
	return &item
}

func decodeAttachments(fields map[string]json.RawMessage) []mediaItem {
	v, ok := fields["attachments"]
	if !ok {
		return nil
	}
	var items []mediaItem
	if err := json.Unmarshal(v, &items); err != nil {
		return nil
	}
	return items
}

// MediaURL returns the first usable asset URL for any metadata variant, or
// "" when no URL resolves.
func MediaURL(raw json.RawMessage) string {
	fields := metadataFields(raw)
	switch ClassifyMetadata(raw) {
	case models.MetadataImage:
		if img := decodeItem(fields, "image"); img != nil {
			return img.Item
		}
	case models.MetadataVideo:
		if vid := decodeItem(fields, "video"); vid != nil {
			return vid.Item
		}
	case models.MetadataMedia:
		if atts := decodeAttachments(fields); len(atts) > 0 {
			return atts[0].Item
		}
	}
	return ""
}

// MediaCover returns the display cover for any metadata variant: the image
// itself, the video cover (falling back to the video item), or the first
// attachment's cover (falling back to its item). Returns "" when nothing
// resolves.
func MediaCover(raw json.RawMessage) string {
	fields := metadataFields(raw)
	switch ClassifyMetadata(raw) {
	case models.MetadataImage:
		if img := decodeItem(fields, "image"); img != nil {
			return img.Item
		}
	case models.MetadataVideo:
		if vid := decodeItem(fields, "video"); vid != nil {
			if vid.Cover != "" {
				return vid.Cover
			}
			return vid.Item
		}
	case models.MetadataMedia:
		if atts := decodeAttachments(fields); len(atts) > 0 {
			if atts[0].Cover != "" {
				return atts[0].Cover
			}
			return atts[0].Item
		}
	}
	return ""
}

// ParseMetadata builds the normalized metadata record for a post.
func ParseMetadata(raw json.RawMessage) models.Metadata {
	kind := ClassifyMetadata(raw)
	md := models.Metadata{
		Kind:  kind,
		URL:   MediaURL(raw),
		Cover: MediaCover(raw),
	}

	fields := metadataFields(raw)
	if fields == nil {
		return md
	}

	if fieldIsString(fields, "content") {
		var content string
		if err := json.Unmarshal(fields["content"], &content); err == nil {
			md.Content = content
		}
	}

	if kind == models.MetadataMedia {
		for _, att := range decodeAttachments(fields) {
			md.Attachments = append(md.Attachments, models.MediaAttachment{
				Item:  att.Item,
				Cover: att.Cover,
				Type:  att.Type,
			})
		}
	}

	return md
}
