// merge.go — content-delta application onto a message's content list.
package thread

import (
	"github.com/comppolicylab/pingpong-sub002/internal/chunk"
	"github.com/comppolicylab/pingpong-sub002/internal/model"
)

// mergeDelta applies one content delta and returns a new content slice.
// Text concatenates onto a trailing text item and accumulates annotations;
// any other combination appends a new item (never merges across types).
func mergeDelta(content []model.ContentItem, d chunk.ContentDelta) []model.ContentItem {
	if d.Type == model.ContentText && len(content) > 0 {
		last := content[len(content)-1]
		if last.Type == model.ContentText && last.Text != nil {
			merged := &model.TextContent{
				Value:       last.Text.Value,
				Annotations: append([]model.Annotation{}, last.Text.Annotations...),
			}
			if d.Text != nil {
				if d.Text.Value != nil {
					merged.Value += *d.Text.Value
				}
				merged.Annotations = append(merged.Annotations, d.Text.Annotations...)
			}
			out := append([]model.ContentItem{}, content...)
			out[len(out)-1] = model.ContentItem{Type: model.ContentText, Text: merged}
			return out
		}
	}
	return append(append([]model.ContentItem{}, content...), deltaToItem(d))
}

// deltaToItem converts a content delta into a fresh content item.
func deltaToItem(d chunk.ContentDelta) model.ContentItem {
	item := model.ContentItem{Type: d.Type}
	switch d.Type {
	case model.ContentText:
		text := &model.TextContent{Annotations: []model.Annotation{}}
		if d.Text != nil {
			if d.Text.Value != nil {
				text.Value = *d.Text.Value
			}
			text.Annotations = append(text.Annotations, d.Text.Annotations...)
		}
		item.Text = text
	case model.ContentCodeOutputLogs:
		logs := &model.LogsContent{}
		if d.Logs != nil {
			*logs = *d.Logs
		}
		item.Logs = logs
	case model.ContentCodeOutputImageFile, model.ContentImageFile:
		img := &model.ImageFileContent{}
		if d.ImageFile != nil {
			*img = *d.ImageFile
		}
		item.ImageFile = img
	case model.ContentCodeOutputImageURL:
		img := &model.ImageURLContent{}
		if d.ImageURL != nil {
			*img = *d.ImageURL
		}
		item.ImageURL = img
	}
	return item
}
