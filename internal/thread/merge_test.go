package thread

import (
	"testing"

	"github.com/comppolicylab/pingpong-sub002/internal/chunk"
	"github.com/comppolicylab/pingpong-sub002/internal/model"
)

func strp(s string) *string { return &s }

func TestMergeDeltaTextConcatenation(t *testing.T) {
	content := []model.ContentItem{model.TextItem("The answer is ")}

	content = mergeDelta(content, chunk.ContentDelta{
		Type: model.ContentText,
		Text: &chunk.TextDelta{Value: strp("4")},
	})
	content = mergeDelta(content, chunk.ContentDelta{
		Type: model.ContentText,
		Text: &chunk.TextDelta{Value: strp(".")},
	})

	if len(content) != 1 {
		t.Fatalf("len(content) = %d, want 1", len(content))
	}
	if got := content[0].Text.Value; got != "The answer is 4." {
		t.Fatalf("text = %q, want %q", got, "The answer is 4.")
	}
}

func TestMergeDeltaDoesNotMutatePrior(t *testing.T) {
	before := []model.ContentItem{model.TextItem("a")}
	after := mergeDelta(before, chunk.ContentDelta{
		Type: model.ContentText,
		Text: &chunk.TextDelta{Value: strp("b")},
	})

	if before[0].Text.Value != "a" {
		t.Fatalf("prior snapshot mutated: %q", before[0].Text.Value)
	}
	if after[0].Text.Value != "ab" {
		t.Fatalf("merged = %q, want %q", after[0].Text.Value, "ab")
	}
}

func TestMergeDeltaAnnotationOnly(t *testing.T) {
	content := []model.ContentItem{model.TextItem("cited")}
	ann := model.Annotation{Type: "file_citation", FileID: "file-1"}

	content = mergeDelta(content, chunk.ContentDelta{
		Type: model.ContentText,
		Text: &chunk.TextDelta{Annotations: []model.Annotation{ann}},
	})

	if got := content[0].Text.Value; got != "cited" {
		t.Fatalf("text = %q, want %q (nil delta value adds nothing)", got, "cited")
	}
	if len(content[0].Text.Annotations) != 1 || content[0].Text.Annotations[0].FileID != "file-1" {
		t.Fatalf("annotations = %+v, want one file-1 citation", content[0].Text.Annotations)
	}
}

func TestMergeDeltaAdditivePerCall(t *testing.T) {
	// Application is additive exactly once per call: the same delta applied
	// twice appends its text and annotations twice.
	d := chunk.ContentDelta{
		Type: model.ContentText,
		Text: &chunk.TextDelta{
			Value:       strp("x"),
			Annotations: []model.Annotation{{Type: "file_citation", FileID: "f1"}},
		},
	}
	content := []model.ContentItem{model.TextItem("")}
	content = mergeDelta(content, d)
	content = mergeDelta(content, d)

	if got := content[0].Text.Value; got != "xx" {
		t.Fatalf("text = %q, want %q", got, "xx")
	}
	if got := len(content[0].Text.Annotations); got != 2 {
		t.Fatalf("len(annotations) = %d, want 2", got)
	}
}

func TestMergeDeltaNeverMergesAcrossTypes(t *testing.T) {
	content := []model.ContentItem{model.TextItem("see chart:")}

	content = mergeDelta(content, chunk.ContentDelta{
		Type:      model.ContentCodeOutputImageFile,
		ImageFile: &model.ImageFileContent{FileID: "file-img"},
	})
	content = mergeDelta(content, chunk.ContentDelta{
		Type: model.ContentText,
		Text: &chunk.TextDelta{Value: strp("done")},
	})

	if len(content) != 3 {
		t.Fatalf("len(content) = %d, want 3", len(content))
	}
	if content[1].Type != model.ContentCodeOutputImageFile || content[1].ImageFile.FileID != "file-img" {
		t.Fatalf("content[1] = %+v, want image file item", content[1])
	}
	// Text after a non-text item starts a fresh item instead of reaching back.
	if content[2].Text.Value != "done" {
		t.Fatalf("content[2].Text.Value = %q, want %q", content[2].Text.Value, "done")
	}
}

func TestMergeDeltaLogs(t *testing.T) {
	content := mergeDelta(nil, chunk.ContentDelta{
		Type: model.ContentCodeOutputLogs,
		Logs: &model.LogsContent{Logs: "hello\n"},
	})
	if len(content) != 1 || content[0].Logs == nil || content[0].Logs.Logs != "hello\n" {
		t.Fatalf("content = %+v, want one logs item", content)
	}
}

func TestDeltaToItemEmptyTextHasAnnotations(t *testing.T) {
	item := deltaToItem(chunk.ContentDelta{Type: model.ContentText})
	if item.Text == nil || item.Text.Annotations == nil {
		t.Fatalf("empty text delta must yield a text item with non-nil annotations")
	}
}
