// views.go — derived read projections over the manager state.
//
// Views are recomputed from scratch on every read; consumers never observe
// a partially-updated intermediate state because each mutation completes
// under the manager lock before a snapshot can be taken.
package thread

import (
	"strings"

	"github.com/comppolicylab/pingpong-sub002/internal/model"
)

// Snapshot is one consistent view of the thread.
type Snapshot struct {
	Messages     []model.Message `json:"messages"`
	Participants []string        `json:"participants"`
	CanFetchMore bool            `json:"can_fetch_more"`
	Loading      bool            `json:"loading"`
	Waiting      bool            `json:"waiting"`
	Submitting   bool            `json:"submitting"`
	Published    bool            `json:"published"`
	AssistantID  string          `json:"assistant_id,omitempty"`
	LastError    *SendError      `json:"last_error,omitempty"`
}

// Snapshot builds the current derived view: ordered, run-grouped messages
// with the synthetic seed message suppressed.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	all := m.allMessagesLocked()
	snap := Snapshot{
		CanFetchMore: m.canFetchMore,
		Loading:      m.loading,
		Waiting:      m.waiting,
		Submitting:   m.submitting,
		Published:    m.published,
		AssistantID:  m.assistantID,
		LastError:    m.lastError,
	}
	m.mu.Unlock()

	ordered := sortMessages(all)
	grouped := groupByRun(ordered)
	snap.Messages = suppressSeedMessage(grouped)
	snap.Participants = participants(snap.Messages)
	return snap
}

// groupByRun merges consecutive assistant messages sharing a run_id into
// one displayed unit. The first message of the group lacking a
// message_type tag becomes the base record; content arrays concatenate in
// group order. This models an assistant turn whose final text answer
// follows a sequence of tagged tool/reasoning step messages.
func groupByRun(msgs []model.Message) []model.Message {
	var out []model.Message
	for i := 0; i < len(msgs); {
		msg := msgs[i]
		if msg.Role != model.RoleAssistant || msg.RunID == "" {
			out = append(out, msg)
			i++
			continue
		}

		group := []model.Message{msg}
		j := i + 1
		for j < len(msgs) && msgs[j].Role == model.RoleAssistant && msgs[j].RunID == msg.RunID {
			group = append(group, msgs[j])
			j++
		}
		out = append(out, mergeGroup(group))
		i = j
	}
	return out
}

// mergeGroup collapses one run group into its base record.
func mergeGroup(group []model.Message) model.Message {
	if len(group) == 1 {
		return group[0]
	}
	base := group[0]
	for _, msg := range group {
		if msg.MessageType() == "" {
			base = msg
			break
		}
	}
	var content []model.ContentItem
	for _, msg := range group {
		content = append(content, msg.Content...)
	}
	base.Content = content
	return base
}

// suppressSeedMessage drops a blank synthetic first user message: no
// attachments and no non-blank text content.
func suppressSeedMessage(msgs []model.Message) []model.Message {
	if len(msgs) == 0 {
		return msgs
	}
	first := msgs[0]
	if first.Role != model.RoleUser || len(first.Attachments) > 0 {
		return msgs
	}
	for _, item := range first.Content {
		if item.Type != model.ContentText {
			return msgs
		}
		if item.Text != nil && strings.TrimSpace(item.Text.Value) != "" {
			return msgs
		}
	}
	return msgs[1:]
}

// participants lists the distinct roles in order of first appearance.
func participants(msgs []model.Message) []string {
	seen := make(map[model.Role]bool, 2)
	var out []string
	for _, msg := range msgs {
		if !seen[msg.Role] {
			seen[msg.Role] = true
			out = append(out, string(msg.Role))
		}
	}
	return out
}
