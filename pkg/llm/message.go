package llm

// Role defines message roles in a conversation.
type Role string

const (
	// RoleSystem is for system instructions.
	RoleSystem Role = "system"

	// RoleUser is for user messages.
	RoleUser Role = "user"

	// RoleAssistant is for assistant responses.
	RoleAssistant Role = "assistant"
)

// Message represents a chat message in a conversation.
type Message struct {
	// Role identifies the message sender.
	Role Role `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content"`
}

// VoiceSystemPrompt instructs the model to answer for speech synthesis:
// short conversational replies with no markup that would be read aloud.
const VoiceSystemPrompt = "You are a helpful voice assistant. " +
	"Keep responses concise and conversational since they will be spoken aloud. " +
	"Do not use markdown, bullet points, code blocks, or special formatting. " +
	"Answer in at most a few sentences unless the user asks for detail."

// HistoryWindow is the maximum number of prior messages sent to the model.
const HistoryWindow = 20

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// SanitizeHistory enforces strict user/assistant alternation starting with a
// user message. Backends like Perplexity reject conversations that repeat a
// role, which can happen after an interrupted turn. Offending messages are
// dropped, keeping the most recent ones.
func SanitizeHistory(history []Message) []Message {
	var out []Message
	expect := RoleUser
	for _, msg := range history {
		if msg.Role != RoleUser && msg.Role != RoleAssistant {
			continue
		}
		if msg.Role != expect {
			// Replace the previous message of the same role with the newer one
			if len(out) > 0 && out[len(out)-1].Role == msg.Role {
				out[len(out)-1] = msg
			}
			continue
		}
		out = append(out, msg)
		if expect == RoleUser {
			expect = RoleAssistant
		} else {
			expect = RoleUser
		}
	}
	// History sent as context must end on an assistant message so the new
	// user turn can follow it.
	if len(out) > 0 && out[len(out)-1].Role == RoleUser {
		out = out[:len(out)-1]
	}
	return out
}

// Window returns the last n messages of history.
func Window(history []Message, n int) []Message {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// BuildVoiceMessages assembles the full message list for one voice turn:
// the voice system prompt, a sanitized window of prior history, and the
// new user text.
func BuildVoiceMessages(history []Message, userText string) []Message {
	prior := Window(SanitizeHistory(history), HistoryWindow)

	messages := make([]Message, 0, len(prior)+2)
	messages = append(messages, NewSystemMessage(VoiceSystemPrompt))
	messages = append(messages, prior...)
	messages = append(messages, NewUserMessage(userText))
	return messages
}
