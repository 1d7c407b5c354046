package gemini

import (
	"fmt"
	"strings"
)

// FactPrompt asks for a single standalone fact. The reply is never stored, so
// the prompt forbids conversational framing.
const FactPrompt = "Tell me one surprising, true fact. Answer with the fact alone, " +
	"two or three sentences, no preamble and no follow-up question."

// VoicePrompt structures replies to voice messages as transcript plus answer.
const VoicePrompt = "Listen to this voice message. First write a line starting with " +
	"\"Transcript:\" containing what was said, then answer or comment on it."

// VideoPrompt structures replies to short videos.
const VideoPrompt = "Watch this video and describe what happens in it: the setting, " +
	"the people or objects, and any spoken words. Keep it under a few paragraphs."

// PhotoPrompt wraps an optional user caption around the image description task.
func PhotoPrompt(caption string) string {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return "Describe this image and point out anything notable in it."
	}
	return fmt.Sprintf("Look at this image and answer: %s", caption)
}
