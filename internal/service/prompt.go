package service

import (
	"fmt"
	"strings"

	"github.com/noticing/internal/models"
)

const (
	// SystemPrompt frames the model as an observer, never an advisor.
	SystemPrompt = "You are a calm narrative pattern detector. Identify recurring emotional themes, repeated words, or subtle tensions across the user's journal entries. Reflect patterns clearly and concisely. Do not give advice. Do not predict outcomes. Do not moralize. Keep tone grounded, observant, and spacious."

	reflectionInstruction = "Here are the last seven entries. Write a 150-250 word reflection that follows the system instructions."

	blankAnswer = "(blank)"

	// MaxReflectionWords caps stored reflections regardless of what the model returns.
	MaxReflectionWords = 250
)

// Questions are the three daily prompts, in form order.
var Questions = [3]string{
	"What stood out today?",
	"What felt subtly meaningful?",
	"What decision are you sensing but not acting on?",
}

// FormatEntries renders entries, already in chronological order, as
// numbered blocks separated by blank lines.
func FormatEntries(entries []models.JournalEntry) string {
	blocks := make([]string, 0, len(entries))
	for i, entry := range entries {
		answers := [3]string{entry.Answer1, entry.Answer2, entry.Answer3}
		lines := []string{fmt.Sprintf("Entry %d (%s):", i+1, entry.Day())}
		for q, answer := range answers {
			if answer == "" {
				answer = blankAnswer
			}
			lines = append(lines, fmt.Sprintf("- %s %s", Questions[q], answer))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// ReflectionPrompt is the user message sent with SystemPrompt.
func ReflectionPrompt(entries []models.JournalEntry) string {
	return reflectionInstruction + "\n\n" + FormatEntries(entries)
}

// TrimToMaxWords keeps at most maxWords whitespace-separated words. Text
// already within the limit is returned trimmed but otherwise unchanged.
func TrimToMaxWords(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return strings.TrimSpace(text)
	}
	return strings.Join(words[:maxWords], " ")
}
