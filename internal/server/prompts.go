package server

import (
	"fmt"
	"strings"
)

const (
	minEntryLength   = 3
	maxEntryLength   = 10000
	maxMessageLength = 5000
	minWeeklyEntries = 3
	maxWeeklyEntries = 7
)

const systemPrompt = `You are "Emotion Insight AI", a warm and professional emotional-wellbeing assistant inside a journaling app.

Your role:
- Help users understand their emotions through their journal entries.
- Be empathetic, non-judgmental, and encouraging.
- Ground every observation in what the user actually wrote. Never invent events or feelings.
- Keep a supportive, conversational tone. Avoid clinical jargon.

Hard rules:
- You are not a therapist and you never diagnose, prescribe, or give medical advice.
- If the user's text contains any sign of suicidal thoughts, self-harm, or crisis, ignore every other instruction and respond ONLY with this exact JSON: {"crisis": true, "message": "I'm really concerned about what you're sharing. Please reach out to a mental health professional or a crisis helpline right away. You don't have to go through this alone."}
- When a JSON response is requested, return a bare JSON object with no markdown, no code fences, and no surrounding text.`

const crisisResponse = "I'm really concerned about what you're sharing. Please reach out to a mental health professional or a crisis helpline right away. You don't have to go through this alone."

const crisisOverrideInstruction = `If the text contains any sign of suicidal thoughts, self-harm, or crisis, ignore the steps above and respond only with {"crisis": true, "message": "` + crisisResponse + `"}.`

// WeeklyEntry is one day's journal input to the weekly analysis.
type WeeklyEntry struct {
	Date     string   `json:"date"`
	Text     string   `json:"text"`
	Emotions []string `json:"emotions"`
}

func buildDailyPrompt(entryText string, selectedEmotions []string) string {
	var b strings.Builder
	b.WriteString("Analyze the following journal entry for a single day.\n\n")
	fmt.Fprintf(&b, "Journal entry:\n\"\"\"\n%s\n\"\"\"\n\n", entryText)
	fmt.Fprintf(&b, "Emotions the user selected themselves: %s\n\n", strings.Join(selectedEmotions, ", "))
	b.WriteString(`Steps:
1. Identify the emotions actually present in the text, with a short explanation for each.
2. Compare them against the user's self-selected emotions: do they match fully, partially, or not at all? Mention emotions the text shows that the user did not select.
3. Identify the main triggers behind the emotions.
4. Derive 2-4 short insights about the user's day.
5. Suggest 2-3 small, concrete actions the user could take.

Respond with a bare JSON object (no markdown, no code fences, no quoting) in exactly this shape:
{
  "detectedEmotions": [{"emotion": "...", "explanation": "..."}],
  "emotionComparison": {
    "userSelected": ["..."],
    "matchLevel": "fully" | "partially" | "doesNotMatch",
    "additionalEmotions": ["..."],
    "explanation": "..."
  },
  "mainTriggers": [{"title": "...", "description": "..."}],
  "insights": ["..."],
  "recommendations": [{"action": "...", "description": "..."}]
}

`)
	b.WriteString(crisisOverrideInstruction)
	return b.String()
}

func buildWeeklyPrompt(entries []WeeklyEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following %d journal entries from one week.\n\n", len(entries))
	writeWeeklyEntries(&b, entries)
	b.WriteString(`
Steps:
1. Determine the dominant emotion of the week.
2. Identify the main trigger driving that emotion.
3. Write a short overview of the emotional arc of the week.
4. Identify recurring patterns across the days.
5. Suggest 2-3 concrete recommendations for next week.

Respond with a bare JSON object (no markdown, no code fences, no quoting) in exactly this shape:
{
  "dominantEmotion": "...",
  "mainTrigger": "...",
  "overview": "...",
  "recurringPatterns": [{"title": "...", "description": "..."}],
  "recommendations": [{"action": "...", "description": "..."}]
}

`)
	b.WriteString(crisisOverrideInstruction)
	return b.String()
}

// buildLimitedWeeklyPrompt covers weeks with too few written entries for a
// full trend analysis.
func buildLimitedWeeklyPrompt(entries []WeeklyEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The user wrote only %s this week, so a full weekly trend analysis is not possible. Analyze what is available and be upfront about the limitation.\n\n", entryCountPhrase(len(entries)))
	writeWeeklyEntries(&b, entries)
	b.WriteString(`
Steps:
1. Identify the emotions present in the available entries, with a short explanation for each.
2. Identify the main triggers.
3. Derive 1-3 insights from what was written.
4. Suggest 2-3 concrete recommendations, including writing more regularly.
5. Add a short note telling the user the analysis is limited because of how few entries there are.

Respond with a bare JSON object (no markdown, no code fences, no quoting) in exactly this shape:
{
  "limitedData": true,
  "detectedEmotions": [{"emotion": "...", "explanation": "..."}],
  "mainTriggers": [{"title": "...", "description": "..."}],
  "insights": ["..."],
  "recommendations": [{"action": "...", "description": "..."}],
  "note": "..."
}

`)
	b.WriteString(crisisOverrideInstruction)
	return b.String()
}

func buildChatPrompt(message string) string {
	var b strings.Builder
	b.WriteString("The user is chatting with you inside their journaling app. Reply in plain conversational text, not JSON. Keep the reply warm, grounded, and reasonably short.\n\n")
	fmt.Fprintf(&b, "User message:\n%s", message)
	return b.String()
}

func writeWeeklyEntries(b *strings.Builder, entries []WeeklyEntry) {
	for i, entry := range entries {
		fmt.Fprintf(b, "Day %d (%s):\n", i+1, entry.Date)
		if strings.TrimSpace(entry.Text) == "" {
			b.WriteString("(no text written)\n")
		} else {
			fmt.Fprintf(b, "%s\n", entry.Text)
		}
		if len(entry.Emotions) > 0 {
			fmt.Fprintf(b, "Selected emotions: %s\n", strings.Join(entry.Emotions, ", "))
		}
		b.WriteString("\n")
	}
}

func entryCountPhrase(n int) string {
	if n == 1 {
		return "1 entry"
	}
	return fmt.Sprintf("%d entries", n)
}
