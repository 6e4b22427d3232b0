package quiz

import (
	"fmt"

	"github.com/kalambet/docquiz/internal/engine"
)

const generationInstructions = `You are an expert teacher writing a quiz strictly from the provided context. Do not use outside knowledge.

Write exactly %d questions mixing "multiple_choice" and "open_ended". Every question must be factual, concise and answerable from the context alone. Give each question a short "topic" naming what it is about. Write all questions, answers and topics in %s.

Return ONLY a JSON array, no prose or markdown. Each item:
{"type": "multiple_choice" | "open_ended", "question": string, "topic": string, "options": [4 strings] | null, "answer": string}

Rules:
- multiple_choice: exactly 4 plain option texts without "A)" style labels; "answer" is exactly one of them.
- open_ended: "options" is null; "answer" is a short reference answer taken from the context.`

const gradingInstructions = `You are a fair teacher grading a student's open-ended answer. Compare the student answer with the reference answer only; do not answer the question yourself.

Score from 0 to 100: 0-40 mostly incorrect or irrelevant, 41-70 partially correct or incomplete, 71-100 accurate and complete.

Respond ONLY with JSON: {"score": integer 0-100, "feedback": string}. Write the feedback in %s.`

func generationUserPrompt(topic string) string {
	if topic == "" {
		return "Write the quiz now. Return only the JSON array."
	}
	return fmt.Sprintf("Write the quiz about %q now. Return only the JSON array.", topic)
}

func gradingMessages(question, reference, answer, language string) []engine.Message {
	return []engine.Message{
		{Role: engine.RoleSystem, Content: fmt.Sprintf(gradingInstructions, language)},
		{Role: engine.RoleUser, Content: fmt.Sprintf("Question: %s\n\nReference answer: %s\n\nStudent answer: %s", question, reference, answer)},
	}
}

func gradingSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"score":    {Type: "integer", Description: "Grade from 0 to 100"},
			"feedback": {Type: "string", Description: "Short feedback for the student"},
		},
		Required: []string{"score", "feedback"},
	}
}
