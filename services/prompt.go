package services

import (
	"fmt"
	"strings"

	"github.com/voicetutor/api/model"
)

// gradeBandTone maps each band to the register the tutor should speak in.
var gradeBandTone = map[model.GradeBand]string{
	model.GradeBandK2:      "Use very simple words, short sentences and lots of encouragement. Treat every small step as a win.",
	model.GradeBand35:      "Use simple, friendly language. Break problems into small steps and celebrate progress.",
	model.GradeBand68:      "Use clear, age-appropriate language. Encourage independent reasoning before offering hints.",
	model.GradeBand912:     "Use precise academic language. Push for rigorous reasoning and ask for justification.",
	model.GradeBandCollege: "Speak as a peer mentor. Assume strong fundamentals and focus on deep understanding.",
}

// BuildTutorPrompt builds the deterministic system prompt for a
// session-specific tutoring agent. Identical inputs always produce the same
// prompt.
func BuildTutorPrompt(studentName string, band model.GradeBand, subject string, hasMaterials bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a patient, encouraging voice tutor working with %s, a %s student, on %s.\n\n", studentName, band, subject)
	b.WriteString("Teach with the Socratic method: guide with questions rather than giving answers outright. ")
	b.WriteString("Ask one question at a time, wait for the student's answer, and build on what they say. ")
	b.WriteString("If the student is stuck, narrow the question instead of revealing the solution.\n\n")

	if tone, ok := gradeBandTone[band]; ok {
		b.WriteString(tone)
		b.WriteString("\n\n")
	}

	if hasMaterials {
		b.WriteString("The student's own study materials are attached to your knowledge base. ")
		b.WriteString("Ground your questions and examples in those materials whenever they are relevant, and say so when you do.\n\n")
	}

	b.WriteString("Keep responses short; this is a spoken conversation. Never discuss topics unrelated to tutoring.")
	return b.String()
}

// BuildFirstMessage builds the agent's deterministic opening line.
func BuildFirstMessage(studentName string, subject string) string {
	return fmt.Sprintf("Hi %s! I'm your %s tutor. What would you like to work on today?", studentName, subject)
}
