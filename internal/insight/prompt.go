// ABOUTME: Prompt builders for natural-language health insights.
// ABOUTME: Produces the health overview and free-form question prompts.
package insight

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harperreed/vitalsync/internal/models"
)

// QuestionWindow is how many recent readings per metric back a question prompt.
const QuestionWindow = 20

const persona = "You are a friendly health AI assistant."

// HealthPrompt asks for a structured comparison of current values against
// the resting baseline for the given activity.
func HealthPrompt(baselines, current map[string]float64, activity models.Context) (string, error) {
	restingJSON, err := json.Marshal(baselines)
	if err != nil {
		return "", fmt.Errorf("encode baselines: %w", err)
	}
	currentJSON, err := json.Marshal(current)
	if err != nil {
		return "", fmt.Errorf("encode current values: %w", err)
	}

	var b strings.Builder
	b.WriteString(persona + "\n\n")
	b.WriteString("A patient is using a personal health sensor and has provided the following data.\n\n")
	b.WriteString("Please provide general advice and insights based on this data and the current context. ")
	fmt.Fprintf(&b, "Compare the user's current health metrics with their resting values and provide structured insights based on the context '%s'.\n\n", activity)
	b.WriteString("Structure your response clearly using bullet points for each metric.\n\n")
	b.WriteString("Do not give medical diagnoses or treatment recommendations.\n")
	b.WriteString("If any values are outside of typical ranges for their current activity, mention that the patient should consult with a healthcare professional.\n")
	b.WriteString("Be respectful and avoid alarming language.\n\n")
	fmt.Fprintf(&b, "Resting Values: %s\n", restingJSON)
	fmt.Fprintf(&b, "Current Values: %s\n", currentJSON)
	fmt.Fprintf(&b, "Context: %s\n", activity)
	return b.String(), nil
}

type promptReading struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
	Context   string  `json:"context"`
}

// QuestionPrompt asks a free-form question backed by recent readings per metric.
func QuestionPrompt(recent map[string][]models.Reading, question string) (string, error) {
	payload := make(map[string][]promptReading, len(recent))
	for metric, readings := range recent {
		rows := make([]promptReading, 0, len(readings))
		for _, r := range readings {
			rows = append(rows, promptReading{
				Timestamp: models.FormatTimestamp(r.Timestamp),
				Value:     r.Value,
				Context:   string(r.Context),
			})
		}
		payload[metric] = rows
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode recent data: %w", err)
	}

	var b strings.Builder
	b.WriteString(persona + "\n\n")
	b.WriteString("A patient is using a personal health sensor and has the following recent data:\n")
	b.Write(data)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "The patient has asked the following question: %q\n\n", question)
	b.WriteString("Provide a detailed, conversational response to the patient's question. ")
	b.WriteString("Use the recent data to support your insights. Be clear, respectful, and avoid alarming language. ")
	b.WriteString("Do not provide medical diagnoses or treatment recommendations. ")
	b.WriteString("If the data suggests something unusual, recommend consulting a healthcare professional.\n")
	return b.String(), nil
}
