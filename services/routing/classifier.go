package routing

import (
	"strings"
	"unicode/utf8"
)

// longPromptRunes is the length past which a prompt is treated as reasoning work
const longPromptRunes = 600

var dietKeywords = []string{
	"diet", "meal plan", "meal-plan", "nutrition", "calorie", "calories", "protein",
	"macros", "breakfast", "lunch", "dinner", "recipe", "weight loss", "lose weight",
	"gain weight", "vegetarian", "vegan", "keto", "ayurved",
}

var reasoningKeywords = []string{
	"step by step", "prove", "proof", "derive", "calculate", "analyze", "analyse",
	"compare", "trade-off", "tradeoff", "explain why", "why does", "reason",
	"algorithm", "optimi", "equation", "statistic", "correlation", "predict",
	"report on", "deep dive", "investigate",
}

// Classify maps a user message to a task type. Images always go to the
// vision route; otherwise keyword matches decide, defaulting to general chat.
func Classify(text string, hasImage bool) TaskType {
	if hasImage {
		return TaskImageAnalysis
	}

	lower := strings.ToLower(text)
	if containsAny(lower, dietKeywords) {
		return TaskDietPlanning
	}
	if containsAny(lower, reasoningKeywords) || utf8.RuneCountInString(text) > longPromptRunes {
		return TaskComplexReasoning
	}
	return TaskGeneralChat
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
