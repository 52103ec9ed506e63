package llm

import (
	_ "embed"
	"strconv"
	"strings"
)

var (
	//go:embed prompts/chat_system.txt
	chatSystemTemplate string
	//go:embed prompts/structure_cv.txt
	structureTemplate string
	//go:embed prompts/recommend.txt
	recommendTemplate string
)

const emptyPlaceholder = "(none)"

// ChatSystemPrompt renders the system prompt for a chat turn. recordsSummary
// is a pre-rendered description of the submitted set.
func ChatSystemPrompt(recordsSummary string, rules []string) string {
	replacer := strings.NewReplacer(
		"{{RECORDS}}", orPlaceholder(recordsSummary),
		"{{RULES}}", orPlaceholder(bulletList(rules)),
	)
	return strings.TrimSpace(replacer.Replace(chatSystemTemplate))
}

// StructurePrompt renders the prompt asking for structured CV data.
func StructurePrompt(cvText string) string {
	return strings.TrimSpace(strings.ReplaceAll(structureTemplate, "{{CV_TEXT}}", cvText))
}

// RecommendPrompt renders the job recommendation prompt.
func RecommendPrompt(recordsJSON string, limit int) string {
	if limit <= 0 {
		limit = 5
	}
	replacer := strings.NewReplacer(
		"{{RECORDS}}", orPlaceholder(recordsJSON),
		"{{LIMIT}}", strconv.Itoa(limit),
	)
	return strings.TrimSpace(replacer.Replace(recommendTemplate))
}

func bulletList(items []string) string {
	var b strings.Builder
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(item)
	}
	return b.String()
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return emptyPlaceholder
	}
	return s
}
