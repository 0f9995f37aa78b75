// Package profile derives a business profile and contextual suggestions
// from the conversation transcript. Both are pure functions of the
// conversation and are recomputed on every update.
package profile

import (
	"regexp"
	"strings"

	"github.com/naavyaberiwal-glitch/myAI3/internal/domain"
)

var fieldPatterns = map[string]*regexp.Regexp{
	"industry":  regexp.MustCompile(`(?im)^\s*industry\s*:\s*(.+)$`),
	"materials": regexp.MustCompile(`(?im)^\s*materials?\s*:\s*(.+)$`),
	"location":  regexp.MustCompile(`(?im)^\s*location\s*:\s*(.+)$`),
	"goal":      regexp.MustCompile(`(?im)^\s*goal\s*:\s*(.+)$`),
}

// industryKeywords backs the permissive fallback when no message carries
// structured fields.
var industryKeywords = []string{
	"printing", "textile", "apparel", "food", "restaurant", "construction",
	"packaging", "logistics", "retail",
}

// Extract scans user messages from most recent to oldest and returns the
// profile of the first message that yields at least one structured
// `Field: value` line. The four field patterns are independent and
// order-insensitive; values are trimmed. When no message yields structured
// fields, a keyword heuristic may seed the industry; otherwise nil.
func Extract(conversation domain.Conversation) *domain.BusinessProfile {
	users := conversation.UserMessages()

	for i := len(users) - 1; i >= 0; i-- {
		text := users[i].Text()
		if text == "" {
			continue
		}
		p := extractStructured(text)
		if !p.Empty() {
			return &p
		}
	}

	for i := len(users) - 1; i >= 0; i-- {
		lower := strings.ToLower(users[i].Text())
		for _, kw := range industryKeywords {
			if strings.Contains(lower, kw) {
				return &domain.BusinessProfile{Industry: kw}
			}
		}
	}

	return nil
}

func extractStructured(text string) domain.BusinessProfile {
	p := domain.BusinessProfile{}
	if m := fieldPatterns["industry"].FindStringSubmatch(text); m != nil {
		p.Industry = strings.TrimSpace(m[1])
	}
	if m := fieldPatterns["materials"].FindStringSubmatch(text); m != nil {
		p.Materials = strings.TrimSpace(m[1])
	}
	if m := fieldPatterns["location"].FindStringSubmatch(text); m != nil {
		p.Location = strings.TrimSpace(m[1])
	}
	if m := fieldPatterns["goal"].FindStringSubmatch(text); m != nil {
		p.Goal = strings.TrimSpace(m[1])
	}
	return p
}

var printingSuggestions = []string{
	"How can I cut paper waste in my print runs?",
	"Compare soy-based and petroleum inks for my business",
	"Find recycled paper suppliers near me",
}

var textileSuggestions = []string{
	"How do I source certified organic cotton?",
	"What does a textile water-use audit look like?",
	"Find low-impact dye suppliers near me",
}

var foodSuggestions = []string{
	"How can I reduce food waste in my kitchen?",
	"What compostable packaging options fit my menu?",
	"Find local produce suppliers near me",
}

var paperMaterialSuggestions = []string{
	"Compare recycled and virgin paper costs",
	"Find recycled paper suppliers near me",
	"How do I certify my paper sourcing?",
}

var plasticMaterialSuggestions = []string{
	"What are drop-in bioplastic alternatives?",
	"How do I measure my plastic footprint?",
	"Find bioplastic suppliers near me",
}

var defaultSuggestions = []string{
	"What are three sustainability quick wins for my business?",
	"Help me draft a 30-60-90 day sustainability plan",
	"How do I measure my carbon footprint?",
}

// Suggestions maps a profile to exactly one canned prompt list: an industry
// keyword match takes priority over a material match, which takes priority
// over the default list. Lists are never merged.
func Suggestions(p *domain.BusinessProfile) []string {
	if p == nil {
		return defaultSuggestions
	}

	industry := strings.ToLower(p.Industry)
	switch {
	case strings.Contains(industry, "print"):
		return printingSuggestions
	case strings.Contains(industry, "textile"), strings.Contains(industry, "apparel"):
		return textileSuggestions
	case strings.Contains(industry, "food"), strings.Contains(industry, "restaurant"):
		return foodSuggestions
	}

	materials := strings.ToLower(p.Materials)
	switch {
	case strings.Contains(materials, "paper"):
		return paperMaterialSuggestions
	case strings.Contains(materials, "plastic"):
		return plasticMaterialSuggestions
	}

	return defaultSuggestions
}
