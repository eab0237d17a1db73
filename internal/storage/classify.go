package storage

import "strings"

// categoryRule pairs a learning category with the keywords that select it.
// Rules are checked in order; the first match wins.
type categoryRule struct {
	category string
	keywords []string
}

var categoryRules = []categoryRule{
	{"architecture", []string{"architect", "design", "pattern", "schema", "tenant", "microservice"}},
	{"debugging", []string{"bug", "debug", "error", "fix", "crash", "exception"}},
	{"devops", []string{"docker", "kubernetes", "ci/cd", "deploy", "npm", "pip", "maven"}},
	{"security", []string{"security", "auth", "encrypt", "token", "csrf", "xss"}},
	{"testing", []string{"test", "mock", "assert", "coverage", "tdd"}},
	{"performance", []string{"perf", "optim", "cache", "latency", "throughput"}},
}

// DetectCategory classifies learning content into a category by keyword,
// defaulting to "code" when nothing matches.
func DetectCategory(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return "code"
}
