// Package agent — upstream intent classifier.
//
// The Classifier decides whether a user message needs the agent loop at all
// before any model call is made. It is keyword/heuristic only: messages that
// merely chat (greetings, thanks, questions about the agent itself) should
// not burn a run.
package agent

import (
	"regexp"
	"strings"
)

// intentPattern pairs an intent name with a compiled regex.
type intentPattern struct {
	name    string
	pattern *regexp.Regexp
}

// Classifier scans a message for task-like intent.
type Classifier struct {
	taskPatterns  []intentPattern
	smallTalkOnly *regexp.Regexp
}

// NewClassifier creates a Classifier with the default intent patterns.
func NewClassifier() *Classifier {
	return &Classifier{
		taskPatterns:  defaultTaskPatterns(),
		smallTalkOnly: regexp.MustCompile(`(?i)^\s*(hi|hello|hey|thanks?|thank you|ok(ay)?|cool|nice|bye|good (morning|evening|night))\s*[.!?]*\s*$`),
	}
}

// NeedsAgent reports whether a message should start an agent run.
func (c *Classifier) NeedsAgent(message string) bool {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return false
	}
	if c.smallTalkOnly.MatchString(msg) {
		return false
	}
	for _, p := range c.taskPatterns {
		if p.pattern.MatchString(msg) {
			return true
		}
	}
	return false
}

// Intents returns the names of all task patterns matching a message.
func (c *Classifier) Intents(message string) []string {
	var matches []string
	for _, p := range c.taskPatterns {
		if p.pattern.MatchString(message) {
			matches = append(matches, p.name)
		}
	}
	return matches
}

// defaultTaskPatterns covers the verbs and shapes of browser tasks while
// minimizing false positives on plain conversation.
func defaultTaskPatterns() []intentPattern {
	return []intentPattern{
		{
			name:    "navigation",
			pattern: regexp.MustCompile(`(?i)\b(go to|open|visit|navigate|browse)\b`),
		},
		{
			name:    "url",
			pattern: regexp.MustCompile(`(?i)\bhttps?://|(^|\s)www\.|\.\s*(com|org|net|io|dev)\b`),
		},
		{
			name:    "search",
			pattern: regexp.MustCompile(`(?i)\b(search( for)?|look up|find( me)?|google)\b`),
		},
		{
			name:    "interaction",
			pattern: regexp.MustCompile(`(?i)\b(click|press|type|fill( in| out)?|select|scroll|submit|log ?in|sign ?(in|up))\b`),
		},
		{
			name:    "extraction",
			pattern: regexp.MustCompile(`(?i)\b(extract|scrape|read|summarize|get (the )?(price|title|text|content|list)|download|compare)\b`),
		},
		{
			name:    "form",
			pattern: regexp.MustCompile(`(?i)\b(book|buy|order|purchase|checkout|register|subscribe|apply)\b`),
		},
	}
}
