// Package prompt assembles the system prompt for a chat turn from the
// assistant persona, the retrieved document context and fixed
// formatting guidelines.
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pravin-sketch/studyflow-ai1/internal/rag"
	"github.com/pravin-sketch/studyflow-ai1/internal/topic"
)

// docContentLimit caps direct document injection when no RAG index
// exists (small-document fallback).
const docContentLimit = 12000

// Query-enrichment policy for short, anaphoric follow-ups.
const (
	shortQueryThreshold = 20
	enrichedQueryLimit  = 300
	recentUserMessages  = 3
)

var personalities = map[topic.Category]string{
	topic.Coding:  "You are an expert programming tutor and software engineer. Use code examples, explain algorithms clearly, and help debug issues. Format code in markdown code blocks.",
	topic.Science: "You are a brilliant STEM tutor with expertise in biology, chemistry, physics, and mathematics. Use clear explanations, step-by-step solutions, and real-world examples.",
	topic.General: "You are a knowledgeable academic tutor with broad expertise. Provide clear, well-structured answers with context and examples.",
	topic.Casual:  "You are a friendly, helpful AI assistant. Be conversational, warm, and engaging.",
}

const guidelines = `Guidelines:
- Always give accurate, helpful responses
- Use markdown formatting (headers, bullets, code blocks) where helpful
- Be encouraging and supportive
- Keep responses concise but complete
- If a document is provided, always refer to it for document-related questions`

// BuildSystemPrompt composes the system message for one chat turn.
// docTopic may be nil (no document); index may be nil (small document
// injected directly via docContent, or no document at all).
func BuildSystemPrompt(docTopic *topic.Detected, docContent string, category topic.Category, index *rag.Index, userQuery string, topK int) string {
	personality := personalities[category]
	if personality == "" {
		personality = personalities[topic.General]
	}

	var topicInfo string
	if docTopic != nil {
		topicInfo = fmt.Sprintf("The user has uploaded a document about %q (%s).", docTopic.Subject, docTopic.Category)
	}

	var docSection string
	switch {
	case index != nil && len(index.Chunks) > 0:
		var relevant string
		if userQuery != "" {
			relevant = rag.RetrieveText(*index, userQuery, topK)
		} else {
			relevant = rag.HeadText(*index, topK)
		}
		docSection = fmt.Sprintf(`

You have FULL ACCESS to a document about %q (%d words, %d sections indexed).

The most relevant sections for this question are shown below. You can answer questions about ANY part of this document across the entire conversation — your retrieval system fetches the right sections each time.

Relevant document sections:
"""
%s
"""

IMPORTANT RULES:
- You have persistent access to this document throughout the conversation
- Answer confidently based on the document content shown above
- For follow-up questions ("tell me more", "explain that", "what else"), use your context from previous messages AND the document sections shown
- Only say you cannot find information if it is genuinely not in the document at all
- Never say you "don't have access" or "cannot retain" document information — you DO have access via the retrieval system`,
			index.Subject, index.TotalWords, len(index.Chunks), relevant)
	case docContent != "":
		trimmed := truncate(docContent, docContentLimit)
		docSection = fmt.Sprintf(`

You have FULL ACCESS to the following document. Use it as your PRIMARY knowledge source for all questions in this conversation:
"""
%s
"""

Answer all questions about this document confidently. If something is genuinely not in the document, use your general knowledge and mention that.`, trimmed)
	}

	return fmt.Sprintf("%s\n\n%s%s\n\n%s", personality, topicInfo, docSection, guidelines)
}

// EnrichQuery widens weak follow-up queries ("tell me more") with the
// user's recent messages so chunk retrieval has something to rank on.
// Messages at or above the length threshold pass through unchanged.
func EnrichQuery(message string, priorUserMessages []string) string {
	if len(message) >= shortQueryThreshold {
		return message
	}
	recent := priorUserMessages
	if len(recent) > recentUserMessages {
		recent = recent[len(recent)-recentUserMessages:]
	}
	enriched := message + " " + strings.Join(recent, " ")
	return truncate(enriched, enrichedQueryLimit)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
