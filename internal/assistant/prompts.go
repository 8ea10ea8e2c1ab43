package assistant

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/folio/internal/profile"
)

func spamPrompt(message string) string {
	return fmt.Sprintf(`Analyze the following message for spam, abuse, or malicious intent.
Message: %q

Respond ONLY with a JSON object of the form {"isSpam": boolean, "reason": string}.`, message)
}

func occupationPrompt(title, description string) string {
	return fmt.Sprintf(`Analyze the following job title and description to determine the most appropriate Standard Occupational Classification (SOC) 2020 code.

Job Title: %s
Job Description: %s

Respond ONLY with a JSON object with these fields in order:
- "code": the 4-digit SOC 2020 code
- "title": the official SOC title
- "confidence": confidence level between 0 and 100
- "reasoning": array of reasoning points`, title, description)
}

// profileContext renders the parts of p the Q&A assistant may draw on.
func profileContext(p profile.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nHeadline: %s\nLocation: %s\nSummary: %s\n", p.Name, p.Headline, p.Location, p.AboutLong)

	b.WriteString("\nExperience:\n")
	for _, e := range p.Experience {
		fmt.Fprintf(&b, "- %s at %s (%s)\n  %s\n", e.Title, e.Company, e.Dates, strings.Join(e.Description, " "))
	}

	b.WriteString("\nProjects:\n")
	for _, pr := range p.Projects {
		fmt.Fprintf(&b, "- %s: %s\n  Stack: %s\n", pr.Name, pr.Description, strings.Join(pr.Stack, ", "))
	}

	fmt.Fprintf(&b, "\nSkills: %s\n", strings.Join(p.Skills, ", "))

	b.WriteString("\nEducation:\n")
	for _, e := range p.Education {
		fmt.Fprintf(&b, "- %s from %s (%s)\n", e.Degree, e.School, e.Dates)
	}

	fmt.Fprintf(&b, "\nWhat they're looking for: %s\n", strings.Join(p.WhatLookingFor, ", "))
	return b.String()
}

func qaInstructions(name string) string {
	return fmt.Sprintf(`You are the Profile Q&A Assistant for %[1]s.
Your goal is to answer visitor questions using ONLY the provided profile context.

Rules:
1. If the answer is not in the context, say: 'I don't have that information. Please message %[1]s directly.'
2. Do not hallucinate dates, companies, or skills not listed in the profile data.
3. Be friendly, professional, and concise (under 3 sentences).
4. Speak in the first person plural ('We' or 'The profile shows...') or third person regarding %[1]s.`, name)
}

// AnswerProfileQuestion answers a visitor question from p alone. It never
// fails: errors produce AnswerUnavailable and an empty reply AnswerEmpty.
func (c *Client) AnswerProfileQuestion(ctx context.Context, question string, p profile.Profile) string {
	question = strings.TrimSpace(question)
	if question == "" {
		return AnswerEmpty
	}
	user := fmt.Sprintf("Profile Data:\n%s\nQuestion: %s", profileContext(p), question)
	text, err := c.generate(ctx, "answer_question", qaInstructions(p.Name), user)
	if err != nil {
		c.logger.Warn("profile question failed", zap.Error(err))
		return AnswerUnavailable
	}
	if text == "" {
		return AnswerEmpty
	}
	return text
}
