package engine

import (
	"context"
	"fmt"
	"strings"
)

const (
	opSummarize = "summarize"
	opSendEmail = "send_email"
)

// Summarize sends a transcript to the legacy summarizer endpoint.
func (c *SessionClient) Summarize(ctx context.Context, filename string, transcript []byte, customPrompt string) (string, error) {
	if len(transcript) == 0 {
		return "", fmt.Errorf("%w: transcript is empty", ErrInvalidRequest)
	}
	if filename == "" {
		filename = "transcript.txt"
	}

	var resp summaryResponse
	fields := map[string]string{"custom_prompt": customPrompt}
	files := []formFile{{field: "transcript", filename: filename, content: transcript}}
	if err := c.backend.postForm(ctx, opSummarize, "/summarize", fields, files, &resp); err != nil {
		return "", err
	}
	if err := checkSchema(opSummarize, &resp); err != nil {
		return "", err
	}
	return resp.Summary, nil
}

// SendEmail asks the legacy endpoint to mail a summary to recipients.
func (c *SessionClient) SendEmail(ctx context.Context, summary string, recipients []string) (string, error) {
	clean := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			clean = append(clean, r)
		}
	}
	if summary == "" || len(clean) == 0 {
		return "", fmt.Errorf("%w: summary and at least one recipient are required", ErrInvalidRequest)
	}

	var resp messageResponse
	if err := c.backend.postJSON(ctx, opSendEmail, "/send-email", sendEmailRequest{Summary: summary, Recipients: clean}, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}
