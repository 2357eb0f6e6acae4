package ai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// The API contract allows an empty choices array on a 200 response.
var errEmptyChoices = errors.New("model response contained no choices")

const (
	completionMaxTokens = 50
	summaryMaxTokens    = 150
	// Below this many characters of plain text a summary is not meaningful.
	minSummaryLength = 50

	shortContentSummary = "The note is too short to generate a meaningful summary. Add more content and try again."
)

// ContextProvider supplies the combined extracted-file context for a note, or
// an empty string when none is attached.
type ContextProvider interface {
	CombinedContext(ctx context.Context, userID, noteID string) (string, error)
}

// Service wraps the hosted language-model API for completions, summaries, and
// transcription.
type Service struct {
	client   *openai.Client
	model    string
	contexts ContextProvider
	log      *zap.Logger
}

func NewService(apiKey, model string, contexts ContextProvider, log *zap.Logger) *Service {
	return &Service{
		client:   openai.NewClient(apiKey),
		model:    model,
		contexts: contexts,
		log:      log,
	}
}

type CompletionResult struct {
	Completion      string `json:"completion"`
	UsedFileContext bool   `json:"used_file_context"`
}

// Complete produces a short continuation of the user's text, optionally
// informed by attached file context.
func (s *Service) Complete(ctx context.Context, userID, noteID, text string) (*CompletionResult, error) {
	fileContext := s.fileContext(ctx, userID, noteID)

	system := "You are an AI assistant helping with note-taking. Complete the following text in a helpful, relevant way. Only provide the completion, not the original text."
	if fileContext != "" {
		system = fmt.Sprintf("You are an AI assistant helping with note-taking. Use the following file context to inform your completions:\n\n%s\n\nComplete the user's text in a helpful, relevant way that incorporates insights from the file context when appropriate. Only provide the completion, not the original text.", fileContext)
	}

	prompt := fmt.Sprintf("Context:\n%s\n\nCompletion:\n", text)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: completionMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errEmptyChoices
	}

	return &CompletionResult{
		Completion:      strings.TrimSpace(resp.Choices[0].Message.Content),
		UsedFileContext: fileContext != "",
	}, nil
}

type SummaryResult struct {
	Summary         string `json:"summary"`
	UsedFileContext bool   `json:"used_file_context"`
}

// Summarize produces a 2-3 sentence summary of the note's content. Content
// below the minimum length is answered without an API call.
func (s *Service) Summarize(ctx context.Context, userID, noteID, content string) (*SummaryResult, error) {
	plainText := StripHTML(content)

	if len(plainText) < minSummaryLength {
		return &SummaryResult{Summary: shortContentSummary}, nil
	}

	fileContext := s.fileContext(ctx, userID, noteID)

	system := "You are an AI assistant specialized in summarizing notes."
	if fileContext != "" {
		system = fmt.Sprintf("You are an AI assistant specialized in summarizing notes. Use the following file context to enhance your summary:\n\n%s", fileContext)
	}

	prompt := fmt.Sprintf(`Create a concise summary of the following note content.
The summary should be 2-3 sentences that capture the main points and purpose of the note.
If the content is too short or lacks substance, indicate that more content is needed for a meaningful summary.

Note Content:
%s

Summary:
`, plainText)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: summaryMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate summary: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errEmptyChoices
	}

	return &SummaryResult{
		Summary:         strings.TrimSpace(resp.Choices[0].Message.Content),
		UsedFileContext: fileContext != "",
	}, nil
}

func (s *Service) fileContext(ctx context.Context, userID, noteID string) string {
	if s.contexts == nil {
		return ""
	}
	fileContext, err := s.contexts.CombinedContext(ctx, userID, noteID)
	if err != nil {
		s.log.Warn("failed to load file context for AI prompt",
			zap.String("note_id", noteID), zap.Error(err))
		return ""
	}
	return fileContext
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// StripHTML replaces markup tags with spaces and normalizes whitespace so
// length checks and prompts operate on plain text.
func StripHTML(content string) string {
	plain := htmlTagPattern.ReplaceAllString(content, " ")
	return strings.Join(strings.Fields(plain), " ")
}
