package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"notebuddy/internal/blob"
)

const recordingsPath = "recordings"

// TranscriptionResult is the transcription plus the structured analysis the
// model produces from it.
type TranscriptionResult struct {
	Transcription string   `json:"transcription"`
	Summary       string   `json:"summary"`
	KeyPoints     []string `json:"key_points"`
	IsLecture     bool     `json:"is_lecture"`
	AudioURL      string   `json:"audio_url"`
}

// Transcriber stores recordings and runs them through the speech-to-text and
// analysis models.
type Transcriber struct {
	client *openai.Client
	model  string
	store  blob.Store
	log    *zap.Logger
}

func NewTranscriber(apiKey, model string, store blob.Store, log *zap.Logger) *Transcriber {
	return &Transcriber{
		client: openai.NewClient(apiKey),
		model:  model,
		store:  store,
		log:    log,
	}
}

// Transcribe persists the recording, transcribes it with Whisper, and asks the
// chat model for a structured analysis. Analysis failures degrade to a bare
// transcription rather than discarding the user's audio.
func (t *Transcriber) Transcribe(ctx context.Context, userID, noteID string, audio []byte) (*TranscriptionResult, error) {
	pathname := fmt.Sprintf("%s/%s/%s/%d.webm", recordingsPath, userID, noteID, time.Now().UnixMilli())
	obj, err := t.store.Put(ctx, pathname, audio, blob.PutOptions{ContentType: "audio/webm"})
	if err != nil {
		return nil, fmt.Errorf("failed to store recording: %w", err)
	}

	transcription, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   bytes.NewReader(audio),
		FilePath: "recording.webm",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to transcribe audio: %w", err)
	}

	result := &TranscriptionResult{
		Transcription: transcription.Text,
		AudioURL:      obj.URL,
	}

	analysis, err := t.analyze(ctx, transcription.Text)
	if err != nil {
		t.log.Warn("transcription analysis failed, returning bare transcription",
			zap.String("note_id", noteID), zap.Error(err))
		return result, nil
	}

	result.Summary = analysis.Summary
	result.KeyPoints = analysis.KeyPoints
	result.IsLecture = analysis.IsLecture
	return result, nil
}

type analysisResponse struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	IsLecture bool     `json:"is_lecture"`
}

func (t *Transcriber) analyze(ctx context.Context, transcription string) (*analysisResponse, error) {
	prompt := fmt.Sprintf(`Analyze the following audio transcription and provide:
- A brief summary (2-3 sentences)
- The key points as a list
- Whether the recording appears to be a lecture or talk

Return the response as a JSON object with this structure:
{
    "summary": "brief_summary",
    "key_points": ["point1", "point2"],
    "is_lecture": false
}

Transcription: %s`, transcription)

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errEmptyChoices
	}

	var analysis analysisResponse
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}

	return &analysis, nil
}
