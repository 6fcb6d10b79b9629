package captions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"stockmerge/internal/logx"
)

// Transcriber produces word timings for an audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]Word, error)
}

// OpenAI transcribes through the OpenAI audio API with word timestamps.
type OpenAI struct {
	Client   *openai.Client
	Model    string
	Language string
	Logger   *slog.Logger
}

// NewOpenAI builds a transcriber. baseURL may be empty.
func NewOpenAI(apiKey, baseURL, model, language string, logger *slog.Logger) (*OpenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai api key is not set")
	}
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = baseURL
	}
	if strings.TrimSpace(model) == "" {
		model = openai.Whisper1
	}
	return &OpenAI{
		Client:   openai.NewClientWithConfig(cfg),
		Model:    model,
		Language: language,
		Logger:   logx.OrNop(logger),
	}, nil
}

// Transcribe uploads audioPath and returns its words.
func (o *OpenAI) Transcribe(ctx context.Context, audioPath string) ([]Word, error) {
	logger := o.Logger.With(slog.String("step", "transcribe"), slog.String("audio", audioPath))
	logger.Info("sending transcription request", slog.String("model", o.Model))

	started := time.Now()
	resp, err := o.Client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.Model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: o.Language,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
		},
	})
	elapsed := time.Since(started)
	if err != nil {
		logger.Error("transcription failed", slog.Duration("duration", elapsed), logx.Err(err))
		return nil, fmt.Errorf("openai transcription: %w", err)
	}

	words := make([]Word, 0, len(resp.Words))
	for _, w := range resp.Words {
		words = append(words, Word{Text: w.Word, Start: w.Start, End: w.End})
	}
	if len(words) == 0 {
		for _, seg := range resp.Segments {
			// Segment-level fallback when the model returns no word timings.
			words = append(words, Word{Text: seg.Text, Start: seg.Start, End: seg.End})
		}
	}
	logger.Info("transcription received",
		slog.Duration("duration", elapsed),
		slog.Int("words", len(words)),
		slog.String("language", resp.Language),
	)
	return words, nil
}
