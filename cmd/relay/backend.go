package main

import (
	"context"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Abraxas-365/ollamarelay/adapters/aws/s3/s3storage"
	"github.com/Abraxas-365/ollamarelay/adapters/localfile"
	"github.com/Abraxas-365/ollamarelay/adapters/ollama"
	"github.com/Abraxas-365/ollamarelay/storage"
	"github.com/Abraxas-365/ollamarelay/stream"
)

// bindFlags maps config keys to flags so that an explicitly set flag wins
// over file and environment values.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		// Only fails for a nil flag, which would be a programming error.
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func (a *app) newOllama() *ollama.OllamaLLM {
	logger := a.logger.With().Str("component", "ollama").Logger()
	return ollama.NewOllamaLLM(a.cfg.Ollama.URL, a.cfg.Ollama.Model,
		ollama.WithLogger(logger),
		ollama.WithRequestTimeout(a.cfg.Ollama.RequestTimeout),
		ollama.WithStreamIdleTimeout(a.cfg.Ollama.StreamIdleTimeout),
		ollama.WithMalformedHook(func(err *stream.FramingError) {
			logger.Debug().Err(err).Msg("malformed record skipped")
		}),
	)
}

// transcriptStore picks the store for a transcript target: a local file,
// or a key prefix in S3 for s3:// URLs.
func (a *app) transcriptStore(ctx context.Context, target string) (storage.TranscriptStore, error) {
	if !strings.HasPrefix(target, "s3://") {
		return localfile.NewFileStore(), nil
	}
	client, bucket, err := a.s3Client(ctx, target)
	if err != nil {
		return nil, err
	}
	a.logger.Info().Str("bucket", bucket).Msg("saving transcripts to S3")
	return s3storage.NewS3Store(client, bucket), nil
}

func (a *app) transcriptReader(ctx context.Context, target string) (storage.TranscriptReader, error) {
	if !strings.HasPrefix(target, "s3://") {
		return localfile.NewFileStore(), nil
	}
	client, bucket, err := a.s3Client(ctx, target)
	if err != nil {
		return nil, err
	}
	return s3storage.NewReader(client, bucket), nil
}

func (a *app) s3Client(ctx context.Context, target string) (*s3.Client, string, error) {
	bucket, _, ok := s3storage.ParseTarget(target)
	if !ok {
		return nil, "", errors.Errorf("invalid S3 transcript target %q", target)
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to load AWS configuration")
	}
	return s3.NewFromConfig(awsCfg), bucket, nil
}
