package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/askme/internal/config"
	"github.com/cloo-solutions/askme/internal/ingest"
	"github.com/cloo-solutions/askme/internal/openai"
	"github.com/cloo-solutions/askme/internal/repository"
	"github.com/cloo-solutions/askme/internal/service"
	"github.com/cloo-solutions/askme/internal/storage"
	"github.com/cloo-solutions/askme/internal/transcribe"
)

// Stack is the fully wired service graph shared by askme and askmed
type Stack struct {
	Config      *config.Config
	Corpus      *service.CorpusService
	Session     *service.Session
	Persona     *service.PersonaService
	Tones       *service.ToneCatalog
	Answers     *service.AnswerService
	Suggestions *service.SuggestionService
}

// NewStack builds the services from cfg and restores the persisted corpus.
func NewStack(ctx context.Context, cfg *config.Config) (*Stack, error) {
	if !cfg.HasOpenAI() {
		return nil, fmt.Errorf("ASKME_OPENAI_API_KEY is required")
	}

	store, err := newBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	repo := repository.NewCorpusRepository(store)

	transcriber, err := transcribe.New(transcribe.Config{
		Provider: cfg.TranscribeProvider,
		AssemblyAI: transcribe.AssemblyAIConfig{
			BaseURL:      cfg.AssemblyAIBaseURL,
			APIKey:       cfg.AssemblyAIAPIKey,
			PollInterval: cfg.TranscribePollInterval,
			MaxPolls:     cfg.TranscribeMaxPolls,
		},
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure transcription: %w", err)
	}
	if transcriber == nil {
		log.Println("transcribe: no provider configured, audio files will be skipped")
	}

	client := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		ChatAPIKey:          cfg.ChatKey(),
		ChatBaseURL:         cfg.ChatURL(),
		ChatModel:           cfg.ChatModel,
	})

	tones, err := service.LoadToneCatalog(cfg.TonesFile)
	if err != nil {
		return nil, err
	}

	extractor := ingest.NewExtractor(ingest.ChunkConfig{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}, transcriber)
	corpus := service.NewCorpusService(service.CorpusConfig{
		Dir:            cfg.CorpusDir,
		StalenessKey:   cfg.StalenessKey,
		AppendStrategy: cfg.AppendStrategy,
	}, extractor, client, repo)
	persona := service.NewPersonaService(client, repo, cfg.CorpusDir)

	return &Stack{
		Config:      cfg,
		Corpus:      corpus,
		Session:     service.NewSession(corpus, corpus.Load(ctx)),
		Persona:     persona,
		Tones:       tones,
		Answers:     service.NewAnswerService(corpus, persona, tones, client, cfg.RetrieveK),
		Suggestions: service.NewSuggestionService(client, persona),
	}, nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	if !cfg.HasS3() {
		return storage.NewDirStore(cfg.CorpusDir), nil
	}

	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		Prefix:          cfg.S3Prefix,
		UsePathStyle:    cfg.S3Endpoint != "",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if !cfg.HasStaticS3Credentials() {
		log.Println("storage: no static S3 keys, using the default AWS credential chain")
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("storage: corpus state in S3 bucket '%s'", cfg.S3Bucket)
	return client, nil
}
