// Copyright 2025 James Ross
// Package executor implements the job executor from spec.md §4.6: for one
// reserved broker task, it loads the Job and its catalog rows, assembles
// the default pipeline, runs it, and persists the terminal outcome.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/videoforge/engine/internal/broker"
	"github.com/videoforge/engine/internal/clients"
	"github.com/videoforge/engine/internal/config"
	"github.com/videoforge/engine/internal/domain"
	"github.com/videoforge/engine/internal/obs"
	"github.com/videoforge/engine/internal/pipeline"
	"github.com/videoforge/engine/internal/pipeline/steps"
	"github.com/videoforge/engine/internal/store"
)

// Services bundles the external-service clients the default pipeline
// wires into its steps.
type Services struct {
	TTS          clients.TTSService
	Image        clients.ImageGenerationService
	DigitalHuman clients.DigitalHumanService
	Storage      clients.FileStorageService
}

type Executor struct {
	cfg      *config.Config
	execs    *store.ExecutionRepository
	jobs     *store.JobRepository
	catalog  *store.CatalogRepository
	svcs     Services
	log      *zap.Logger
	hostname string
}

func New(cfg *config.Config, execs *store.ExecutionRepository, jobs *store.JobRepository, catalog *store.CatalogRepository, svcs Services, log *zap.Logger) *Executor {
	host, _ := os.Hostname()
	return &Executor{cfg: cfg, execs: execs, jobs: jobs, catalog: catalog, svcs: svcs, log: log, hostname: host}
}

// Execute runs the full pipeline for one reserved task. A nil return means
// the broker should Ack; a non-nil return carries a classified error the
// broker uses to decide retry vs. dead-letter (see internal/errs).
func (e *Executor) Execute(ctx context.Context, task broker.Task) error {
	execution, err := e.execs.Get(ctx, task.ExecutionID)
	if err != nil {
		return fmt.Errorf("load execution %d: %w", task.ExecutionID, err)
	}

	if task.Retries > execution.RetryCount {
		if err := e.execs.IncrementRetry(ctx, execution.ID); err != nil {
			e.log.Warn("failed to sync retry count", obs.Err(err), obs.Int64("execution_id", execution.ID))
		}
	}
	if err := e.execs.SetWorkerHostname(ctx, execution.ID, e.hostname); err != nil {
		e.log.Warn("failed to set worker hostname", obs.Err(err), obs.Int64("execution_id", execution.ID))
	}

	job, err := e.jobs.Get(ctx, task.JobID)
	if err != nil {
		return fmt.Errorf("load job %d: %w", task.JobID, err)
	}

	pctx, err := e.buildContext(ctx, job, execution)
	if err != nil {
		return fmt.Errorf("build pipeline context: %w", err)
	}

	if err := os.MkdirAll(pctx.Workspace, 0o755); err != nil {
		return fmt.Errorf("create workspace %s: %w", pctx.Workspace, err)
	}

	p := e.buildPipeline()
	pexec := pipeline.NewExecutor(e.execs, e.log, pipeline.WithResultPersister(e))

	_, err = pexec.Run(ctx, p, pctx)
	if err != nil {
		// workspace is left intact on failure to support forensics; nothing
		// in the engine removes it later (Worker.WorkspaceRetention is not
		// read by any component)
		return err
	}

	if err := os.RemoveAll(pctx.Workspace); err != nil {
		e.log.Warn("failed to clean up workspace", obs.Err(err), obs.String("workspace", pctx.Workspace))
	}

	return nil
}

func (e *Executor) buildContext(ctx context.Context, job *domain.Job, execution *domain.JobExecution) (*pipeline.PipelineContext, error) {
	pctx := &pipeline.PipelineContext{
		JobID:        job.ID,
		UserID:       job.OwnerID,
		IsHorizontal: job.IsHorizontal,
		Content:      job.Content,
		Execution:    execution,
		Workspace:    filepath.Join(e.cfg.Worker.WorkspaceBaseDir, strings.ReplaceAll(job.OwnerID, "-", ""), fmt.Sprint(job.ID)),
	}

	if len(job.Extra) > 0 {
		if err := json.Unmarshal(job.Extra, &pctx.JobExtra); err != nil {
			return nil, fmt.Errorf("decode job extra: %w", err)
		}
	}

	if job.LanguageID != nil {
		lang, err := e.catalog.GetLanguage(ctx, *job.LanguageID)
		if err != nil {
			return nil, fmt.Errorf("load language %d: %w", *job.LanguageID, err)
		}
		pctx.Language = lang
	}
	if job.VoiceID != nil {
		voice, err := e.catalog.GetVoice(ctx, *job.VoiceID)
		if err != nil {
			return nil, fmt.Errorf("load voice %d: %w", *job.VoiceID, err)
		}
		pctx.Voice = voice
	}
	if job.TopicID != nil {
		topic, err := e.catalog.GetTopic(ctx, *job.TopicID)
		if err != nil {
			return nil, fmt.Errorf("load topic %d: %w", *job.TopicID, err)
		}
		pctx.Topic = topic
		if len(topic.Extra) > 0 {
			if err := json.Unmarshal(topic.Extra, &pctx.TopicExtra); err != nil {
				return nil, fmt.Errorf("decode topic extra: %w", err)
			}
		}
	}
	if job.AccountID != nil {
		account, err := e.catalog.GetAccount(ctx, *job.AccountID)
		if err != nil {
			return nil, fmt.Errorf("load account %d: %w", *job.AccountID, err)
		}
		pctx.Account = account
		if len(account.Extra) > 0 {
			if err := json.Unmarshal(account.Extra, &pctx.AccountExtra); err != nil {
				return nil, fmt.Errorf("decode account extra: %w", err)
			}
		}
	}

	return pctx, nil
}

// buildPipeline assembles the default composition from spec.md §4.5: TTS,
// Subtitle, Split, Image, Video, DigitalHuman(conditional), PostProcess,
// Upload.
func (e *Executor) buildPipeline() *pipeline.Pipeline {
	return pipeline.Default(
		steps.NewTTSStep(e.svcs.TTS),
		steps.NewSubtitleStep(),
		steps.NewSplitStep(),
		steps.NewImageStep(e.svcs.Image, 0),
		steps.NewVideoStep(0, 0),
		steps.NewDigitalHumanStep(e.svcs.DigitalHuman),
		steps.NewPostProcessStep(0),
		steps.NewUploadStep(e.svcs.Storage),
	)
}

// PersistResults implements pipeline.ResultPersister: it writes the
// Upload step's object-storage keys to the execution row. pipeline.Executor
// calls this before its terminal SUCCESS transition, so a crash between the
// two can never leave a SUCCESS row with a null result_key.
func (e *Executor) PersistResults(ctx context.Context, executionID int64, results map[string]pipeline.StepResult) error {
	uploadResult, ok := results["Upload"]
	if !ok {
		return fmt.Errorf("pipeline completed without an Upload result")
	}
	upload, ok := uploadResult.(*pipeline.UploadResult)
	if !ok {
		return fmt.Errorf("unexpected Upload result type %T", uploadResult)
	}

	bundle := domain.ResultKeyBundle{}
	if v, ok := upload.URLs["video_oss_key"]; ok {
		bundle.VideoOSSKey = &v
	}
	if v, ok := upload.URLs["cover_oss_key"]; ok {
		bundle.CoverOSSKey = &v
	}
	if v, ok := upload.URLs["audio_oss_key"]; ok {
		bundle.AudioOSSKey = &v
	}
	if v, ok := upload.URLs["srt_oss_key"]; ok {
		bundle.SRTOSSKey = &v
	}

	return e.execs.SetResultKeys(ctx, executionID, bundle)
}
