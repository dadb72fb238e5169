package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"call-assist-service/metrics"
	"call-assist-service/models"
	"call-assist-service/report"

	"github.com/apex/log"
)

// ValidationError indicates caller-supplied input is missing or malformed
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// UpstreamError indicates the transcription provider call failed
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("transcription provider call failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Store is the persistence surface the call workflow needs
type Store interface {
	GetCall(id string) (*models.Call, error)
	AppendTranscript(callID string, ts time.Time, text string, isFinal bool) (*models.TranscriptSegment, error)
	ConcatenateTranscripts(callID string) (string, error)
	FinalizeCall(id string, endTime time.Time, result models.ReportResult) error
}

// Transcriber submits raw audio to the STT provider
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename, contentType string) (string, error)
}

// Generator derives a structured report from transcript text
type Generator interface {
	Generate(ctx context.Context, transcript string, meta report.CallMetadata) (models.ReportResult, error)
}

// Broadcaster pushes live call updates to connected clients
type Broadcaster interface {
	BroadcastCallUpdate(update models.CallUpdate)
}

// CallService orchestrates the call lifecycle: transcription, finalization and
// report generation
type CallService struct {
	store       Store
	transcriber Transcriber
	generator   Generator
	broadcaster Broadcaster
}

// NewCallService creates the call workflow service. broadcaster may be nil
// when live updates are not wanted (tests).
func NewCallService(store Store, transcriber Transcriber, generator Generator, broadcaster Broadcaster) *CallService {
	return &CallService{
		store:       store,
		transcriber: transcriber,
		generator:   generator,
		broadcaster: broadcaster,
	}
}

// SubmitAudio runs the batch-upload workflow for one audio file: transcribe,
// append a final segment, mark the call ended and regenerate the report.
//
// Failures in the mandatory path (empty audio, transcription) abort with no
// mutation. A report generation failure does not: the segment append and
// end_time update already succeeded, so the failure is recorded in the call's
// report slot instead of propagated.
func (s *CallService) SubmitAudio(ctx context.Context, callID string, audio []byte, filename, contentType string) (*models.TranscribeResponse, error) {
	if len(audio) == 0 {
		return nil, &ValidationError{Msg: "no audio provided"}
	}

	call, err := s.store.GetCall(callID)
	if err != nil {
		return nil, err
	}

	sttStart := time.Now()
	text, err := s.transcriber.Transcribe(ctx, audio, filename, contentType)
	metrics.TranscriptionDurationSeconds.Observe(time.Since(sttStart).Seconds())
	if err != nil {
		metrics.TranscriptionTotal.WithLabelValues("error").Inc()
		return nil, &UpstreamError{Err: err}
	}
	metrics.TranscriptionTotal.WithLabelValues("ok").Inc()

	// Segments reuse the call's start time as their timestamp; insertion
	// order is the effective ordering within one call.
	segment, err := s.store.AppendTranscript(callID, call.StartTime, text, true)
	if err != nil {
		return nil, err
	}

	endTime := time.Now().UTC()
	call.EndTime = &endTime

	transcript, err := s.store.ConcatenateTranscripts(callID)
	if err != nil {
		return nil, err
	}

	result := s.generateReport(ctx, call, transcript)
	call.Report = &result

	if err := s.store.FinalizeCall(callID, endTime, result); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"call_id":    callID,
		"text_bytes": len(text),
		"report_ok":  result.IsOk(),
	}).Info("audio submission processed")

	if s.broadcaster != nil {
		s.broadcaster.BroadcastCallUpdate(models.CallUpdate{Call: call, Segment: segment})
	}

	return &models.TranscribeResponse{
		Timestamp: segment.Timestamp,
		Text:      segment.Text,
		IsFinal:   segment.IsFinal,
		EndTime:   call.EndTime,
		Report:    call.Report,
	}, nil
}

// generateReport invokes the generator and degrades any failure into a
// stored placeholder. This is the one intentional catch-and-degrade point of
// the workflow.
func (s *CallService) generateReport(ctx context.Context, call *models.Call, transcript string) models.ReportResult {
	genStart := time.Now()
	result, err := s.generator.Generate(ctx, transcript, metadataFor(call))
	metrics.ReportGenerationDurationSeconds.Observe(time.Since(genStart).Seconds())
	observeGeneration(result, err)
	if err != nil {
		log.WithField("call_id", call.ID).
			Errorf("report generation failed, storing placeholder: %v", err)
		return models.GenerationFailureResult(err.Error())
	}
	return result
}

// GetReport regenerates a report from the call's current transcript without
// mutating stored state. Generator failures are surfaced to the caller.
func (s *CallService) GetReport(ctx context.Context, callID string) (models.ReportResult, error) {
	call, err := s.store.GetCall(callID)
	if err != nil {
		return models.ReportResult{}, err
	}

	transcript, err := s.store.ConcatenateTranscripts(callID)
	if err != nil {
		return models.ReportResult{}, err
	}

	genStart := time.Now()
	result, err := s.generator.Generate(ctx, transcript, metadataFor(call))
	metrics.ReportGenerationDurationSeconds.Observe(time.Since(genStart).Seconds())
	observeGeneration(result, err)
	if err != nil {
		return models.ReportResult{}, err
	}
	return result, nil
}

func metadataFor(call *models.Call) report.CallMetadata {
	return report.CallMetadata{
		CallID:     call.ID,
		StartTime:  call.StartTime,
		EndTime:    call.EndTime,
		CallerInfo: call.CallerInfo,
		Duration:   call.Duration(),
	}
}

func observeGeneration(result models.ReportResult, err error) {
	label := "ok"
	switch {
	case err != nil:
		var confErr *report.ConfigurationError
		if errors.As(err, &confErr) {
			label = "config_error"
		} else {
			label = "provider_error"
		}
	case result.ParseFailure != nil:
		label = "parse_failure"
	}
	metrics.ReportGenerationTotal.WithLabelValues(label).Inc()
}
