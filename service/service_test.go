package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"call-assist-service/models"
	"call-assist-service/report"
)

type appendedSegment struct {
	callID  string
	ts      time.Time
	text    string
	isFinal bool
}

type finalizedCall struct {
	id      string
	endTime time.Time
	result  models.ReportResult
}

// fakeStore records every mutation so tests can assert exactly what the
// workflow touched
type fakeStore struct {
	call       *models.Call
	getErr     error
	transcript string

	appended  []appendedSegment
	finalized []finalizedCall
	nextSegID int64
}

func (s *fakeStore) GetCall(id string) (*models.Call, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	c := *s.call
	return &c, nil
}

func (s *fakeStore) AppendTranscript(callID string, ts time.Time, text string, isFinal bool) (*models.TranscriptSegment, error) {
	s.appended = append(s.appended, appendedSegment{callID, ts, text, isFinal})
	s.nextSegID++
	return &models.TranscriptSegment{
		ID:        s.nextSegID,
		CallID:    callID,
		Timestamp: ts,
		Text:      text,
		IsFinal:   isFinal,
	}, nil
}

func (s *fakeStore) ConcatenateTranscripts(callID string) (string, error) {
	return s.transcript, nil
}

func (s *fakeStore) FinalizeCall(id string, endTime time.Time, result models.ReportResult) error {
	s.finalized = append(s.finalized, finalizedCall{id, endTime, result})
	return nil
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (t *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, filename, contentType string) (string, error) {
	t.calls++
	return t.text, t.err
}

type fakeGenerator struct {
	result models.ReportResult
	err    error

	calls       int
	transcripts []string
	metas       []report.CallMetadata
}

func (g *fakeGenerator) Generate(ctx context.Context, transcript string, meta report.CallMetadata) (models.ReportResult, error) {
	g.calls++
	g.transcripts = append(g.transcripts, transcript)
	g.metas = append(g.metas, meta)
	return g.result, g.err
}

type fakeBroadcaster struct {
	updates []models.CallUpdate
}

func (b *fakeBroadcaster) BroadcastCallUpdate(update models.CallUpdate) {
	b.updates = append(b.updates, update)
}

func newTestCall() *models.Call {
	return &models.Call{
		ID:         "call-1",
		StartTime:  time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC),
		CallerInfo: "Jane Doe",
	}
}

func okResult() models.ReportResult {
	return models.OkReport(&models.Report{NatureOfEmergency: "fire"})
}

func TestSubmitAudioAppendsFinalSegment(t *testing.T) {
	store := &fakeStore{call: newTestCall(), transcript: "my house is on fire"}
	transcriber := &fakeTranscriber{text: "my house is on fire"}
	generator := &fakeGenerator{result: okResult()}

	svc := NewCallService(store, transcriber, generator, nil)
	resp, err := svc.SubmitAudio(context.Background(), "call-1", []byte("audio"), "clip.wav", "audio/wav")
	if err != nil {
		t.Fatalf("SubmitAudio() error: %v", err)
	}

	if len(store.appended) != 1 {
		t.Fatalf("appended %d segments, want 1", len(store.appended))
	}
	seg := store.appended[0]
	if seg.text != "my house is on fire" {
		t.Errorf("segment text = %q, want transcription output", seg.text)
	}
	if !seg.isFinal {
		t.Error("segment should be marked final")
	}
	if !seg.ts.Equal(store.call.StartTime) {
		t.Errorf("segment ts = %v, want call start %v", seg.ts, store.call.StartTime)
	}
	if resp.Text != "my house is on fire" || !resp.IsFinal {
		t.Errorf("response text/is_final = %q/%v", resp.Text, resp.IsFinal)
	}
}

func TestSubmitAudioEmptyAudio(t *testing.T) {
	store := &fakeStore{call: newTestCall()}
	transcriber := &fakeTranscriber{}
	generator := &fakeGenerator{result: okResult()}

	svc := NewCallService(store, transcriber, generator, nil)
	_, err := svc.SubmitAudio(context.Background(), "call-1", nil, "clip.wav", "audio/wav")

	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("SubmitAudio() expected ValidationError, got %v", err)
	}
	if transcriber.calls != 0 {
		t.Errorf("transcriber called %d times, want 0", transcriber.calls)
	}
	if len(store.appended) != 0 || len(store.finalized) != 0 {
		t.Error("empty audio must not mutate the store")
	}
}

func TestSubmitAudioTranscriptionFailureAborts(t *testing.T) {
	store := &fakeStore{call: newTestCall()}
	transcriber := &fakeTranscriber{err: errors.New("gateway timeout")}
	generator := &fakeGenerator{result: okResult()}

	svc := NewCallService(store, transcriber, generator, nil)
	_, err := svc.SubmitAudio(context.Background(), "call-1", []byte("audio"), "clip.wav", "audio/wav")

	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("SubmitAudio() expected UpstreamError, got %v", err)
	}
	if len(store.appended) != 0 {
		t.Error("failed transcription must not append a segment")
	}
	if len(store.finalized) != 0 {
		t.Error("failed transcription must not finalize the call")
	}
	if generator.calls != 0 {
		t.Errorf("generator called %d times, want 0", generator.calls)
	}
}

func TestSubmitAudioSetsEndTime(t *testing.T) {
	store := &fakeStore{call: newTestCall(), transcript: "hello"}
	svc := NewCallService(store, &fakeTranscriber{text: "hello"}, &fakeGenerator{result: okResult()}, nil)

	before := time.Now().UTC()
	resp, err := svc.SubmitAudio(context.Background(), "call-1", []byte("audio"), "clip.wav", "audio/wav")
	after := time.Now().UTC()
	if err != nil {
		t.Fatalf("SubmitAudio() error: %v", err)
	}

	if resp.EndTime == nil {
		t.Fatal("response end_time not set")
	}
	if resp.EndTime.Before(before) || resp.EndTime.After(after) {
		t.Errorf("end_time %v outside [%v, %v]", resp.EndTime, before, after)
	}
	if resp.EndTime.Before(store.call.StartTime) {
		t.Errorf("end_time %v before start_time %v", resp.EndTime, store.call.StartTime)
	}
	if len(store.finalized) != 1 {
		t.Fatalf("finalized %d times, want 1", len(store.finalized))
	}
	if !store.finalized[0].endTime.Equal(*resp.EndTime) {
		t.Errorf("stored end_time %v differs from response %v", store.finalized[0].endTime, *resp.EndTime)
	}
}

func TestSubmitAudioGeneratorFailureIsDegraded(t *testing.T) {
	store := &fakeStore{call: newTestCall(), transcript: "hello"}
	generator := &fakeGenerator{err: &report.ProviderError{Err: errors.New("503")}}

	svc := NewCallService(store, &fakeTranscriber{text: "hello"}, generator, nil)
	resp, err := svc.SubmitAudio(context.Background(), "call-1", []byte("audio"), "clip.wav", "audio/wav")
	if err != nil {
		t.Fatalf("generator failure must not fail the submission, got %v", err)
	}

	if len(store.finalized) != 1 {
		t.Fatalf("finalized %d times, want 1", len(store.finalized))
	}
	stored := store.finalized[0].result
	if stored.IsOk() || stored.Failure == "" {
		t.Errorf("expected generation failure placeholder, got %+v", stored)
	}
	if resp.Report == nil || resp.Report.Failure == "" {
		t.Errorf("response should carry the placeholder, got %+v", resp.Report)
	}
}

func TestSubmitAudioBroadcastsUpdate(t *testing.T) {
	store := &fakeStore{call: newTestCall(), transcript: "hello"}
	broadcaster := &fakeBroadcaster{}

	svc := NewCallService(store, &fakeTranscriber{text: "hello"}, &fakeGenerator{result: okResult()}, broadcaster)
	if _, err := svc.SubmitAudio(context.Background(), "call-1", []byte("audio"), "clip.wav", "audio/wav"); err != nil {
		t.Fatalf("SubmitAudio() error: %v", err)
	}

	if len(broadcaster.updates) != 1 {
		t.Fatalf("broadcast %d updates, want 1", len(broadcaster.updates))
	}
	update := broadcaster.updates[0]
	if update.Call == nil || update.Call.ID != "call-1" {
		t.Errorf("broadcast call = %+v", update.Call)
	}
	if update.Segment == nil || update.Segment.Text != "hello" {
		t.Errorf("broadcast segment = %+v", update.Segment)
	}
}

func TestSubmitAudioCallNotFound(t *testing.T) {
	notFound := errors.New("call not found")
	store := &fakeStore{getErr: notFound}

	svc := NewCallService(store, &fakeTranscriber{text: "x"}, &fakeGenerator{result: okResult()}, nil)
	_, err := svc.SubmitAudio(context.Background(), "missing", []byte("audio"), "clip.wav", "audio/wav")
	if !errors.Is(err, notFound) {
		t.Fatalf("SubmitAudio() expected lookup error to pass through, got %v", err)
	}
}

func TestGetReportWithEmptyTranscript(t *testing.T) {
	store := &fakeStore{call: newTestCall(), transcript: ""}
	generator := &fakeGenerator{result: okResult()}

	svc := NewCallService(store, &fakeTranscriber{}, generator, nil)
	result, err := svc.GetReport(context.Background(), "call-1")
	if err != nil {
		t.Fatalf("GetReport() error: %v", err)
	}

	if generator.calls != 1 {
		t.Fatalf("generator called %d times, want 1", generator.calls)
	}
	if generator.transcripts[0] != "" {
		t.Errorf("generator transcript = %q, want empty", generator.transcripts[0])
	}
	if !result.IsOk() {
		t.Errorf("GetReport() result = %+v", result)
	}
}

func TestGetReportDoesNotMutate(t *testing.T) {
	store := &fakeStore{call: newTestCall(), transcript: "hello"}
	svc := NewCallService(store, &fakeTranscriber{}, &fakeGenerator{result: okResult()}, nil)

	if _, err := svc.GetReport(context.Background(), "call-1"); err != nil {
		t.Fatalf("GetReport() error: %v", err)
	}
	if len(store.appended) != 0 || len(store.finalized) != 0 {
		t.Error("GetReport must not write to the store")
	}
}

func TestGetReportSurfacesGeneratorError(t *testing.T) {
	store := &fakeStore{call: newTestCall()}
	generator := &fakeGenerator{err: &report.ConfigurationError{Msg: "missing key"}}

	svc := NewCallService(store, &fakeTranscriber{}, generator, nil)
	_, err := svc.GetReport(context.Background(), "call-1")

	var confErr *report.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("GetReport() expected ConfigurationError, got %v", err)
	}
}

func TestGetReportPassesCallMetadata(t *testing.T) {
	call := newTestCall()
	end := call.StartTime.Add(2 * time.Minute)
	call.EndTime = &end
	store := &fakeStore{call: call, transcript: "hello"}
	generator := &fakeGenerator{result: okResult()}

	svc := NewCallService(store, &fakeTranscriber{}, generator, nil)
	if _, err := svc.GetReport(context.Background(), "call-1"); err != nil {
		t.Fatalf("GetReport() error: %v", err)
	}

	meta := generator.metas[0]
	if meta.CallID != "call-1" || meta.CallerInfo != "Jane Doe" {
		t.Errorf("metadata = %+v", meta)
	}
	if meta.Duration == nil || *meta.Duration != 2*time.Minute {
		t.Errorf("metadata duration = %v, want 2m", meta.Duration)
	}
}
