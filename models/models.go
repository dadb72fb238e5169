package models

import (
	"encoding/json"
	"time"
)

// Call represents one phone call record under management
type Call struct {
	ID         string        `json:"id"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    *time.Time    `json:"end_time,omitempty"`
	CallerInfo string        `json:"caller_info,omitempty"`
	Report     *ReportResult `json:"report,omitempty"`
}

// Duration returns end_time - start_time, or nil if the call has not ended
func (c *Call) Duration() *time.Duration {
	if c.EndTime == nil {
		return nil
	}
	d := c.EndTime.Sub(c.StartTime)
	return &d
}

// TranscriptSegment is one unit of recognized transcript text attached to a Call
type TranscriptSegment struct {
	ID        int64     `json:"id"`
	CallID    string    `json:"call_id"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	IsFinal   bool      `json:"is_final"`
}

// Report is the structured incident summary derived from a call transcript.
// All eight fields are present in a well-formed report, possibly empty.
type Report struct {
	NatureOfEmergency string `json:"nature_of_emergency"`
	Location          string `json:"location"`
	PersonsInvolved   string `json:"persons_involved"`
	ActionsTaken      string `json:"actions_taken"`
	UnitsDispatched   string `json:"units_dispatched"`
	OutcomeResolution string `json:"outcome_resolution"`
	KeyEvents         string `json:"key_events"`
	OperatorNotes     string `json:"operator_notes"`
}

// ReportResult is the value stored in a call's report slot. Exactly one of
// the three shapes is set: a well-formed report, a parse failure carrying the
// raw provider text, or a generation failure message. Consumers of the
// serialized form detect the shape by field presence.
type ReportResult struct {
	Report       *Report
	ParseFailure *ParseFailure
	Failure      string
}

// ParseFailure is the degraded shape returned when the provider response is
// not valid JSON
type ParseFailure struct {
	Error string `json:"error"`
	Raw   string `json:"raw"`
}

// OkReport wraps a well-formed report
func OkReport(r *Report) ReportResult {
	return ReportResult{Report: r}
}

// ParseFailureResult wraps a non-JSON provider response
func ParseFailureResult(message, raw string) ReportResult {
	return ReportResult{ParseFailure: &ParseFailure{Error: message, Raw: raw}}
}

// GenerationFailureResult wraps a report generation error message
func GenerationFailureResult(message string) ReportResult {
	return ReportResult{Failure: message}
}

// IsOk reports whether the result holds a well-formed report
func (r ReportResult) IsOk() bool {
	return r.Report != nil
}

type failureJSON struct {
	Error string `json:"error"`
}

// MarshalJSON serializes whichever shape is present. The ok shape is the bare
// eight-field report object; both failure shapes carry an "error" field.
func (r ReportResult) MarshalJSON() ([]byte, error) {
	switch {
	case r.Report != nil:
		return json.Marshal(r.Report)
	case r.ParseFailure != nil:
		return json.Marshal(r.ParseFailure)
	default:
		return json.Marshal(failureJSON{Error: r.Failure})
	}
}

// UnmarshalJSON detects the stored shape by field presence: an "error" key
// marks a failure shape, "raw" alongside it marks a parse failure.
func (r *ReportResult) UnmarshalJSON(data []byte) error {
	var probe struct {
		Error *string `json:"error"`
		Raw   *string `json:"raw"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.Error != nil {
		if probe.Raw != nil {
			r.ParseFailure = &ParseFailure{Error: *probe.Error, Raw: *probe.Raw}
			return nil
		}
		r.Failure = *probe.Error
		return nil
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return err
	}
	r.Report = &report
	return nil
}

// HealthResponse is the /health payload
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// CreateCallRequest is the payload for creating a call record
type CreateCallRequest struct {
	CallerInfo string `json:"caller_info"`
}

// UpdateCallRequest is the payload for updating a call's caller info
type UpdateCallRequest struct {
	CallerInfo string `json:"caller_info"`
}

// TranscribeResponse is returned after a successful audio submission
type TranscribeResponse struct {
	Timestamp time.Time     `json:"timestamp"`
	Text      string        `json:"text"`
	IsFinal   bool          `json:"is_final"`
	EndTime   *time.Time    `json:"end_time,omitempty"`
	Report    *ReportResult `json:"report,omitempty"`
}

// BroadcastMessage is the envelope for websocket call updates
type BroadcastMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// CallUpdate is broadcast to websocket clients when a call gains a transcript
// segment or is finalized
type CallUpdate struct {
	Call    *Call              `json:"call"`
	Segment *TranscriptSegment `json:"segment,omitempty"`
}
