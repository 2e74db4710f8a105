package report

import (
	"encoding/json"
	"strings"
)

// QuerySpec is the structured query the analysis service derives from a free-text request.
type QuerySpec struct {
	SearchQuery         string   `json:"search_query" yaml:"search_query"`
	Themes              []string `json:"themes" yaml:"themes"`
	Structure           []string `json:"structure" yaml:"structure"`
	SpecialRequirements *string  `json:"special_requirements,omitempty" yaml:"special_requirements,omitempty"`
}

// Requirements returns the special requirements text, or "" when absent.
func (q QuerySpec) Requirements() string {
	if q.SpecialRequirements == nil {
		return ""
	}
	return strings.TrimSpace(*q.SpecialRequirements)
}

// Paper is one ranked source document of a report.
type Paper struct {
	Title   string `json:"title" yaml:"title"`
	ArxivID string `json:"arxiv_id" yaml:"arxiv_id"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// PaperStatus reports whether the remote stage managed to process the paper at the same index.
type PaperStatus struct {
	Status string `json:"status" yaml:"status"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Failed reports whether the paper could not be processed.
func (s PaperStatus) Failed() bool {
	return s.Status == StatusError
}

// UnmarshalJSON accepts both "reason" and the server's "error" key for the failure text.
func (s *PaperStatus) UnmarshalJSON(data []byte) error {
	var raw struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Status = raw.Status
	s.Reason = raw.Reason
	if s.Reason == "" {
		s.Reason = raw.Error
	}
	return nil
}

// Result is what the generation service returns for a completed report.
type Result struct {
	Filename        string        `json:"filename" yaml:"filename"`
	Papers          []Paper       `json:"papers" yaml:"papers"`
	ProcessedPapers []PaperStatus `json:"processed_papers,omitempty" yaml:"processed_papers,omitempty"`
	ReportPreview   string        `json:"report_preview,omitempty" yaml:"report_preview,omitempty"`
	Warnings        []string      `json:"warnings" yaml:"warnings,omitempty"`
	QuerySpec       *QuerySpec    `json:"query_spec,omitempty" yaml:"query_spec,omitempty"`
}

// StatusFor returns the processing status aligned with papers[index], if the service sent one.
func (r Result) StatusFor(index int) (PaperStatus, bool) {
	if index < 0 || index >= len(r.ProcessedPapers) {
		return PaperStatus{}, false
	}
	status := r.ProcessedPapers[index]
	if status.Status == "" {
		return PaperStatus{}, false
	}
	return status, true
}

// Options selects how the remote stage retrieves documents and writes the report.
type Options struct {
	LLMModel       string `json:"llm_model" yaml:"llm_model" mapstructure:"llm_model"`
	EmbeddingModel string `json:"embedding_model,omitempty" yaml:"embedding_model,omitempty" mapstructure:"embedding_model"`
	IndexerType    string `json:"indexer_type" yaml:"indexer_type" mapstructure:"indexer_type"`
	TopPapers      int    `json:"top_papers" yaml:"top_papers" mapstructure:"top_papers"`
}
