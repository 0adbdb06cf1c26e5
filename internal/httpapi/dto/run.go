package dto

import (
	"time"

	"github.com/cesargomez89/tracksync/internal/domain"
)

const (
	maxSourceLength = 4096
	maxTokenLength  = 4096
)

type StartRunRequest struct {
	Source string `json:"source"`
}

func (r *StartRunRequest) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateRequired("source", r.Source)...)
	errs = append(errs, validateMaxLength("source", r.Source, maxSourceLength)...)
	return errs
}

type SetTokenRequest struct {
	Token string `json:"token"`
}

func (r *SetTokenRequest) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateRequired("token", r.Token)...)
	errs = append(errs, validateMaxLength("token", r.Token, maxTokenLength)...)
	return errs
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Hint   string            `json:"hint,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

type TrackResultResponse struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	URI      string `json:"uri,omitempty"`
	Status   string `json:"status"`
	Filename string `json:"filename,omitempty"`
	Error    string `json:"error,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
}

type RunResponse struct {
	ID         string                `json:"id"`
	Source     string                `json:"source"`
	SourceKind string                `json:"source_kind"`
	Playlist   string                `json:"playlist"`
	Folder     string                `json:"folder"`
	Status     string                `json:"status"`
	Total      int                   `json:"total"`
	Succeeded  int                   `json:"succeeded"`
	Failed     int                   `json:"failed"`
	Skipped    int                   `json:"skipped"`
	Cancelled  int                   `json:"cancelled"`
	Error      string                `json:"error,omitempty"`
	StartedAt  string                `json:"started_at"`
	FinishedAt string                `json:"finished_at,omitempty"`
	ElapsedMS  int64                 `json:"elapsed_ms"`
	Results    []TrackResultResponse `json:"results,omitempty"`
}

// NewRunResponse converts a run summary. Per-track results are included only
// when withResults is set.
func NewRunResponse(s *domain.RunSummary, withResults bool) RunResponse {
	resp := RunResponse{
		ID:         s.ID,
		Source:     s.Source,
		SourceKind: s.SourceKind,
		Playlist:   s.Playlist,
		Folder:     s.Folder,
		Status:     string(s.Status),
		Total:      s.Total,
		Succeeded:  s.Succeeded,
		Failed:     s.Failed,
		Skipped:    s.Skipped,
		Cancelled:  s.Cancelled,
		Error:      s.Error,
		StartedAt:  s.StartedAt.Format(time.RFC3339),
		ElapsedMS:  s.Elapsed().Milliseconds(),
	}
	if s.FinishedAt != nil {
		resp.FinishedAt = s.FinishedAt.Format(time.RFC3339)
	}

	if withResults {
		for _, r := range s.Results {
			resp.Results = append(resp.Results, TrackResultResponse{
				Position: r.Number(),
				Title:    r.Title,
				Artist:   r.PrimaryArtist,
				URI:      r.URI,
				Status:   string(r.Status),
				Filename: r.Filename,
				Error:    r.Error,
				Attempts: r.Attempts,
			})
		}
	}
	return resp
}
