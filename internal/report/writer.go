package report

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rohmanhakim/pyq-crawler/internal/mdconvert"
	"github.com/rohmanhakim/pyq-crawler/internal/metadata"
	"github.com/rohmanhakim/pyq-crawler/pkg/failure"
	"github.com/rohmanhakim/pyq-crawler/pkg/fileutil"
	"github.com/rohmanhakim/pyq-crawler/pkg/hashutil"
)

// Writer renders a Report to its destination and returns the bytes written.
type Writer interface {
	Write(r Report) (int, error)
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// NewWriter returns the writer for format. Markdown and HTML writers convert
// question bodies with rule.
func NewWriter(format Format, output io.Writer, rule mdconvert.ConvertRule) (Writer, error) {
	switch format {
	case FormatText:
		return NewTextWriter(output), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output, rule), nil
	case FormatHTML:
		return NewHTMLWriter(output, rule), nil
	default:
		return nil, &ReportError{
			Message: string(format),
			Cause:   ErrCauseUnknownFormat,
		}
	}
}

// FormatForPath picks the format from the file extension; anything that is
// not Markdown or HTML is written as text.
func FormatForPath(path string) Format {
	switch strings.ToLower(fileutil.GetFileExtension(path)) {
	case "md", "markdown":
		return FormatMarkdown
	case "html", "htm":
		return FormatHTML
	default:
		return FormatText
	}
}

// SaveFile renders r into path through a temp file and records the result
// as a report artifact.
func SaveFile(
	metadataSink metadata.MetadataSink,
	path string,
	format Format,
	r Report,
	rule mdconvert.ConvertRule,
) failure.ClassifiedError {
	var buf bytes.Buffer
	w, err := NewWriter(format, &buf, rule)
	if err == nil {
		_, err = w.Write(r)
	}
	if err != nil {
		var reportErr *ReportError
		if !errors.As(err, &reportErr) {
			reportErr = &ReportError{
				Message: err.Error(),
				Cause:   ErrCauseRenderFailure,
			}
		}
		reportErr.Path = path
		recordReportError(metadataSink, reportErr)
		return reportErr
	}

	if dir := filepath.Dir(path); dir != "." {
		if dirErr := fileutil.EnsureDir(dir); dirErr != nil {
			reportErr := &ReportError{
				Message: dirErr.Error(),
				Cause:   ErrCauseWriteFailure,
				Path:    path,
			}
			recordReportError(metadataSink, reportErr)
			return reportErr
		}
	}

	if writeErr := fileutil.AtomicWriteFile(path, path+".tmp", buf.Bytes(), os.FileMode(0644)); writeErr != nil {
		reportErr := &ReportError{
			Message: writeErr.Error(),
			Cause:   ErrCauseWriteFailure,
			Path:    path,
		}
		recordReportError(metadataSink, reportErr)
		return reportErr
	}

	metadataSink.RecordArtifact(
		metadata.ArtifactReport,
		path,
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrSubjectID, r.SubjectID),
			metadata.NewAttr(metadata.AttrHash, hashutil.ContentHash(buf.Bytes())),
		},
	)
	return nil
}

func recordReportError(metadataSink metadata.MetadataSink, err *ReportError) {
	metadataSink.RecordError(
		time.Now(),
		"report",
		"SaveFile",
		mapReportErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrWritePath, err.Path),
		},
	)
}
