package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rohmanhakim/pyq-crawler/internal/api"
	"github.com/rohmanhakim/pyq-crawler/internal/metadata"
	"github.com/rohmanhakim/pyq-crawler/pkg/failure"
	"github.com/rohmanhakim/pyq-crawler/pkg/fileutil"
	"github.com/rohmanhakim/pyq-crawler/pkg/hashutil"
)

/*
Responsibilities
- Persist matching question documents, one file per (subject, chapter)
- Ensure deterministic filenames

Output Characteristics
- Pretty-printed JSON, the question document verbatim
- Last match of a chapter wins; earlier matches are overwritten
- Writes go through a synced temp file and rename
*/

type Sink interface {
	Write(
		outputDir string,
		subjectID string,
		chapterTitle string,
		detail api.QuestionDetail,
	) (WriteResult, failure.ClassifiedError)
}

type LocalSink struct {
	metadataSink metadata.MetadataSink
	// chapters sharing a title map to the same file
	mu sync.Mutex
}

func NewLocalSink(
	metadataSink metadata.MetadataSink,
) *LocalSink {
	return &LocalSink{
		metadataSink: metadataSink,
	}
}

// OutputFileName is matching_questions_{subjectID}_{chapterTitle}.json with
// spaces and path separators replaced by underscores.
func OutputFileName(subjectID string, chapterTitle string) string {
	name := "matching_questions_" + subjectID + "_" + chapterTitle + ".json"
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\':
			return '_'
		}
		return r
	}, name)
}

func (s *LocalSink) Write(
	outputDir string,
	subjectID string,
	chapterTitle string,
	detail api.QuestionDetail,
) (WriteResult, failure.ClassifiedError) {
	s.mu.Lock()
	writeResult, err := write(outputDir, subjectID, chapterTitle, detail)
	s.mu.Unlock()

	if err != nil {
		var storageError *StorageError
		errors.As(err, &storageError)
		s.metadataSink.RecordError(
			time.Now(),
			"storage",
			"LocalSink.Write",
			mapStorageErrorToMetadataCause(storageError),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrSubjectID, subjectID),
				metadata.NewAttr(metadata.AttrQuestionID, detail.ID()),
				metadata.NewAttr(metadata.AttrWritePath, storageError.Path),
			},
		)
		return WriteResult{}, storageError
	}
	s.metadataSink.RecordArtifact(
		metadata.ArtifactMatchFile,
		writeResult.Path(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrWritePath, writeResult.Path()),
			metadata.NewAttr(metadata.AttrSubjectID, subjectID),
			metadata.NewAttr(metadata.AttrQuestionID, detail.ID()),
			metadata.NewAttr(metadata.AttrHash, writeResult.ContentHash()),
		},
	)
	return writeResult, nil
}

func write(
	outputDir string,
	subjectID string,
	chapterTitle string,
	detail api.QuestionDetail,
) (WriteResult, failure.ClassifiedError) {
	var content bytes.Buffer
	if err := json.Indent(&content, detail.Raw(), "", "  "); err != nil {
		return WriteResult{}, &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseContentInvalid,
			Err:       err,
		}
	}

	if err := fileutil.EnsureDir(outputDir); err != nil {
		return WriteResult{}, &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCausePathError,
			Path:      outputDir,
			Err:       err,
		}
	}

	fileName := OutputFileName(subjectID, chapterTitle)
	fullPath := filepath.Join(outputDir, fileName)
	_, statErr := os.Stat(fullPath)
	replaced := statErr == nil

	if err := fileutil.AtomicWriteFile(fullPath, fullPath+".tmp", content.Bytes(), 0644); err != nil {
		cause := ErrCauseWriteFailure
		retryable := false
		// Check if it's a disk full error (ENOSPC)
		if errors.Is(err, syscall.ENOSPC) {
			cause = ErrCauseDiskFull
			retryable = true
		}
		return WriteResult{}, &StorageError{
			Message:   err.Error(),
			Retryable: retryable,
			Cause:     cause,
			Path:      fullPath,
			Err:       err,
		}
	}

	return NewWriteResult(
		fileName,
		fullPath,
		detail.ID(),
		content.Len(),
		hashutil.ContentHash(content.Bytes()),
		replaced,
	), nil
}

// Clean removes outputDir with everything in it and recreates it empty.
func (s *LocalSink) Clean(outputDir string) failure.ClassifiedError {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(outputDir); err != nil {
		storageError := &StorageError{
			Message: err.Error(),
			Cause:   ErrCausePathError,
			Path:    outputDir,
		}
		s.metadataSink.RecordError(
			time.Now(),
			"storage",
			"LocalSink.Clean",
			mapStorageErrorToMetadataCause(storageError),
			storageError.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrWritePath, outputDir),
			},
		)
		return storageError
	}
	if err := fileutil.EnsureDir(outputDir); err != nil {
		return &StorageError{
			Message: err.Error(),
			Cause:   ErrCausePathError,
			Path:    outputDir,
		}
	}
	return nil
}
