package storage

// WriteResult describes one match file as it is on disk after a write.
type WriteResult struct {
	fileName    string
	path        string
	questionID  string
	size        int
	contentHash string
	replaced    bool
}

func NewWriteResult(
	fileName string,
	path string,
	questionID string,
	size int,
	contentHash string,
	replaced bool,
) WriteResult {
	return WriteResult{
		fileName:    fileName,
		path:        path,
		questionID:  questionID,
		size:        size,
		contentHash: contentHash,
		replaced:    replaced,
	}
}

func (w WriteResult) FileName() string {
	return w.fileName
}

func (w WriteResult) Path() string {
	return w.path
}

// QuestionID is the question now held by the file.
func (w WriteResult) QuestionID() string {
	return w.questionID
}

func (w WriteResult) Size() int {
	return w.size
}

// ContentHash is "blake3:<hex>" of the bytes written.
func (w WriteResult) ContentHash() string {
	return w.contentHash
}

// Replaced reports whether an earlier match of the same chapter was
// overwritten. Only the last match of a chapter survives on disk.
func (w WriteResult) Replaced() bool {
	return w.replaced
}
