package services

import "errors"

// Project errors
var (
	ErrProjectNotFound      = errors.New("project: not found")
	ErrProjectAlreadyExists = errors.New("project: name already exists")
	ErrProjectInvalidInput  = errors.New("project: invalid input")
	ErrProjectPathMissing   = errors.New("project: source path does not exist")
	ErrProjectNotRemote     = errors.New("project: no remote source configured")
	ErrProjectImportFailed  = errors.New("project: remote import failed")
)

// Task errors
var (
	ErrTaskNotFound = errors.New("task: not found")
)

// Analysis errors
var (
	ErrStageTimeout  = errors.New("analysis: stage timed out")
	ErrStagePanicked = errors.New("analysis: stage panicked")
	ErrNoAnalyzers   = errors.New("analysis: no analyzers configured")
)

// Encryption errors
var (
	ErrEncryptionFailed = errors.New("encryption: failed to encrypt data")
	ErrDecryptionFailed = errors.New("encryption: failed to decrypt data")
)
