package common

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cvoptimizer/internal/document"
	"cvoptimizer/internal/errors"
	"cvoptimizer/internal/utils"
)

// FileProcessor handles common file operations
type FileProcessor struct {
	logger *errors.Logger
}

// NewFileProcessor creates a new file processor instance
func NewFileProcessor(logger *errors.Logger) *FileProcessor {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &FileProcessor{logger: logger}
}

func (fp *FileProcessor) open(filename string) (*os.File, error) {
	if err := utils.ValidateInputFile(filename); err != nil {
		if _, statErr := os.Stat(filename); os.IsNotExist(statErr) {
			return nil, errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", filename), err)
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}
	return file, nil
}

func (fp *FileProcessor) closeFile(file *os.File) {
	if err := file.Close(); err != nil {
		fp.logger.Warn("Failed to close file", "filename", file.Name(), "error", err)
	}
}

// ReadFile reads content from a file with proper error handling
func (fp *FileProcessor) ReadFile(filename string) (string, error) {
	file, err := fp.open(filename)
	if err != nil {
		return "", err
	}
	defer fp.closeFile(file)

	content, err := io.ReadAll(file)
	if err != nil {
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read file content: %s", filename), err)
	}

	return string(content), nil
}

// ReadTextFile reads a job description or other plain text input, warning
// when the extension does not look like text.
func (fp *FileProcessor) ReadTextFile(filename string) (string, error) {
	if !utils.IsTextFile(filename) {
		fp.logger.Warn("File may not be a text file", "filename", filename)
	}
	return fp.ReadFile(filename)
}

// ReadUpload loads a résumé file as an upload, refusing files above maxSize.
func (fp *FileProcessor) ReadUpload(filename string, maxSize int64) (document.Upload, error) {
	file, err := fp.open(filename)
	if err != nil {
		return document.Upload{}, err
	}
	defer fp.closeFile(file)

	upload, err := document.ReadUpload(file, filepath.Base(filename), utils.ContentTypeForFile(filename), maxSize)
	if err != nil {
		return document.Upload{}, err
	}
	if upload.Size() > maxSize {
		return document.Upload{}, errors.NewValidationError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("File %s exceeds %s", filename, utils.FormatFileSize(maxSize)), nil)
	}

	fp.logger.Debug("Loaded upload",
		"filename", upload.Filename,
		"content_type", upload.ContentType,
		"size", utils.FormatFileSize(upload.Size()))

	return upload, nil
}

// ReadJSONFile decodes a JSON file into T.
func ReadJSONFile[T any](fp *FileProcessor, filename string) (T, error) {
	var out T

	if !utils.IsJSONFile(filename) {
		fp.logger.Warn("File may not be a JSON file", "filename", filename)
	}

	content, err := fp.ReadFile(filename)
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return out, errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("Invalid JSON in %s", filename), err)
	}
	return out, nil
}

// WriteFile writes content to a file with directory creation
func (fp *FileProcessor) WriteFile(filename, content string) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		err := os.MkdirAll(dir, 0750)
		if err != nil {
			return errors.NewIOError("DIRECTORY_CREATE_FAILED",
				fmt.Sprintf("Cannot create directory: %s", dir), err)
		}
	}

	err := os.WriteFile(filename, []byte(content), 0600)
	if err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}

	return nil
}

// ValidateOutputFile validates output file path
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	if err := utils.ValidateOutputFile(filename); err != nil {
		return errors.NewValidationError("INVALID_OUTPUT_FILE",
			fmt.Sprintf("Invalid output file: %s", filename), err)
	}

	return nil
}
