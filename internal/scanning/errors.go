package scanning

import "errors"

// ErrNoText is wrapped by an ExtractionError when the model returned no usable text
var ErrNoText = errors.New("no text found in image")

// ExtractionError reports a failure to turn an image into text
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return "extracting text: " + e.Err.Error()
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// StructuringError reports a failure to turn text into ReceiptData
type StructuringError struct {
	Err error
}

func (e *StructuringError) Error() string {
	return "structuring receipt: " + e.Err.Error()
}

func (e *StructuringError) Unwrap() error {
	return e.Err
}
