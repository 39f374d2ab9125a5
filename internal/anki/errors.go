package anki

import "errors"

// Codec error taxonomy. ErrTruncatedInput and ErrUnknownWireType never
// escape the package: a protobuf decode failure only means the media
// manifest is unavailable, which import survives.
var (
	ErrInvalidPackage    = errors.New("invalid package: cannot open archive")
	ErrMissingCollection = errors.New("no collection database in package")
	ErrTruncatedInput    = errors.New("truncated varint input")
	ErrUnknownWireType   = errors.New("unknown protobuf wire type")
	ErrMediaWrite        = errors.New("failed to store media file")
	ErrImportFailed      = errors.New("import failed")
	ErrNoCards           = errors.New("deck has no cards to export")
)
