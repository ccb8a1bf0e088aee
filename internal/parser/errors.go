package parser

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigParse matches every *ConfigParseError
	ErrConfigParse = errors.New("invalid CE configuration block")

	// ErrMissingCompilerID is returned when a non-empty configuration has no compiler_id
	ErrMissingCompilerID = errors.New("missing mandatory field 'compiler_id' in configuration")

	// ErrAmbiguousConfig is reported when a snippet carries more than one CE block
	ErrAmbiguousConfig = errors.New("multiple CE configuration blocks")

	// ErrUnterminatedBlock is reported when a begin marker has no matching end
	ErrUnterminatedBlock = errors.New("unterminated block")

	// ErrDanglingShowLine is reported for a lone show::line marker with no line to show
	ErrDanglingShowLine = errors.New("show::line marker without a line to show")
)

// ConfigParseError reports a CE block that could not be decoded
type ConfigParseError struct {
	Line int // 1-based line of the ::CE= marker
	Err  error
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("CE configuration block at line %d: %v", e.Line, e.Err)
}

func (e *ConfigParseError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrConfigParse) hold for any ConfigParseError
func (e *ConfigParseError) Is(target error) bool {
	return target == ErrConfigParse
}
