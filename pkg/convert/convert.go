// Package convert routes annotation-format conversion requests to registered
// converter implementations. The dispatcher holds a fixed registry built at
// construction time; it interprets neither the class mapping nor the
// converter's result, it only adds lookup and observability.
package convert

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// Registry keys for the bundled converters.
const (
	CocoToYolo      = "coco_to_yolo"
	PascalVocToYolo = "pascal_voc_to_yolo"
	LabelmeToYolo   = "labelme_to_yolo"
)

// 🔧 Options carries converter-specific parameters the dispatcher passes
// through untouched (e.g. "include_difficult" for Pascal VOC,
// "output_format" for LabelMe).
type Options map[string]any

// 📊 Result describes what a converter produced
type Result struct {
	// TempDir is the directory label files were written into, when the
	// converter stages output in a timestamped temp directory
	TempDir string

	// LabelFiles lists the generated .txt label file names
	LabelFiles []string

	// ClassNames holds the class names ordered by their YOLO class id
	ClassNames []string

	// ClassMapping is the name-to-id mapping that was applied
	ClassMapping map[string]int

	TotalImages          int // Images referenced by the input
	TotalAnnotations     int // Annotations found in the input
	ConvertedAnnotations int // Annotations written out
	SkippedAnnotations   int // Annotations dropped (unknown class, difficult, ...)
}

// 🔌 Converter is the interface implemented by annotation-format converters
type Converter interface {
	// Convert transforms annotations at inputPath into YOLO label files
	// under outputPath. classMapping overrides the automatic class-name
	// to class-id assignment when non-nil.
	Convert(ctx context.Context, inputPath, outputPath string, classMapping map[string]int, opts Options) (*Result, error)

	// ValidateInput is a cheap sanity check on the input's format
	ValidateInput(ctx context.Context, inputPath string) bool
}

// 🎛️ Dispatcher routes conversion requests by type name
type Dispatcher struct {
	converters map[string]Converter
}

// 🔧 Option configures a Dispatcher at construction time
type Option func(*Dispatcher)

// 📝 WithConverter registers an additional converter under name
func WithConverter(name string, c Converter) Option {
	return func(d *Dispatcher) {
		d.converters[name] = c
	}
}

// 🏭 NewDispatcher creates a dispatcher with the COCO-to-YOLO converter
// registered. The registry is fixed once construction returns.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		converters: map[string]Converter{
			CocoToYolo: NewCocoToYoloConverter(),
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// 📋 AvailableConversions returns the registered conversion type names
func (d *Dispatcher) AvailableConversions() []string {
	names := make([]string, 0, len(d.converters))
	for name := range d.converters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// 🏃 Convert looks up the converter for conversionType and delegates to it.
// An unregistered type fails immediately, before any I/O. Converter errors
// are logged with the conversion type and re-raised unchanged in meaning.
func (d *Dispatcher) Convert(ctx context.Context, conversionType, inputPath, outputPath string, classMapping map[string]int, opts Options) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	converter, ok := d.converters[conversionType]
	if !ok {
		return nil, errors.Errorf("unsupported conversion type: %s", conversionType)
	}

	logger.Info().Str("conversion", conversionType).Str("input", inputPath).Msg("starting conversion")

	result, err := converter.Convert(ctx, inputPath, outputPath, classMapping, opts)
	if err != nil {
		logger.Error().Str("conversion", conversionType).Err(err).Msg("conversion failed")
		return nil, errors.Errorf("converting %s: %w", conversionType, err)
	}

	logger.Info().Str("conversion", conversionType).Msg("conversion complete")
	return result, nil
}

// ✅ ValidateInput delegates to the converter's own input check. An
// unregistered type yields false rather than an error: validation is
// advisory, conversion is an action.
func (d *Dispatcher) ValidateInput(ctx context.Context, conversionType, inputPath string) bool {
	converter, ok := d.converters[conversionType]
	if !ok {
		return false
	}
	return converter.ValidateInput(ctx, inputPath)
}
