package convert

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
}

// fakeConverter records how it was called
type fakeConverter struct {
	convertCalls  int
	validateCalls int
	gotInput      string
	gotOutput     string
	gotMapping    map[string]int
	gotOpts       Options

	result *Result
	err    error
	valid  bool
}

func (f *fakeConverter) Convert(ctx context.Context, inputPath, outputPath string, classMapping map[string]int, opts Options) (*Result, error) {
	f.convertCalls++
	f.gotInput = inputPath
	f.gotOutput = outputPath
	f.gotMapping = classMapping
	f.gotOpts = opts
	return f.result, f.err
}

func (f *fakeConverter) ValidateInput(ctx context.Context, inputPath string) bool {
	f.validateCalls++
	f.gotInput = inputPath
	return f.valid
}

func TestDispatcher_AvailableConversions(t *testing.T) {
	t.Run("default_registry", func(t *testing.T) {
		d := NewDispatcher()
		assert.Equal(t, []string{CocoToYolo}, d.AvailableConversions())
	})

	t.Run("with_extra_converters", func(t *testing.T) {
		d := NewDispatcher(
			WithConverter(PascalVocToYolo, &fakeConverter{}),
			WithConverter(LabelmeToYolo, &fakeConverter{}),
		)
		assert.Equal(t, []string{CocoToYolo, LabelmeToYolo, PascalVocToYolo}, d.AvailableConversions())
	})
}

func TestDispatcher_Convert(t *testing.T) {
	t.Run("unknown_type_fails_before_any_io", func(t *testing.T) {
		ctx := testContext(t)
		fake := &fakeConverter{}
		d := NewDispatcher(WithConverter("known", fake))

		_, err := d.Convert(ctx, "unknown_type", "in", "out", nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported conversion type")
		assert.Contains(t, err.Error(), "unknown_type")
		assert.Zero(t, fake.convertCalls)

		// Registry is unaffected by the failed lookup.
		assert.Equal(t, []string{CocoToYolo, "known"}, d.AvailableConversions())
	})

	t.Run("delegates_and_passes_arguments_through", func(t *testing.T) {
		ctx := testContext(t)
		want := &Result{ConvertedAnnotations: 7}
		fake := &fakeConverter{result: want}
		d := NewDispatcher(WithConverter("known", fake))

		mapping := map[string]int{"tumor": 0}
		opts := Options{"output_format": "detection"}
		got, err := d.Convert(ctx, "known", "in", "out", mapping, opts)
		require.NoError(t, err)

		assert.Same(t, want, got)
		assert.Equal(t, 1, fake.convertCalls)
		assert.Equal(t, "in", fake.gotInput)
		assert.Equal(t, "out", fake.gotOutput)
		assert.Equal(t, mapping, fake.gotMapping)
		assert.Equal(t, opts, fake.gotOpts)
	})

	t.Run("converter_errors_are_wrapped_and_propagated", func(t *testing.T) {
		ctx := testContext(t)
		fake := &fakeConverter{err: assert.AnError}
		d := NewDispatcher(WithConverter("known", fake))

		_, err := d.Convert(ctx, "known", "in", "out", nil, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, assert.AnError)
		assert.Contains(t, err.Error(), "known")
	})
}

func TestDispatcher_ValidateInput(t *testing.T) {
	t.Run("unknown_type_returns_false_without_error", func(t *testing.T) {
		ctx := testContext(t)
		d := NewDispatcher()
		assert.False(t, d.ValidateInput(ctx, "unknown_type", "anywhere"))
	})

	t.Run("delegates_to_converter", func(t *testing.T) {
		ctx := testContext(t)
		fake := &fakeConverter{valid: true}
		d := NewDispatcher(WithConverter("known", fake))

		assert.True(t, d.ValidateInput(ctx, "known", "in"))
		assert.Equal(t, 1, fake.validateCalls)
		assert.Equal(t, "in", fake.gotInput)
	})
}

func TestOptions(t *testing.T) {
	opts := Options{"flag": true, "mode": "segmentation", "broken": 3}

	assert.True(t, opts.Bool("flag"))
	assert.False(t, opts.Bool("missing"))
	assert.False(t, opts.Bool("mode"))
	assert.Equal(t, "segmentation", opts.String("mode", "detection"))
	assert.Equal(t, "detection", opts.String("missing", "detection"))
	assert.Equal(t, "detection", opts.String("broken", "detection"))
}
