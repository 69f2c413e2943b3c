// Package parser turns raw DICOM buffers into Instance records.
// Per-file failures are classified and contained here; they never abort a batch.
package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/otcheredev/dicom-study-loader/internal/extractor"
	"github.com/otcheredev/dicom-study-loader/internal/imaging"
	"github.com/otcheredev/dicom-study-loader/internal/metrics"
	"github.com/otcheredev/dicom-study-loader/internal/models"
	"github.com/otcheredev/dicom-study-loader/internal/transfersyntax"
)

var (
	// ErrNotDICOM marks buffers without the Part 10 signature
	ErrNotDICOM = errors.New("not a DICOM file")
	// ErrNoPixelData marks valid DICOM files that carry no image, such as DICOMDIR
	ErrNoPixelData = errors.New("no pixel data")
)

// DecodeError wraps any other decoder failure
type DecodeError struct {
	File string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.File, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeFunc decodes a whole buffer into a dataset
type DecodeFunc func(buf []byte) (dicom.Dataset, error)

// WarningSink receives non-fatal per-instance warnings
type WarningSink interface {
	Warn(file, message string)
}

// WarningFunc adapts a function to WarningSink
type WarningFunc func(file, message string)

// Warn calls f
func (f WarningFunc) Warn(file, message string) {
	f(file, message)
}

// Input is one named buffer. Open, when set, re-reads the file for the image registry.
type Input struct {
	Name string
	Data []byte
	Open imaging.Opener
}

// Stats counts parser results for one batch
type Stats struct {
	Parsed      int `json:"parsed"`
	NotDICOM    int `json:"notDicom"`
	NoPixelData int `json:"noPixelData"`
	Failed      int `json:"failed"`
	Lossy       int `json:"lossy"`
}

// Add accumulates other into s
func (s *Stats) Add(other Stats) {
	s.Parsed += other.Parsed
	s.NotDICOM += other.NotDICOM
	s.NoPixelData += other.NoPixelData
	s.Failed += other.Failed
	s.Lossy += other.Lossy
}

// Parser decodes buffers and builds instances. It holds no per-batch state.
type Parser struct {
	decode    DecodeFunc
	extractor *extractor.Extractor
	images    imaging.Registry
	warnings  WarningSink
	metrics   *metrics.Metrics
}

// Option configures a Parser
type Option func(*Parser)

// WithDecoder replaces the binary decoder
func WithDecoder(decode DecodeFunc) Option {
	return func(p *Parser) {
		p.decode = decode
	}
}

// WithWarningSink routes lossy-compression warnings to sink
func WithWarningSink(sink WarningSink) Option {
	return func(p *Parser) {
		p.warnings = sink
	}
}

// WithMetrics records per-file results
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Parser) {
		p.metrics = m
	}
}

// New creates a parser
func New(ex *extractor.Extractor, images imaging.Registry, opts ...Option) *Parser {
	if ex == nil {
		ex = &extractor.Extractor{}
	}
	p := &Parser{
		decode:    Decode,
		extractor: ex,
		images:    images,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Decode parses buf with pixel data skipped. The pixel data element itself stays in the dataset.
func Decode(buf []byte) (ds dicom.Dataset, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decoder panic: %v", r)
		}
	}()
	return dicom.Parse(bytes.NewReader(buf), int64(len(buf)), nil, dicom.SkipPixelData())
}

// preambleLen is the Part 10 preamble length; the "DICM" prefix follows it
const preambleLen = 128

// HasSignature reports whether buf starts with a Part 10 preamble and prefix
func HasSignature(buf []byte) bool {
	return len(buf) >= preambleLen+4 && string(buf[preambleLen:preambleLen+4]) == "DICM"
}

// classify maps a decoder failure to ErrNotDICOM only when the signature is
// missing. Anything past the signature, truncation included, is a *DecodeError.
func classify(name string, buf []byte, err error) error {
	if errors.Is(err, dicom.ErrorMagicWord) || !HasSignature(buf) {
		return fmt.Errorf("%s: %w", name, ErrNotDICOM)
	}
	return &DecodeError{File: name, Err: err}
}

// Parse builds an Instance from one buffer that stays registered in memory.
// The returned error is ErrNotDICOM, ErrNoPixelData or a *DecodeError.
func (p *Parser) Parse(ctx context.Context, name string, buf []byte) (*models.Instance, error) {
	return p.ParseFile(ctx, name, buf, nil)
}

// ParseFile is Parse with open registered in place of buf, so the buffer can
// be released once it returns.
func (p *Parser) ParseFile(ctx context.Context, name string, buf []byte, open imaging.Opener) (*models.Instance, error) {
	ds, err := p.decode(buf)
	if err != nil {
		err = classify(name, buf, err)
		if errors.Is(err, ErrNotDICOM) {
			log.Debug().Str("file", name).Msg("Skipping non-DICOM file")
			p.metrics.RecordFile("not_dicom")
		} else {
			log.Warn().Err(err).Str("file", name).Msg("Failed to decode DICOM file")
			p.metrics.RecordFile("failed")
		}
		return nil, err
	}

	if _, err := ds.FindElementByTag(tag.PixelData); err != nil {
		log.Debug().Str("file", name).Msg("Skipping file without pixel data")
		p.metrics.RecordFile("no_pixel_data")
		return nil, fmt.Errorf("%s: %w", name, ErrNoPixelData)
	}

	meta := p.extractor.Extract(&ds)
	if meta.TransferSyntaxUID != "" {
		p.checkCompression(name, meta.TransferSyntaxUID)
	}

	inst := &models.Instance{
		SOPInstanceUID: meta.SOPInstanceUID,
		InstanceNumber: meta.InstanceNumber,
		Rows:           meta.Rows,
		Columns:        meta.Columns,
		FileName:       name,
		Metadata:       meta,
	}
	if p.images != nil {
		inst.ImageID = p.images.RegisterImage(buf, open)
	}

	p.metrics.RecordFile("parsed")
	return inst, nil
}

func (p *Parser) checkCompression(name, uid string) {
	c := transfersyntax.Classify(uid)
	if c.Lossless {
		return
	}
	msg := c.Warning()
	log.Warn().
		Str("file", name).
		Str("transfer_syntax", uid).
		Msg(msg)
	p.metrics.RecordLossy()
	if p.warnings != nil {
		p.warnings.Warn(name, msg)
	}
}

// ParseAll parses inputs in order and returns the pixel-bearing instances in
// input order. Only context cancellation is reported as an error.
func (p *Parser) ParseAll(ctx context.Context, inputs []Input) ([]models.Instance, Stats, error) {
	var (
		out   []models.Instance
		stats Stats
	)
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		inst, err := p.ParseFile(ctx, in.Name, in.Data, in.Open)
		stats.Add(Tally(inst, err))
		if err != nil {
			continue
		}
		out = append(out, *inst)
	}
	return out, stats, nil
}

// Tally converts one Parse result into Stats
func Tally(inst *models.Instance, err error) Stats {
	switch {
	case err == nil:
		s := Stats{Parsed: 1}
		if inst != nil && inst.Metadata.TransferSyntaxUID != "" && !inst.Metadata.Lossless {
			s.Lossy = 1
		}
		return s
	case errors.Is(err, ErrNotDICOM):
		return Stats{NotDICOM: 1}
	case errors.Is(err, ErrNoPixelData):
		return Stats{NoPixelData: 1}
	default:
		return Stats{Failed: 1}
	}
}
