package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/sensorkit/ide/calib"
	"github.com/sensorkit/ide/ebml"
	"github.com/sensorkit/ide/errs"
	"github.com/sensorkit/ide/format"
	"github.com/sensorkit/ide/internal/options"
)

// defaultCacheBlocks bounds the per-channel decode cache when no option
// overrides it.
const defaultCacheBlocks = 16

// Metadata is the recorder information declared by a recording's properties
// element.
type Metadata struct {
	RecorderName   string
	RecorderSerial string
	TimeBaseUTC    time.Time
}

// Recording is one opened container file: the document, the declared
// channels, and the resolved calibration pipeline.
//
// A Recording exclusively owns its byte source and releases it exactly once
// on Close. It is single-threaded by design: block index scans and cache
// insertion mutate shared structures in place, so parallel workers need
// separate Recording instances. Read-only access to a fully indexed,
// non-growing Recording is safe.
type Recording struct {
	doc    *ebml.Document
	logger *zap.Logger

	cacheBlocks int
	meta        Metadata
	channels    []*Channel
	byID        map[uint64]*Channel
	pipeline    *calib.Pipeline

	// dataOffset is where the first data block sits; index scans start here.
	dataOffset int64
	warnings   []string
}

type openConfig struct {
	logger      *zap.Logger
	cacheBlocks int
	schema      *ebml.Schema
}

// Option configures Open.
type Option = options.Option[*openConfig]

// WithLogger routes scan progress and decode warnings to the given logger.
// The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return options.New(func(c *openConfig) error {
		if logger == nil {
			return errors.New("nil logger")
		}
		c.logger = logger

		return nil
	})
}

// WithCacheBlocks sets the per-channel decode cache capacity in blocks.
func WithCacheBlocks(n int) Option {
	return options.New(func(c *openConfig) error {
		if n <= 0 {
			return fmt.Errorf("cache capacity must be positive, got %d", n)
		}
		c.cacheBlocks = n

		return nil
	})
}

// WithSchema decodes against a caller-supplied schema instead of the
// built-in one.
func WithSchema(s *ebml.Schema) Option {
	return options.New(func(c *openConfig) error {
		if s == nil {
			return errors.New("nil schema")
		}
		c.schema = s

		return nil
	})
}

// Open reads a recording's metadata from a byte source and prepares its
// channels and calibration pipeline. Data blocks are located but not
// decoded; per-channel indexing happens on first access.
//
// Structural corruption in the metadata region, an unreadable source, and a
// cyclic calibration composition all abort the open. Everything softer is
// recorded as a warning.
func Open(src ebml.Source, size int64, opts ...Option) (*Recording, error) {
	cfg := &openConfig{
		logger:      zap.NewNop(),
		cacheBlocks: defaultCacheBlocks,
	}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, fmt.Errorf("applying open options: %w", err)
	}

	if cfg.schema == nil {
		s, err := DefaultSchema()
		if err != nil {
			return nil, err
		}
		cfg.schema = s
	}

	doc, err := ebml.NewDocument(src, cfg.schema, size)
	if err != nil {
		return nil, err
	}

	r := &Recording{
		doc:         doc,
		logger:      cfg.logger,
		cacheBlocks: cfg.cacheBlocks,
		byID:        map[uint64]*Channel{},
		dataOffset:  size,
	}

	var specs []calib.Spec
	if err := r.parseMetadata(&specs); err != nil {
		doc.Close()
		return nil, err
	}

	pipeline, err := calib.NewPipeline(specs, &refResolver{rec: r})
	if err != nil {
		doc.Close()
		return nil, err
	}
	r.pipeline = pipeline
	r.bindTransforms()

	return r, nil
}

// parseMetadata materializes the control containers ahead of the first data
// block: recorder properties, channel declarations, and calibration
// declarations.
func (r *Recording) parseMetadata(specs *[]calib.Spec) error {
	for el, err := range r.doc.Roots() {
		if err != nil {
			return fmt.Errorf("reading recording metadata: %w", err)
		}

		switch el.Name() {
		case "RecordingProperties":
			node, err := r.doc.Materialize(el)
			if err != nil {
				return fmt.Errorf("recording properties: %w", err)
			}
			r.parseProperties(node)

		case "ChannelList":
			node, err := r.doc.Materialize(el)
			if err != nil {
				return fmt.Errorf("channel list: %w", err)
			}
			r.parseChannels(node)

		case "CalibrationList":
			node, err := r.doc.Materialize(el)
			if err != nil {
				return fmt.Errorf("calibration list: %w", err)
			}
			r.parseCalibrations(node, specs)

		case "ChannelDataBlock":
			// Metadata precedes data; stop here and remember where the data
			// region starts.
			r.dataOffset = el.Offset()
			return nil
		}
	}

	return nil
}

func (r *Recording) parseProperties(node *ebml.Node) {
	for _, ch := range node.Children {
		switch ch.El.Name() {
		case "RecorderName":
			r.meta.RecorderName, _ = ch.Value.(string)
		case "RecorderSerial":
			r.meta.RecorderSerial, _ = ch.Value.(string)
		case "TimeBaseUTC":
			r.meta.TimeBaseUTC, _ = ch.Value.(time.Time)
		}
	}
}

func (r *Recording) parseChannels(node *ebml.Node) {
	for _, chNode := range node.Children {
		if chNode.El.Name() != "Channel" {
			continue
		}

		c := &Channel{
			rec:    r,
			cache:  newBlockCache(r.cacheBlocks),
			warned: map[int64]bool{},
		}
		for _, field := range chNode.Children {
			switch field.El.Name() {
			case "ChannelID":
				c.ID = asUint(field.Value)
			case "ChannelName":
				c.Name, _ = field.Value.(string)
			case "SamplePeriod":
				c.SamplePeriod = int64(asUint(field.Value))
			case "ChannelFlags":
				c.ExplicitTimes = asUint(field.Value)&flagExplicitTimes != 0
			case "SubChannel":
				sub := &SubChannel{Index: len(c.Subs)}
				parseSubChannel(field, sub)
				c.Subs = append(c.Subs, sub)
			}
		}

		if _, dup := r.byID[c.ID]; dup {
			r.warn("duplicate channel id %d ignored", c.ID)
			continue
		}
		r.channels = append(r.channels, c)
		r.byID[c.ID] = c
	}
}

func parseSubChannel(node *ebml.Node, sub *SubChannel) {
	for _, field := range node.Children {
		switch field.El.Name() {
		case "SubChannelID":
			sub.ID = asUint(field.Value)
		case "SubChannelName":
			sub.Name, _ = field.Value.(string)
		case "SubChannelUnits":
			sub.Units, _ = field.Value.(string)
		case "SampleFieldType":
			sub.FieldType = format.FieldType(asUint(field.Value)) //nolint: gosec
		case "CalibrationIDRef":
			sub.CalibrationID = asUint(field.Value)
		}
	}
}

func (r *Recording) parseCalibrations(node *ebml.Node, specs *[]calib.Spec) {
	for _, calNode := range node.Children {
		var spec calib.Spec
		switch calNode.El.Name() {
		case "UnivariatePolynomial":
			spec.Kind = calib.KindUnivariate
		case "BivariatePolynomial":
			spec.Kind = calib.KindBivariate
		case "CombinedPolynomial":
			spec.Kind = calib.KindCombined
		default:
			continue
		}

		for _, field := range calNode.Children {
			switch field.El.Name() {
			case "CalID":
				spec.ID = asUint(field.Value)
			case "PolynomialCoef":
				spec.Coeffs = append(spec.Coeffs, asFloat(field.Value))
			case "CalReferenceValue":
				spec.RefValue = asFloat(field.Value)
			case "BivariateChannelIDRef":
				spec.RefChannel = asUint(field.Value)
			case "BivariateSubChannelIDRef":
				spec.RefSubChannel = asUint(field.Value)
			case "CalIDRef":
				spec.Refs = append(spec.Refs, asUint(field.Value))
			}
		}
		*specs = append(*specs, spec)
	}
}

// bindTransforms attaches each subchannel's resolved transform, surfacing
// one warning per subchannel for undeclared or degraded calibrations.
func (r *Recording) bindTransforms() {
	for _, c := range r.channels {
		for _, sub := range c.Subs {
			if sub.CalibrationID == 0 {
				sub.transform = calib.Identity()
				continue
			}

			t, ok := r.pipeline.Transform(sub.CalibrationID)
			if !ok {
				c.warn("subchannel %d/%d references undeclared calibration %d",
					c.ID, sub.Index, sub.CalibrationID)
				sub.transform = calib.Identity()
				continue
			}
			if r.pipeline.Degraded(sub.CalibrationID) {
				c.warn("subchannel %d/%d: %v, calibration %d passes values through",
					c.ID, sub.Index, errs.ErrCalibrationReference, sub.CalibrationID)
			}
			sub.transform = t
		}
	}
}

// Meta returns the recorder metadata.
func (r *Recording) Meta() Metadata { return r.meta }

// Channels returns the declared channels in declaration order.
func (r *Recording) Channels() []*Channel { return r.channels }

// Channel returns the channel declared with the given ID.
func (r *Recording) Channel(id uint64) (*Channel, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", errs.ErrUnknownChannel, id)
	}

	return c, nil
}

// Document exposes the underlying element tree, for callers that need to
// crawl beyond the channel model.
func (r *Recording) Document() *ebml.Document { return r.doc }

// Warnings returns recording-level warnings: document irregularities plus
// metadata issues. Per-block decode warnings live on each Channel.
func (r *Recording) Warnings() []string {
	out := append([]string{}, r.doc.Warnings()...)
	return append(out, r.warnings...)
}

// Refresh picks up source growth; subsequent index accesses scan only the
// appended region.
func (r *Recording) Refresh() error { return r.doc.Refresh() }

// Close releases the byte source. Safe to call more than once.
func (r *Recording) Close() error { return r.doc.Close() }

func (r *Recording) warn(msgf string, args ...any) {
	msg := fmt.Sprintf(msgf, args...)
	r.warnings = append(r.warnings, msg)
	r.logger.Warn(msg)
}

// scanBlocks extends a channel's block index up to the document's current
// size. The scan reads only block header children; payloads stay on disk.
// The context is consulted between root elements.
//
// A structural error mid-scan does not abort: the scan records a warning and
// resynchronizes at the next decodable data block.
func (r *Recording) scanBlocks(ctx context.Context, c *Channel) error {
	if c.index == nil {
		c.index = &BlockIndex{channel: c.ID, nextOffset: r.dataOffset}
	}

	pos := c.index.nextOffset
	size := r.doc.Size()
	for pos < size {
		if err := ctx.Err(); err != nil {
			c.index.nextOffset = pos
			return err
		}

		el, next, err := r.doc.Next(pos)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, errs.ErrDocumentClosed) {
				return err
			}

			r.warn("structural error at offset %d: %v", pos, err)
			resumed, ok := r.resync(pos+1, size)
			if !ok {
				pos = size
				break
			}
			pos = resumed
			continue
		}

		if el.Name() == "ChannelDataBlock" {
			if err := r.indexBlock(c, el); err != nil {
				return err
			}
		}
		pos = next
	}

	c.index.nextOffset = pos
	r.logger.Debug("block index extended",
		zap.Uint64("channel", c.ID),
		zap.Int("blocks", c.index.Len()),
		zap.Int64("offset", pos))

	return nil
}

// indexBlock decodes one data block's header children and appends an index
// entry when the block belongs to the channel and passes the layout checks.
// Only I/O failures return an error; malformed blocks are skipped with one
// warning.
func (r *Recording) indexBlock(c *Channel, el *ebml.Element) error {
	blk := DataBlock{Channel: ^uint64(0)}
	for child, err := range el.Children() {
		if err != nil {
			c.warnBlock(el.Offset(), "data block at offset %d: %v", el.Offset(), err)
			return nil
		}

		switch child.Name() {
		case "ChannelIDRef":
			v, err := child.Uint()
			if err != nil {
				return err
			}
			blk.Channel = v
		case "StartTimeCodeAbs":
			v, err := child.Uint()
			if err != nil {
				return err
			}
			blk.StartTime = int64(v)
		case "EndTimeCodeAbs":
			v, err := child.Uint()
			if err != nil {
				return err
			}
			blk.EndTime = int64(v)
		case "SampleCount":
			v, err := child.Uint()
			if err != nil {
				return err
			}
			blk.SampleCount = int(v)
		case "ChannelDataPayload":
			blk.Offset = child.PayloadOffset()
			blk.Length = child.Size()
		}
	}

	if blk.Channel != c.ID {
		return nil
	}

	stride := c.stride()
	if stride == 0 || blk.Length%int64(stride) != 0 {
		c.warnBlock(el.Offset(),
			"channel %d: skipping block at offset %d: %v (payload %d bytes, stride %d)",
			c.ID, el.Offset(), errs.ErrBlockStride, blk.Length, stride)
		return nil
	}
	if blk.SampleCount == 0 {
		blk.SampleCount = int(blk.Length) / stride
	}

	if n := c.index.Len(); n > 0 {
		last := c.index.Block(n - 1)
		if blk.StartTime < last.EndTime {
			c.warnBlock(el.Offset(),
				"channel %d: skipping block at offset %d: start %dus overlaps previous block ending %dus",
				c.ID, el.Offset(), blk.StartTime, last.EndTime)
			return nil
		}
	}

	c.index.append(blk)

	return nil
}

// resync scans forward for the next decodable data block after a structural
// error, so one corrupt region does not hide the rest of a recording.
func (r *Recording) resync(from, size int64) (int64, bool) {
	for off := from; off < size; off++ {
		el, _, err := r.doc.Next(off)
		if err != nil {
			continue
		}
		if el.Name() == "ChannelDataBlock" && el.End() <= size {
			r.logger.Debug("resynchronized", zap.Int64("offset", off))
			return off, true
		}
	}

	return 0, false
}

// decodedBlock returns a block's decoded arrays, reading through the
// channel's LRU cache. A block that fails to decode is reported once and
// filled with NaNs so neighboring blocks and sample positions are
// unaffected.
func (c *Channel) decodedBlock(blk DataBlock) (*decoded, error) {
	if dec, ok := c.cache.get(blk.Offset); ok {
		return dec, nil
	}

	payload, err := c.rec.doc.ReadRange(blk.Offset, blk.Length)
	if err != nil {
		return nil, err
	}

	times, raw, err := decodeBlock(c, blk, payload)
	if err != nil {
		c.warnBlock(blk.Offset, "channel %d: block at offset %d: %v", c.ID, blk.Offset, err)
		times, raw = fillFailed(c, blk)
	}

	dec := &decoded{times: times, raw: raw}
	c.cache.put(blk.Offset, dec)

	return dec, nil
}

// calibrate computes a cached block's calibrated columns on first request.
// Cross-channel reference lookups during Apply read raw columns, so a
// transform referencing its own channel cannot re-enter this path.
func (c *Channel) calibrate(dec *decoded) [][]float64 {
	if dec.cal != nil {
		return dec.cal
	}

	cal := make([][]float64, len(dec.raw))
	for s, sub := range c.Subs {
		col := make([]float64, len(dec.raw[s]))
		copy(col, dec.raw[s])
		if sub.transform != nil {
			sub.transform.Apply(col, dec.times)
		}
		cal[s] = col
	}
	dec.cal = cal

	return cal
}

// refResolver resolves bivariate cross-channel references against the
// recording's raw (uncalibrated) series, which keeps reference resolution
// acyclic regardless of calibration declarations.
type refResolver struct {
	rec *Recording
}

func (rr *refResolver) ResolveSeries(channelID, subChannelID uint64) (calib.Series, bool) {
	c, ok := rr.rec.byID[channelID]
	if !ok {
		return nil, false
	}

	for _, sub := range c.Subs {
		if sub.ID == subChannelID {
			arr, err := c.RawEvents(sub.Index)
			if err != nil {
				return nil, false
			}

			return &rawSeries{arr: arr}, true
		}
	}

	return nil, false
}

// rawSeries adapts an uncalibrated EventArray to the calib.Series nearest
// lookup.
type rawSeries struct {
	arr *EventArray
}

func (s *rawSeries) Nearest(t int64) (float64, bool) {
	ev, err := s.arr.AtTime(t)
	if err != nil {
		return 0, false
	}

	return ev.Value, true
}

func asUint(v any) uint64 {
	switch n := v.(type) {
	case uint64:
		return n
	case int64:
		return uint64(n) //nolint: gosec
	default:
		return 0
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case uint64:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
