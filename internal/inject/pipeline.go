// Package inject implements the route import pipeline: it reads a table
// dump file, validates, filters and transforms each record into BGP path
// attributes, and advertises the result over the live session.
package inject

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/route-beacon/route-pusher/internal/bgp"
	"github.com/route-beacon/route-pusher/internal/dump"
	"github.com/route-beacon/route-pusher/internal/filter"
	"github.com/route-beacon/route-pusher/internal/metrics"
	"github.com/route-beacon/route-pusher/internal/report"
	"go.uber.org/zap"
)

// Sender submits a marshaled UPDATE to the peer. Nil in dry-run mode.
type Sender interface {
	SendUpdate(msg []byte) error
}

// Sink receives every advertised (or previewed) route event. Sink failures
// are logged and never abort the run.
type Sink interface {
	Record(ctx context.Context, ev *bgp.RouteEvent) error
	Name() string
}

// Options are the static pipeline parameters, derived from configuration
// once at startup.
type Options struct {
	File            string
	DryRun          bool
	PrefixLimit     int // 0 = no ceiling
	LocalIP         string
	IBGP            bool
	LocalPref       uint32
	NextHopSelf     bool
	NextHopOverride string // explicit replacement address, optional
}

type Pipeline struct {
	opts     Options
	filters  *filter.Set
	reporter *report.Reporter
	sinks    []Sink
	logger   *zap.Logger
}

func NewPipeline(opts Options, filters *filter.Set, reporter *report.Reporter, sinks []Sink, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		opts:     opts,
		filters:  filters,
		reporter: reporter,
		sinks:    sinks,
		logger:   logger,
	}
}

// Run reads the dump file line by line and advertises every record that
// survives validation and filtering, up to the configured ceiling. It
// returns the number of records advertised (or previewed in dry-run). A
// failing record is skipped, never fatal; only an unreadable file or a
// cancelled context aborts the run.
func (p *Pipeline) Run(ctx context.Context, sender Sender) (int, error) {
	if p.opts.File == "" {
		return 0, fmt.Errorf("inject: no import file configured")
	}
	if !p.opts.DryRun && sender == nil {
		return 0, fmt.Errorf("inject: live run requires a sender")
	}

	rc, err := dump.Open(p.opts.File)
	if err != nil {
		return 0, fmt.Errorf("inject: open %s: %w", p.opts.File, err)
	}
	defer rc.Close()

	start := time.Now()
	advertised := 0
	lineNo := 0

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return advertised, err
		}
		lineNo++
		metrics.RecordsReadTotal.Inc()

		if p.process(ctx, lineNo, scanner.Text(), sender) {
			advertised++
			if p.opts.PrefixLimit > 0 && advertised >= p.opts.PrefixLimit {
				p.logger.Info("prefix ceiling reached, stopping import",
					zap.Int("advertised", advertised),
					zap.Int("ceiling", p.opts.PrefixLimit),
				)
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return advertised, fmt.Errorf("inject: reading %s: %w", p.opts.File, err)
	}

	metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("import finished",
		zap.Int("lines", lineNo),
		zap.Int("advertised", advertised),
		zap.Bool("dry_run", p.opts.DryRun),
	)
	return advertised, nil
}

// process runs one line through the fixed validation/filter/transform
// order and reports whether the record was advertised. The order is load
// bearing: a record failing an early step is never evaluated against a
// later one, so exactly one rejection reason is logged per skipped record.
func (p *Pipeline) process(ctx context.Context, lineNo int, line string, sender Sender) bool {
	rec, err := dump.ParseLine(line)
	if err != nil {
		// Malformed lines are dropped without a rejection entry.
		metrics.RecordsRejectedTotal.WithLabelValues("malformed").Inc()
		p.logger.Debug("malformed dump line", zap.Int("line", lineNo), zap.Error(err))
		return false
	}

	if p.filters.Bound(filter.KeyNeighbor) && !p.filters.Match(filter.KeyNeighbor, rec.Neighbor) {
		p.reject(lineNo, "neighbor_filter", fmt.Sprintf("neighbor %q did not match filter", rec.Neighbor))
		return false
	}
	if !dump.ValidPrefix(rec.Prefix) {
		p.reject(lineNo, "invalid_prefix", fmt.Sprintf("invalid prefix %q", rec.Prefix))
		return false
	}
	if p.filters.Bound(filter.KeyPrefix) && !p.filters.Match(filter.KeyPrefix, rec.Prefix) {
		p.reject(lineNo, "prefix_filter", fmt.Sprintf("prefix %q did not match filter", rec.Prefix))
		return false
	}
	if !dump.ValidASPath(rec.ASPath) {
		p.reject(lineNo, "invalid_as_path", fmt.Sprintf("invalid AS path %q", rec.ASPath))
		return false
	}
	if !dump.ValidCommunityList(rec.Communities) {
		p.reject(lineNo, "invalid_communities", fmt.Sprintf("invalid community list %q", rec.Communities))
		return false
	}
	if !dump.ValidIPv4(rec.NextHop) {
		p.reject(lineNo, "invalid_next_hop", fmt.Sprintf("invalid next hop %q", rec.NextHop))
		return false
	}
	if !p.matchRemainingFilters(lineNo, rec) {
		return false
	}

	attrs := p.buildAttributes(rec)

	p.reporter.Sent(attrs, rec.Prefix, p.opts.DryRun)

	var raw []byte
	if !p.opts.DryRun {
		raw, err = bgp.MarshalUpdate(attrs, []string{rec.Prefix})
		if err != nil {
			p.reject(lineNo, "marshal_failed", fmt.Sprintf("marshal update: %v", err))
			return false
		}
		if err := sender.SendUpdate(raw); err != nil {
			p.reject(lineNo, "send_failed", fmt.Sprintf("send update: %v", err))
			return false
		}
	}

	direction := "sent"
	if p.opts.DryRun {
		direction = "would-send"
	}
	metrics.RecordsAdvertisedTotal.WithLabelValues(direction).Inc()
	p.record(ctx, &bgp.RouteEvent{
		Direction: direction,
		Prefixes:  []string{rec.Prefix},
		Attrs:     *attrs,
		Raw:       raw,
	})

	return true
}

// matchRemainingFilters applies the filter keys beyond NEIG and NLRI in a
// fixed order against the record's raw field values. LOCP is matched
// against the local preference that would be attached (empty for eBGP).
func (p *Pipeline) matchRemainingFilters(lineNo int, rec *dump.RouteRecord) bool {
	locPref := ""
	if p.opts.IBGP {
		locPref = strconv.FormatUint(uint64(p.opts.LocalPref), 10)
	}
	checks := []struct {
		key   filter.Key
		value string
		name  string
	}{
		{filter.KeyASPath, rec.ASPath, "as_path_filter"},
		{filter.KeyOrigin, rec.Origin, "origin_filter"},
		{filter.KeyNextHop, rec.NextHop, "next_hop_filter"},
		{filter.KeyLocalPref, locPref, "local_pref_filter"},
		{filter.KeyMED, rec.MED, "med_filter"},
		{filter.KeyCommunity, rec.Communities, "community_filter"},
		{filter.KeyAtomicAggregate, rec.AtomicAgg, "atomic_aggregate_filter"},
		{filter.KeyAggregator, rec.Aggregator, "aggregator_filter"},
	}
	for _, c := range checks {
		if p.filters.Bound(c.key) && !p.filters.Match(c.key, c.value) {
			p.reject(lineNo, c.name, fmt.Sprintf("%s value %q did not match filter", c.key, c.value))
			return false
		}
	}
	return true
}

// buildAttributes maps a validated record to the attribute set to
// advertise.
func (p *Pipeline) buildAttributes(rec *dump.RouteRecord) *bgp.Attributes {
	attrs := &bgp.Attributes{
		Origin:  bgp.OriginCode(rec.Origin),
		ASPath:  rec.ASPath,
		NextHop: p.effectiveNextHop(rec.NextHop),
	}

	if p.opts.IBGP {
		lp := p.opts.LocalPref
		attrs.LocalPref = &lp
	}

	// MED only when present and non-zero.
	if med, err := strconv.ParseUint(rec.MED, 10, 32); err == nil && med != 0 {
		v := uint32(med)
		attrs.MED = &v
	}

	if rec.Communities != "" {
		attrs.Communities = strings.Fields(rec.Communities)
	}

	attrs.AtomicAggregate = rec.AtomicAgg == dump.AtomicAggregateMarker

	// Aggregator only when present and well formed ("AS IP").
	if fields := strings.Fields(rec.Aggregator); len(fields) == 2 {
		if asn, err := strconv.ParseUint(fields[0], 10, 16); err == nil && dump.ValidIPv4(fields[1]) {
			attrs.Aggregator = &bgp.Aggregator{AS: uint16(asn), IP: fields[1]}
		}
	}

	return attrs
}

// effectiveNextHop applies the next-hop rewrite rules: an explicit override
// address wins; otherwise next-hop-self is forced for eBGP and applied for
// iBGP only on request. The unconditional eBGP rewrite matches the
// long-standing behavior of this tool even when no override was asked for.
func (p *Pipeline) effectiveNextHop(recorded string) string {
	if p.opts.NextHopOverride != "" {
		return p.opts.NextHopOverride
	}
	if !p.opts.IBGP || p.opts.NextHopSelf {
		return p.opts.LocalIP
	}
	return recorded
}

func (p *Pipeline) reject(lineNo int, reason, detail string) {
	metrics.RecordsRejectedTotal.WithLabelValues(reason).Inc()
	p.reporter.Reject(lineNo, detail)
}

func (p *Pipeline) record(ctx context.Context, ev *bgp.RouteEvent) {
	for _, s := range p.sinks {
		start := time.Now()
		if err := s.Record(ctx, ev); err != nil {
			metrics.SinkErrorsTotal.WithLabelValues(s.Name()).Inc()
			p.logger.Warn("sink write failed", zap.String("sink", s.Name()), zap.Error(err))
			continue
		}
		metrics.SinkWriteDuration.WithLabelValues(s.Name()).Observe(time.Since(start).Seconds())
	}
}
