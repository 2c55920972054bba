// Package report renders sent and received route updates and decoded
// notification events into stable, bracket-tagged log lines.
package report

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/route-beacon/route-pusher/internal/bgp"
	"go.uber.org/zap"
)

// Reporter writes formatted route and notification lines to the logger and,
// when configured, to an additional output stream.
type Reporter struct {
	logger *zap.Logger
	out    io.Writer
}

// New returns a Reporter. out may be nil; lines then go to the logger only.
func New(logger *zap.Logger, out io.Writer) *Reporter {
	return &Reporter{logger: logger, out: out}
}

// Sent records a route that was advertised, or previewed in dry-run mode.
func (r *Reporter) Sent(attrs *bgp.Attributes, prefix string, dryRun bool) {
	tag := "sent"
	if dryRun {
		tag = "would-send"
	}
	r.emit(tag, FormatSent(attrs, prefix))
}

// Received records an UPDATE received from the peer.
func (r *Reporter) Received(rcv *bgp.Received) {
	r.emit("received", FormatReceived(rcv))
}

// Notification records a peer-sent NOTIFICATION.
func (r *Reporter) Notification(code, subcode uint8, data []byte) {
	line := FormatNotification("NOTIFICATION received", code, subcode, data)
	r.logger.Error(line)
	r.tee(line)
}

// ProtocolError records a locally detected protocol error. It shares the
// decode path with Notification; only the prefix differs.
func (r *Reporter) ProtocolError(code, subcode uint8, data []byte) {
	line := FormatNotification("ERROR occurred", code, subcode, data)
	r.logger.Error(line)
	r.tee(line)
}

// Reject records a single skipped dump record. Skips never abort the run.
func (r *Reporter) Reject(lineNo int, reason string) {
	line := fmt.Sprintf("rejected line %d: %s", lineNo, reason)
	r.logger.Error("record rejected", zap.Int("line", lineNo), zap.String("reason", reason))
	r.tee(line)
}

func (r *Reporter) emit(tag, line string) {
	r.logger.Info(tag, zap.String("route", line))
	r.tee(tag + ": " + line)
}

func (r *Reporter) tee(line string) {
	if r.out != nil {
		fmt.Fprintln(r.out, line)
	}
}

// FormatSent renders the outbound log line:
//
//	PREFIX [..] AS_PATH [..] [AGGREGATOR [..]] ATOMIC_AGGREGATE [0|1]
//	[LOCAL_PREF [..]] [MED [..]] COMMUNITY [..] ORIGIN [..] NEXT_HOP [..]
func FormatSent(attrs *bgp.Attributes, prefix string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PREFIX [%s] AS_PATH [%s]", prefix, attrs.ASPath)
	if attrs.Aggregator != nil {
		fmt.Fprintf(&b, " AGGREGATOR [%s]", attrs.Aggregator)
	}
	atomic := 0
	if attrs.AtomicAggregate {
		atomic = 1
	}
	fmt.Fprintf(&b, " ATOMIC_AGGREGATE [%d]", atomic)
	if attrs.LocalPref != nil {
		fmt.Fprintf(&b, " LOCAL_PREF [%d]", *attrs.LocalPref)
	}
	if attrs.MED != nil {
		fmt.Fprintf(&b, " MED [%d]", *attrs.MED)
	}
	fmt.Fprintf(&b, " COMMUNITY [%s] ORIGIN [%d] NEXT_HOP [%s]",
		strings.Join(attrs.Communities, " "), attrs.Origin, attrs.NextHop)
	return b.String()
}

// FormatReceived renders the inbound log line:
//
//	PREFIXES [..] AS_PATH [..] [LOCAL_PREF [..]] [MED [..]] COMMUNITY [..]
//	ORIGIN [IGP|EGP|INCOMPLETE] AGGREGATOR [..] NEXT_HOP [..]
func FormatReceived(rcv *bgp.Received) string {
	attrs := &rcv.Attrs

	origin, ok := bgp.OriginValues[attrs.Origin]
	if !ok {
		origin = strconv.Itoa(int(attrs.Origin))
	}
	aggregator := ""
	if attrs.Aggregator != nil {
		aggregator = attrs.Aggregator.String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "PREFIXES [%s] AS_PATH [%s]", strings.Join(rcv.Prefixes, " "), attrs.ASPath)
	if attrs.LocalPref != nil {
		fmt.Fprintf(&b, " LOCAL_PREF [%d]", *attrs.LocalPref)
	}
	if attrs.MED != nil {
		fmt.Fprintf(&b, " MED [%d]", *attrs.MED)
	}
	fmt.Fprintf(&b, " COMMUNITY [%s] ORIGIN [%s] AGGREGATOR [%s] NEXT_HOP [%s]",
		strings.Join(attrs.Communities, " "), origin, aggregator, attrs.NextHop)
	return b.String()
}

// FormatNotification renders a decoded notification or error line:
//
//	<kind> [category] SUBCODE [text] DATA [hex]
//
// DATA appears only when the diagnostic payload is non-empty.
func FormatNotification(kind string, code, subcode uint8, data []byte) string {
	category, text := bgp.Describe(code, subcode)
	line := fmt.Sprintf("%s [%s] SUBCODE [%s]", kind, category, text)
	if len(data) > 0 {
		line += fmt.Sprintf(" DATA [%s]", hex.EncodeToString(data))
	}
	return line
}
