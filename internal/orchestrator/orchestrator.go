// Package orchestrator drives the per-device collection state machine:
// probe, scan, then protocol collectors in priority order until one
// succeeds, with a terminal basic fallback that cannot fail. Every alive
// device therefore terminates with a non-empty record.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/martinsuchenak/assetd/internal/collect"
	"github.com/martinsuchenak/assetd/internal/log"
	"github.com/martinsuchenak/assetd/internal/model"
)

// State names the stages of one device pipeline.
type State string

const (
	StateInit       State = "init"
	StateProbeDone  State = "probe_done"
	StateScanDone   State = "scan_done"
	StateCollecting State = "collecting"
	StateClassified State = "classified"
	StateDone       State = "done"
)

// Prober determines liveness of an address.
type Prober interface {
	Probe(ctx context.Context, address string, timeout time.Duration) model.ReachabilityResult
}

// Scanner enumerates open TCP ports of an address.
type Scanner interface {
	Scan(ctx context.Context, address string, ports []int) model.PortScanResult
}

// Classifier assigns the device class label.
type Classifier interface {
	Classify(rec *model.DeviceRecord) (model.DeviceClass, model.OSFamily, float64)
}

// Options wires an Orchestrator.
type Options struct {
	Prober      Prober
	Scanner     Scanner
	Classifier  Classifier
	Collectors  []collect.Collector // protocol collectors, looked up by method
	Fallback    collect.Collector   // terminal collector, must never fail
	Credentials *model.CredentialSet

	PortScanList  []int
	ProbeTimeout  time.Duration // outer deadline of the reachability probe
	MethodTimeout time.Duration // deadline per collector invocation
	RetryCount    int           // extra tries for timed-out invocations
}

// Orchestrator runs one device pipeline at a time; it holds no mutable
// per-device state and is safe for concurrent Run calls.
type Orchestrator struct {
	prober     Prober
	scanner    Scanner
	classifier Classifier
	collectors map[model.CollectionMethod]collect.Collector
	fallback   collect.Collector
	creds      *model.CredentialSet

	ports         []int
	probeTimeout  time.Duration
	methodTimeout time.Duration
	retryCount    int
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	collectors := make(map[model.CollectionMethod]collect.Collector, len(opts.Collectors))
	for _, c := range opts.Collectors {
		collectors[c.Method()] = c
	}

	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	if opts.MethodTimeout <= 0 {
		opts.MethodTimeout = 15 * time.Second
	}

	return &Orchestrator{
		prober:        opts.Prober,
		scanner:       opts.Scanner,
		classifier:    opts.Classifier,
		collectors:    collectors,
		fallback:      opts.Fallback,
		creds:         opts.Credentials,
		ports:         opts.PortScanList,
		probeTimeout:  opts.ProbeTimeout,
		methodTimeout: opts.MethodTimeout,
		retryCount:    opts.RetryCount,
	}
}

// Run executes the full pipeline for one address and always returns a
// record. Cancellation is observed between stages: an interrupted pipeline
// finalizes with whatever attempts completed instead of being killed.
func (o *Orchestrator) Run(ctx context.Context, address string) *model.DeviceRecord {
	rec := &model.DeviceRecord{
		ID:          generateID(),
		Address:     address,
		DeviceClass: model.ClassUnknown,
		OSFamily:    model.OSUnknown,
	}

	state := StateInit
	rec.Reachability = o.prober.Probe(ctx, address, o.probeTimeout)
	state = o.transition(address, state, StateProbeDone)

	// Unreachable devices skip collection entirely: class Unknown, empty
	// attributes, zero collector attempts. Consumers can tell "never
	// attempted" apart from "attempted, fell back" by the attempt list.
	if !rec.Reachability.Alive {
		rec.ClassifiedAt = time.Now()
		o.transition(address, state, StateDone)
		return rec
	}

	if ctx.Err() == nil {
		rec.Ports = o.scanner.Scan(ctx, address, o.ports)
	}
	rec.Ports.Address = address
	state = o.transition(address, state, StateScanDone)

	req := &collect.Request{
		Address:      address,
		Credentials:  o.creds.For(address),
		Timeout:      o.methodTimeout,
		Reachability: rec.Reachability,
		Scan:         rec.Ports,
	}

	state = o.transition(address, state, StateCollecting)
	var winner *model.CollectionAttempt
	for _, method := range o.methodOrder(&rec.Ports, req.Credentials) {
		if ctx.Err() != nil {
			break
		}
		collector, ok := o.collectors[method]
		if !ok {
			continue
		}
		if attempt := o.collectWithRetry(ctx, collector, req, rec); attempt != nil {
			winner = attempt
			break
		}
	}

	// Terminal fallback: repackages pipeline state, performs no new
	// network I/O beyond reverse DNS, and cannot fail.
	if winner == nil {
		attempt := o.safeCollect(ctx, o.fallback, req)
		rec.Attempts = append(rec.Attempts, attempt)
		winner = &rec.Attempts[len(rec.Attempts)-1]
	}

	rec.CollectionMethod = winner.Method
	rec.Attributes = copyFields(winner.Fields)
	rec.Hostname = rec.Attributes["hostname"]
	if rec.Hostname == address {
		rec.Hostname = ""
	}

	rec.DeviceClass, rec.OSFamily, rec.Confidence = o.classifier.Classify(rec)
	rec.ClassifiedAt = time.Now()
	rec.Completeness = model.CompletenessScore(rec.Attributes)
	state = o.transition(address, state, StateClassified)

	o.transition(address, state, StateDone)
	return rec
}

// methodOrder selects collector priority from the cheap pre-classification
// hints: Windows management ports put WinRM first, an SSH port without a
// Windows signature puts SSH first, SNMP runs only when a community string
// was configured (it cannot be detected by a TCP scan), and HTTP runs when
// a web port is open.
func (o *Orchestrator) methodOrder(scan *model.PortScanResult, creds *model.Credentials) []model.CollectionMethod {
	var order []model.CollectionMethod

	windows := scan.HasAnyPort(135, 445)
	if windows {
		order = append(order, model.MethodWinRM)
	}
	if scan.HasPort(22) && !windows {
		order = append(order, model.MethodSSH)
	}
	if creds != nil && creds.SNMPCommunity != "" {
		order = append(order, model.MethodSNMP)
	}
	if scan.HasAnyPort(80, 443, 8080) {
		order = append(order, model.MethodHTTP)
	}
	if windows && scan.HasPort(22) {
		order = append(order, model.MethodSSH)
	}
	return order
}

// collectWithRetry invokes one collector, retrying timed-out attempts with
// exponential backoff. Every try is appended to the record's attempt
// history. Returns the successful attempt or nil.
func (o *Orchestrator) collectWithRetry(ctx context.Context, collector collect.Collector, req *collect.Request, rec *model.DeviceRecord) *model.CollectionAttempt {
	backoff := 250 * time.Millisecond

	for try := 0; ; try++ {
		attempt := o.safeCollect(ctx, collector, req)
		rec.Attempts = append(rec.Attempts, attempt)
		if attempt.Succeeded() {
			return &rec.Attempts[len(rec.Attempts)-1]
		}

		if attempt.Status != model.StatusTimeout || try >= o.retryCount {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(min(backoff, o.methodTimeout)):
		}
		backoff *= 2
	}
}

// safeCollect isolates a collector: a panic finalizes the attempt instead
// of tearing down the pipeline or its siblings.
func (o *Orchestrator) safeCollect(ctx context.Context, collector collect.Collector, req *collect.Request) (attempt model.CollectionAttempt) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Collector panicked", "address", req.Address, "method", collector.Method(), "panic", r)
			attempt = model.CollectionAttempt{
				Method:    collector.Method(),
				Status:    model.StatusUnreachable,
				Error:     fmt.Sprintf("collector panic: %v", r),
				StartedAt: time.Now(),
			}
		}
	}()
	return collector.Collect(ctx, req)
}

func (o *Orchestrator) transition(address string, from, to State) State {
	log.Debug("Pipeline transition", "address", address, "from", from, "to", to)
	return to
}

func copyFields(fields map[string]string) map[string]string {
	if fields == nil {
		return nil
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// generateID returns a time-ordered unique ID.
func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
