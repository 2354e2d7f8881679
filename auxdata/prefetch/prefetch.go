// Package prefetch implements the client-side aux-data prefetcher of
// spec.md §4.8: a deadline-driven HTTP fetcher that stays a fixed window
// ahead of processor playback and enqueues fetched blocks for the
// validator.
package prefetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dtspro/dcsync/auxdata"
	"github.com/dtspro/dcsync/rtring"
	"github.com/dtspro/dcsync/wire"
)

// State is the prefetcher's visible connection/buffering state.
type State int32

const (
	Disconnected State = iota
	Buffering
	Connected
	Buffered
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Buffering:
		return "Buffering"
	case Connected:
		return "Connected"
	case Buffered:
		return "Buffered"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// CurrentFrameCallback returns the processor's current playback edit
// unit index.
type CurrentFrameCallback func() uint32

// Accept selects the plaintext-vs-encrypted essence variant requested
// from the responder.
type Accept string

const (
	AcceptPlaintext Accept = "plaintext"
	AcceptEncrypted Accept = "encrypted"
)

// Prefetcher is dormant until SetRPLLocation supplies an endpoint, after
// which Run drives the deadline loop described in spec.md §4.8.
type Prefetcher struct {
	log             *slog.Logger
	client          *http.Client
	queue           *rtring.Ring[*auxdata.Block]
	getCurrentFrame CurrentFrameCallback

	editUnitsPerRequest uint32
	ahead               uint32
	margin              uint32
	editRateNum         uint32
	editRateDen         uint32

	mu            sync.Mutex
	baseURL       string
	codingUL      wire.UL
	accept        Accept
	startEditUnit uint32
	configured    bool
	configuredCh  chan struct{}

	state    atomic.Int32
	inFlight atomic.Bool
}

// New returns a dormant Prefetcher. codingUL/accept select which
// essence variant is requested; editRateNum/Den derive the per-frame
// wall-clock duration used by the deadline loop.
func New(queue *rtring.Ring[*auxdata.Block], getCurrentFrame CurrentFrameCallback, editUnitsPerRequest, ahead, margin uint32, codingUL wire.UL, accept Accept, editRateNum, editRateDen uint32, log *slog.Logger) *Prefetcher {
	return &Prefetcher{
		log:                 log,
		client:              &http.Client{Timeout: 10 * time.Second},
		queue:               queue,
		getCurrentFrame:     getCurrentFrame,
		editUnitsPerRequest: editUnitsPerRequest,
		ahead:               ahead,
		margin:              margin,
		editRateNum:         editRateNum,
		editRateDen:         editRateDen,
		codingUL:            codingUL,
		accept:              accept,
		configuredCh:        make(chan struct{}),
	}
}

// State returns the prefetcher's current visible state.
func (p *Prefetcher) State() State { return State(p.state.Load()) }

func (p *Prefetcher) setState(s State) { p.state.Store(int32(s)) }

// SetRPLLocation parses rplURL (an http://host:port/ endpoint delivered
// by DCS's SetRPLLocationRequest) and arms the prefetcher: the first call
// releases Run, which issues the initial GET for
// [startEditUnit, startEditUnit+editUnitsPerRequest) straight away. Later
// calls only replace the endpoint. It is the callback DCS's
// ClientConversation invokes.
func (p *Prefetcher) SetRPLLocation(rplURL string) {
	u, err := url.Parse(rplURL)
	if err != nil {
		p.log.Error("prefetch: invalid RPL location", "url", rplURL, "error", err)
		return
	}

	p.mu.Lock()
	p.baseURL = u.Scheme + "://" + u.Host
	if p.baseURL == "://" {
		p.baseURL = "http://" + u.Host
	}
	already := p.configured
	p.configured = true
	p.mu.Unlock()

	if !already {
		close(p.configuredCh)
	}
}

// Run blocks until SetRPLLocation has configured an endpoint, issues the
// initial GET, then drives the deadline loop until ctx is canceled.
func (p *Prefetcher) Run(ctx context.Context) error {
	select {
	case <-p.configuredCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	initial := p.getStartEditUnit()
	if err := p.fetch(ctx, initial); err != nil {
		p.log.Error("prefetch: initial fetch failed", "start", initial, "error", err)
		p.rewindOnError(initial)
		p.setState(Disconnected)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		start := p.getStartEditUnit()
		current := p.getCurrentFrame()

		frameToInitiate := start + p.ahead
		if frameToInitiate >= p.margin {
			frameToInitiate -= p.margin
		} else {
			frameToInitiate = 0
		}

		if current <= frameToInitiate {
			wait := time.Duration(frameToInitiate-current) * p.msPerFrame()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			current = p.getCurrentFrame()
		}

		if p.inFlight.Load() && current > start {
			p.log.Warn("prefetch: deadline missed, GET already in flight", "current", current, "start", start)
			continue
		}

		if current > start {
			newStart := current + p.ahead
			p.log.Warn("prefetch: underflow, rewinding request window", "old_start", start, "new_start", newStart)
			p.setStartEditUnit(newStart)
			start = newStart
		}

		if err := p.fetch(ctx, start); err != nil {
			p.log.Error("prefetch: fetch failed", "start", start, "error", err)
			p.rewindOnError(start)
			p.setState(Disconnected)
		}
	}
}

func (p *Prefetcher) msPerFrame() time.Duration {
	if p.editRateNum == 0 {
		return time.Millisecond
	}
	ms := 1000.0 * float64(p.editRateDen) / float64(p.editRateNum)
	return time.Duration(ms * float64(time.Millisecond))
}

func (p *Prefetcher) getStartEditUnit() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startEditUnit
}

func (p *Prefetcher) setStartEditUnit(v uint32) {
	p.mu.Lock()
	p.startEditUnit = v
	p.mu.Unlock()
}

func (p *Prefetcher) rewindOnError(attemptedStart uint32) {
	p.mu.Lock()
	if p.editUnitsPerRequest <= attemptedStart {
		p.startEditUnit = attemptedStart - p.editUnitsPerRequest
	} else {
		p.startEditUnit = 0
	}
	p.mu.Unlock()
}

func (p *Prefetcher) buildURL(start uint32) string {
	p.mu.Lock()
	base := p.baseURL
	codingUL := p.codingUL
	accept := p.accept
	count := p.editUnitsPerRequest
	p.mu.Unlock()

	// Built by hand in the documented field order (coding_UL, start, count,
	// accept): url.Values.Encode() sorts keys alphabetically and would
	// scramble it.
	return fmt.Sprintf("%s/v1/auxdata/editunits?coding_UL=%X&start=%s&count=%s&accept=%s",
		base, codingUL[:], strconv.FormatUint(uint64(start), 10), strconv.FormatUint(uint64(count), 10), string(accept))
}

func (p *Prefetcher) fetch(ctx context.Context, start uint32) error {
	p.inFlight.Store(true)
	defer p.inFlight.Store(false)
	p.setState(Buffering)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.buildURL(start), nil)
	if err != nil {
		return fmt.Errorf("prefetch: build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("prefetch: GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("prefetch: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("prefetch: responder returned status %d", resp.StatusCode)
	}

	hdr, blocks, err := auxdata.DecodeBody(body)
	if err != nil {
		return fmt.Errorf("prefetch: decode body: %w", err)
	}

	for i := range blocks {
		blk := blocks[i]
		if !p.queue.TryPush(&blk) {
			p.log.Warn("prefetch: aux-data queue full, dropping block", "edit_unit_index", blk.EditUnitIndex)
		}
	}

	if hdr.EditUnitRangeCount > 0 {
		p.setStartEditUnit(hdr.EditUnitRangeStartIndex + hdr.EditUnitRangeCount)
		p.setState(Connected)
	} else {
		p.setStartEditUnit(hdr.EditUnitRangeStartIndex)
		p.setState(Buffered)
	}
	return nil
}
