package prefetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dtspro/dcsync/auxdata"
	"github.com/dtspro/dcsync/rtring"
	"github.com/dtspro/dcsync/wire"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSetRPLLocationAndFetchEnqueuesBlocks(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		hdr := auxdata.TransferHeader{EditUnitRangeStartIndex: 0, EditUnitRangeCount: 2}
		blocks := []auxdata.Block{
			{EditUnitIndex: 0, EditRateNum: 24, EditRateDen: 1, SourceData: []byte{0x01}},
			{EditUnitIndex: 1, EditRateNum: 24, EditRateDen: 1, SourceData: []byte{0x02}},
		}
		w.Write(auxdata.EncodeBody(hdr, blocks))
	}))
	defer srv.Close()

	queue := rtring.New[*auxdata.Block](16)
	var currentFrame atomic.Uint32

	p := New(queue, currentFrame.Load, 2, 10, 2, wire.UL{}, AcceptPlaintext, 24, 1, discardLogger())
	p.SetRPLLocation(srv.URL + "/")

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go p.Run(ctx)

	deadline := time.After(2 * time.Second)
	for {
		if requests.Load() > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for a request")
		case <-time.After(10 * time.Millisecond):
		}
	}

	deadline = time.After(2 * time.Second)
	for {
		if queue.Len() >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for blocks, queue len = %d", queue.Len())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestBuildURLShape(t *testing.T) {
	t.Parallel()

	queue := rtring.New[*auxdata.Block](4)
	codingUL := wire.UL{0xAA, 0xBB}
	p := New(queue, func() uint32 { return 0 }, 10, 20, 2, codingUL, AcceptEncrypted, 24, 1, discardLogger())
	p.SetRPLLocation("http://example.test:8080/")

	got := p.buildURL(5)
	want := "http://example.test:8080/v1/auxdata/editunits?coding_UL=AABB0000000000000000000000000000&start=5&count=10&accept=encrypted"
	if got != want {
		t.Fatalf("buildURL:\n got  %s\n want %s", got, want)
	}
}

func TestRewindOnErrorClampsAtZero(t *testing.T) {
	t.Parallel()

	queue := rtring.New[*auxdata.Block](4)
	p := New(queue, func() uint32 { return 0 }, 100, 20, 2, wire.UL{}, AcceptPlaintext, 24, 1, discardLogger())
	p.rewindOnError(5)
	if got := p.getStartEditUnit(); got != 0 {
		t.Fatalf("startEditUnit = %d, want 0 (clamped)", got)
	}
}
