// Command dcsserver runs the emitter side of the sync stack: it loads a
// show, modulates the AES/EBU sync signal for it at video cadence, serves
// the aux-data responder over HTTP, and answers a processor's DCS control
// connection.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dtspro/dcsync/auxdata/serve"
	"github.com/dtspro/dcsync/dcs"
	"github.com/dtspro/dcsync/emitter"
	"github.com/dtspro/dcsync/rtring"
	"github.com/dtspro/dcsync/show"
	"github.com/dtspro/dcsync/wire"
)

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	showDir := envOr("SHOW_DIR", "show")
	dcsAddr := envOr("DCS_ADDR", ":7373")
	auxDataAddr := envOr("AUXDATA_ADDR", ":8080")
	sampleRate := envOrInt("SAMPLE_RATE", 48000)
	chunkSamples := envOrInt("CHUNK_SAMPLES", 512)
	leaseDuration := envOrInt("LEASE_DURATION_SECONDS", 3600)
	bytesPerUnit := int64(envOrInt("BYTES_PER_UNIT", 4096))

	s, err := show.LoadDir(showDir)
	if err != nil {
		log.Error("failed to load show", "dir", showDir, "error", err)
		os.Exit(1)
	}
	showLength := s.Length()
	log.Info("show loaded", "dir", showDir, "cpls", len(s.CPLs), "length_edit_units", showLength)

	pool := rtring.NewPool(rtring.QuarterSecondBuffers(sampleRate, chunkSamples), chunkSamples)

	engine := emitter.NewEngine(sampleRate, chunkSamples, showLength, pool, log)
	engine.GetFrameData = frameInfoResolver(s, sampleRate, log)
	engine.Init(sampleRate, chunkSamples, showLength)
	engine.Play()

	auxHandler := serve.New(s, bytesPerUnit, log)
	defer auxHandler.Close()
	auxSrv := &http.Server{Addr: auxDataAddr, Handler: auxHandler}

	rplURL := fmt.Sprintf("http://%s/v1/auxdata/editunits", hostFor(auxDataAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	ln, err := net.Listen("tcp", dcsAddr)
	if err != nil {
		log.Error("failed to listen for DCS connections", "addr", dcsAddr, "error", err)
		os.Exit(1)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runEmitterLoop(ctx, engine, pool)
	})

	g.Go(func() error {
		return engine.Run(ctx, pool.Free.Cap())
	})

	g.Go(func() error {
		log.Info("aux-data responder listening", "addr", auxDataAddr)
		if err := auxSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("aux-data responder: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return auxSrv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})

	g.Go(func() error {
		log.Info("DCS listener accepting connections", "addr", dcsAddr, "rpl_url", rplURL)
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("dcs accept: %w", err)
			}
			go acceptDCS(conn, log, uint32(leaseDuration), rplURL, engine)
		}
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func acceptDCS(conn net.Conn, log *slog.Logger, leaseDuration uint32, rplURL string, engine *emitter.Engine) {
	dcs.NewServerConversation(conn, log, leaseDuration, rplURL, engine.SetPlayoutID, engine.SetProcessorReady)
}

// runEmitterLoop stands in for the real-time audio output host (out of
// scope per spec.md §1): it drains the chunks the emitter produces and
// returns each buffer to the free ring, the way a playback callback would
// once it had copied the samples out to the sound device.
func runEmitterLoop(ctx context.Context, engine *emitter.Engine, pool *rtring.Pool) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		buf, ok := pool.Filled.TryPop()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		buf.Len = 0
		pool.Free.TryPush(buf)
	}
}

// frameInfoResolver resolves the per-frame data the engine needs to build
// a sync packet from the loaded show: asset UUIDs, rates, and the
// composition's UUID (parsed from the covering CPL's declared Id).
func frameInfoResolver(s *show.Show, sampleRate int, log *slog.Logger) emitter.GetFrameDataCallback {
	return func(currentFrame uint32) (emitter.FrameInfo, error) {
		picture, sound, pictureFrame, ok := s.FrameAt(currentFrame)
		if !ok {
			return emitter.FrameInfo{}, fmt.Errorf("dcsserver: no reel covers frame %d", currentFrame)
		}
		if picture.EditRateNum == 0 {
			return emitter.FrameInfo{}, fmt.Errorf("dcsserver: picture asset %s has zero edit rate", picture.UUID)
		}

		// sampleDurationNum/Den carry one sample period (1/sampleRate
		// seconds) as a rational, matching syncsignal.Packet.Validate's
		// editUnitDuration derivation.
		fi := emitter.FrameInfo{
			EditRateNum:                          picture.EditRateNum,
			EditRateDen:                          picture.EditRateDen,
			SampleDurationNum:                    1,
			SampleDurationDen:                    uint32(sampleRate),
			PrimaryPictureTrackFileEditUnitIndex: pictureFrame,
			PrimaryPictureTrackFileUUID:          picture.UUID,
			CompositionPlaylistUUID:              cplUUIDFor(s, picture, log),
		}
		fi.EditUnitDuration = uint16(uint64(fi.SampleDurationDen) * uint64(fi.EditRateDen) / uint64(fi.EditRateNum))

		if sound != nil {
			fi.PrimarySoundTrackFileEditUnitIndex = sound.EntryPoint + (currentFrame - sound.StartFrame)
			fi.PrimarySoundTrackFileUUID = sound.UUID
		}
		return fi, nil
	}
}

func cplUUIDFor(s *show.Show, picture *show.Asset, log *slog.Logger) wire.UUID {
	for _, cpl := range s.CPLs {
		for _, reel := range cpl.Reels {
			if reel.MainPicture == picture {
				id, err := wire.ParseUUID(cpl.ID)
				if err != nil {
					log.Warn("CPL Id is not a parseable UUID, using zero UUID", "cpl_id", cpl.ID, "error", err)
					return wire.UUID{}
				}
				return id
			}
		}
	}
	return wire.UUID{}
}

func hostFor(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "localhost" + addr
	}
	if host == "" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
