// Command streamclient replays a WAV file to the transcription websocket at
// real-time pace and prints every message the server sends back.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/obiente/translate/livescribe/internal/audio"
	"github.com/obiente/translate/livescribe/internal/frame"
	"github.com/obiente/translate/livescribe/internal/logging"
)

func main() {
	addr := flag.String("url", "ws://localhost:8080/ws/transcribe", "websocket endpoint")
	wavPath := flag.String("wav", "", "16-bit PCM WAV file to stream")
	chunk := flag.Duration("chunk", 20*time.Millisecond, "audio per frame")
	lang := flag.String("lang", "", "language to request before streaming (en, hi, hi-en)")
	linger := flag.Duration("linger", 3*time.Second, "wait for trailing results after the file ends")
	flag.Parse()

	logging.Init(logging.Config{Level: "info", Format: "console"})
	if *wavPath == "" {
		log.Fatal().Msg("-wav is required")
	}

	raw, err := os.ReadFile(*wavPath)
	if err != nil {
		log.Fatal().Err(err).Msg("read wav")
	}
	samples, rate, err := audio.DecodeWAVToFloat32(raw)
	if err != nil {
		log.Fatal().Err(err).Msg("decode wav")
	}
	pcm := audio.EncodePCM16LE(audio.ResampleLinear(samples, rate, frame.SampleRate))

	u, err := url.Parse(*addr)
	if err != nil {
		log.Fatal().Err(err).Msg("parse url")
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal().Err(err).Msg("dial")
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return receive(gctx, conn) })
	g.Go(func() error {
		if *lang != "" {
			if err := conn.WriteJSON(map[string]any{"type": "change_language", "language": *lang}); err != nil {
				return err
			}
		}
		if err := stream(gctx, conn, pcm, *chunk); err != nil {
			return err
		}
		select {
		case <-gctx.Done():
		case <-time.After(*linger):
		}
		return conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("stream ended")
	}
}

// stream sends pcm as framed binary messages, one chunk per tick.
func stream(ctx context.Context, conn *websocket.Conn, pcm []byte, chunk time.Duration) error {
	size := int(chunk.Seconds()*frame.SampleRate) * frame.BytesPerSample
	if size <= 0 {
		size = 640
	}
	ticker := time.NewTicker(chunk)
	defer ticker.Stop()
	start := time.Now()
	for off := 0; off < len(pcm); off += size {
		end := min(off+size, len(pcm))
		ms := uint32(time.Since(start).Milliseconds())
		if err := conn.WriteMessage(websocket.BinaryMessage, frame.Encode(ms, 0, pcm[off:end])); err != nil {
			return fmt.Errorf("send frame: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("audio sent")
	return nil
}

// receive prints server messages until the socket closes or ctx is done.
// Cancelling ctx closes conn to unblock the read.
func receive(ctx context.Context, conn *websocket.Conn) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Msg("non-JSON message")
			continue
		}
		switch msg["type"] {
		case "partial_transcription":
			fmt.Printf("\r... %v", msg["content"])
		case "final_transcription":
			fmt.Printf("\r[%v] %v (%v)\n", msg["language"], msg["content"], msg["confidence"])
		default:
			out, _ := json.Marshal(msg)
			fmt.Println(string(out))
		}
	}
}
