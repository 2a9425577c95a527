package audioio

import (
	"context"
	"testing"
	"time"
)

func testMockConfig() Config {
	return Config{
		Backend:        BackendMock,
		Format:         Format{SampleRate: 48000, Channels: 1},
		BufferDuration: 10 * time.Millisecond,
	}
}

func TestMockSource(t *testing.T) {
	t.Run("push feeds stream", func(t *testing.T) {
		src := NewMockSource(testMockConfig(), nil)
		if err := src.Start(context.Background()); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		defer src.Close()

		chunk := Chunk{Samples: []int16{1, 2, 3}, Format: src.Config().Format}
		src.Push(chunk)

		select {
		case got := <-src.Stream():
			if len(got.Samples) != 3 {
				t.Errorf("got %d samples, want 3", len(got.Samples))
			}
		case <-time.After(time.Second):
			t.Fatal("no chunk received")
		}
	})

	t.Run("stop closes stream", func(t *testing.T) {
		src := NewMockSource(testMockConfig(), nil)
		_ = src.Start(context.Background())
		stream := src.Stream()
		_ = src.Stop()

		for range stream {
		}
		// Reaching here means the channel closed.
	})

	t.Run("push racing stop never panics", func(t *testing.T) {
		src := NewMockSource(testMockConfig(), nil)
		chunk := Chunk{Samples: []int16{1}, Format: src.Config().Format}

		for i := 0; i < 100; i++ {
			if err := src.Start(context.Background()); err != nil {
				t.Fatalf("start failed: %v", err)
			}
			done := make(chan struct{})
			go func() {
				for j := 0; j < 50; j++ {
					src.Push(chunk)
				}
				close(done)
			}()
			_ = src.Stop()
			<-done
		}
	})

	t.Run("push after stop is a no-op", func(t *testing.T) {
		cfg := testMockConfig()
		cfg.BufferDuration = 10 * time.Second // keep the generator quiet
		src := NewMockSource(cfg, nil)
		_ = src.Start(context.Background())
		_ = src.Stop()

		src.Push(Chunk{Samples: []int16{1}, Format: src.Config().Format})

		if got := src.Stats().ChunksRead; got != 0 {
			t.Errorf("chunks read after stop: got %d, want 0", got)
		}
	})

	t.Run("sine generator produces signal", func(t *testing.T) {
		src := NewMockSource(testMockConfig(), nil, WithSineWave(440, 0.5))
		_ = src.Start(context.Background())
		defer src.Close()

		select {
		case chunk := <-src.Stream():
			if Level(chunk.Samples) == 0 {
				t.Error("sine wave should have non-zero level")
			}
		case <-time.After(time.Second):
			t.Fatal("no chunk generated")
		}
	})
}

func TestMockSink(t *testing.T) {
	t.Run("retains written samples", func(t *testing.T) {
		sink := NewMockSink(Config{Backend: BackendMock, Format: WireFormat, BufferDuration: 10 * time.Millisecond}, nil)
		if err := sink.Start(context.Background()); err != nil {
			t.Fatalf("start failed: %v", err)
		}

		if err := sink.Write(context.Background(), []int16{5, 6}); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if len(sink.Written) != 2 {
			t.Errorf("got %d samples, want 2", len(sink.Written))
		}
	})

	t.Run("rejects writes when stopped", func(t *testing.T) {
		sink := NewMockSink(Config{Backend: BackendMock, Format: WireFormat, BufferDuration: 10 * time.Millisecond}, nil)
		if err := sink.Write(context.Background(), []int16{1}); err == nil {
			t.Error("expected error writing to stopped sink")
		}
	})
}
