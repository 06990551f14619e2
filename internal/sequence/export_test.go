package sequence_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"imageseq/internal/codec"
	"imageseq/internal/fileutil"
	"imageseq/internal/sequence"
	"imageseq/internal/testsupport"
)

func importedController(t *testing.T, n int, mutate func(*sequence.Options)) (*sequence.Controller, string) {
	t.Helper()
	src := t.TempDir()
	testsupport.WriteSequence(t, src, n, 4, 3)
	c := newController(t, func(o *sequence.Options) {
		o.ThreadedImport = false
		if mutate != nil {
			mutate(o)
		}
	}, sequence.Deps{})
	if err := c.StartImport(context.Background(), src); err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	return c, src
}

func TestThreadedExportWritesFrames(t *testing.T) {
	c, _ := importedController(t, 3, nil)
	dest := t.TempDir()
	done := c.Await(sequence.EventExportComplete)

	if err := c.StartExport(context.Background(), dest, "png"); err != nil {
		t.Fatalf("StartExport: %v", err)
	}
	ev := awaitEvent(t, c, done)
	if !ev.Succeeded || ev.Frames != 3 {
		t.Fatalf("unexpected export event: %+v", ev)
	}
	if want := filepath.Join(dest, "run"); c.ExportDir() != want {
		t.Fatalf("export dir = %q, want %q", c.ExportDir(), want)
	}
	for _, name := range []string{"frame_000.png", "frame_001.png", "frame_002.png"} {
		img, err := codec.New().Decode(filepath.Join(dest, "run", name))
		if err != nil {
			t.Fatalf("decode exported %s: %v", name, err)
		}
		if img.Bounds().Dx() != 4 {
			t.Fatalf("unexpected width for %s", name)
		}
	}
	if !c.IsExported() || c.PercentExported() != 1 || !c.IsReady() {
		t.Fatalf("expected exported and ready, status %s", c.Status())
	}
	if fileutil.Exists(filepath.Join(dest, ".run.lock")) {
		t.Fatal("export lock should be released")
	}
}

func TestExportKeepsExistingFileWithoutOverwrite(t *testing.T) {
	c, _ := importedController(t, 3, synchronous)
	dest := t.TempDir()
	existing := filepath.Join(dest, "run", "frame_001.png")
	testsupport.WriteFile(t, existing, 16)
	before, err := os.ReadFile(existing)
	if err != nil {
		t.Fatal(err)
	}
	events := countEvents(c)

	if err := c.StartExport(context.Background(), dest, ""); err != nil {
		t.Fatalf("StartExport: %v", err)
	}
	after, err := os.ReadFile(existing)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("existing file was modified")
	}
	ev := events.lastEvent(sequence.EventExportComplete)
	if !ev.Succeeded || ev.Skipped != 1 || ev.Frames != 2 {
		t.Fatalf("unexpected export event: %+v", ev)
	}
	if c.PercentExported() != 1 {
		t.Fatalf("cursor should pass the skipped frame, got %v", c.PercentExported())
	}

	c.EnableOverwriteOnExport(true)
	if err := c.StartExport(context.Background(), dest, "png"); err != nil {
		t.Fatalf("StartExport overwrite: %v", err)
	}
	if _, err := codec.New().Decode(existing); err != nil {
		t.Fatalf("overwritten file should be a valid image: %v", err)
	}
}

func TestExportFailures(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		c := newController(t, nil, sequence.Deps{})
		events := countEvents(c)
		err := c.StartExport(context.Background(), t.TempDir(), "png")
		if !errors.Is(err, sequence.ErrNoFrames) {
			t.Fatalf("expected ErrNoFrames, got %v", err)
		}
		if events.count(sequence.EventExportComplete) != 1 || c.IsExported() {
			t.Fatal("empty export should emit one failure event")
		}
	})

	t.Run("unsupported extension", func(t *testing.T) {
		c, _ := importedController(t, 1, nil)
		err := c.StartExport(context.Background(), t.TempDir(), "webp")
		if !errors.Is(err, codec.ErrUnsupportedFormat) {
			t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
		}
		if !c.IsReady() {
			t.Fatalf("failed export should leave the sequence ready, got %s", c.Status())
		}
	})

	t.Run("destination locked", func(t *testing.T) {
		c, _ := importedController(t, 1, nil)
		dest := t.TempDir()
		lock, err := fileutil.LockDir(dest, "run")
		if err != nil {
			t.Fatalf("LockDir: %v", err)
		}
		defer lock.Unlock()
		if err := c.StartExport(context.Background(), dest, "png"); !errors.Is(err, sequence.ErrBusy) {
			t.Fatalf("expected ErrBusy, got %v", err)
		}
	})
}

func TestExportInMemoryFrames(t *testing.T) {
	c := newController(t, synchronous, sequence.Deps{})
	c.StartLoading(2)
	for i := 0; i < 2; i++ {
		if _, err := c.AddFrame(testsupport.Frame(3, 3, uint8(i)), ""); err != nil {
			t.Fatalf("AddFrame: %v", err)
		}
	}
	if err := c.CompleteLoading(); err != nil {
		t.Fatalf("CompleteLoading: %v", err)
	}
	c.SetCreationTimestamp("memory")
	c.SetExportQuality(codec.QualityLow)

	dest := t.TempDir()
	if err := c.StartExport(context.Background(), dest, "jpg"); err != nil {
		t.Fatalf("StartExport: %v", err)
	}
	for _, name := range []string{"000.jpg", "001.jpg"} {
		if !fileutil.Exists(filepath.Join(dest, "memory", name)) {
			t.Fatalf("expected %s to be written", name)
		}
	}
}

func TestCancelExport(t *testing.T) {
	c, _ := importedController(t, 40, func(o *sequence.Options) { o.ExportDelay = 2 * time.Millisecond })
	done := c.Await(sequence.EventExportComplete)
	if err := c.StartExport(context.Background(), t.TempDir(), "bmp"); err != nil {
		t.Fatalf("StartExport: %v", err)
	}
	if c.Status() != sequence.StatusExporting {
		t.Fatalf("expected exporting status, got %s", c.Status())
	}
	if err := c.PauseExport(); err != nil {
		t.Fatalf("PauseExport: %v", err)
	}
	if err := c.CancelExport(); err != nil {
		t.Fatalf("CancelExport: %v", err)
	}
	ev := awaitEvent(t, c, done)
	if !ev.Canceled || c.IsExported() {
		t.Fatalf("expected canceled export, got %+v", ev)
	}
	if c.PercentExported() >= 1 {
		t.Fatalf("canceled export should plateau, got %v", c.PercentExported())
	}
	if !c.IsReady() {
		t.Fatalf("expected ready after canceled export, got %s", c.Status())
	}
}
