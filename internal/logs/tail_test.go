package logs

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeLog(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "furrow.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestTailMissingFileIsNotAnError(t *testing.T) {
	result, err := Tail(context.Background(), filepath.Join(t.TempDir(), "absent.log"), TailOptions{Offset: -1, Limit: 5})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, t.TempDir(), "one\ntwo\nthree\nfour\n")

	result, err := Tail(context.Background(), path, TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if !reflect.DeepEqual(result.Lines, []string{"three", "four"}) {
		t.Fatalf("unexpected lines: %v", result.Lines)
	}
	if result.Offset == 0 {
		t.Fatal("expected end-of-file offset")
	}
}

func TestTailLastLinesLimitExceedsFile(t *testing.T) {
	path := writeLog(t, t.TempDir(), "one\ntwo\n")

	result, err := Tail(context.Background(), path, TailOptions{Offset: -1, Limit: 10})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if !reflect.DeepEqual(result.Lines, []string{"one", "two"}) {
		t.Fatalf("unexpected lines: %v", result.Lines)
	}
}

func TestTailResumeFromOffset(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "one\ntwo\n")

	first, err := Tail(context.Background(), path, TailOptions{Offset: -1, Limit: 0})
	if err != nil {
		t.Fatalf("Tail initial: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := f.WriteString("three\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	second, err := Tail(context.Background(), path, TailOptions{Offset: first.Offset})
	if err != nil {
		t.Fatalf("Tail resume: %v", err)
	}
	if !reflect.DeepEqual(second.Lines, []string{"three"}) {
		t.Fatalf("unexpected resumed lines: %v", second.Lines)
	}
}

func TestTailOffsetPastTruncation(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "one\ntwo\nthree\n")

	first, err := Tail(context.Background(), path, TailOptions{Offset: -1, Limit: 0})
	if err != nil {
		t.Fatalf("Tail initial: %v", err)
	}

	writeLog(t, dir, "x\n")
	result, err := Tail(context.Background(), path, TailOptions{Offset: first.Offset})
	if err != nil {
		t.Fatalf("Tail after truncate: %v", err)
	}
	if len(result.Lines) != 0 {
		t.Fatalf("expected no lines past truncated end, got %v", result.Lines)
	}
	if result.Offset > first.Offset {
		t.Fatalf("offset should clamp to new size, got %d", result.Offset)
	}
}

func TestTailFollowWaitsForNewLines(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "one\n")

	first, err := Tail(context.Background(), path, TailOptions{Offset: -1, Limit: 0})
	if err != nil {
		t.Fatalf("Tail initial: %v", err)
	}

	go func() {
		time.Sleep(300 * time.Millisecond)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = f.WriteString("two\n")
	}()

	result, err := Tail(context.Background(), path, TailOptions{
		Offset: first.Offset,
		Follow: true,
		Wait:   2 * time.Second,
	})
	if err != nil {
		t.Fatalf("Tail follow: %v", err)
	}
	if !reflect.DeepEqual(result.Lines, []string{"two"}) {
		t.Fatalf("unexpected followed lines: %v", result.Lines)
	}
}

func TestTailFollowHonorsContextCancel(t *testing.T) {
	path := writeLog(t, t.TempDir(), "one\n")

	first, err := Tail(context.Background(), path, TailOptions{Offset: -1, Limit: 0})
	if err != nil {
		t.Fatalf("Tail initial: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err = Tail(ctx, path, TailOptions{Offset: first.Offset, Follow: true, Wait: 10 * time.Second})
	if err == nil {
		t.Fatal("expected context cancellation error")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("follow did not stop promptly after cancel")
	}
}
