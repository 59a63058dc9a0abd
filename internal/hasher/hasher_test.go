package hasher

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/duplifind/duplifind/internal/model"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, content, 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestQuickHashIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	content := bytes.Repeat([]byte("abcdefgh"), 2000) // 16000 bytes
	p := writeFile(t, dir, "a.bin", content)

	s1, n1, err := QuickHash(p, int64(len(content)), DefaultSampleSize)
	if err != nil {
		t.Fatal(err)
	}
	s2, n2, err := QuickHash(p, int64(len(content)), DefaultSampleSize)
	if err != nil {
		t.Fatal(err)
	}
	if s1 != s2 || n1 != n2 {
		t.Errorf("QuickHash is not deterministic: (%v,%v) vs (%v,%v)", s1, n1, s2, n2)
	}
}

func TestQuickHashIgnoresMiddleOnlyDifference(t *testing.T) {
	dir := t.TempDir()
	size := int64(20000)

	a := bytes.Repeat([]byte{0}, int(size))
	b := append([]byte(nil), a...)
	// flip a byte well inside the unsampled middle region.
	b[size/2] = 0xFF

	pa := writeFile(t, dir, "a.bin", a)
	pb := writeFile(t, dir, "b.bin", b)

	sa, _, err := QuickHash(pa, size, DefaultSampleSize)
	if err != nil {
		t.Fatal(err)
	}
	sb, _, err := QuickHash(pb, size, DefaultSampleSize)
	if err != nil {
		t.Fatal(err)
	}
	// Only the head and tail samples and the size tag are hashed, so the two
	// files share a quick-hash; the full-hash pass is what separates them.
	if sa != sb {
		t.Errorf("quick-hash changed for a difference outside the head and tail samples: %v != %v", sa, sb)
	}
}

func TestQuickHashSmallFileReadsWholeFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("short")
	p := writeFile(t, dir, "s.txt", content)

	_, n, err := QuickHash(p, int64(len(content)), DefaultSampleSize)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(content)) {
		t.Errorf("got n=%d, want %d for a file smaller than the sample window", n, len(content))
	}
}

func TestQuickHashMidSizeSamplesHeadOnly(t *testing.T) {
	dir := t.TempDir()
	sampleSize := int64(DefaultSampleSize)
	size := sampleSize + sampleSize/2 // strictly between sampleSize and 2*sampleSize
	content := bytes.Repeat([]byte{0xAB}, int(size))
	p := writeFile(t, dir, "mid.bin", content)

	_, n, err := QuickHash(p, size, sampleSize)
	if err != nil {
		t.Fatal(err)
	}
	if n != sampleSize {
		t.Errorf("got n=%d, want %d (head-only sample, not the whole %d-byte file)", n, sampleSize, size)
	}

	// Changing a byte in the unsampled tail must not change the digest:
	// only the head and the size tag were hashed.
	modified := append([]byte(nil), content...)
	modified[len(modified)-1] ^= 0xFF
	pm := writeFile(t, dir, "mid-tail-changed.bin", modified)

	s1, _, err := QuickHash(p, size, sampleSize)
	if err != nil {
		t.Fatal(err)
	}
	s2, _, err := QuickHash(pm, size, sampleSize)
	if err != nil {
		t.Fatal(err)
	}
	if s1 != s2 {
		t.Errorf("quick-hash for a mid-size file should ignore tail-only changes, got %v != %v", s1, s2)
	}
}

func TestQuickHashDistinguishesSize(t *testing.T) {
	dir := t.TempDir()
	content := []byte("identical-prefix-and-suffix")
	p1 := writeFile(t, dir, "one.bin", content)
	p2 := writeFile(t, dir, "two.bin", append(append([]byte{}, content...), '!'))

	s1, _, err := QuickHash(p1, int64(len(content)), DefaultSampleSize)
	if err != nil {
		t.Fatal(err)
	}
	s2, _, err := QuickHash(p2, int64(len(content)+1), DefaultSampleSize)
	if err != nil {
		t.Fatal(err)
	}
	if s1 == s2 {
		t.Error("files of different sizes produced the same quick-hash")
	}
}

func TestFullHashMatchesSHA256(t *testing.T) {
	dir := t.TempDir()
	content := bytes.Repeat([]byte("payload"), 5000)
	p := writeFile(t, dir, "f.bin", content)

	factory, err := NewHashFactory(AlgoSHA256)
	if err != nil {
		t.Fatal(err)
	}
	sum, n, err := FullHash(p, int64(len(content)), factory)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(content)) {
		t.Errorf("got n=%d, want %d", n, len(content))
	}
	want := sha256.Sum256(content)
	if !bytes.Equal(sum, want[:]) {
		t.Errorf("FullHash mismatch: got %x, want %x", sum, want)
	}
}

func TestNewHashFactoryRejectsUnknown(t *testing.T) {
	if _, err := NewHashFactory("md5-ish-nonsense"); err == nil {
		t.Error("expected an error for an unknown algorithm name")
	}
}

func TestRunQuickHashersProcessesAll(t *testing.T) {
	dir := t.TempDir()
	var descs []model.FileDescriptor
	for i := 0; i < 10; i++ {
		p := writeFile(t, dir, fmt.Sprintf("file_%d.bin", i), bytes.Repeat([]byte{byte(i)}, 100))
		descs = append(descs, model.FileDescriptor{Path: p, Size: 100})
	}

	in := make(chan model.FileDescriptor, len(descs))
	for _, d := range descs {
		in <- d
	}
	close(in)

	out := make(chan QuickResult, len(descs))
	var totalBytes int64
	RunQuickHashers(context.Background(), 3, DefaultSampleSize, in, out, func(n int64) { totalBytes += n }, nil)

	got := map[string]uint64{}
	for r := range out {
		got[r.Descriptor.Path] = r.Sum
	}
	if len(got) != len(descs) {
		t.Errorf("processed %d files, want %d", len(got), len(descs))
	}
	if totalBytes == 0 {
		t.Error("expected onBytes to report nonzero bytes read")
	}
}

func TestRunFullHashersProcessesAll(t *testing.T) {
	dir := t.TempDir()
	var descs []model.FileDescriptor
	for i := 0; i < 6; i++ {
		p := writeFile(t, dir, fmt.Sprintf("file_%d.bin", i), bytes.Repeat([]byte{byte(i)}, 4096))
		descs = append(descs, model.FileDescriptor{Path: p, Size: 4096})
	}

	in := make(chan model.FileDescriptor, len(descs))
	for _, d := range descs {
		in <- d
	}
	close(in)

	factory, _ := NewHashFactory(AlgoSHA256)
	out := make(chan FullResult, len(descs))
	RunFullHashers(context.Background(), 2, AlgoSHA256, factory, in, out, nil, nil)

	got := map[string][]byte{}
	for r := range out {
		got[r.Descriptor.Path] = r.Sum
	}
	if len(got) != len(descs) {
		t.Errorf("processed %d files, want %d", len(got), len(descs))
	}
}
