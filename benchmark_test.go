package vpk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

const (
	benchDefaultEntries    = 128
	benchLargeIndexEntries = 52536
)

var (
	// benchListSink prevents compiler elimination in list benchmark loops.
	benchListSink int
)

func BenchmarkParse(b *testing.B) {
	data := createBenchVPK(b, benchDefaultEntries)

	b.ReportAllocs()
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a, err := Parse(data)
		if err != nil {
			b.Fatal(err)
		}
		_ = a.Entries()
	}
}

func BenchmarkParseLargeIndex(b *testing.B) {
	data := createBenchVPK(b, benchLargeIndexEntries)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a, err := Parse(data)
		if err != nil {
			b.Fatal(err)
		}

		if a.Len() == 0 {
			b.Fatal("empty entries")
		}
	}
}

func BenchmarkListLargeIndex(b *testing.B) {
	a, err := Parse(createBenchVPK(b, benchLargeIndexEntries))
	if err != nil {
		b.Fatal(err)
	}

	entries := a.Entries()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		total := 0
		for _, e := range entries {
			total += len(e.Path)
			total += int(e.Size())
		}

		benchListSink = total
	}
}

func BenchmarkPatchLargeIndex(b *testing.B) {
	data := createBenchVPK(b, benchLargeIndexEntries)
	target := benchmarkLargePath(benchLargeIndexEntries / 2)
	content := []byte("replacement payload")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Patch(data, target, content); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSerializeUnmodified(b *testing.B) {
	a, err := Parse(createBenchVPK(b, benchLargeIndexEntries))
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := a.Serialize(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkExtract(b *testing.B) {
	benchmarkExtractWithSanitize(b, false)
}

func BenchmarkExtractSanitize(b *testing.B) {
	benchmarkExtractWithSanitize(b, true)
}

// benchmarkExtractWithSanitize benchmarks full extract flow with optional path sanitization.
func benchmarkExtractWithSanitize(b *testing.B, sanitizeNames bool) {
	a, err := Parse(createBenchVPK(b, benchDefaultEntries))
	if err != nil {
		b.Fatal(err)
	}

	dir := b.TempDir()
	opts := ExtractOptions{
		MaxWorkers:    4,
		SanitizeNames: sanitizeNames,
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out := filepath.Join(dir, "ext", fmt.Sprintf("run%d", i))
		_ = os.MkdirAll(out, 0o750)
		if err := a.Extract(context.Background(), out, opts); err != nil {
			b.Fatal(err)
		}
	}
}

// createBenchVPK builds an archive with numEntries embedded entries spread over directories.
func createBenchVPK(b *testing.B, numEntries int) []byte {
	b.Helper()

	files := make([]testFile, 0, numEntries)
	for i := range numEntries {
		files = append(files, testFile{
			path:    benchmarkLargePath(i),
			content: fmt.Appendf(nil, "payload-%06d", i),
			preload: i % 4,
		})
	}

	return buildTestVPK(b, testArchive{files: files, selfHashes: true})
}

// benchmarkLargePath returns deterministic nested path for large-index benchmarks.
func benchmarkLargePath(i int) string {
	ext := [...]string{"vmdl_c", "vtex_c", "vmat_c", "vpcf_c"}[i%4]
	return fmt.Sprintf("models/heroes/h%03d/sub%02d/file_%06d.%s", i%113, i%17, i, ext)
}
