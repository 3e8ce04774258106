package processor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/yleoer/tbseg/pkg/dataset"
	"github.com/yleoer/tbseg/pkg/labels"
	"github.com/yleoer/tbseg/pkg/observe"
	"github.com/yleoer/tbseg/pkg/timebin"
)

func newTestProcessor(t *testing.T, root, out string) *VectorProcessor {
	t.Helper()
	metrics, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return NewVectorProcessor(root, out, metrics, quietLogger())
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func centers(n int, dur float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i) * dur
	}
	return out
}

func TestProcessFileThenDecode(t *testing.T) {
	t.Parallel()

	root, out := t.TempDir(), t.TempDir()
	m, err := labels.BuildMap(labels.Strs("a", "b"), true)
	if err != nil {
		t.Fatalf("BuildMap: %v", err)
	}
	segs := []timebin.Segment{
		{Label: labels.Str("a"), Onset: 0.25, Offset: 0.75},
		{Label: labels.Str("b"), Onset: 1, Offset: 1.5},
	}
	f := &dataset.File{
		Item:     dataset.NewItem(filepath.Join(root, "day1"), "x.wav"),
		Segments: segs,
		Centers:  centers(8, 0.25),
	}

	rec, err := newTestProcessor(t, root, out).ProcessFile(context.Background(), f, m, 0.25)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if want := filepath.Join(out, "day1", "x.wav.lbl_tb.json"); rec.OutputPath != want {
		t.Errorf("OutputPath = %q, want %q", rec.OutputPath, want)
	}
	if rec.NumTimebins != 8 || !rec.HasUnlabeled || rec.Path != f.Item.AnnotPath {
		t.Errorf("record = %+v", rec)
	}

	doc, err := ReadVector(rec.OutputPath)
	if err != nil {
		t.Fatalf("ReadVector: %v", err)
	}
	if want := []int{0, 1, 1, 0, 2, 2, 0, 0}; !slices.Equal(doc.Labels, want) {
		t.Errorf("labels = %v, want %v", doc.Labels, want)
	}

	got, csvPath, err := DecodeVectorFile(rec.OutputPath, "", m, quietLogger())
	if err != nil {
		t.Fatalf("DecodeVectorFile: %v", err)
	}
	if !slices.Equal(got, segs) {
		t.Errorf("decoded = %v, want %v", got, segs)
	}
	if want := filepath.Join(out, "day1", "x.wav.segments.csv"); csvPath != want {
		t.Errorf("csv path = %q, want %q", csvPath, want)
	}
	if _, err := os.Stat(csvPath); err != nil {
		t.Errorf("segments file missing: %v", err)
	}
}

func TestProcessFile_UnknownLabel(t *testing.T) {
	t.Parallel()

	m, err := labels.BuildMap(labels.Strs("a"), true)
	if err != nil {
		t.Fatalf("BuildMap: %v", err)
	}
	f := &dataset.File{
		Item:     dataset.NewItem(t.TempDir(), "x.wav"),
		Segments: []timebin.Segment{{Label: labels.Str("z"), Onset: 0, Offset: 0.5}},
		Centers:  centers(4, 0.25),
	}
	_, err = newTestProcessor(t, t.TempDir(), t.TempDir()).ProcessFile(context.Background(), f, m, 0.25)
	if !errors.Is(err, labels.ErrUnknownLabel) {
		t.Errorf("err = %v, want ErrUnknownLabel", err)
	}
	var fe *timebin.FileError
	if !errors.As(err, &fe) || fe.File != "x.wav" {
		t.Errorf("err = %v, want FileError for x.wav", err)
	}
}

func TestReadVector_Malformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "x.wav.lbl_tb.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadVector(path); err == nil {
		t.Error("ReadVector accepted malformed JSON")
	}
}

// closeFailer 写入成功但关闭失败，模拟刷盘失败
type closeFailer struct {
	bytes.Buffer
	closed int
}

var errFlush = errors.New("flush failed")

func (c *closeFailer) Close() error {
	c.closed++
	return errFlush
}

func TestWriters_ReturnCloseError(t *testing.T) {
	t.Parallel()

	segs := []timebin.Segment{{Label: labels.Str("a"), Onset: 0, Offset: 1}}

	tests := []struct {
		name  string
		write func(*closeFailer) error
	}{
		{"vector json", func(w *closeFailer) error {
			return encodeJSON(w, dataset.Vector{File: "a.wav", TimebinDur: 0.25, Labels: []int{1}})
		}},
		{"segments csv", func(w *closeFailer) error { return writeSegments(w, segs) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := &closeFailer{}
			if err := tc.write(w); !errors.Is(err, errFlush) {
				t.Errorf("err = %v, want the close error", err)
			}
			if w.closed != 1 || w.Len() == 0 {
				t.Errorf("closed %d times after writing %d bytes", w.closed, w.Len())
			}
		})
	}
}
