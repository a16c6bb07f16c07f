package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/btc-maxpain/internal/model"
	"github.com/yourorg/btc-maxpain/internal/security"
)

func sampleReport() *model.Report {
	now := time.Date(2024, time.November, 22, 14, 30, 5, 0, time.UTC)
	r := model.NewReport(now, 95123.456)
	r.Timeframes = model.Timeframes{
		{Name: "12H", Result: model.MaxPainResult{
			LongMaxPain: 90000, ShortMaxPain: 100000,
			LongDistancePct: -5.38, ShortDistancePct: 5.13,
			ExpiryDate: "2024-11-23", DaysUntil: 0,
		}},
		{Name: "1W", Result: model.MaxPainResult{
			LongMaxPain: 92500.5, ShortMaxPain: 97500.5,
			LongDistancePct: -2.76, ShortDistancePct: 2.5,
			ExpiryDate: "2024-11-29", DaysUntil: 6,
		}},
	}
	return r
}

func TestEncodeText(t *testing.T) {
	want := strings.Join([]string{
		"# BTC Long/Short Max Pain Levels",
		"# Updated: 2024-11-22 14:30:05",
		"# Current Price: $95,123.46",
		"",
		"# Format: TIMEFRAME_LONG=PRICE",
		"#         TIMEFRAME_SHORT=PRICE",
		"",
		"12H_LONG=90000",
		"12H_SHORT=100000",
		"1W_LONG=92500",
		"1W_SHORT=97500",
	}, "\n")

	assert.Equal(t, want, EncodeText(sampleReport()))
}

func TestEncodeText_NoTimeframes(t *testing.T) {
	r := model.NewReport(time.Date(2024, time.November, 22, 0, 0, 0, 0, time.UTC), 1234567.891)
	text := EncodeText(r)

	assert.Contains(t, text, "# Current Price: $1,234,567.89")
	assert.True(t, strings.HasSuffix(text, "#         TIMEFRAME_SHORT=PRICE\n"))
}

func TestJSONWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "maxpain_longshort.json")
	r := sampleReport()

	require.NoError(t, FileSet{Files: []FileEncoder{JSONWriter{Path: path}}}.Export(context.Background(), r))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("{\n  \"timestamp\": 1732285805,")))
	assert.Less(t, bytes.Index(data, []byte(`"12H"`)), bytes.Index(data, []byte(`"1W"`)))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	back, err := ReadReport(path)
	require.NoError(t, err)
	assert.Equal(t, r, back)
}

func TestReadReport_Missing(t *testing.T) {
	r, err := ReadReport(filepath.Join(t.TempDir(), "absent.json"))
	assert.NoError(t, err)
	assert.Nil(t, r)
}

func TestReadReport_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, err := ReadReport(path)
	assert.Error(t, err)
}

func TestTextWriter_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tradingview_format.txt")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, FileSet{Files: []FileEncoder{TextWriter{Path: path}}}.Export(context.Background(), sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, EncodeText(sampleReport()), string(data))
}

type failingEncoder struct {
	path string
}

func (f failingEncoder) Name() string   { return "broken" }
func (f failingEncoder) Target() string { return f.path }

func (f failingEncoder) Encode(*model.Report) ([]byte, error) {
	return nil, errors.New("encoder exploded")
}

func TestFileSet_FailureKeepsPreviousFiles(t *testing.T) {
	tests := []struct {
		name  string
		later func(dir string) FileEncoder
		err   string
	}{
		{
			name:  "encode error",
			later: func(dir string) FileEncoder { return failingEncoder{path: filepath.Join(dir, "broken.txt")} },
			err:   "broken: encoder exploded",
		},
		{
			name: "write error",
			later: func(dir string) FileEncoder {
				blocker := filepath.Join(dir, "blocker")
				require.NoError(t, os.WriteFile(blocker, nil, 0o644))
				return TextWriter{Path: filepath.Join(blocker, "tradingview_format.txt")}
			},
			err: "text: create output directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			jsonPath := filepath.Join(dir, "maxpain_longshort.json")
			require.NoError(t, os.WriteFile(jsonPath, []byte("previous"), 0o644))

			files := FileSet{Files: []FileEncoder{JSONWriter{Path: jsonPath}, tt.later(dir)}}
			err := files.Export(context.Background(), sampleReport())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)

			data, err := os.ReadFile(jsonPath)
			require.NoError(t, err)
			assert.Equal(t, "previous", string(data), "earlier file is not replaced")

			matches, err := filepath.Glob(filepath.Join(dir, ".*.tmp"))
			require.NoError(t, err)
			assert.Empty(t, matches, "staged files are removed")
		})
	}
}

func TestFileSet_NoFilesBeforeFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	files := FileSet{Files: []FileEncoder{
		JSONWriter{Path: filepath.Join(dir, "maxpain_longshort.json")},
		failingEncoder{path: filepath.Join(dir, "broken.txt")},
	}}

	require.Error(t, files.Export(context.Background(), sampleReport()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEncodeCSV(t *testing.T) {
	data, err := EncodeCSV(sampleReport())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "timeframe,timestamp,update_time,current_price,long_maxpain,short_maxpain,"+
		"long_distance_pct,short_distance_pct,expiry_date,days_until", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "12H,1732285805,2024-11-22 14:30:05,"))
	assert.True(t, strings.HasSuffix(lines[2], ",2024-11-29,6"))
}

func TestEncodeParquet(t *testing.T) {
	for _, compression := range []string{"snappy", "gzip", "none"} {
		t.Run(compression, func(t *testing.T) {
			data, err := EncodeParquet(sampleReport(), compression)
			require.NoError(t, err)
			require.Greater(t, len(data), 8)
			assert.Equal(t, "PAR1", string(data[:4]))
			assert.Equal(t, "PAR1", string(data[len(data)-4:]))
		})
	}
}

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies map[string][]byte
	failOn string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(in.Key)
	if f.failOn != "" && strings.HasSuffix(key, f.failOn) {
		return nil, errors.New("access denied")
	}
	body, _ := io.ReadAll(in.Body)
	if f.bodies == nil {
		f.bodies = map[string][]byte{}
	}
	f.bodies[key] = body
	f.inputs = append(f.inputs, in)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Sink_Export(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	client := &fakeS3{}
	sink := NewS3Sink(client, "reports", "/maxpain/", "snappy", log)
	sink.newID = func() string { return "run-1" }

	require.NoError(t, sink.Export(context.Background(), sampleReport()))

	require.Len(t, client.inputs, 3)
	base := "maxpain/date=2024-11-22/maxpain_20241122143005_run-1"
	assert.Equal(t, base+".json", aws.ToString(client.inputs[0].Key))
	assert.Equal(t, base+".txt", aws.ToString(client.inputs[1].Key))
	assert.Equal(t, base+".parquet", aws.ToString(client.inputs[2].Key))
	assert.Equal(t, "reports", aws.ToString(client.inputs[0].Bucket))
	assert.Equal(t, "application/json", aws.ToString(client.inputs[0].ContentType))
	assert.Equal(t, EncodeText(sampleReport()), string(client.bodies[base+".txt"]))
}

func TestS3Sink_PartialFailure(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	client := &fakeS3{failOn: ".parquet"}
	sink := NewS3Sink(client, "reports", "maxpain", "none", log)

	err := sink.Export(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	assert.Len(t, client.inputs, 2, "remaining uploads still attempted")
}

func TestWebhookSink(t *testing.T) {
	var got model.Report
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, "secret", 5*time.Second)
	require.NoError(t, sink.Export(context.Background(), sampleReport()))
	assert.Equal(t, []string{"12H", "1W"}, got.Timeframes.Names())
}

func TestWebhookSink_Errors(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewWebhookSink(srv.URL, "", time.Second).Export(context.Background(), sampleReport())
	assert.EqualError(t, err, "webhook returned error status: 500")
	assert.Equal(t, 1, hits, "delivery is attempted once")

	err = NewWebhookSink("", "", time.Second).Export(context.Background(), sampleReport())
	assert.EqualError(t, err, "webhook URL not configured")
}

func TestSignatureWriter_VerifiesAgainstJSONFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "maxpain_longshort.json")
	sigPath := jsonPath + ".sig"

	signer, err := security.NewSigner("")
	require.NoError(t, err)

	r := sampleReport()
	files := FileSet{Files: []FileEncoder{
		JSONWriter{Path: jsonPath},
		SignatureWriter{Path: sigPath, Signer: signer},
	}}
	require.NoError(t, files.Export(context.Background(), r))
	assert.Equal(t, []string{jsonPath, sigPath}, files.Paths())

	payload, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	env, err := ReadSignature(sigPath)
	require.NoError(t, err)

	assert.Equal(t, signer.Address(), env.Address)
	assert.NoError(t, security.Verify(payload, env))
	assert.ErrorIs(t, security.Verify(append(payload, ' '), env), security.ErrTampered)
}
