package types

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func TestParseSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "plain bytes", input: "1024", want: 1024},
		{name: "zero bytes", input: "0", want: 0},
		{name: "bytes with B suffix", input: "512B", want: 512},
		{name: "kilobytes", input: "100K", want: 100 * 1024},
		{name: "kilobytes with iB", input: "100KiB", want: 100 * 1024},
		{name: "megabytes lowercase", input: "50m", want: 50 * 1024 * 1024},
		{name: "gigabytes with B", input: "2GB", want: 2 * 1024 * 1024 * 1024},
		{name: "terabytes", input: "1T", want: 1024 * 1024 * 1024 * 1024},
		{name: "whitespace", input: "  100M  ", want: 100 * 1024 * 1024},
		{name: "decimal values truncated", input: "1.5G", want: 1610612736},

		{name: "empty string", input: "", wantErr: true},
		{name: "invalid suffix", input: "100X", wantErr: true},
		{name: "negative value", input: "-100M", wantErr: true},
		{name: "letters only", input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSizeNegativeIsDistinct(t *testing.T) {
	_, err := ParseSize("-1K")
	assert.ErrorIs(t, err, ErrNegativeSize)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "0 B", FormatSize(0))
	assert.Equal(t, "1.0 KiB", FormatSize(1024))
	assert.Equal(t, "1.5 MiB", FormatSize(1536*1024))
	assert.Equal(t, "0 B", FormatSize(-5))
}

func TestValidateHash(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{name: "valid", input: testHash, ok: true},
		{name: "too short", input: testHash[:63]},
		{name: "too long", input: testHash + "0"},
		{name: "uppercase", input: strings.ToUpper(testHash)},
		{name: "non hex", input: strings.Repeat("z", 64)},
		{name: "empty", input: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHash(tt.input)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			assert.ErrorIs(t, err, ErrInvalidHash)
		})
	}
}

func TestScanRequestNormalize(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	t.Run("valid request", func(t *testing.T) {
		req := ScanRequest{
			Roots:      []string{root + "/./"},
			TargetHash: testHash,
			Exclude:    []string{"", filepath.Join(root, "skip", "..", "skip")},
			Extensions: []string{".txt"},
		}
		got, err := req.Normalize()
		require.NoError(t, err)
		assert.Equal(t, []string{root}, got.Roots)
		assert.Equal(t, []string{filepath.Join(root, "skip")}, got.Exclude)

		got.Extensions[0] = ".changed"
		assert.Equal(t, ".txt", req.Extensions[0], "normalized copy must not alias the original")
	})

	t.Run("home relative entries", func(t *testing.T) {
		t.Setenv("HOME", root)
		require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

		got, err := ScanRequest{
			Roots:      []string{"~/sub"},
			TargetHash: testHash,
			Exclude:    []string{" ~/secret ", "~"},
		}.Normalize()
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(root, "sub")}, got.Roots)
		assert.Equal(t, []string{filepath.Join(root, "secret"), root}, got.Exclude)
	})

	t.Run("missing root", func(t *testing.T) {
		_, err := ScanRequest{Roots: []string{filepath.Join(root, "nope")}, TargetHash: testHash}.Normalize()
		assert.ErrorIs(t, err, ErrRootNotFound)
	})

	t.Run("root is a file", func(t *testing.T) {
		_, err := ScanRequest{Roots: []string{file}, TargetHash: testHash}.Normalize()
		assert.ErrorIs(t, err, ErrRootNotDir)
	})

	t.Run("no roots", func(t *testing.T) {
		_, err := ScanRequest{TargetHash: testHash}.Normalize()
		assert.ErrorIs(t, err, ErrNoRoots)
	})

	t.Run("bad hash checked first", func(t *testing.T) {
		_, err := ScanRequest{TargetHash: "abc"}.Normalize()
		assert.ErrorIs(t, err, ErrInvalidHash)
	})

	t.Run("negative min size", func(t *testing.T) {
		_, err := ScanRequest{Roots: []string{root}, TargetHash: testHash, MinSize: -1}.Normalize()
		assert.True(t, IsValidation(err))
	})
}

func TestParseSignatureFilter(t *testing.T) {
	for _, name := range []string{"all", "valid", "invalid", "unknown"} {
		f, err := ParseSignatureFilter(name)
		require.NoError(t, err)
		assert.Equal(t, name, f.String())
	}
	_, err := ParseSignatureFilter("maybe")
	assert.Error(t, err)
}

func TestParsePartition(t *testing.T) {
	p, err := ParsePartition("non-matches")
	require.NoError(t, err)
	assert.Equal(t, PartitionNonMatches, p)

	p, err = ParsePartition("search_history")
	require.NoError(t, err)
	assert.Equal(t, PartitionMatches, p)

	_, err = ParsePartition("both")
	assert.Error(t, err)
}

func TestErrorTypes(t *testing.T) {
	base := errors.New("disk on fire")

	se := &StorageError{Op: "put", Err: base}
	assert.ErrorIs(t, se, base)
	assert.True(t, IsStorage(fmtWrap(se)))
	assert.Contains(t, se.Error(), "cache put")

	fe := &FileAccessError{Path: "/x", Op: "open", Err: base}
	assert.ErrorIs(t, fe, base)

	ie := &InternalError{Op: "worker", Err: base}
	assert.ErrorIs(t, ie, base)
	assert.False(t, IsStorage(ie))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "match", OutcomeMatch.String())
	assert.Equal(t, "non-match", OutcomeNonMatch.String())
	assert.Equal(t, "skip", OutcomeSkip.String())
}

func fmtWrap(err error) error {
	return errors.Join(errors.New("outer"), err)
}
