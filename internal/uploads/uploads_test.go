package uploads

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"foto.jpg", "foto.jpg"},
		{"relatório final.pdf", "relat_rio_final.pdf"},
		{"a b/c\\d.png", "c_d.png"},
		{"../../etc/passwd", "passwd"},
		{"", "file"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeName(tt.in), "SanitizeName(%q)", tt.in)
	}
}

func TestMediaFlags(t *testing.T) {
	tests := []struct {
		name       string
		mimes      []string
		wantAudio  bool
		wantVideo  bool
		wantImages int
	}{
		{"empty", nil, false, false, 0},
		{"images only", []string{"image/jpeg", "image/png"}, false, false, 2},
		{"audio", []string{"audio/ogg"}, true, false, 0},
		{"video", []string{"video/mp4"}, false, true, 0},
		{"mixed", []string{"image/webp", "audio/mpeg", "video/webm", "application/pdf"}, true, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			audio, video, images := MediaFlags(tt.mimes)
			assert.Equal(t, tt.wantAudio, audio)
			assert.Equal(t, tt.wantVideo, video)
			assert.Equal(t, tt.wantImages, images)
		})
	}
}

func TestStoreSaveAndOpen(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	stored, err := store.Save("relatório.pdf", strings.NewReader("conteúdo"))
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d+-relat_rio\.pdf$`), stored)

	f, err := store.Open(stored)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "conteúdo", string(data))
}

func TestStoreOpenFlattensPath(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	secret := filepath.Join(dir, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("nope"), 0o600))

	_, err = store.Open("../secret.txt")
	assert.Error(t, err, "a crafted name must not escape the upload directory")
}

func TestStoreRemove(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	stored, err := store.Save("a.txt", strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, store.Remove(stored))

	_, err = store.Open(stored)
	assert.Error(t, err)
}
