package helpers

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"ssashelper/src/projerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDataFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("strips byte order mark", func(t *testing.T) {
		path := filepath.Join(dir, "bom.xml")
		require.NoError(t, os.WriteFile(path, append([]byte{0xef, 0xbb, 0xbf}, "<a/>"...), 0644))

		data, err := ReadDataFile(path)
		require.NoError(t, err)
		assert.Equal(t, "<a/>", string(data))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadDataFile(filepath.Join(dir, "missing.xml"))
		require.Error(t, err)
		assert.True(t, projerrors.ErrNotFound.Is(err))
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.xml")
		require.NoError(t, os.WriteFile(path, nil, 0644))

		_, err := ReadDataFile(path)
		require.Error(t, err)
		assert.True(t, projerrors.ErrIO.Is(err))
	})

	t.Run("directory", func(t *testing.T) {
		_, err := ReadDataFile(dir)
		require.Error(t, err)
		assert.True(t, projerrors.ErrIO.Is(err))
	})
}

func TestLoadDocumentMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xml")
	require.NoError(t, os.WriteFile(path, []byte("<a><b></a>"), 0644))

	_, err := LoadDocument(path)
	require.Error(t, err)
	assert.True(t, projerrors.ErrMalformed.Is(err))
}

func TestSaveDocumentIndents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.xml")
	require.NoError(t, os.WriteFile(path, []byte("<a>\n\n\n<b>x</b>     <c/></a>"), 0644))

	doc, err := LoadDocument(path)
	require.NoError(t, err)
	require.NoError(t, SaveDocument(doc, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<a>\n  <b>x</b>\n  <c/>\n</a>\n", string(data))
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.xml")

	require.NoError(t, WriteFileAtomic(path, []byte("one")))
	require.NoError(t, os.Chmod(path, 0600))
	require.NoError(t, WriteFileAtomic(path, []byte("two")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestWriteAtomicFailureKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.xml")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0644))

	err := WriteAtomic(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.True(t, projerrors.ErrIO.Is(err))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCopyFileNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("content"), 0644))

	require.NoError(t, CopyFile(src, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	err = CopyFile(src, dst)
	require.Error(t, err)
	assert.True(t, projerrors.ErrIO.Is(err))
}

func TestIsReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	readOnly, err := IsReadOnly(path)
	require.NoError(t, err)
	assert.False(t, readOnly)

	require.NoError(t, os.Chmod(path, 0444))
	t.Cleanup(func() { _ = os.Chmod(path, 0644) })

	readOnly, err = IsReadOnly(path)
	require.NoError(t, err)
	assert.True(t, readOnly)

	_, err = IsReadOnly(path + ".missing")
	assert.Error(t, err)
}

func TestFileAndDirExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	assert.True(t, FileExists(path, nil))
	assert.False(t, FileExists(dir, nil))
	assert.False(t, FileExists(path+".missing", nil))
	assert.True(t, DirExists(dir))
	assert.False(t, DirExists(path))
}

func TestBSONHelpers(t *testing.T) {
	type record struct {
		Name  string   `bson:"name"`
		Items []string `bson:"items"`
	}

	data, err := EncodeBSON(record{Name: "x", Items: []string{"a", "b"}})
	require.NoError(t, err)

	var out record
	require.NoError(t, DecodeBSON(data, &out))
	assert.Equal(t, record{Name: "x", Items: []string{"a", "b"}}, out)

	assert.Error(t, DecodeBSON(bytes.Repeat([]byte{0xff}, 3), &out))
}
