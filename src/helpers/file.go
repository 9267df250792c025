package helpers

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ssashelper/src/projerrors"

	"github.com/beevik/etree"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// ReadDataFile reads a whole file through a read-only memory map. A leading
// UTF-8 byte order mark is dropped.
func ReadDataFile(filename string) ([]byte, error) {
	// Open the file
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, projerrors.ErrNotFound.New(filename)
		}
		return nil, projerrors.ErrIO.Wrap(err, filename)
	}
	defer file.Close()

	// Get the file size
	stat, err := file.Stat()
	if err != nil {
		return nil, projerrors.ErrIO.Wrap(err, filename)
	}
	if stat.IsDir() {
		return nil, projerrors.ErrIO.Wrap(fmt.Errorf("is a directory"), filename)
	}
	fileSize := int(stat.Size())

	// Empty files cannot be mapped
	if fileSize == 0 {
		return nil, projerrors.ErrIO.Wrap(fmt.Errorf("file is empty"), filename)
	}

	// Memory map the file
	data, err := unix.Mmap(int(file.Fd()), 0, fileSize, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, projerrors.ErrIO.Wrap(fmt.Errorf("failed to memory map file: %w", err), filename)
	}
	defer unix.Munmap(data)

	out := make([]byte, len(data))
	copy(out, data)
	return bytes.TrimPrefix(out, utf8BOM), nil
}

// LoadDocument parses an XML file into a document.
func LoadDocument(filename string) (*etree.Document, error) {
	data, err := ReadDataFile(filename)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, projerrors.ErrMalformed.New(filename, err)
	}
	return doc, nil
}

// IndentDocument re-indents a document with two spaces, dropping whatever
// indentation removed nodes left behind.
func IndentDocument(doc *etree.Document) {
	doc.IndentWithSettings(&etree.IndentSettings{
		Spaces:                 2,
		PreserveLeafWhitespace: true,
	})
}

// SaveDocument re-indents doc and atomically replaces filename with it.
func SaveDocument(doc *etree.Document, filename string) error {
	IndentDocument(doc)
	data, err := doc.WriteToBytes()
	if err != nil {
		return projerrors.ErrIO.Wrap(err, filename)
	}
	return WriteFileAtomic(filename, data)
}

// WriteFileAtomic writes data to a temporary file next to filename and renames
// it into place. An existing file keeps its permission bits.
func WriteFileAtomic(filename string, data []byte) error {
	return WriteAtomic(filename, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteAtomic streams into a temporary file next to filename and renames it
// into place once write and close have both succeeded.
func WriteAtomic(filename string, write func(w io.Writer) error) (err error) {
	perm := os.FileMode(0644)
	if info, statErr := os.Stat(filename); statErr == nil {
		perm = info.Mode().Perm()
	}

	dir := filepath.Dir(filename)
	tmpName := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(filename), GenerateUUID()))

	file, err := os.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return projerrors.ErrIO.Wrap(err, filename)
	}

	err = write(file)
	err = multierr.Append(err, file.Sync())
	err = multierr.Append(err, file.Close())
	if err != nil {
		os.Remove(tmpName)
		return projerrors.ErrIO.Wrap(err, filename)
	}

	if err := os.Rename(tmpName, filename); err != nil {
		os.Remove(tmpName)
		return projerrors.ErrIO.Wrap(err, filename)
	}
	return nil
}

// CopyFile copies src to dst. It never overwrites an existing dst.
func CopyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return projerrors.ErrIO.Wrap(err, src)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return projerrors.ErrIO.Wrap(err, src)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return projerrors.ErrIO.Wrap(err, dst)
	}
	defer func() {
		err = multierr.Append(err, out.Close())
	}()

	if _, err := io.Copy(out, in); err != nil {
		return projerrors.ErrIO.Wrap(err, dst)
	}
	return nil
}

// DeleteDataFile deletes a file
func DeleteDataFile(filePath string) error {
	if err := os.Remove(filePath); err != nil {
		return projerrors.ErrIO.Wrap(err, filePath)
	}
	return nil
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string, logger *zap.SugaredLogger) bool {
	info, err := os.Stat(filename)
	if err != nil {
		if os.IsNotExist(err) {
			if logger != nil {
				logger.Debugf("File does not exist: %s", filename)
			}
			return false // File does not exist
		}

		if logger != nil {
			logger.Infof("Error checking file %s for existence: %s", filename, err)
		}
		return false // Some other error occurred
	}

	return !info.IsDir() // Return true if it's not a directory
}

// DirExists reports whether path is an existing directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsReadOnly reports whether a file carries no write permission bits or cannot
// be written by the current process.
func IsReadOnly(filename string) (bool, error) {
	info, err := os.Stat(filename)
	if err != nil {
		return false, projerrors.ErrIO.Wrap(err, filename)
	}
	if info.Mode().Perm()&0222 == 0 {
		return true, nil
	}
	return unix.Access(filename, unix.W_OK) != nil, nil
}

// EncodeBSON encodes a value as a BSON document.
func EncodeBSON(value interface{}) ([]byte, error) {
	data, err := bson.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("error encoding BSON: %w", err)
	}
	return data, nil
}

// DecodeBSON decodes a BSON document into out.
func DecodeBSON(data []byte, out interface{}) error {
	if err := bson.Unmarshal(data, out); err != nil {
		return fmt.Errorf("error decoding BSON: %w", err)
	}
	return nil
}
