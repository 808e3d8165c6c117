package actors

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"holderguard/engine/library"
)

// Open returns the stored snapshot of db, false if there is none yet.
func Open(mind, db string) (io.ReadCloser, bool) {
	if err := os.MkdirAll(directory(mind), 0755); err != nil {
		library.LogCLI(err.Error(), 1)
	}
	file, err := os.Open(path(mind, db))
	if os.IsNotExist(err) {
		return nil, false
	}
	if err != nil {
		library.LogCLI(err.Error(), 1)
		return nil, false
	}
	return file, true
}

// Write stores a new snapshot of db. The previous snapshot is only replaced
// once save has succeeded.
func Write(mind, db string, save func(io.Writer) error) error {
	if err := os.MkdirAll(directory(mind), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(directory(mind), db+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err = save(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("saving %s/%s: %w", mind, db, err)
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path(mind, db))
}

// Restore feeds the stored snapshot of db to load. A missing snapshot is
// not an error.
func Restore(mind, db string, load func(io.Reader) error) error {
	file, ok := Open(mind, db)
	if !ok {
		library.LogCLI(fmt.Sprintf("no snapshot for %s/%s, starting empty", mind, db), 4)
		return nil
	}
	defer file.Close()
	return load(file)
}

func path(mind, db string) string {
	return filepath.Join(directory(mind), db+".dat")
}

func directory(mind string) string {
	dir := MakeOrGetConfig().GetString("rootDir")
	dir = dir + MakeOrGetConfig().GetString("flatFileDir")
	dir = dir + mind + "/"
	return dir
}
