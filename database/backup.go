package database

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

const backupFileExt = ".bak"

// ResetOutput moves an existing output file aside so a conversion starts from an
// empty database. The old file is copied to <path>.<timestamp>.bak, backups beyond
// maxBackups are pruned, and the original is removed. It returns the backup path,
// or "" when there was nothing to back up.
func ResetOutput(path string, maxBackups int, logger *zap.SugaredLogger) (string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", path)
	}
	logger.Infof("existing database file size: %d bytes", info.Size())

	backupPath := fmt.Sprintf("%s.%s%s", path, time.Now().Format("20060102-150405"), backupFileExt)
	if err := copyFile(path, backupPath); err != nil {
		return "", fmt.Errorf("back up %s: %w", path, err)
	}
	logger.Infof("existing database backed up to %s", backupPath)
	pruneOldBackups(path, maxBackups, logger)

	for _, p := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return backupPath, fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return backupPath, nil
}

func copyFile(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := destination.ReadFrom(source); err != nil {
		destination.Close()
		return err
	}
	return destination.Close()
}

func pruneOldBackups(path string, max int, logger *zap.SugaredLogger) {
	if max <= 0 {
		return
	}
	dir := filepath.Dir(path)
	prefix := filepath.Base(path) + "."
	files, err := os.ReadDir(dir)
	if err != nil {
		logger.Warnf("failed to read backup directory: %v", err)
		return
	}

	var backups []string
	for _, f := range files {
		if strings.HasPrefix(f.Name(), prefix) && strings.HasSuffix(f.Name(), backupFileExt) {
			backups = append(backups, filepath.Join(dir, f.Name()))
		}
	}
	if len(backups) <= max {
		return
	}

	sort.Strings(backups)
	for _, file := range backups[:len(backups)-max] {
		if err := os.Remove(file); err != nil {
			logger.Warnf("failed to remove old backup %s: %v", file, err)
		} else {
			logger.Infof("removed old backup: %s", file)
		}
	}
}
