package deploy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Deploy copies the dashboard artifact set from resultsDir to destDir:
// index.html, data/status.json, per-model status files under data/models/,
// and the repro script tree. It only copies what exists; the build step is
// responsible for producing the set.
func Deploy(resultsDir, destDir string, log *zap.Logger) error {
	if err := os.MkdirAll(filepath.Join(destDir, "data", "models"), 0o755); err != nil {
		return fmt.Errorf("create deploy directories: %w", err)
	}

	copies := []struct{ src, dst string }{
		{filepath.Join(resultsDir, "index.html"), filepath.Join(destDir, "index.html")},
		{filepath.Join(resultsDir, "data", "status.json"), filepath.Join(destDir, "data", "status.json")},
	}
	for _, c := range copies {
		if err := copyFile(c.src, c.dst); err != nil {
			if os.IsNotExist(err) {
				log.Warn("artifact missing, skipping", zap.String("path", c.src))
				continue
			}
			return err
		}
		log.Info("deployed", zap.String("path", c.dst))
	}

	n, err := copyModelFiles(filepath.Join(resultsDir, "models"), filepath.Join(destDir, "data", "models"))
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info("deployed model status files", zap.Int("count", n))
	}

	reproSrc := filepath.Join(resultsDir, "repro")
	if _, err := os.Stat(reproSrc); err == nil {
		if err := copyTree(reproSrc, filepath.Join(destDir, "repro")); err != nil {
			return err
		}
		log.Info("deployed repro scripts", zap.String("path", filepath.Join(destDir, "repro")))
	}

	return nil
}

func copyModelFiles(srcDir, dstDir string) (int, error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read models directory: %w", err)
	}
	count := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		if err := copyFile(filepath.Join(srcDir, name), filepath.Join(dstDir, name)); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	return nil
}
