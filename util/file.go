package util

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

func Exists(filename string) bool {
	_, err := os.Stat(filename)
	return !os.IsNotExist(err)
}

func IsDir(path string) bool {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fileInfo.IsDir()
}

func FileSize(path string) uint64 {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return uint64(fileInfo.Size())
}

// SHA256File streams the file through sha256 and returns the hex digest.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	s := sha256.New()
	if _, err := io.Copy(s, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", s.Sum(nil)), nil
}

// CopyFile copies src to dst, creating parent directories as needed.
// The source file mode is preserved so bundled executables stay runnable.
func CopyFile(src string, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0777); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
