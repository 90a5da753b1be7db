package util

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// takes a save path and a variable number of strings and writes them to file separated by new lines
func WriteToFile(savePath string, content ...string) error {
	if err := ensureDir(savePath); err != nil {
		return err
	}
	return os.WriteFile(savePath, []byte(strings.Join(content, "\n")+"\n"), 0644)
}

// AppendToFile appends every string as its own line, creating the file if needed
func AppendToFile(savePath string, content ...string) error {
	if err := ensureDir(savePath); err != nil {
		return err
	}
	f, err := os.OpenFile(savePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, s := range content {
		if _, err = f.WriteString(s + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// SaveJson writes the value as indented json
func SaveJson(savePath string, v interface{}) error {
	bs, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := ensureDir(savePath); err != nil {
		return err
	}
	return os.WriteFile(savePath, bs, 0644)
}

func ensureDir(savePath string) error {
	dir := filepath.Dir(savePath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, os.ModePerm)
}
