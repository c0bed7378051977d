// Package collector enumerates a project's eligible source files and
// extracts text and embedded images from each supported format.
package collector

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Image is an embedded picture extracted from a document, numbered in
// document order. The matching [figure:N] marker is inserted into the
// extracted text at the anchor cell.
type Image struct {
	Figure int
	Data   []byte
}

// textExts are the formats read verbatim as UTF-8 text.
var textExts = map[string]bool{
	".txt": true,
	".md":  true,
	".csv": true,
}

const spreadsheetExt = ".xlsx"

// Collector reads project source files. It holds no state; workers acquire
// a fresh one per run.
type Collector struct{}

// New creates a Collector.
func New() *Collector {
	return &Collector{}
}

// Eligible reports whether a file name has a supported extension.
func Eligible(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return textExts[ext] || ext == spreadsheetExt
}

// CollectFiles returns the eligible files directly under sourceDir. It does
// not recurse, and the order is whatever the OS enumeration returns.
func (c *Collector) CollectFiles(sourceDir string) ([]string, error) {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("read source directory %s: %w", sourceDir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if Eligible(entry.Name()) {
			files = append(files, filepath.Join(sourceDir, entry.Name()))
		}
	}
	return files, nil
}

// ReadContent extracts the text of a single file, plus any embedded images.
func (c *Collector) ReadContent(path string) (string, []Image, error) {
	if strings.ToLower(filepath.Ext(path)) == spreadsheetExt {
		return readWorkbook(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil, nil
}

// readWorkbook parses an xlsx workbook sheet by sheet. Every populated cell
// row becomes one tab-joined text line; embedded pictures are extracted in
// document order and a [figure:N] marker is appended to the text of their
// anchor cell so a downstream summary can correlate prose with figures.
func readWorkbook(path string) (string, []Image, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	var text strings.Builder
	var images []Image
	figure := 0

	for _, sheet := range f.GetSheetList() {
		// Anchor cell -> figure numbers, in document order.
		markers := map[string][]int{}
		cells, err := f.GetPictureCells(sheet)
		if err != nil {
			return "", nil, fmt.Errorf("list pictures in %s/%s: %w", path, sheet, err)
		}
		for _, cell := range cells {
			pics, err := f.GetPictures(sheet, cell)
			if err != nil {
				return "", nil, fmt.Errorf("extract picture at %s!%s: %w", sheet, cell, err)
			}
			for _, pic := range pics {
				figure++
				images = append(images, Image{Figure: figure, Data: pic.File})
				markers[cell] = append(markers[cell], figure)
			}
		}

		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", nil, fmt.Errorf("read sheet %s/%s: %w", path, sheet, err)
		}
		for ri, row := range rows {
			var line []string
			for ci, val := range row {
				cell, err := excelize.CoordinatesToCellName(ci+1, ri+1)
				if err == nil {
					for _, n := range markers[cell] {
						val = strings.TrimSpace(val + fmt.Sprintf(" [figure:%d]", n))
					}
					delete(markers, cell)
				}
				if strings.TrimSpace(val) != "" {
					line = append(line, val)
				}
			}
			if len(line) > 0 {
				text.WriteString(strings.Join(line, "\t"))
				text.WriteString("\n")
			}
		}

		// Pictures anchored past the populated range still get a marker line.
		for _, figures := range markers {
			for _, n := range figures {
				text.WriteString(fmt.Sprintf("[figure:%d]\n", n))
			}
		}
	}

	return text.String(), images, nil
}
