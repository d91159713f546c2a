package sheetsql

import (
	"path/filepath"
	"strings"
)

// FileType is the base format of a workbook source, without compression.
type FileType int

const (
	// FileTypeUnsupported represents an unknown file type
	FileTypeUnsupported FileType = iota
	// FileTypeXLSX represents Excel XLSX file type
	FileTypeXLSX
	// FileTypeCSV represents CSV file type
	FileTypeCSV
	// FileTypeTSV represents TSV file type
	FileTypeTSV
	// FileTypeParquet represents Parquet file type
	FileTypeParquet
)

// File extensions
const (
	// extCSV is the CSV file extension
	extCSV = ".csv"
	// extTSV is the TSV file extension
	extTSV = ".tsv"
	// extParquet is the Parquet file extension
	extParquet = ".parquet"
	// extXLSX is the Excel XLSX file extension
	extXLSX = ".xlsx"
)

// String returns the file type name.
func (ft FileType) String() string {
	switch ft {
	case FileTypeXLSX:
		return "xlsx"
	case FileTypeCSV:
		return "csv"
	case FileTypeTSV:
		return "tsv"
	case FileTypeParquet:
		return "parquet"
	default:
		return "unsupported"
	}
}

// Extension returns the file extension for the FileType
func (ft FileType) Extension() string {
	switch ft {
	case FileTypeXLSX:
		return extXLSX
	case FileTypeCSV:
		return extCSV
	case FileTypeTSV:
		return extTSV
	case FileTypeParquet:
		return extParquet
	default:
		return ""
	}
}

// ParseFileType maps a format name such as "xlsx" or ".csv" to a FileType.
func ParseFileType(name string) FileType {
	ext := strings.ToLower(strings.TrimSpace(name))
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	switch ext {
	case extXLSX:
		return FileTypeXLSX
	case extCSV:
		return FileTypeCSV
	case extTSV:
		return FileTypeTSV
	case extParquet:
		return FileTypeParquet
	default:
		return FileTypeUnsupported
	}
}

// DetectFileType returns the base type and compression of path from its
// extensions, e.g. "offers.csv.gz" is (FileTypeCSV, CompressionGZ).
func DetectFileType(path string) (FileType, CompressionType) {
	compression := DetectCompressionType(path)
	basePath := path
	if compression != CompressionNone {
		basePath = path[:len(path)-len(compression.Extension())]
	}
	return ParseFileType(filepath.Ext(basePath)), compression
}

// IsSupportedFile reports whether path names a readable workbook source.
func IsSupportedFile(path string) bool {
	ft, _ := DetectFileType(path)
	return ft != FileTypeUnsupported
}

// tableFromFilePath derives a sheet name from a file path, dropping
// directories and every known extension.
func tableFromFilePath(path string) string {
	base := filepath.Base(path)
	ft, compression := DetectFileType(base)
	base = base[:len(base)-len(compression.Extension())]
	if ft != FileTypeUnsupported {
		base = base[:len(base)-len(ft.Extension())]
	}
	return base
}
