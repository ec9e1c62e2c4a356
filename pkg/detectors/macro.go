package detectors

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf16"

	"github.com/zpam/spamscan/pkg/findings"
)

var oleMagic = []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}

var macroExtensions = map[string]bool{
	".docm": true, ".dotm": true, ".xlsm": true, ".xltm": true, ".xlam": true,
	".pptm": true, ".potm": true, ".ppsm": true, ".ppam": true, ".sldm": true,
}

// VBA entry points that run without user interaction
var autoExecKeywords = []string{
	"AutoOpen", "Auto_Open", "Document_Open", "Workbook_Open",
	"AutoExec", "AutoClose", "Document_Close", "Auto_Close",
}

// OLE directory entries are UTF-16LE
var oleMacroStreams = [][]byte{
	utf16le("_VBA_PROJECT"),
	utf16le("VBA"),
	utf16le("Macros"),
}

const maxMacroPartBytes = 16 << 20

func utf16le(s string) []byte {
	var b []byte
	for _, u := range utf16.Encode([]rune(s)) {
		b = append(b, byte(u), byte(u>>8))
	}
	return b
}

// Macro flags office documents that carry VBA macros
func Macro(ctx context.Context, s *Snapshot) ([]findings.Finding, error) {
	var out []findings.Finding
	for _, att := range s.Message.Attachments {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if indicator := macroIndicator(att.Filename, att.Content); indicator != "" {
			out = append(out, findings.Macro{Filename: att.Filename, Indicator: indicator})
		}
	}
	return out, nil
}

func macroIndicator(filename string, content []byte) string {
	switch {
	case bytes.HasPrefix(content, []byte("PK\x03\x04")):
		if ind := zipMacro(content); ind != "" {
			return ind
		}
	case bytes.HasPrefix(content, oleMagic):
		if ind := oleMacro(content); ind != "" {
			return ind
		}
	}
	if macroExtensions[strings.ToLower(filepath.Ext(filename))] {
		return "macro-enabled file extension"
	}
	return ""
}

// zipMacro looks for a VBA project inside an OOXML container
func zipMacro(content []byte) string {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		if !strings.EqualFold(path.Base(f.Name), "vbaProject.bin") {
			continue
		}
		if f.UncompressedSize64 > maxMacroPartBytes {
			return "vbaProject.bin"
		}
		rc, err := f.Open()
		if err != nil {
			return "vbaProject.bin"
		}
		data, _ := io.ReadAll(io.LimitReader(rc, maxMacroPartBytes))
		rc.Close()
		if kw := autoExecKeyword(data); kw != "" {
			return "vbaProject.bin with " + kw
		}
		return "vbaProject.bin"
	}
	return ""
}

// oleMacro looks for VBA storage names in a legacy compound document
func oleMacro(content []byte) string {
	for _, stream := range oleMacroStreams {
		if bytes.Contains(content, stream) {
			if kw := autoExecKeyword(content); kw != "" {
				return "OLE VBA storage with " + kw
			}
			return "OLE VBA storage"
		}
	}
	return ""
}

func autoExecKeyword(data []byte) string {
	for _, kw := range autoExecKeywords {
		if bytes.Contains(data, []byte(kw)) {
			return kw
		}
	}
	return ""
}
