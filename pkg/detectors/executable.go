package detectors

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"github.com/zpam/spamscan/pkg/findings"
)

type magic struct {
	prefix []byte
	format string
}

var executableMagic = []magic{
	{[]byte("MZ"), "PE"},
	{[]byte("\x7fELF"), "ELF"},
	{[]byte{0xfe, 0xed, 0xfa, 0xce}, "Mach-O"},
	{[]byte{0xfe, 0xed, 0xfa, 0xcf}, "Mach-O"},
	{[]byte{0xce, 0xfa, 0xed, 0xfe}, "Mach-O"},
	{[]byte{0xcf, 0xfa, 0xed, 0xfe}, "Mach-O"},
	{[]byte{0xca, 0xfe, 0xba, 0xbe}, "Mach-O universal"},
	{[]byte("#!"), "script"},
}

var executableExtensions = map[string]bool{
	".exe": true, ".com": true, ".scr": true, ".pif": true, ".bat": true,
	".cmd": true, ".msi": true, ".dll": true, ".cpl": true, ".vbs": true,
	".vbe": true, ".js": true, ".jse": true, ".wsf": true, ".wsh": true,
	".hta": true, ".ps1": true, ".jar": true, ".apk": true, ".lnk": true,
	".reg": true, ".sh": true, ".app": true,
}

// sniffExecutable returns the executable format of content, or ""
func sniffExecutable(content []byte) string {
	for _, m := range executableMagic {
		if bytes.HasPrefix(content, m.prefix) {
			return m.format
		}
	}
	return ""
}

// Executable flags attachments that are programs, by content first and by
// file extension otherwise
func Executable(ctx context.Context, s *Snapshot) ([]findings.Finding, error) {
	var out []findings.Finding
	for _, att := range s.Message.Attachments {
		if format := sniffExecutable(att.Content); format != "" {
			out = append(out, findings.Executable{Filename: att.Filename, Format: format})
			continue
		}
		ext := strings.ToLower(filepath.Ext(att.Filename))
		if executableExtensions[ext] {
			out = append(out, findings.Executable{Filename: att.Filename, Format: "extension " + ext})
		}
	}
	return out, nil
}
