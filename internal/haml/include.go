package haml

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/haml-lang/hamlc/internal/diagnostic"
)

var includeRe = regexp.MustCompile(`^(\s*)(.*?)!include\s+(\S+)\s*$`)

// ResolveIncludes reads the document at path and splices every `!include`
// tag with the referenced file's content before any YAML parsing happens.
// A multi-line include used as a mapping value is re-indented two columns
// past the key so the spliced text stays well-formed. Relative paths
// resolve against the file containing the tag; includes compose recursively
// and a cycle fails with IncludeCycle naming the participants.
func ResolveIncludes(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", diagnostic.Errorf(diagnostic.IOError, "resolving %s: %v", path, err)
	}
	return resolveIncludes(abs, nil)
}

func resolveIncludes(path string, stack []string) (string, error) {
	for _, seen := range stack {
		if seen == path {
			cycle := append(append([]string(nil), stack...), path)
			return "", diagnostic.Errorf(diagnostic.IncludeCycle,
				"include cycle: %s", strings.Join(cycle, " -> "))
		}
	}

	data, err := readFileRetry(path)
	if err != nil {
		return "", err
	}
	stack = append(stack, path)

	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		m := includeRe.FindStringSubmatch(line)
		if m == nil {
			out = append(out, line)
			continue
		}
		indent, prefix, target := m[1], m[2], m[3]

		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(path), target)
		}
		content, err := resolveIncludes(target, stack)
		if err != nil {
			return "", err
		}
		content = strings.TrimRight(content, "\n")

		if !strings.Contains(content, "\n") {
			out = append(out, indent+prefix+content)
			continue
		}

		// A block include used as a mapping value moves below its key,
		// indented two columns past it
		out = append(out, strings.TrimRight(indent+prefix, " "))
		for _, inner := range strings.Split(content, "\n") {
			if strings.TrimSpace(inner) == "" {
				out = append(out, "")
				continue
			}
			out = append(out, indent+"  "+inner)
		}
	}
	return strings.Join(out, "\n"), nil
}

// readFileRetry reads a file, retrying once for a transient failure.
func readFileRetry(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, diagnostic.Errorf(diagnostic.IOError, "reading %s: %v", path, err)
	}
	return data, nil
}
