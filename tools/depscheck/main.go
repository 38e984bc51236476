package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const modulePath = "tactics/navgrid"

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// layerRule forbids packages under Package from importing any of Forbidden.
type layerRule struct {
	Package   string
	Forbidden []string
}

// The navigation core stays free of the loop, the transport and the wiring.
var rules = []layerRule{
	{
		Package: modulePath + "/internal/",
		Forbidden: []string{
			modulePath + "/internal/app",
			modulePath + "/cmd/",
		},
	},
	{
		Package: modulePath + "/internal/geom",
		Forbidden: []string{
			modulePath + "/internal/navgrid",
			modulePath + "/logging",
		},
	},
	{
		Package: modulePath + "/internal/navgrid",
		Forbidden: []string{
			modulePath + "/internal/movement",
			modulePath + "/internal/physics",
			modulePath + "/internal/scene",
			modulePath + "/internal/sim",
			modulePath + "/internal/net",
			"github.com/gorilla/websocket",
		},
	},
	{
		Package: modulePath + "/internal/movement",
		Forbidden: []string{
			modulePath + "/internal/physics",
			modulePath + "/internal/scene",
			modulePath + "/internal/sim",
			modulePath + "/internal/net",
			"github.com/gorilla/websocket",
		},
	},
	{
		Package: modulePath + "/internal/physics",
		Forbidden: []string{
			modulePath + "/internal/movement",
			modulePath + "/internal/scene",
			modulePath + "/internal/sim",
			modulePath + "/internal/net",
		},
	},
	{
		Package: modulePath + "/internal/sim",
		Forbidden: []string{
			modulePath + "/internal/net",
			"github.com/gorilla/websocket",
		},
	},
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	packages, err := decodePackages(bytes.NewReader(output))
	if err != nil {
		fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
		os.Exit(1)
	}

	violations := findViolations(packages, rules)
	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

func decodePackages(r io.Reader) ([]packageInfo, error) {
	decoder := json.NewDecoder(r)
	var packages []packageInfo
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				return packages, nil
			}
			return nil, err
		}
		packages = append(packages, pkg)
	}
}

func findViolations(packages []packageInfo, rules []layerRule) []string {
	var violations []string
	for _, pkg := range packages {
		for _, rule := range rules {
			if !hasPathPrefix(pkg.ImportPath, rule.Package) {
				continue
			}
			for _, imp := range pkg.Imports {
				for _, forbidden := range rule.Forbidden {
					if hasPathPrefix(imp, forbidden) {
						violations = append(violations, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
					}
				}
			}
		}
	}
	sort.Strings(violations)
	return violations
}

// hasPathPrefix reports whether path is prefix or lies beneath it. A prefix
// ending in "/" matches anything below that directory.
func hasPathPrefix(path, prefix string) bool {
	if strings.HasSuffix(prefix, "/") {
		return strings.HasPrefix(path, prefix)
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
