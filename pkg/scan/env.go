package scan

import (
	"context"
	"os/exec"
	"strings"

	"github.com/pyvet/pyvet/pkg/errors"
	"github.com/pyvet/pyvet/pkg/spec"
)

// pyEnvMarkers prints marker environment values one per line, in the order
// envFromLines consumes them.
const pyEnvMarkers = `import os;import sys;import platform;print(os.name);print(sys.platform);print(platform.machine());print(platform.python_implementation());print(platform.release());print(platform.system());print(platform.version());print('.'.join(platform.python_version_tuple()[:2]));print(platform.python_version());print(sys.implementation.name);print('.'.join(str(v) for v in sys.implementation.version[:3]))`

// CurrentEnvironment interrogates an interpreter for the marker variables
// of its runtime.
func CurrentEnvironment(ctx context.Context, exe string) (*spec.Environment, error) {
	out, err := exec.CommandContext(ctx, exe, "-c", pyEnvMarkers).Output()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err,
			"cannot read marker environment from %s", exe)
	}
	return envFromLines(strings.Split(strings.TrimRight(string(out), "\n"), "\n"))
}

func envFromLines(lines []string) (*spec.Environment, error) {
	if len(lines) < 11 {
		return nil, errors.New(errors.ErrCodeInternal,
			"incomplete marker environment output: %d lines", len(lines))
	}
	return &spec.Environment{
		OSName:                       strings.TrimSpace(lines[0]),
		SysPlatform:                  strings.TrimSpace(lines[1]),
		PlatformMachine:              strings.TrimSpace(lines[2]),
		PlatformPythonImplementation: strings.TrimSpace(lines[3]),
		PlatformRelease:              strings.TrimSpace(lines[4]),
		PlatformSystem:               strings.TrimSpace(lines[5]),
		PlatformVersion:              strings.TrimSpace(lines[6]),
		PythonVersion:                strings.TrimSpace(lines[7]),
		PythonFullVersion:            strings.TrimSpace(lines[8]),
		ImplementationName:           strings.TrimSpace(lines[9]),
		ImplementationVersion:        strings.TrimSpace(lines[10]),
	}, nil
}
