package preflight

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"furrow/internal/config"
	"furrow/internal/connectivity"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDiskHeadroom verifies that the filesystem holding path has at least
// minFreeMiB available for new queue entries.
func CheckDiskHeadroom(name, path string, minFreeMiB int) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	freeMiB := stat.Bavail * uint64(stat.Bsize) / (1024 * 1024)
	if freeMiB < uint64(minFreeMiB) {
		return Result{Name: name, Detail: fmt.Sprintf("%d MiB free, %d MiB required", freeMiB, minFreeMiB)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d MiB free", freeMiB)}
}

// CheckAPIConfig verifies that the remote API endpoint and credentials are set.
func CheckAPIConfig(api config.API) Result {
	const name = "Farm API"

	base := strings.TrimSpace(api.BaseURL)
	if base == "" {
		return Result{Name: name, Detail: "base_url missing"}
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Result{Name: name, Detail: fmt.Sprintf("base_url %q is not an absolute URL", base)}
	}
	if strings.TrimSpace(api.Token) == "" {
		return Result{Name: name, Detail: "token missing"}
	}
	return Result{Name: name, Passed: true, Detail: parsed.Host}
}

// CheckReachability performs a one-shot connectivity probe. Failure is
// expected on an offline field unit; the result is informational.
func CheckReachability(ctx context.Context, conn config.Connectivity) Result {
	const name = "Connectivity"

	timeout := time.Duration(conn.ProbeTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	probe := connectivity.NewHTTPProbe(conn.ProbeURL, timeout)
	if probe.Check(ctx) {
		return Result{Name: name, Passed: true, Detail: "probe endpoint reachable"}
	}
	return Result{Name: name, Detail: "probe endpoint unreachable (uploads will be deferred until online)"}
}
