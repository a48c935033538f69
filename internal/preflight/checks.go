package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"liftmail/internal/mailbox"
)

const checkTimeout = 5 * time.Second

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

// CheckTCP verifies that address accepts connections.
func CheckTCP(ctx context.Context, name, address string) Result {
	if strings.TrimSpace(address) == "" {
		return Result{Name: name, Detail: "address not configured"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(checkCtx, "tcp", address)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%s)", address, summarizeNetError(err))}
	}
	_ = conn.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", address)}
}

// CheckMailbox logs in to the mailbox and selects the submission folder.
func CheckMailbox(ctx context.Context, dialer mailbox.Dialer) Result {
	const name = "Mailbox"

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	session, err := dialer.Dial(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer session.Close()

	uids, err := session.Unseen(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("search failed (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("login ok, %d unread", len(uids))}
}

// CheckBackend verifies the attempt-creation backend answers HTTP requests.
// Any status below 500 counts as reachable; the upload route itself needs a
// multipart body so only the base URL is probed.
func CheckBackend(ctx context.Context, backendURL string) Result {
	const name = "Upload backend"

	base := strings.TrimRight(strings.TrimSpace(backendURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid url (%v)", err)}
	}
	client := &http.Client{Timeout: checkTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("server error (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// summarizeNetError produces a human-readable summary for connectivity failures.
func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	return err.Error()
}
