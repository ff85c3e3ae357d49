package video

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gopkg.in/vansante/go-ffprobe.v2"

	xerrors "github.com/videoflix/videoflix-api/errors"
)

// Prober reports the integer duration in seconds of a local media file.
type Prober interface {
	Duration(ctx context.Context, path string) (int64, error)
}

type Probe struct{}

// Duration probes the media header and returns the truncated duration
// in seconds. Unreadable or zero-duration sources are InputInvalid and
// must not be retried; failures of the probing machinery itself keep
// their own classification.
func (p Probe) Duration(ctx context.Context, path string) (int64, error) {
	var data *ffprobe.ProbeData
	operation := func() error {
		probeCtx, probeCancel := context.WithTimeout(ctx, 60*time.Second)
		defer probeCancel()
		var err error
		data, err = ffprobe.ProbeURL(probeCtx, path, "-loglevel", "error")
		return err
	}

	backOff := backoff.NewExponentialBackOff()
	backOff.InitialInterval = 500 * time.Millisecond
	backOff.MaxInterval = 2 * time.Second
	backOff.MaxElapsedTime = 0 // the per-stage timeout bounds us
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(backOff, 3), ctx)); err != nil {
		return 0, classifyProbeError(ctx, err, path)
	}

	if data.Format == nil {
		return 0, xerrors.InputInvalid(fmt.Errorf("error probing %q: format information missing", path))
	}
	duration := int64(data.Format.DurationSeconds)
	if duration <= 0 {
		return 0, xerrors.InputInvalid(fmt.Errorf("error probing %q: zero duration", path))
	}
	return duration, nil
}

// classifyProbeError separates failures of the probe run from failures
// of the probed source. Only the latter are InputInvalid; calling a
// source bad because our own context died or the prober could not run
// would fail the record for a fault that is not the upload's.
func classifyProbeError(ctx context.Context, err error, path string) error {
	err = fmt.Errorf("error probing %q: %w", path, err)
	switch ctx.Err() {
	case context.Canceled:
		return xerrors.Cancelled(err)
	case context.DeadlineExceeded:
		return xerrors.Transient(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return xerrors.Transient(err)
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		// ffprobe missing or not runnable on this host.
		return xerrors.Transient(err)
	}
	return xerrors.InputInvalid(err)
}
