package video

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	xerrors "github.com/videoflix/videoflix-api/errors"
)

func TestProbeCancelledContextIsNotInputInvalid(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := Probe{}.Duration(ctx, "https://storage.example.com/videos/clip_1700000000_ab3kx9z.mp4")
	require.Error(t, err)
	require.Equal(t, xerrors.KindCancelled, xerrors.KindOf(err))
	// A dead context must short-circuit the retry schedule.
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestProbeExpiredDeadlineIsTransient(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	time.Sleep(5 * time.Millisecond)

	_, err := Probe{}.Duration(ctx, "https://storage.example.com/videos/clip_1700000000_ab3kx9z.mp4")
	require.Error(t, err)
	require.Equal(t, xerrors.KindTransient, xerrors.KindOf(err))
}

type refusedConn struct{}

func (refusedConn) Error() string   { return "dial tcp 10.0.0.1:443: connect: connection refused" }
func (refusedConn) Timeout() bool   { return false }
func (refusedConn) Temporary() bool { return true }

func TestClassifyProbeError(t *testing.T) {
	ctx := context.Background()

	err := classifyProbeError(ctx, refusedConn{}, "videos/clip.mp4")
	require.Equal(t, xerrors.KindTransient, xerrors.KindOf(err))

	err = classifyProbeError(ctx, &exec.Error{Name: "ffprobe", Err: exec.ErrNotFound}, "videos/clip.mp4")
	require.Equal(t, xerrors.KindTransient, xerrors.KindOf(err))

	// Anything the machinery cannot explain is pinned on the source.
	err = classifyProbeError(ctx, errors.New("moov atom not found"), "videos/clip.mp4")
	require.Equal(t, xerrors.KindInputInvalid, xerrors.KindOf(err))
}

func TestClassifyEncoderError(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err := classifyEncoderError(fmt.Errorf("signal: terminated"), cancelled)
	require.Equal(t, xerrors.KindCancelled, xerrors.KindOf(err))

	expired, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	time.Sleep(5 * time.Millisecond)
	err = classifyEncoderError(fmt.Errorf("signal: terminated"), expired)
	require.Equal(t, xerrors.KindTransient, xerrors.KindOf(err))

	err = classifyEncoderError(fmt.Errorf("exit status 1"), context.Background())
	require.Equal(t, xerrors.KindTransient, xerrors.KindOf(err))
}
