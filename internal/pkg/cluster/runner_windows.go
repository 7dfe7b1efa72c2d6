//go:build windows

package cluster

import (
	"errors"

	"go.uber.org/zap"
)

// Run degrades to a single process on Windows. SO_REUSEPORT fan-in is not
// available there, so multi-worker mode would need a userspace proxy.
func Run(logger *zap.Logger, opts Options, workerMain func() error) error {
	if workerMain == nil {
		return errors.New("workerMain is nil")
	}
	if err := validateOptions(opts); err != nil {
		return err
	}

	if opts.Enable && !IsWorker() && logger != nil {
		logger.Warn("cluster mode is not supported on windows, running a single process")
	}
	return workerMain()
}
