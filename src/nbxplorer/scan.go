package nbxplorer

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/0xb10c/block-alert/src/types"
)

// ScanPollInterval is the delay between two scan status polls.
const ScanPollInterval = 5 * time.Second

// ErrScanFailed is returned when NBXplorer reports the UTXO scan as failed.
var ErrScanFailed = errors.New("UTXO scan failed")

// waitForScanCompletion starts a UTXO scan of the tracked key and polls its
// status until it completes. Only ctx bounds the wait.
func (s *Service) waitForScanCompletion(ctx context.Context) error {
	xpub := s.cfg.ExtendedPubKey
	s.log.Info("Starting UTXOs scan for extended public key...")

	if err := s.client.StartScan(ctx, xpub); err != nil {
		s.log.WithError(err).Errorf("Failed to initiate UTXO scan for %s", xpub)
		return err
	}

	for {
		status, err := s.client.ScanStatus(ctx, xpub)
		if err != nil {
			s.log.WithError(err).Errorf("Failed to get progress for UTXO scan for %s", xpub)
			return err
		}

		done, err := s.logScanStatus(xpub, status)
		if err != nil {
			s.log.WithError(err).Error("UTXO scan did not complete")
			return err
		}
		if done {
			return nil
		}

		select {
		case <-s.clock.TickAfter(ScanPollInterval):
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "waiting for UTXO scan")
		}
	}
}

// logScanStatus reports whether the scan is complete. Error states and
// statuses that break the protocol are returned as errors.
func (s *Service) logScanStatus(xpub string, status types.ScanStatus) (bool, error) {
	switch status.Status {
	case types.ScanQueued:
		s.log.Infof("Scan for %s is queued", xpub)
		return false, nil

	case types.ScanPending:
		if status.Progress == nil {
			return false, errors.Errorf("pending scan for %s reports no progress", xpub)
		}
		eta := "Unknown"
		if status.Progress.RemainingSeconds != nil {
			eta = fmt.Sprintf("%ds", *status.Progress.RemainingSeconds)
		}
		s.log.Infof("Scan progress for %s: Progress: %d%%, ETA: %s",
			xpub, status.Progress.OverallProgress, eta)
		return false, nil

	case types.ScanComplete:
		s.log.Infof("UTXO scan completed for %s", xpub)
		return true, nil

	case types.ScanError:
		msg := "unknown error"
		if status.Error != nil {
			msg = *status.Error
		}
		return false, errors.Wrapf(ErrScanFailed, "%s: %s", xpub, msg)
	}

	return false, errors.Errorf("unexpected scan status %q for %s", status.Status, xpub)
}
